package ai

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	testConnectionPrompt    = "Test connection"
	testConnectionMaxTokens = 5
)

// Result is one completed summary.
type Result struct {
	Text       string
	TokenCount *int
}

// Provider turns content into a summary through an external language model.
type Provider interface {
	Summarize(ctx context.Context, content, length, tone string) (*Result, error)
	TestConnection(ctx context.Context) (string, error)
}

// completion is one chat request, independent of transport.
type completion struct {
	settings    config.ProviderSettings
	system      string
	prompt      string
	temperature float64
	maxTokens   int
}

// backend performs one completion. Failures are *apperr.Error values.
type backend interface {
	complete(ctx context.Context, req completion) (*Result, error)
}

// Client implements Provider. It reads provider settings at call time so
// host edits apply without a restart.
type Client struct {
	settings    config.SettingsSource
	timeout     time.Duration
	testTimeout time.Duration
	http        backend
	sdk         backend
	logger      *zap.Logger
}

// Options tune Client timeouts.
type Options struct {
	Timeout     time.Duration
	TestTimeout time.Duration
}

func NewClient(settings config.SettingsSource, opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		settings:    settings,
		timeout:     opts.Timeout,
		testTimeout: opts.TestTimeout,
		http:        newHTTPBackend(),
		sdk:         sdkBackend{},
		logger:      logger.Named("Provider"),
	}
}

func (c *Client) providerSettings() (config.ProviderSettings, error) {
	cfg, err := c.settings.Get()
	if err != nil {
		return config.ProviderSettings{}, apperr.Wrap(apperr.KindConfig, "load provider settings", err)
	}
	p := cfg.Provider
	if strings.TrimSpace(p.APIKey) == "" {
		return p, apperr.Config("summarization provider API key is not configured")
	}
	return p, nil
}

func (c *Client) backendFor(p config.ProviderSettings) backend {
	if p.TypeValue() == config.ProviderOpenAICompatible {
		return c.http
	}
	return c.sdk
}

// Summarize generates a summary of content. It never retries.
func (c *Client) Summarize(ctx context.Context, content, length, tone string) (*Result, error) {
	p, err := c.providerSettings()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.backendFor(p).complete(ctx, completion{
		settings:    p,
		system:      systemPrompt,
		prompt:      buildPrompt(content, length, tone),
		temperature: p.TemperatureValue(),
		maxTokens:   p.MaxTokensFor(length),
	})
	if err != nil {
		c.logger.Warn("summarize failed",
			zap.String("provider", p.TypeValue()),
			zap.String("model", p.ModelValue()),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.String("error", apperr.Sanitize(err.Error(), p.APIKey)),
		)
		return nil, err
	}
	return res, nil
}

// TestConnection validates the credentials with a minimal completion.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	p, err := c.providerSettings()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.testTimeout)
	defer cancel()

	if _, err := c.backendFor(p).complete(ctx, completion{
		settings:    p,
		prompt:      testConnectionPrompt,
		temperature: p.TemperatureValue(),
		maxTokens:   testConnectionMaxTokens,
	}); err != nil {
		// A reply with no text still proves the credentials work.
		if apperr.Is(err, apperr.KindEmptyResponse) {
			return "Connection successful", nil
		}
		return "", err
	}
	return "Connection successful", nil
}

// classifyTransport maps a failed round trip to transport or upstream.
func classifyTransport(msg string, err error) *apperr.Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.KindTransport, msg+": request timed out", err)
	case errors.As(err, &netErr):
		return apperr.Wrap(apperr.KindTransport, msg, err)
	default:
		return apperr.Wrap(apperr.KindUpstream, msg, err)
	}
}

// classifyStatus maps a non-2xx HTTP status.
func classifyStatus(status int, message string) *apperr.Error {
	e := &apperr.Error{Kind: apperr.KindUpstream, Message: message, StatusCode: status}
	switch status {
	case 401, 403:
		e.Kind = apperr.KindAuth
	case 429:
		e.Kind = apperr.KindRateLimited
	}
	return e
}
