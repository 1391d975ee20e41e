package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/pkg/apperr"
)

const maxResponseBytes = 4 << 20

// httpBackend speaks the chat-completions wire format directly.
type httpBackend struct {
	client *http.Client
}

func newHTTPBackend() *httpBackend {
	// Deadlines come from the request context.
	return &httpBackend{client: &http.Client{}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *httpBackend) complete(ctx context.Context, req completion) (*Result, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.system) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.settings.ModelValue(),
		Messages:    messages,
		Temperature: req.temperature,
		MaxTokens:   req.maxTokens,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalid, "encode completion request", err)
	}

	endpoint := normalizeOpenAICompatibleEndpoint(req.settings.Endpoint) + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "invalid provider endpoint", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(req.settings.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport("completion request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport("read completion response", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
			msg = parsed.Error.Message
		}
		return nil, classifyStatus(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, &apperr.Error{Kind: apperr.KindUpstream, Message: "decode completion response", StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, apperr.New(apperr.KindEmptyResponse, "empty response from AI")
	}

	res := &Result{Text: strings.TrimSpace(parsed.Choices[0].Message.Content)}
	if parsed.Usage != nil {
		n := parsed.Usage.TotalTokens
		res.TokenCount = &n
	}
	return res, nil
}

func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return config.DefaultEndpoint
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")
	}

	path := strings.TrimRight(parsed.Path, "/")
	parsed.Path = strings.TrimSuffix(path, "/v1")
	return strings.TrimRight(parsed.String(), "/")
}
