package ai

import (
	"context"
	"errors"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// sdkBackend serves the openai and anthropic provider types through the
// vendor SDKs. Token usage is not reported on this path.
type sdkBackend struct{}

func (sdkBackend) complete(ctx context.Context, req completion) (*Result, error) {
	model, err := buildLanguageModel(req.settings)
	if err != nil {
		return nil, err
	}
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(req.system, req.prompt),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(req.maxTokens),
		jetai.WithTemperature(req.temperature),
	)
	if err != nil {
		return nil, classifySDKError(err)
	}
	text := extractText(resp)
	if text == "" {
		return nil, apperr.New(apperr.KindEmptyResponse, "empty response from AI")
	}
	return &Result{Text: text}, nil
}

func buildPromptMessages(system, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: system})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) string {
	if resp == nil {
		return ""
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	return strings.TrimSpace(full.String())
}

func buildLanguageModel(p config.ProviderSettings) (jetapi.LanguageModel, error) {
	apiKey := strings.TrimSpace(p.APIKey)
	if apiKey == "" {
		return nil, apperr.Config("summarization provider API key is not configured")
	}
	endpoint := strings.TrimSpace(p.Endpoint)

	if p.TypeValue() == config.ProviderAnthropic {
		modelID := strings.TrimSpace(p.Model)
		if modelID == "" || modelID == config.DefaultModel {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(p.ModelValue(), jetopenai.WithClient(client)), nil
}

// classifySDKError reads the HTTP status out of the vendor error types.
func classifySDKError(err error) error {
	var openaiErr *openaiclient.Error
	if errors.As(err, &openaiErr) {
		return &apperr.Error{Kind: classifyStatus(openaiErr.StatusCode, "").Kind, Message: "provider request failed", StatusCode: openaiErr.StatusCode, Err: err}
	}
	var anthropicErr *anthropicclient.Error
	if errors.As(err, &anthropicErr) {
		return &apperr.Error{Kind: classifyStatus(anthropicErr.StatusCode, "").Kind, Message: "provider request failed", StatusCode: anthropicErr.StatusCode, Err: err}
	}
	return classifyTransport("provider request failed", err)
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
