package llm

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// messagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake in place of *sdk.MessageService.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicAdapter implements Adapter directly against the Anthropic
// Messages API.
type AnthropicAdapter struct {
	client           messagesClient
	defaultModel     string
	maxContextTokens int
}

// NewAnthropicAdapter builds an adapter from an API key and default model
// identifier, reading transport configuration from the SDK's own defaults.
func NewAnthropicAdapter(apiKey, defaultModel string, maxContextTokens int) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: &client.Messages, defaultModel: defaultModel, maxContextTokens: maxContextTokens}, nil
}

func (a *AnthropicAdapter) GetTokenizer() Tokenizer  { return approximateTokenizer }
func (a *AnthropicAdapter) GetMaxContextTokens() int { return a.maxContextTokens }
func (a *AnthropicAdapter) GetServiceName() string   { return "anthropic" }

// PrepareContextForModel returns nil; this adapter has no provider-side
// prompt cache of its own. The optional mega-context pre-cache
// (internal/contextassembler/cache) sits in front of context assembly
// instead, transparent to every adapter.
func (a *AnthropicAdapter) PrepareContextForModel(ctx context.Context, contextParts []string, options map[string]any) (any, error) {
	return nil, nil
}

func (a *AnthropicAdapter) GenerateText(ctx context.Context, prompt string, params Params) (string, error) {
	return a.CompleteChat(ctx, []Message{{Role: RoleUser, Content: prompt}}, params)
}

func (a *AnthropicAdapter) CompleteChat(ctx context.Context, messages []Message, params Params) (string, error) {
	return WithRetry(ctx, func(ctx context.Context) (string, error) {
		return a.complete(ctx, messages, params)
	})
}

func (a *AnthropicAdapter) complete(ctx context.Context, messages []Message, params Params) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("anthropic: messages are required")
	}
	modelID := params.Model
	if modelID == "" {
		modelID = a.defaultModel
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	sdkMessages := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			sdkMessages = append(sdkMessages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			sdkMessages = append(sdkMessages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case RoleSystem:
			// system turns are carried on the request's System field below
		}
	}

	body := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  sdkMessages,
		Model:     sdk.Model(modelID),
	}
	if params.SystemInstruction != "" {
		body.System = []sdk.TextBlockParam{{Text: params.SystemInstruction}}
	}
	if params.Temperature > 0 {
		body.Temperature = sdk.Float(params.Temperature)
	}
	if len(params.StopSequences) > 0 {
		body.StopSequences = params.StopSequences
	}

	resp, err := a.client.New(ctx, body)
	if err != nil {
		if statusErr := statusFromAnthropicError(err); statusErr != nil {
			return "", statusErr
		}
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// statusFromAnthropicError maps the SDK's error type to a StatusError the
// retry policy understands, or nil when the SDK error carries no HTTP
// status (e.g. a context cancellation).
func statusFromAnthropicError(err error) StatusError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &cliStatusError{err: apiErr, status: apiErr.StatusCode}
	}
	return nil
}
