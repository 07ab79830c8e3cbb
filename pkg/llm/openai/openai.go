// Package openai provides an OpenAI-compatible llm.Provider.
//
// Example usage:
//
//	provider, err := openai.NewProvider(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"))
//	if err != nil {
//	    return err
//	}
//	answer, err := provider.Complete(ctx, []llm.Message{
//	    llm.UserMessage("Summarize this page"),
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/entrhq/browserbase-mcp/pkg/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	client     openai.Client
	baseURL    string
	model      string
	maxRetries int
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// WithMaxRetries sets how often the client retries failed requests.
func WithMaxRetries(n int) ProviderOption {
	return func(p *Provider) {
		p.maxRetries = n
	}
}

// NewProvider creates a provider authenticating with apiKey.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	p := &Provider{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(p)
	}

	baseURL := p.baseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	p.client = openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(p.maxRetries),
	)
	return p, nil
}

// Complete sends messages and returns the first choice's content.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: convertToOpenAIMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used for API requests.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

func convertToOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
