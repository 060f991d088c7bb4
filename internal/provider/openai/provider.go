// Package openai implements the provider contract on top of the official
// OpenAI SDK. It adapts the unified generate call into a single-turn chat
// completion and reports the API's native token accounting.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"foundry-gateway/internal/config"
	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
)

// fallbackModels is served when the upstream model listing fails.
var fallbackModels = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"}

// Provider implements provider.Provider against the OpenAI API.
type Provider struct {
	name   string
	client openai.Client
}

// New creates an OpenAI provider from configuration.
func New(name string, cfg config.OpenAIConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key must not be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		name:   name,
		client: openai.NewClient(opts...),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// ListModels returns the chat-capable model IDs visible to the credential,
// falling back to a static list when the listing endpoint fails.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return append([]string(nil), fallbackModels...), nil
	}

	var ids []string
	for _, m := range page.Data {
		if strings.Contains(m.ID, "gpt") {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) Generate(ctx context.Context, model, input string, opts models.GenerateOptions) (*models.GenerateResult, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(input),
		},
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
		Temperature: openai.Float(opts.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: %s", provider.ErrEmptyResponse, p.name)
	}

	return &models.GenerateResult{
		Text: resp.Choices[0].Message.Content,
		Usage: models.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
