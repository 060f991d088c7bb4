// Package anthropic implements the provider contract on top of the official
// Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"foundry-gateway/internal/config"
	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
)

// Provider implements provider.Provider against the Anthropic Messages API.
type Provider struct {
	name   string
	client anthropic.Client
}

// New creates an Anthropic provider from configuration.
func New(name string, cfg config.AnthropicConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key must not be empty")
	}

	return &Provider{
		name:   name,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// ListModels returns the model IDs visible to the credential, newest first as
// reported by the API.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("anthropic list models: %w", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, string(m.ID))
	}
	return ids, nil
}

func (p *Provider) Generate(ctx context.Context, model, input string, opts models.GenerateOptions) (*models.GenerateResult, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
		Temperature: anthropic.Float(opts.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic message: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", provider.ErrEmptyResponse, p.name)
	}

	return &models.GenerateResult{
		Text: text.String(),
		Usage: models.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
