// Package azure implements the provider contract against an Azure OpenAI
// resource. Azure routes by deployment name rather than model ID, so a
// configured deployment replaces the requested model on dispatch.
package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"

	"foundry-gateway/internal/config"
	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
)

// Provider implements provider.Provider against Azure OpenAI.
type Provider struct {
	name       string
	deployment string
	client     openai.Client
}

// New creates an Azure OpenAI provider from configuration.
func New(name string, cfg config.AzureOpenAIConfig) (*Provider, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, errors.New("endpoint and api key must not be empty")
	}

	client := openai.NewClient(
		azure.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/"), cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	)

	return &Provider{
		name:       name,
		deployment: cfg.Deployment,
		client:     client,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// ListModels returns the configured deployment when known. Azure exposes
// deployments, not a model catalogue, so without one we report the common
// deployment names.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if p.deployment != "" {
		return []string{p.deployment}, nil
	}
	return []string{"gpt-35-turbo", "gpt-4"}, nil
}

func (p *Provider) Generate(ctx context.Context, model, input string, opts models.GenerateOptions) (*models.GenerateResult, error) {
	deployment := model
	if p.deployment != "" {
		deployment = p.deployment
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(input),
		},
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
		Temperature: openai.Float(opts.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("azure openai chat completion: %w", err)
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
