package provider

import (
	"context"
	"errors"

	"foundry-gateway/internal/models"
)

// ErrProviderUnavailable indicates the named provider is not registered.
var ErrProviderUnavailable = errors.New("provider not available")

// ErrEmptyResponse indicates the upstream returned no usable content.
var ErrEmptyResponse = errors.New("empty response from provider")

// Provider is the normalized contract every generation backend implements.
type Provider interface {
	Name() string
	ListModels(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, model, input string, opts models.GenerateOptions) (*models.GenerateResult, error)
}
