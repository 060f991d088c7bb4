package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
)

// ErrUpstreamFailure indicates a registered provider's call failed.
var ErrUpstreamFailure = errors.New("upstream generation failure")

// Router dispatches generation requests to the named provider. There is no
// automatic cross-provider failover: a missing or failing provider fails the
// request.
type Router struct {
	registry *provider.Registry
}

// New constructs a router backed by the provided registry.
func New(registry *provider.Registry) *Router {
	return &Router{
		registry: registry,
	}
}

// ListProviders returns the registered provider names in stable order.
func (r *Router) ListProviders() []string {
	return r.registry.Names()
}

// ListAllModels queries every registered provider for its models. A single
// provider's failure yields an empty list for that provider only.
func (r *Router) ListAllModels(ctx context.Context) map[string][]string {
	result := make(map[string][]string)
	for _, name := range r.registry.Names() {
		p, err := r.registry.Lookup(name)
		if err != nil {
			continue
		}

		ids, err := p.ListModels(ctx)
		if err != nil {
			slog.Error("failed to list models", "provider", name, "err", err)
			result[name] = []string{}
			continue
		}
		result[name] = ids
	}
	return result
}

// Generate validates the request, resolves the named provider, and forwards
// the call. Upstream failures are wrapped with the provider name attached.
func (r *Router) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := r.registry.Lookup(req.Provider)
	if err != nil {
		return nil, err
	}

	result, err := p.Generate(ctx, req.Model, req.Input, req.Options())
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s: %w", ErrUpstreamFailure, p.Name(), err)
	}
	return result, nil
}
