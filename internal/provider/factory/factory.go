package factory

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"foundry-gateway/internal/config"
	"foundry-gateway/internal/provider"
	anthropicProvider "foundry-gateway/internal/provider/anthropic"
	azureProvider "foundry-gateway/internal/provider/azure"
	huggingfaceProvider "foundry-gateway/internal/provider/huggingface"
	openaiProvider "foundry-gateway/internal/provider/openai"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// RegisterConfiguredProviders constructs every backend kind whose credentials
// are present and stores it in the registry. Construction fails closed: a
// missing credential or a constructor error excludes that backend from the
// registry instead of aborting startup.
func RegisterConfiguredProviders(cfg config.Config, registry *provider.Registry) {
	if cfg.Providers.OpenAI.Configured() {
		p, err := openaiProvider.New("openai", cfg.Providers.OpenAI)
		registerOrWarn(registry, p, err, "openai")
	}

	if cfg.Providers.AzureOpenAI.Configured() {
		p, err := azureProvider.New("azure-openai", cfg.Providers.AzureOpenAI)
		registerOrWarn(registry, p, err, "azure-openai")
	}

	if cfg.Providers.HuggingFace.Configured() {
		p, err := huggingfaceProvider.New("huggingface", cfg.Providers.HuggingFace, newHTTPClient(defaultHTTPTimeout))
		registerOrWarn(registry, p, err, "huggingface")
	}

	if cfg.Providers.Anthropic.Configured() {
		p, err := anthropicProvider.New("anthropic", cfg.Providers.Anthropic)
		registerOrWarn(registry, p, err, "anthropic")
	}

	slog.Info("provider registry initialized", "providers", registry.Names())
}

func registerOrWarn(registry *provider.Registry, p provider.Provider, err error, name string) {
	if err != nil {
		slog.Warn("failed to initialize provider, excluding", "provider", name, "err", err)
		return
	}
	if err := registry.Register(p); err != nil {
		slog.Warn("failed to register provider, excluding", "provider", name, "err", err)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
