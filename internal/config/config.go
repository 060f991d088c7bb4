package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Credentials and secrets are
// environment-driven; an optional YAML file carries listener settings only.
type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Webhooks  WebhooksConfig
	Session   SessionConfig
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port           int      `env:"PORT" envDefault:"3001"`
	Environment    string   `env:"APP_ENV" envDefault:"development"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// ProvidersConfig carries credentials for every known backend kind. A kind
// whose credentials are absent is excluded from the registry at startup.
type ProvidersConfig struct {
	OpenAI      OpenAIConfig
	AzureOpenAI AzureOpenAIConfig
	HuggingFace HuggingFaceConfig
	Anthropic   AnthropicConfig
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

// Configured reports whether the backend has the credentials it requires.
func (c OpenAIConfig) Configured() bool { return c.APIKey != "" }

// AzureOpenAIConfig configures the Azure OpenAI backend. Both the endpoint
// and the key are required; the deployment name is optional and, when set,
// replaces the requested model on dispatch.
type AzureOpenAIConfig struct {
	Endpoint   string `env:"AZURE_OPENAI_ENDPOINT"`
	APIKey     string `env:"AZURE_OPENAI_API_KEY"`
	Deployment string `env:"AZURE_OPENAI_DEPLOYMENT"`
	APIVersion string `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-02-15-preview"`
}

func (c AzureOpenAIConfig) Configured() bool { return c.Endpoint != "" && c.APIKey != "" }

// HuggingFaceConfig configures the Hugging Face Inference backend.
type HuggingFaceConfig struct {
	APIKey  string `env:"HUGGINGFACE_API_KEY"`
	BaseURL string `env:"HUGGINGFACE_BASE_URL" envDefault:"https://api-inference.huggingface.co"`
}

func (c HuggingFaceConfig) Configured() bool { return c.APIKey != "" }

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY"`
}

func (c AnthropicConfig) Configured() bool { return c.APIKey != "" }

// WebhooksConfig carries the per-source shared secrets. An empty secret makes
// that source permanently reject inbound deliveries.
type WebhooksConfig struct {
	GitHubSecret string `env:"GITHUB_WEBHOOK_SECRET"`
	StripeSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// SessionConfig carries the HS256 secret used to verify session bearer
// tokens. Session verification is disabled when the secret is empty.
type SessionConfig struct {
	Secret string `env:"SESSION_SECRET"`
}

// serverFile mirrors the YAML file layout.
type serverFile struct {
	Server struct {
		Port           int      `yaml:"port"`
		Environment    string   `yaml:"environment"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
}

// Load reads configuration from the environment, overlays the optional YAML
// file at path, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment configuration: %w", err)
	}

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var file serverFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if file.Server.Port != 0 {
		cfg.Server.Port = file.Server.Port
	}
	if file.Server.Environment != "" {
		cfg.Server.Environment = file.Server.Environment
	}
	if len(file.Server.AllowedOrigins) != 0 {
		cfg.Server.AllowedOrigins = file.Server.AllowedOrigins
	}
	return nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be a valid TCP port, got %d", c.Server.Port)
	}
	return nil
}
