// Package huggingface implements the provider contract against the Hugging
// Face Inference API over plain HTTP. The API reports no token usage, so
// usage is approximated by word count.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"foundry-gateway/internal/config"
	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "foundry-gateway/0.1"
)

// knownModels are common text generation models served by the Inference API;
// the API has no per-credential model listing endpoint.
var knownModels = []string{
	"microsoft/DialoGPT-medium",
	"EleutherAI/gpt-neo-2.7B",
	"microsoft/DialoGPT-large",
	"gpt2",
	"distilgpt2",
}

// Provider implements provider.Provider for Hugging Face Inference.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Hugging Face provider from configuration.
func New(name string, cfg config.HuggingFaceConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key must not be empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Provider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	result := make([]string, len(knownModels))
	copy(result, knownModels)
	return result, nil
}

type generateParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

type apiError struct {
	Error string `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, model, input string, opts models.GenerateOptions) (*models.GenerateResult, error) {
	payload, err := json.Marshal(generateRequest{
		Inputs: input,
		Parameters: generateParameters{
			MaxNewTokens:   opts.MaxTokens,
			Temperature:    opts.Temperature,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal inference payload: %w", err)
	}

	url := p.baseURL + "/models/" + model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("huggingface inference request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("huggingface inference returned %d: %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("huggingface inference returned %d", httpResp.StatusCode)
	}

	var outputs []generateResponse
	if err := json.Unmarshal(body, &outputs); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if len(outputs) == 0 || outputs[0].GeneratedText == "" {
		return nil, fmt.Errorf("%w: %s", provider.ErrEmptyResponse, p.name)
	}

	text := outputs[0].GeneratedText
	return &models.GenerateResult{
		Text: text,
		Usage: models.Usage{
			InputTokens:  len(strings.Fields(input)),
			OutputTokens: len(strings.Fields(text)),
		},
	}, nil
}
