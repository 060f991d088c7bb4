package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxTokens is applied when a request omits max_tokens.
	DefaultMaxTokens = 100
	// DefaultTemperature is applied when a request omits temperature.
	DefaultTemperature = 0.7
)

// ErrInvalidRequest indicates a generation request failed schema validation.
var ErrInvalidRequest = errors.New("invalid request")

// GenerateRequest is the canonical representation of a generation call.
type GenerateRequest struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Input       string   `json:"input"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Options returns the dispatch options after defaulting.
func (r GenerateRequest) Options() GenerateOptions {
	opts := GenerateOptions{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	if r.MaxTokens != nil {
		opts.MaxTokens = *r.MaxTokens
	}
	if r.Temperature != nil {
		opts.Temperature = *r.Temperature
	}
	return opts
}

// Validate checks the request schema. Rejected requests never reach a
// provider.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Provider) == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if r.Input == "" {
		return fmt.Errorf("%w: input is required", ErrInvalidRequest)
	}
	if r.MaxTokens != nil && *r.MaxTokens < 1 {
		return fmt.Errorf("%w: max_tokens must be at least 1", ErrInvalidRequest)
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidRequest)
	}
	return nil
}

// GenerateOptions are the provider-facing dispatch knobs after defaulting.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// GenerateResult captures a provider response in the unified schema.
type GenerateResult struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Usage records token accounting. Providers without native accounting
// approximate by word count, so these are best-effort numbers.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EventMessage is a single frame distributed by the fan-out bus. Room-addressed
// when Room is set, global otherwise.
type EventMessage struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Room      string         `json:"-"`
}
