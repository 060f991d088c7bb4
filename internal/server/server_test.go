package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundry-gateway/internal/bus"
	"foundry-gateway/internal/config"
	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
	"foundry-gateway/internal/router"
	"foundry-gateway/internal/webhook"
)

const testWebhookSecret = "whsec_test"

type fakeProvider struct {
	name        string
	generateErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{f.name + "-model"}, nil
}

func (f *fakeProvider) Generate(ctx context.Context, model, input string, opts models.GenerateOptions) (*models.GenerateResult, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &models.GenerateResult{
		Text:  "generated: " + input,
		Usage: models.Usage{InputTokens: 3, OutputTokens: 7},
	}, nil
}

func newTestServer(t *testing.T, cfg config.Config, providers ...provider.Provider) *Server {
	t.Helper()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}

	registry := provider.NewRegistry()
	for _, p := range providers {
		require.NoError(t, registry.Register(p))
	}

	srv, err := New(cfg, router.New(registry), webhook.NewGateway(cfg.Webhooks), bus.NewHub(nil))
	require.NoError(t, err)
	return srv
}

func doJSON(srv *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.app.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, config.Config{Server: config.ServerConfig{Environment: "test"}})

	rec := doJSON(srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["environment"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "uptime")
}

func TestGenerateProviderNotAvailable(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	rec := doJSON(srv, http.MethodPost, "/api/generate",
		`{"provider":"openai","model":"gpt-3.5-turbo","input":"hi"}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Provider openai not available", body["error"])
}

func TestGenerateSuccess(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &fakeProvider{name: "openai"})

	rec := doJSON(srv, http.MethodPost, "/api/generate",
		`{"provider":"openai","model":"gpt-3.5-turbo","input":"hi"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "generated: hi", body["text"])
	assert.Equal(t, "openai", body["provider"])
	assert.Equal(t, "gpt-3.5-turbo", body["model"])
	usage, ok := body["usage"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, usage["input_tokens"])
	assert.EqualValues(t, 7, usage["output_tokens"])
}

func TestGenerateRejectsInvalidBody(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &fakeProvider{name: "openai"})

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "malformed json", body: `{"provider":`},
		{name: "missing input", body: `{"provider":"openai","model":"gpt-4"}`},
		{name: "temperature out of range", body: `{"provider":"openai","model":"gpt-4","input":"hi","temperature":3}`},
		{name: "trailing garbage", body: `{"provider":"openai","model":"gpt-4","input":"hi"}{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(srv, http.MethodPost, "/api/generate", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGenerateUpstreamFailureIsTerse(t *testing.T) {
	srv := newTestServer(t, config.Config{},
		&fakeProvider{name: "openai", generateErr: errors.New("api key leaked in this message")})

	rec := doJSON(srv, http.MethodPost, "/api/generate",
		`{"provider":"openai","model":"gpt-4","input":"hi"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Generation failed", body["error"])
	assert.NotContains(t, rec.Body.String(), "leaked")
}

func TestGenerateSessionEnforcement(t *testing.T) {
	secret := "session-secret"
	cfg := config.Config{Session: config.SessionConfig{Secret: secret}}
	srv := newTestServer(t, cfg, &fakeProvider{name: "openai"})

	body := `{"provider":"openai","model":"gpt-4","input":"hi"}`

	rec := doJSON(srv, http.MethodPost, "/api/generate", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(srv, http.MethodPost, "/api/generate", body,
		map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	rec = doJSON(srv, http.MethodPost, "/api/generate", body,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModelsListing(t *testing.T) {
	srv := newTestServer(t, config.Config{},
		&fakeProvider{name: "openai"},
		&fakeProvider{name: "huggingface"},
	)

	rec := doJSON(srv, http.MethodGet, "/api/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.ElementsMatch(t, []any{"huggingface", "openai"}, body["providers"])
	modelsByProvider, ok := body["models"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"openai-model"}, modelsByProvider["openai"])
}

func TestGitHubWebhookContract(t *testing.T) {
	cfg := config.Config{Webhooks: config.WebhooksConfig{GitHubSecret: testWebhookSecret}}
	payload := `{"action":"opened","repository":{"full_name":"acme/demo"},"sender":{"login":"octocat"}}`

	for _, path := range []string{"/webhook/github", "/api/webhooks/github"} {
		t.Run(path, func(t *testing.T) {
			srv := newTestServer(t, cfg)

			rec := doJSON(srv, http.MethodPost, path, payload, map[string]string{
				"x-hub-signature-256": webhook.SignGitHub(testWebhookSecret, []byte(payload)),
				"x-github-event":      "issues",
			})
			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "success", body["status"])
			assert.Equal(t, "issues", body["event"])

			rec = doJSON(srv, http.MethodPost, path, payload, map[string]string{
				"x-hub-signature-256": webhook.SignGitHub("wrong-secret", []byte(payload)),
				"x-github-event":      "issues",
			})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = doJSON(srv, http.MethodPost, path, payload, map[string]string{
				"x-github-event": "issues",
			})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestGitHubWebhookSignatureBindsBody(t *testing.T) {
	cfg := config.Config{Webhooks: config.WebhooksConfig{GitHubSecret: testWebhookSecret}}
	srv := newTestServer(t, cfg)

	payload := `{"action":"opened","repository":{"full_name":"acme/demo"}}`
	signature := webhook.SignGitHub(testWebhookSecret, []byte(payload))

	// Original signature over a body differing in one byte must be rejected.
	mutated := strings.Replace(payload, "opened", "opened ", 1)
	rec := doJSON(srv, http.MethodPost, "/api/webhooks/github", mutated, map[string]string{
		"x-hub-signature-256": signature,
		"x-github-event":      "issues",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid signature", decodeBody(t, rec)["error"])
}

func TestGitHubWebhookSecretNotConfigured(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	payload := `{"action":"opened"}`
	rec := doJSON(srv, http.MethodPost, "/api/webhooks/github", payload, map[string]string{
		"x-hub-signature-256": webhook.SignGitHub(testWebhookSecret, []byte(payload)),
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStripeWebhookContract(t *testing.T) {
	cfg := config.Config{Webhooks: config.WebhooksConfig{StripeSecret: testWebhookSecret}}
	srv := newTestServer(t, cfg)

	payload := `{"type":"invoice.payment_succeeded","data":{"object":{"id":"in_1"}}}`

	rec := doJSON(srv, http.MethodPost, "/api/webhooks/stripe", payload, map[string]string{
		"stripe-signature": webhook.SignStripe(testWebhookSecret, "1700000000", []byte(payload)),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["received"])

	rec = doJSON(srv, http.MethodPost, "/api/webhooks/stripe", payload, map[string]string{
		"stripe-signature": webhook.SignStripe("wrong", "1700000000", []byte(payload)),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid signature", decodeBody(t, rec)["error"])
}

func TestEventsStreamEmitsConnectionThenHeartbeats(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	srv.heartbeatInterval = 40 * time.Millisecond

	ts := httptest.NewServer(srv.app)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var types []string
	for len(types) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		types = append(types, frame["type"].(string))
	}

	assert.Equal(t, "connection", types[0])
	assert.Equal(t, "heartbeat", types[1])
	assert.Equal(t, "heartbeat", types[2])

	// Client abort ends the stream; no further frames arrive.
	cancel()
	_, err = reader.ReadString('\n')
	assert.Error(t, err)
}
