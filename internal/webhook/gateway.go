// Package webhook verifies inbound signed deliveries from external event
// sources before any handler runs. Signatures are always computed over the
// raw body exactly as received, never over a re-serialized representation,
// and compared in constant time.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"foundry-gateway/internal/config"
)

// Verification failures. All three are terminal: the delivery is rejected and
// never retried.
var (
	ErrSignatureMissing = errors.New("missing signature")
	ErrSignatureInvalid = errors.New("invalid signature")
	ErrConfigMissing    = errors.New("webhook secret not configured")
)

// Source identifies an external event source system.
type Source string

const (
	SourceGitHub Source = "github"
	SourceStripe Source = "stripe"
)

// Envelope is an inbound delivery as received on the wire. Body holds the
// exact bytes that arrived.
type Envelope struct {
	Source    Source
	Signature string
	Body      []byte
}

// Event is the normalized descriptor handed to callers after a delivery is
// accepted.
type Event struct {
	Source   Source
	Action   string
	EntityID string
}

// Gateway resolves per-source secrets and verifies envelopes. Verification is
// a pure function of the envelope and the configured secrets; it is safe to
// call concurrently.
type Gateway struct {
	githubSecret string
	stripeSecret string
}

// NewGateway constructs a gateway from webhook configuration. A source with
// no configured secret permanently rejects its deliveries.
func NewGateway(cfg config.WebhooksConfig) *Gateway {
	return &Gateway{
		githubSecret: cfg.GitHubSecret,
		stripeSecret: cfg.StripeSecret,
	}
}

// Verify checks the envelope's signature against the secret for its source.
// It returns nil on acceptance; handlers must not run unless Verify accepted
// the envelope.
func (g *Gateway) Verify(env Envelope) error {
	switch env.Source {
	case SourceGitHub:
		return verifyGitHub(env, g.githubSecret)
	case SourceStripe:
		return verifyStripe(env, g.stripeSecret)
	default:
		return fmt.Errorf("unknown webhook source %q", env.Source)
	}
}

// verifyGitHub checks an x-hub-signature-256 header of the form
// "sha256=<hex>" against HMAC-SHA256 of the raw body.
func verifyGitHub(env Envelope, secret string) error {
	if secret == "" {
		return ErrConfigMissing
	}
	if env.Signature == "" {
		return ErrSignatureMissing
	}

	expected := "sha256=" + signHex(secret, env.Body)
	if !hmac.Equal([]byte(env.Signature), []byte(expected)) {
		return ErrSignatureInvalid
	}
	return nil
}

// verifyStripe checks a stripe-signature header of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]". The signed payload is the timestamp, a
// dot, then the raw body; any matching v1 entry accepts the delivery.
func verifyStripe(env Envelope, secret string) error {
	if secret == "" {
		return ErrConfigMissing
	}
	if env.Signature == "" {
		return ErrSignatureMissing
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(env.Signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrSignatureInvalid
	}

	signedPayload := make([]byte, 0, len(timestamp)+1+len(env.Body))
	signedPayload = append(signedPayload, timestamp...)
	signedPayload = append(signedPayload, '.')
	signedPayload = append(signedPayload, env.Body...)
	expected := signHex(secret, signedPayload)

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignGitHub computes the header value a GitHub delivery with the given body
// would carry. Exposed for callers that need to produce test deliveries.
func SignGitHub(secret string, body []byte) string {
	return "sha256=" + signHex(secret, body)
}

// SignStripe computes the header value a Stripe delivery with the given body
// and timestamp would carry.
func SignStripe(secret, timestamp string, body []byte) string {
	payload := append([]byte(timestamp+"."), body...)
	return "t=" + timestamp + ",v1=" + signHex(secret, payload)
}
