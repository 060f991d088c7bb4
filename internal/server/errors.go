package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"foundry-gateway/internal/models"
	"foundry-gateway/internal/provider"
	"foundry-gateway/internal/router"
	"foundry-gateway/internal/webhook"
)

// requestError is an error that maps directly onto an HTTP response. Messages
// are terse: upstream causes are logged, never echoed to the caller.
type requestError struct {
	Status  int
	Message string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(c echo.Context, status int, message, code string) error {
	return c.JSON(status, errorBody{Error: message, Code: code})
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Code)
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = writeError(c, echoErr.Code, http.StatusText(echoErr.Code), "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}

// toGenerateError resolves router failures into the HTTP contract: validation
// and provider-lookup errors become 400s with stable codes, upstream failures
// become a terse 500.
func toGenerateError(err error, providerName string) error {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Code:    "validation_error",
		}
	case errors.Is(err, provider.ErrProviderUnavailable):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "Provider " + providerName + " not available",
			Code:    "provider_unavailable",
		}
	case errors.Is(err, router.ErrUpstreamFailure):
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "Generation failed",
			Code:    "upstream_error",
		}
	default:
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "Generation failed",
			Code:    "server_error",
		}
	}
}

// toWebhookError resolves gateway verification failures. The response never
// reveals which byte differed or any part of the secret.
func toWebhookError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrConfigMissing):
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "Webhook secret not configured",
			Code:    "config_missing",
		}
	case errors.Is(err, webhook.ErrSignatureMissing):
		return requestError{
			Status:  http.StatusUnauthorized,
			Message: "No signature provided",
			Code:    "signature_missing",
		}
	default:
		return requestError{
			Status:  http.StatusUnauthorized,
			Message: "Invalid signature",
			Code:    "signature_invalid",
		}
	}
}
