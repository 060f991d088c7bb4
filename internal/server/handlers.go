package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"foundry-gateway/internal/bus"
	"foundry-gateway/internal/models"
	"foundry-gateway/internal/webhook"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(s.startedAt).Seconds(),
		"environment": s.cfg.Server.Environment,
	})
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req models.GenerateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	result, err := s.router.Generate(c.Request().Context(), req)
	if err != nil {
		slog.Error("generation failed", "provider", req.Provider, "model", req.Model, "err", err)
		return toGenerateError(err, req.Provider)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"text":     result.Text,
		"usage":    result.Usage,
		"provider": req.Provider,
		"model":    req.Model,
	})
}

func (s *Server) handleModels(c echo.Context) error {
	providers := s.router.ListProviders()
	allModels := s.router.ListAllModels(c.Request().Context())

	return c.JSON(http.StatusOK, map[string]any{
		"providers": providers,
		"models":    allModels,
		"count":     len(providers),
	})
}

func (s *Server) handleGitHubWebhook(c echo.Context) error {
	body, err := readRawBody(c)
	if err != nil {
		return err
	}

	env := webhook.Envelope{
		Source:    webhook.SourceGitHub,
		Signature: c.Request().Header.Get("x-hub-signature-256"),
		Body:      body,
	}
	if err := s.gateway.Verify(env); err != nil {
		slog.Warn("rejected github webhook", "err", err)
		return toWebhookError(err)
	}

	eventType := c.Request().Header.Get("x-github-event")
	delivery, err := webhook.ParseGitHubEvent(eventType, body)
	if err != nil {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process webhook",
			Code:    "webhook_error",
		}
	}

	slog.Info("github webhook accepted",
		"event", delivery.EventType,
		"action", delivery.Event.Action,
		"repository", delivery.Repository,
		"sender", delivery.Sender,
	)

	s.hub.BroadcastToRoom(bus.RoomGitHubEvents, models.EventMessage{
		Type: "github-event",
		Payload: map[string]any{
			"event":      delivery.EventType,
			"action":     delivery.Event.Action,
			"repository": delivery.Repository,
			"sender":     delivery.Sender,
		},
	})

	return c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"event":  delivery.EventType,
	})
}

func (s *Server) handleStripeWebhook(c echo.Context) error {
	body, err := readRawBody(c)
	if err != nil {
		return err
	}

	env := webhook.Envelope{
		Source:    webhook.SourceStripe,
		Signature: c.Request().Header.Get("stripe-signature"),
		Body:      body,
	}
	if err := s.gateway.Verify(env); err != nil {
		slog.Warn("rejected stripe webhook", "err", err)
		return toWebhookError(err)
	}

	event, err := webhook.ParseStripeEvent(body)
	if err != nil {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process webhook",
			Code:    "webhook_error",
		}
	}

	// Billing persistence lives in the subscription service; the gateway's
	// job ends at verified receipt.
	slog.Info("stripe webhook accepted", "type", event.Action, "entity", event.EntityID)

	s.hub.BroadcastGlobal(models.EventMessage{
		Type:    "system-event",
		Payload: map[string]any{"source": "stripe", "event": event.Action},
	})

	return c.JSON(http.StatusOK, map[string]any{"received": true})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	return bus.ServeWS(s.hub, c.Response(), c.Request())
}

func readRawBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	defer req.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes))
	if err != nil {
		return nil, requestError{
			Status:  http.StatusBadRequest,
			Message: "failed to read request body",
			Code:    "invalid_request",
		}
	}
	return body, nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Code:    "invalid_request",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Code:    "invalid_request",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Code:    "invalid_request",
		}
	}
	return nil
}
