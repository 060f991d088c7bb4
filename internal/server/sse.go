package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// handleEvents serves the one-way heartbeat stream: a connection frame
// immediately, then a heartbeat frame every interval until the client aborts.
// Nothing is enqueued after the abort, even if a tick was in flight.
func (s *Server) handleEvents(c echo.Context) error {
	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Code:    "server_error",
		}
	}

	header := resp.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if err := writeSSEData(resp.Writer, map[string]any{
		"type":      "connection",
		"message":   "Connected to AI Foundry events",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	done := c.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			// Re-check abort so a tick racing the disconnect emits nothing.
			select {
			case <-done:
				return nil
			default:
			}
			if err := writeSSEData(resp.Writer, map[string]any{
				"type":      "heartbeat",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeSSEData(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}
