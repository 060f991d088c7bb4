package webhook

import (
	"encoding/json"
	"fmt"
)

type gitHubPayload struct {
	Action     string `json:"action"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// GitHubDelivery is a decoded, verified GitHub delivery.
type GitHubDelivery struct {
	Event      Event
	EventType  string
	Repository string
	Sender     string
}

// ParseGitHubEvent decodes an accepted GitHub delivery into its normalized
// descriptor. eventType is the x-github-event header value. Call only after
// Verify accepted the envelope.
func ParseGitHubEvent(eventType string, body []byte) (GitHubDelivery, error) {
	var payload gitHubPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return GitHubDelivery{}, fmt.Errorf("decode github payload: %w", err)
	}

	action := payload.Action
	if action == "" {
		action = eventType
	}

	return GitHubDelivery{
		Event: Event{
			Source:   SourceGitHub,
			Action:   action,
			EntityID: payload.Repository.FullName,
		},
		EventType:  eventType,
		Repository: payload.Repository.FullName,
		Sender:     payload.Sender.Login,
	}, nil
}

type stripePayload struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// ParseStripeEvent decodes an accepted Stripe delivery into its normalized
// descriptor. Call only after Verify accepted the envelope.
func ParseStripeEvent(body []byte) (Event, error) {
	var payload stripePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, fmt.Errorf("decode stripe payload: %w", err)
	}

	return Event{
		Source:   SourceStripe,
		Action:   payload.Type,
		EntityID: payload.Data.Object.ID,
	}, nil
}
