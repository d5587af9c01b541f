package core

import (
	"context"
	"time"
)

// Event types
const (
	EventAssignmentCreated  = "assignment.created"
	EventAssignmentDueSoon  = "assignment.due_soon"
	EventSuggestionReviewed = "suggestion.reviewed"
)

// Event is a domain event published after the change it describes is committed.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewEvent(typ string, payload interface{}) Event {
	return Event{Type: typ, OccurredAt: NowFunc(), Payload: payload}
}

// EventPublisher is any service that can publish domain events. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}
