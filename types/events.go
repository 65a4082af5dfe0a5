package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/errors"
)

type EventType string

const (
	CategoryTrip        = "TRIP"
	CategoryParticipant = "PARTICIPANT"
)

const (
	// Trip events pushed over the realtime transport
	EventTypeTripUpdated            EventType = CategoryTrip + "_UPDATED"
	EventTypeTripDestinationChanged EventType = CategoryTrip + "_DESTINATION_CHANGED"

	// Participant events
	EventTypeParticipantJoined  EventType = CategoryParticipant + "_JOINED"
	EventTypeParticipantUpdated EventType = CategoryParticipant + "_UPDATED"
	EventTypeParticipantLeft    EventType = CategoryParticipant + "_LEFT"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TripID    string    `json:"tripId"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
}

// EventMetadata for tracking and debugging
type EventMetadata struct {
	CorrelationID string            `json:"correlationId,omitempty"`
	Source        string            `json:"source"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Event is the envelope published on a trip's realtime channel.
type Event struct {
	BaseEvent
	Metadata EventMetadata   `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

func (e Event) Validate() error {
	if e.ID == "" {
		return errors.ValidationFailed("invalid event", "event ID is required")
	}
	if e.Type == "" {
		return errors.ValidationFailed("invalid event", "event type is required")
	}
	if e.TripID == "" {
		return errors.ValidationFailed("invalid event", "trip ID is required")
	}
	if e.Timestamp.IsZero() {
		return errors.ValidationFailed("invalid event", "timestamp is required")
	}
	return nil
}

// EventPublisher is the realtime transport used by the trip handles.
type EventPublisher interface {
	Publish(ctx context.Context, tripID string, event Event) error
	Subscribe(ctx context.Context, tripID string, subscriberID string, filters ...EventType) (<-chan Event, error)
	Unsubscribe(ctx context.Context, tripID string, subscriberID string) error
}

// DestinationChanged is emitted by the trip synchronizer when the live
// destination code differs from the last observed one. From is nil on the
// first evaluation of a selection.
type DestinationChanged struct {
	TripID string   `json:"tripId"`
	UserID string   `json:"userId"`
	From   *Airport `json:"from,omitempty"`
	To     *Airport `json:"to,omitempty"`
}
