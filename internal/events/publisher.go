package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/google/uuid"
)

// PublishEventWithContext builds a standard types.Event around payload and
// publishes it on the trip's channel.
func PublishEventWithContext(ctx context.Context, publisher types.EventPublisher, eventType types.EventType, tripID, userID string, payload interface{}, source string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to marshal event payload")
	}

	event := types.Event{
		BaseEvent: types.BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			TripID:    tripID,
			UserID:    userID,
			Timestamp: time.Now(),
			Version:   1,
		},
		Metadata: types.EventMetadata{
			Source: source,
		},
		Payload: data,
	}

	if err := publisher.Publish(ctx, tripID, event); err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to publish event")
	}
	return nil
}
