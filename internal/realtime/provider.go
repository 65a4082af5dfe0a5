package realtime

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventSource = "planner"

var (
	tripEventTypes = []types.EventType{
		types.EventTypeTripUpdated,
		types.EventTypeTripDestinationChanged,
	}
	participantEventTypes = []types.EventType{
		types.EventTypeParticipantJoined,
		types.EventTypeParticipantUpdated,
		types.EventTypeParticipantLeft,
	}
)

// StoreProvider implements Provider on top of a Store for state and an
// EventPublisher for pushes.
type StoreProvider struct {
	store     Store
	publisher types.EventPublisher
	clock     clock.Clock
	log       *zap.SugaredLogger
}

var _ Provider = (*StoreProvider)(nil)

func NewStoreProvider(store Store, publisher types.EventPublisher, c clock.Clock) *StoreProvider {
	return &StoreProvider{
		store:     store,
		publisher: publisher,
		clock:     c,
		log:       logger.GetLogger().Named("realtime"),
	}
}

// NewRedisProvider keeps state in Redis and receives pushes over Redis pub/sub.
func NewRedisProvider(rdb redis.UniversalClient, publisher types.EventPublisher, c clock.Clock) *StoreProvider {
	return NewStoreProvider(NewRedisStore(rdb), publisher, c)
}

// NewMemoryProvider keeps everything in process. store is exposed so callers
// can seed trips.
func NewMemoryProvider(store *MemoryStore, c clock.Clock) *StoreProvider {
	return NewStoreProvider(store, events.NewMemoryPublisher(), c)
}

func (p *StoreProvider) Trip(ctx context.Context, tripID, userID string) (TripHandle, error) {
	if tripID == "" {
		return nil, errors.ValidationFailed("invalid trip", "trip ID is required")
	}
	h := &tripHandle{
		tripID:       tripID,
		userID:       userID,
		subscriberID: uuid.New().String(),
		provider:     p,
		synced:       events.NewBus[types.Trip]("trip_sync"),
		log:          p.log.With("tripID", tripID, "userID", userID),
	}

	pushes, err := p.publisher.Subscribe(ctx, tripID, h.subscriberID, tripEventTypes...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to subscribe to trip")
	}
	go h.listen(pushes)
	return h, nil
}

func (p *StoreProvider) Participants(ctx context.Context, tripID, userID string) (ParticipantCollection, error) {
	if tripID == "" {
		return nil, errors.ValidationFailed("invalid trip", "trip ID is required")
	}
	c := &participantCollection{
		tripID:       tripID,
		userID:       userID,
		subscriberID: uuid.New().String(),
		provider:     p,
		members:      make(map[string]types.Participant),
		changed:      events.NewBus[[]types.Participant]("participants"),
		log:          p.log.With("tripID", tripID, "userID", userID),
	}

	// Subscribe before loading so no push between the two is lost.
	pushes, err := p.publisher.Subscribe(ctx, tripID, c.subscriberID, participantEventTypes...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to subscribe to participants")
	}

	initial, err := p.store.ListParticipants(ctx, tripID)
	if err != nil {
		_ = p.publisher.Unsubscribe(context.Background(), tripID, c.subscriberID)
		return nil, err
	}
	for _, member := range initial {
		c.members[member.UserID] = member
	}

	go c.listen(pushes)
	return c, nil
}

func (p *StoreProvider) UserTrips(ctx context.Context, userID string) ([]types.TripSummary, error) {
	return p.store.ListUserTrips(ctx, userID)
}
