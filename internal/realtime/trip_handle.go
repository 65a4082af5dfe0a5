package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

type tripHandle struct {
	tripID       string
	userID       string
	subscriberID string
	provider     *StoreProvider
	synced       *events.Bus[types.Trip]
	log          *zap.SugaredLogger

	mu     sync.RWMutex
	live   *types.Trip
	closed bool

	closeOnce sync.Once
	closeErr  error
}

func (h *tripHandle) TripID() string { return h.tripID }
func (h *tripHandle) UserID() string { return h.userID }

func (h *tripHandle) Fetch(ctx context.Context) error {
	trip, err := h.provider.store.GetTrip(ctx, h.tripID)
	if err != nil {
		return err
	}
	h.apply(*trip)
	return nil
}

func (h *tripHandle) OnSync(fn func(types.Trip)) events.Subscription {
	return h.synced.Subscribe(fn)
}

func (h *tripHandle) Destination() *types.Airport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.live == nil {
		return nil
	}
	return h.live.Clone().Destination
}

func (h *tripHandle) Trip() (types.Trip, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.live == nil {
		return types.Trip{}, false
	}
	return h.live.Clone(), true
}

// SetDestination saves the new destination and pushes it to every handle on
// the trip, this one included. The local sync fires when the push comes back.
func (h *tripHandle) SetDestination(ctx context.Context, airport *types.Airport) error {
	next, ok := h.Trip()
	if !ok {
		trip, err := h.provider.store.GetTrip(ctx, h.tripID)
		if err != nil {
			return err
		}
		next = trip.Clone()
	}

	if airport != nil {
		a := *airport
		next.Destination = &a
	} else {
		next.Destination = nil
	}
	next.UpdatedAt = h.provider.clock.Now()

	if err := h.provider.store.SaveTrip(ctx, &next); err != nil {
		return err
	}
	return events.PublishEventWithContext(ctx, h.provider.publisher,
		types.EventTypeTripDestinationChanged, h.tripID, h.userID, next, eventSource)
}

func (h *tripHandle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		h.synced.Close()
		h.closeErr = h.provider.publisher.Unsubscribe(context.Background(), h.tripID, h.subscriberID)
	})
	return h.closeErr
}

func (h *tripHandle) listen(pushes <-chan types.Event) {
	for ev := range pushes {
		if ev.TripID != h.tripID {
			continue
		}
		var trip types.Trip
		if err := json.Unmarshal(ev.Payload, &trip); err != nil {
			h.log.Warnw("Ignoring undecodable trip push", "eventID", ev.ID, "error", err)
			continue
		}
		trip.ID = h.tripID
		h.apply(trip)
	}
}

// apply replaces the live state unless trip is older than it, then fires a
// sync with the new state.
func (h *tripHandle) apply(trip types.Trip) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.live != nil && trip.UpdatedAt.Before(h.live.UpdatedAt) {
		h.mu.Unlock()
		h.log.Debugw("Ignoring stale trip state", "updatedAt", trip.UpdatedAt)
		return
	}
	live := trip.Clone()
	h.live = &live
	snapshot := live.Clone()
	h.mu.Unlock()

	h.synced.Publish(snapshot)
}
