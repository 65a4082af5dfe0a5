package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

type participantCollection struct {
	tripID       string
	userID       string
	subscriberID string
	provider     *StoreProvider
	changed      *events.Bus[[]types.Participant]
	log          *zap.SugaredLogger

	mu      sync.RWMutex
	members map[string]types.Participant
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

func (c *participantCollection) TripID() string { return c.tripID }

func (c *participantCollection) Get(userID string) (types.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.members[userID]
	if !ok {
		return types.Participant{}, false
	}
	return cloneParticipant(p), true
}

func (c *participantCollection) List() []types.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked()
}

func (c *participantCollection) listLocked() []types.Participant {
	list := make([]types.Participant, 0, len(c.members))
	for _, p := range c.members {
		list = append(list, cloneParticipant(p))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

// SetCoordinates moves a member. The change is applied locally right away and
// pushed to the other collections on the trip.
func (c *participantCollection) SetCoordinates(ctx context.Context, userID string, coords types.Coordinates) error {
	if err := coords.Validate(); err != nil {
		return errors.ValidationFailed("invalid coordinates", err.Error())
	}

	c.mu.Lock()
	member, ok := c.members[userID]
	if !ok || c.closed {
		c.mu.Unlock()
		return errors.NotFound("Participant", userID)
	}
	member.Coordinates = &coords
	member.UpdatedAt = c.provider.clock.Now()
	c.members[userID] = member
	c.mu.Unlock()

	if err := c.provider.store.SaveParticipant(ctx, &member); err != nil {
		return err
	}
	return events.PublishEventWithContext(ctx, c.provider.publisher,
		types.EventTypeParticipantUpdated, c.tripID, userID, member, eventSource)
}

func (c *participantCollection) OnChange(fn func([]types.Participant)) events.Subscription {
	return c.changed.Subscribe(fn)
}

func (c *participantCollection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.members = make(map[string]types.Participant)
		c.mu.Unlock()
		c.changed.Close()
		c.closeErr = c.provider.publisher.Unsubscribe(context.Background(), c.tripID, c.subscriberID)
	})
	return c.closeErr
}

func (c *participantCollection) listen(pushes <-chan types.Event) {
	for ev := range pushes {
		if ev.TripID != c.tripID {
			continue
		}
		var p types.Participant
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.log.Warnw("Ignoring undecodable participant push", "eventID", ev.ID, "error", err)
			continue
		}
		if p.UserID == "" {
			p.UserID = ev.UserID
		}
		if p.UserID == "" || (p.TripID != "" && p.TripID != c.tripID) {
			continue
		}
		p.TripID = c.tripID
		c.apply(ev.Type, p)
	}
}

func (c *participantCollection) apply(eventType types.EventType, p types.Participant) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if eventType == types.EventTypeParticipantLeft {
		delete(c.members, p.UserID)
	} else {
		c.members[p.UserID] = p
	}
	list := c.listLocked()
	c.mu.Unlock()

	c.changed.Publish(list)
}
