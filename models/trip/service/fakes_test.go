package service

import (
	"context"
	"sort"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/internal/realtime"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// fakeTripHandle is driven by the test: push simulates a server push.
type fakeTripHandle struct {
	tripID string
	userID string
	bus    *events.Bus[types.Trip]

	mu         sync.Mutex
	trip       types.Trip
	fetched    chan struct{}
	release    chan struct{}
	fetchErr   error
	noSync     bool
	closed     bool
	setHistory []*types.Airport
}

func newFakeTripHandle(tripID, userID string, dest *types.Airport) *fakeTripHandle {
	return &fakeTripHandle{
		tripID:  tripID,
		userID:  userID,
		bus:     events.NewBus[types.Trip]("fake_trip"),
		trip:    types.Trip{ID: tripID, Destination: dest},
		fetched: make(chan struct{}),
	}
}

func (h *fakeTripHandle) TripID() string { return h.tripID }
func (h *fakeTripHandle) UserID() string { return h.userID }

func (h *fakeTripHandle) Fetch(ctx context.Context) error {
	close(h.fetched)
	if h.release != nil {
		select {
		case <-h.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if h.fetchErr != nil {
		return h.fetchErr
	}
	if h.noSync {
		return nil
	}
	h.sync()
	return nil
}

func (h *fakeTripHandle) OnSync(fn func(types.Trip)) events.Subscription {
	return h.bus.Subscribe(fn)
}

func (h *fakeTripHandle) Destination() *types.Airport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trip.Clone().Destination
}

func (h *fakeTripHandle) Trip() (types.Trip, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trip.Clone(), true
}

func (h *fakeTripHandle) SetDestination(ctx context.Context, airport *types.Airport) error {
	h.mu.Lock()
	h.setHistory = append(h.setHistory, airport)
	h.mu.Unlock()
	return nil
}

// Close only records the call so tests can check that a replaced watcher
// ignores pushes on its own.
func (h *fakeTripHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeTripHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// push sets the live destination and fires a sync.
func (h *fakeTripHandle) push(dest *types.Airport) {
	h.mu.Lock()
	h.trip.Destination = dest
	h.mu.Unlock()
	h.sync()
}

func (h *fakeTripHandle) sync() {
	h.mu.Lock()
	snapshot := h.trip.Clone()
	h.mu.Unlock()
	h.bus.Publish(snapshot)
}

type fakeParticipants struct {
	tripID string

	mu      sync.Mutex
	members map[string]types.Participant
	closed  bool
}

func newFakeParticipants(tripID string, userIDs ...string) *fakeParticipants {
	p := &fakeParticipants{tripID: tripID, members: make(map[string]types.Participant)}
	for _, id := range userIDs {
		p.members[id] = types.Participant{UserID: id, TripID: tripID}
	}
	return p
}

func (p *fakeParticipants) TripID() string { return p.tripID }

func (p *fakeParticipants) Get(userID string) (types.Participant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[userID]
	return m, ok
}

func (p *fakeParticipants) SetCoordinates(ctx context.Context, userID string, coords types.Coordinates) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.members[userID]
	m.Coordinates = &coords
	p.members[userID] = m
	return nil
}

func (p *fakeParticipants) List() []types.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := make([]types.Participant, 0, len(p.members))
	for _, m := range p.members {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

func (p *fakeParticipants) OnChange(fn func([]types.Participant)) events.Subscription {
	return events.SubscriptionFunc(func() {})
}

func (p *fakeParticipants) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakeParticipants) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeProvider hands out the handles registered by the test.
type fakeProvider struct {
	mu              sync.Mutex
	trips           map[string]*fakeTripHandle
	participants    map[string]*fakeParticipants
	participantsErr error
}

var _ realtime.Provider = (*fakeProvider)(nil)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		trips:        make(map[string]*fakeTripHandle),
		participants: make(map[string]*fakeParticipants),
	}
}

func (p *fakeProvider) addTrip(h *fakeTripHandle, members ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trips[h.tripID] = h
	p.participants[h.tripID] = newFakeParticipants(h.tripID, members...)
}

func (p *fakeProvider) Trip(ctx context.Context, tripID, userID string) (realtime.TripHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.trips[tripID]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	h.userID = userID
	return h, nil
}

func (p *fakeProvider) Participants(ctx context.Context, tripID, userID string) (realtime.ParticipantCollection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.participantsErr != nil {
		return nil, p.participantsErr
	}
	return p.participants[tripID], nil
}

func (p *fakeProvider) UserTrips(ctx context.Context, userID string) ([]types.TripSummary, error) {
	return nil, nil
}

func metricsForTest() *metrics.Metrics {
	return metrics.Get()
}
