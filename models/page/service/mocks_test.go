package service

import (
	"context"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	tripsvc "github.com/NomadCrew/nomad-crew-planner/models/trip/service"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/stretchr/testify/mock"
)

type MockSessionAuthenticator struct {
	mock.Mock
	profiles *events.Bus[*types.User]
}

func NewMockSessionAuthenticator() *MockSessionAuthenticator {
	return &MockSessionAuthenticator{profiles: events.NewBus[*types.User]("test_profiles")}
}

func (m *MockSessionAuthenticator) GetLoginStatus(ctx context.Context) (*types.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockSessionAuthenticator) OnProfile(fn func(*types.User)) events.Subscription {
	return m.profiles.Subscribe(fn)
}

func (m *MockSessionAuthenticator) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockLocationResolver struct {
	mock.Mock
}

func (m *MockLocationResolver) DetectLocation(ctx context.Context) *types.Coordinates {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*types.Coordinates)
}

type MockTripSync struct {
	mock.Mock
	changed *events.Bus[types.DestinationChanged]

	mu        sync.Mutex
	observers []tripsvc.TripObserver
}

func NewMockTripSync() *MockTripSync {
	return &MockTripSync{changed: events.NewBus[types.DestinationChanged]("test_destination")}
}

func (m *MockTripSync) SelectTrip(ctx context.Context, tripID, userID string) error {
	return m.Called(ctx, tripID, userID).Error(0)
}

func (m *MockTripSync) Active() *session.ActiveTrip {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*session.ActiveTrip)
}

func (m *MockTripSync) SetDestination(ctx context.Context, airport *types.Airport) error {
	return m.Called(ctx, airport).Error(0)
}

func (m *MockTripSync) OnDestinationChanged(fn func(types.DestinationChanged)) events.Subscription {
	return m.changed.Subscribe(fn)
}

func (m *MockTripSync) AddObserver(o tripsvc.TripObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *MockTripSync) observerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}

func (m *MockTripSync) Detach() {
	m.Called()
}

type MockTripLister struct {
	mock.Mock
}

func (m *MockTripLister) UserTrips(ctx context.Context, userID string) ([]types.TripSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TripSummary), args.Error(1)
}

// fakeView records what the controller asked it to show.
type fakeView struct {
	name   string
	events *events.Bus[types.ViewEvent]

	mu           sync.Mutex
	renders      []*types.User
	displayed    []string
	destinations []types.DestinationChanged
	mapTrips     []*types.Trip
	renderErr    error
}

func newFakeView(name string) *fakeView {
	return &fakeView{name: name, events: events.NewBus[types.ViewEvent]("test_" + name)}
}

func (v *fakeView) Render(ctx context.Context, user *types.User, trips []types.TripSummary) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, user.Clone())
	return v.renderErr
}

func (v *fakeView) DisplayTrip(ctx context.Context, active *session.ActiveTrip) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.displayed = append(v.displayed, active.TripID())
}

func (v *fakeView) DestinationChanged(ctx context.Context, ev types.DestinationChanged) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destinations = append(v.destinations, ev)
}

func (v *fakeView) Events(fn func(types.ViewEvent)) events.Subscription {
	return v.events.Subscribe(fn)
}

func (v *fakeView) SetTrip(ctx context.Context, trip *types.Trip) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mapTrips = append(v.mapTrips, trip)
}

func (v *fakeView) renderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.renders)
}

func (v *fakeView) mapTripCalls() []*types.Trip {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*types.Trip(nil), v.mapTrips...)
}

func (v *fakeView) destinationCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.destinations)
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []error
}

func (n *fakeNotifier) Info(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *fakeNotifier) Error(ctx context.Context, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
}

func (n *fakeNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type stubParticipants struct {
	tripID string

	mu      sync.Mutex
	members map[string]types.Participant
}

func newStubParticipants(tripID string, ids ...string) *stubParticipants {
	p := &stubParticipants{tripID: tripID, members: make(map[string]types.Participant)}
	for _, id := range ids {
		p.members[id] = types.Participant{UserID: id, TripID: tripID}
	}
	return p
}

func (p *stubParticipants) TripID() string { return p.tripID }

func (p *stubParticipants) Get(userID string) (types.Participant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[userID]
	return m, ok
}

func (p *stubParticipants) SetCoordinates(ctx context.Context, userID string, coords types.Coordinates) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.members[userID]
	m.Coordinates = &coords
	p.members[userID] = m
	return nil
}

func (p *stubParticipants) List() []types.Participant { return nil }

func (p *stubParticipants) OnChange(fn func([]types.Participant)) events.Subscription {
	return events.SubscriptionFunc(func() {})
}

func (p *stubParticipants) Close() error { return nil }
