package views

import (
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/navigation"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

type dispatched struct {
	view string
	ev   types.ViewEvent
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []types.ViewUpdate
	inbound *events.Bus[dispatched]
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		inbound: events.NewBus[dispatched]("test_inbound"),
	}
}

func (b *recordingBroadcaster) Broadcast(u types.ViewUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, u)
}

func (b *recordingBroadcaster) Subscribe(view string, fn func(types.ViewEvent)) events.Subscription {
	return b.inbound.Subscribe(func(m dispatched) {
		if m.view == view {
			fn(m.ev)
		}
	})
}

func (b *recordingBroadcaster) dispatch(view string, ev types.ViewEvent) {
	b.inbound.Publish(dispatched{view: view, ev: ev})
}

func (b *recordingBroadcaster) all() []types.ViewUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.ViewUpdate(nil), b.updates...)
}

type stubTrip struct {
	trip types.Trip
}

func (s *stubTrip) TripID() string { return s.trip.ID }
func (s *stubTrip) UserID() string { return "u1" }
func (s *stubTrip) Fetch(ctx context.Context) error { return nil }
func (s *stubTrip) Destination() *types.Airport { return s.trip.Clone().Destination }
func (s *stubTrip) Trip() (types.Trip, bool) { return s.trip.Clone(), true }
func (s *stubTrip) Close() error { return nil }
func (s *stubTrip) OnSync(fn func(types.Trip)) events.Subscription {
	return events.SubscriptionFunc(func() {})
}
func (s *stubTrip) SetDestination(ctx context.Context, airport *types.Airport) error {
	return nil
}

type stubParticipants struct {
	tripID  string
	members []types.Participant
	changed *events.Bus[[]types.Participant]
}

func newStubParticipants(tripID string, ids ...string) *stubParticipants {
	p := &stubParticipants{tripID: tripID, changed: events.NewBus[[]types.Participant]("test_participants")}
	for _, id := range ids {
		p.members = append(p.members, types.Participant{UserID: id, TripID: tripID})
	}
	return p
}

func (p *stubParticipants) TripID() string { return p.tripID }
func (p *stubParticipants) Get(userID string) (types.Participant, bool) {
	for _, m := range p.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return types.Participant{}, false
}
func (p *stubParticipants) SetCoordinates(ctx context.Context, userID string, coords types.Coordinates) error {
	return nil
}
func (p *stubParticipants) List() []types.Participant { return append([]types.Participant(nil), p.members...) }
func (p *stubParticipants) OnChange(fn func([]types.Participant)) events.Subscription {
	return p.changed.Subscribe(fn)
}
func (p *stubParticipants) Close() error { return nil }

func activeTrip(tripID string, dest string, members ...string) (*session.ActiveTrip, *stubParticipants) {
	participants := newStubParticipants(tripID, members...)
	return &session.ActiveTrip{
		Trip:         &stubTrip{trip: types.Trip{ID: tripID, Destination: &types.Airport{Code: dest}}},
		Participants: participants,
	}, participants
}

func TestMap_Render(t *testing.T) {
	out := newRecordingBroadcaster()
	m := NewMap(out)

	user := &types.User{ID: "u1", Name: "Ada"}
	trips := []types.TripSummary{{ID: "t1"}, {ID: "t2"}}
	require.NoError(t, m.Render(context.Background(), user, trips))

	updates := out.all()
	require.Len(t, updates, 1)
	assert.Equal(t, types.ViewUpdateRender, updates[0].Type)
	assert.Equal(t, MapViewName, updates[0].View)
	assert.Equal(t, "Ada", updates[0].User.Name)
	assert.Len(t, updates[0].Trips, 2)

	user.Name = "changed"
	assert.Equal(t, "Ada", out.all()[0].User.Name)
}

func TestView_DisplayTripFollowsOnlyCurrentParticipants(t *testing.T) {
	out := newRecordingBroadcaster()
	s := NewSidebar(out)
	ctx := context.Background()

	first, firstParticipants := activeTrip("t1", "JFK", "u1", "u2")
	s.DisplayTrip(ctx, first)

	updates := out.all()
	require.Len(t, updates, 1)
	assert.Equal(t, types.ViewUpdateDisplayTrip, updates[0].Type)
	assert.Equal(t, SidebarViewName, updates[0].View)
	require.NotNil(t, updates[0].Trip)
	assert.Equal(t, "JFK", updates[0].Trip.Destination.Code)
	assert.Len(t, updates[0].Participants, 2)

	firstParticipants.changed.Publish([]types.Participant{{UserID: "u1"}})
	updates = out.all()
	require.Len(t, updates, 2)
	assert.Equal(t, types.ViewUpdateParticipants, updates[1].Type)

	second, _ := activeTrip("t2", "LHR", "u1")
	s.DisplayTrip(ctx, second)
	firstParticipants.changed.Publish([]types.Participant{{UserID: "u3"}})

	updates = out.all()
	require.Len(t, updates, 3)
	assert.Equal(t, "t2", updates[2].Trip.ID)
}

func TestView_CloseStopsParticipantUpdates(t *testing.T) {
	out := newRecordingBroadcaster()
	m := NewMap(out)

	active, participants := activeTrip("t1", "JFK", "u1")
	m.DisplayTrip(context.Background(), active)
	m.Close()
	participants.changed.Publish(nil)

	assert.Len(t, out.all(), 1)
}

func TestView_DestinationChanged(t *testing.T) {
	out := newRecordingBroadcaster()
	m := NewMap(out)

	m.DestinationChanged(context.Background(), types.DestinationChanged{
		TripID: "t1",
		To:     &types.Airport{Code: "SFO"},
	})

	updates := out.all()
	require.Len(t, updates, 1)
	assert.Equal(t, types.ViewUpdateDestinationChanged, updates[0].Type)
	assert.Equal(t, "SFO", updates[0].Destination.To.Code)
	assert.Nil(t, updates[0].Destination.From)
}

func TestMap_SetTrip(t *testing.T) {
	out := newRecordingBroadcaster()
	m := NewMap(out)
	ctx := context.Background()

	m.SetTrip(ctx, &types.Trip{ID: "t1"})
	m.SetTrip(ctx, nil)

	updates := out.all()
	require.Len(t, updates, 2)
	assert.Equal(t, types.ViewUpdateMapTrip, updates[0].Type)
	assert.Equal(t, "t1", updates[0].Trip.ID)
	assert.Nil(t, updates[1].Trip)
}

func TestView_EventsAreScopedToView(t *testing.T) {
	out := newRecordingBroadcaster()
	m := NewMap(out)
	s := NewSidebar(out)

	var mapEvents, sidebarEvents []types.ViewEventType
	m.Events(func(ev types.ViewEvent) { mapEvents = append(mapEvents, ev.Type) })
	sub := s.Events(func(ev types.ViewEvent) { sidebarEvents = append(sidebarEvents, ev.Type) })

	out.dispatch(MapViewName, types.ViewEvent{Type: types.ViewEventAirportClick})
	out.dispatch(SidebarViewName, types.ViewEvent{Type: types.ViewEventTripClick})
	sub.Unsubscribe()
	out.dispatch(SidebarViewName, types.ViewEvent{Type: types.ViewEventShowTripList})

	assert.Equal(t, []types.ViewEventType{types.ViewEventAirportClick}, mapEvents)
	assert.Equal(t, []types.ViewEventType{types.ViewEventTripClick}, sidebarEvents)
}

func TestNotifier(t *testing.T) {
	out := newRecordingBroadcaster()
	n := NewNotifier(out)
	ctx := context.Background()

	n.Info(ctx, "Checking login status...")
	n.Error(ctx, apperrors.MissingPermissions([]string{"email"}))
	n.Error(ctx, fmt.Errorf("plain failure"))
	n.Error(ctx, nil)

	updates := out.all()
	require.Len(t, updates, 3)
	for _, u := range updates {
		assert.Equal(t, types.ViewUpdateToast, u.Type)
		assert.Equal(t, PageViewName, u.View)
	}
	assert.Equal(t, LevelInfo, updates[0].Level)
	assert.Equal(t, "Checking login status...", updates[0].Message)
	assert.Equal(t, LevelError, updates[1].Level)
	assert.Equal(t, "Login did not grant the required permissions: email", updates[1].Message)
	assert.Equal(t, "plain failure", updates[2].Message)
}

func TestFollowNavigation(t *testing.T) {
	out := newRecordingBroadcaster()
	history := navigation.NewHistory()
	sub := FollowNavigation(out, history)
	defer sub.Unsubscribe()

	require.NoError(t, history.Navigate(navigation.TripPath("t1", "u1"), navigation.Options{}))

	updates := out.all()
	require.Len(t, updates, 1)
	assert.Equal(t, types.ViewUpdateNavigate, updates[0].Type)
	assert.Equal(t, "index/index/trip/t1/user/u1", updates[0].Path)
}
