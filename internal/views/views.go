// Package views adapts the page's child views to the websocket hub. Each
// adapter turns controller calls into view updates and reports browser
// interactions for its view as view events.
package views

import (
	"context"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/navigation"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

const (
	MapViewName     = "map"
	SidebarViewName = "sidebar"
	PageViewName    = "page"
)

// Broadcaster delivers updates to the browsers and reports their interactions.
type Broadcaster interface {
	Broadcast(u types.ViewUpdate)
	Subscribe(view string, fn func(types.ViewEvent)) events.Subscription
}

// view holds what the map and the sidebar share.
type view struct {
	name string
	out  Broadcaster
	log  *zap.SugaredLogger

	mu           sync.Mutex
	participants events.Subscription
}

func newView(name string, out Broadcaster) *view {
	return &view{
		name: name,
		out:  out,
		log:  logger.GetLogger().Named("view_" + name),
	}
}

func (v *view) Render(ctx context.Context, user *types.User, trips []types.TripSummary) error {
	v.out.Broadcast(types.ViewUpdate{
		Type:  types.ViewUpdateRender,
		View:  v.name,
		User:  user.Clone(),
		Trips: append([]types.TripSummary(nil), trips...),
	})
	return nil
}

// DisplayTrip shows the newly selected trip and follows its participant set
// until the next selection.
func (v *view) DisplayTrip(ctx context.Context, active *session.ActiveTrip) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.participants != nil {
		v.participants.Unsubscribe()
		v.participants = nil
	}
	if active == nil {
		return
	}

	update := types.ViewUpdate{
		Type:         types.ViewUpdateDisplayTrip,
		View:         v.name,
		Participants: active.Participants.List(),
	}
	if trip, ok := active.Trip.Trip(); ok {
		update.Trip = &trip
	}
	v.out.Broadcast(update)

	tripID := active.TripID()
	v.participants = active.Participants.OnChange(func(list []types.Participant) {
		v.log.Debugw("Participants changed", "tripID", tripID, "count", len(list))
		v.out.Broadcast(types.ViewUpdate{
			Type:         types.ViewUpdateParticipants,
			View:         v.name,
			Participants: list,
		})
	})
}

func (v *view) DestinationChanged(ctx context.Context, ev types.DestinationChanged) {
	v.out.Broadcast(types.ViewUpdate{
		Type:        types.ViewUpdateDestinationChanged,
		View:        v.name,
		Destination: &ev,
	})
}

// Events registers fn for interactions reported by this view's browsers.
func (v *view) Events(fn func(types.ViewEvent)) events.Subscription {
	return v.out.Subscribe(v.name, fn)
}

// Close stops following the participant set.
func (v *view) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.participants != nil {
		v.participants.Unsubscribe()
		v.participants = nil
	}
}

// Map draws the selected trip, its participants and the single-trip focus.
type Map struct {
	*view
}

func NewMap(out Broadcaster) *Map {
	return &Map{view: newView(MapViewName, out)}
}

// SetTrip focuses the map on trip; nil returns to the trip list.
func (m *Map) SetTrip(ctx context.Context, trip *types.Trip) {
	u := types.ViewUpdate{Type: types.ViewUpdateMapTrip, View: m.name}
	if trip != nil {
		c := trip.Clone()
		u.Trip = &c
	}
	m.out.Broadcast(u)
}

// Sidebar lists the user's trips and the selected trip's details.
type Sidebar struct {
	*view
}

func NewSidebar(out Broadcaster) *Sidebar {
	return &Sidebar{view: newView(SidebarViewName, out)}
}

// FollowNavigation mirrors page navigations to the browsers.
func FollowNavigation(out Broadcaster, history interface {
	Subscribe(fn func(navigation.Entry)) events.Subscription
}) events.Subscription {
	return history.Subscribe(func(e navigation.Entry) {
		out.Broadcast(types.ViewUpdate{
			Type: types.ViewUpdateNavigate,
			View: PageViewName,
			Path: e.Path,
		})
	})
}
