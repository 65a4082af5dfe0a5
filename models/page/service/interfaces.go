package service

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// View is a child view driven by the page controller.
type View interface {
	Render(ctx context.Context, user *types.User, trips []types.TripSummary) error
	DisplayTrip(ctx context.Context, active *session.ActiveTrip)
	DestinationChanged(ctx context.Context, ev types.DestinationChanged)
	Events(fn func(types.ViewEvent)) events.Subscription
}

// MapView also shows a single trip on demand.
type MapView interface {
	View
	SetTrip(ctx context.Context, trip *types.Trip)
}

// SidebarView lists the user's trips.
type SidebarView interface {
	View
}

// Notifier shows progress and failures to the user.
type Notifier interface {
	Info(ctx context.Context, message string)
	Error(ctx context.Context, err error)
}

// TripLister returns the trips a user can select.
type TripLister interface {
	UserTrips(ctx context.Context, userID string) ([]types.TripSummary, error)
}

// PageControllerInterface renders the planner page.
type PageControllerInterface interface {
	Render(ctx context.Context, params types.NavigationParams) error
	Close()
}
