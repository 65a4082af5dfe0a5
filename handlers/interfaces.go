package handlers

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// PageRenderer is satisfied by the page controller.
type PageRenderer interface {
	Render(ctx context.Context, params types.NavigationParams) error
}

// SessionEnder is satisfied by the session authenticator.
type SessionEnder interface {
	Logout(ctx context.Context) error
}

// SessionReader exposes the shared page state to handlers.
type SessionReader interface {
	User() *types.User
	Trips() []types.TripSummary
	Active() *session.ActiveTrip
}
