package service

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// SessionAuthenticatorInterface is what the page controller needs to
// establish the current user.
type SessionAuthenticatorInterface interface {
	GetLoginStatus(ctx context.Context) (*types.User, error)
	OnProfile(fn func(*types.User)) events.Subscription
	Logout(ctx context.Context) error
}

// TripDetacher closes the active trip on logout.
type TripDetacher interface {
	Detach()
}
