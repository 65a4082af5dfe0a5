package store

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/types"
)

// UserStore is the local record of authenticated users. EnsureUser is the
// acknowledgement that a provider user is known locally; the other writes
// require it to have happened.
type UserStore interface {
	EnsureUser(ctx context.Context, id string) (*types.User, error)
	GetUser(ctx context.Context, id string) (*types.User, error)
	UpdateCredentials(ctx context.Context, id string, creds types.Credentials) error
	UpdateProfile(ctx context.Context, id string, profile types.Profile) error
	UpdateCoordinates(ctx context.Context, id string, coords types.Coordinates) error
}
