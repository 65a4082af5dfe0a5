package service

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/types"
)

// LocationResolverInterface finds the user's coordinates. It never fails:
// an unknown location is nil.
type LocationResolverInterface interface {
	DetectLocation(ctx context.Context) *types.Coordinates
}
