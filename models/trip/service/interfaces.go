package service

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// TripObserver is told when a selection has been committed. It receives the
// new pair and must not keep references to the previous one.
type TripObserver interface {
	DisplayTrip(ctx context.Context, active *session.ActiveTrip)
}

// TripObserverFunc adapts a function to TripObserver.
type TripObserverFunc func(ctx context.Context, active *session.ActiveTrip)

func (f TripObserverFunc) DisplayTrip(ctx context.Context, active *session.ActiveTrip) {
	f(ctx, active)
}

// TripSyncServiceInterface is what the page controller needs from the synchronizer.
type TripSyncServiceInterface interface {
	SelectTrip(ctx context.Context, tripID, userID string) error
	Active() *session.ActiveTrip
	SetDestination(ctx context.Context, airport *types.Airport) error
	OnDestinationChanged(fn func(types.DestinationChanged)) events.Subscription
	AddObserver(o TripObserver)
	Detach()
}
