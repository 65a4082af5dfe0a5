// Package realtime provides live trip handles and participant collections.
//
// A handle holds the live state of one server-side object and emits a sync
// notification every time that state is refreshed, either by an explicit
// Fetch or by a push received on the trip's event channel. State lives in a
// Store (Redis or memory); pushes travel over a types.EventPublisher.
package realtime

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// TripHandle is a live reference to a trip scoped to (TripID, UserID).
type TripHandle interface {
	TripID() string
	UserID() string
	// Fetch loads the current state and fires a sync once it is applied.
	Fetch(ctx context.Context) error
	// OnSync registers fn for every sync, including the one caused by Fetch.
	OnSync(fn func(types.Trip)) events.Subscription
	// Destination returns a copy of the live destination, nil when unset.
	Destination() *types.Airport
	// Trip returns a copy of the live trip. ok is false before the first sync.
	Trip() (trip types.Trip, ok bool)
	SetDestination(ctx context.Context, airport *types.Airport) error
	Close() error
}

// ParticipantCollection is the live participant set of a trip, keyed by user ID.
type ParticipantCollection interface {
	TripID() string
	Get(userID string) (types.Participant, bool)
	SetCoordinates(ctx context.Context, userID string, coords types.Coordinates) error
	// List returns the members ordered by user ID.
	List() []types.Participant
	OnChange(fn func([]types.Participant)) events.Subscription
	Close() error
}

// Provider opens handles. Every call returns a fresh handle; callers own it
// and must Close it.
type Provider interface {
	Trip(ctx context.Context, tripID, userID string) (TripHandle, error)
	Participants(ctx context.Context, tripID, userID string) (ParticipantCollection, error)
	UserTrips(ctx context.Context, userID string) ([]types.TripSummary, error)
}

// Store persists the state behind the handles.
type Store interface {
	GetTrip(ctx context.Context, tripID string) (*types.Trip, error)
	SaveTrip(ctx context.Context, trip *types.Trip) error
	ListParticipants(ctx context.Context, tripID string) ([]types.Participant, error)
	SaveParticipant(ctx context.Context, p *types.Participant) error
	ListUserTrips(ctx context.Context, userID string) ([]types.TripSummary, error)
	AddUserTrip(ctx context.Context, userID, tripID string) error
}

func summarize(t *types.Trip) types.TripSummary {
	return types.TripSummary{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Name:        t.Name,
		Destination: types.AirportCode(t.Destination),
	}
}
