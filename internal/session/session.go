// Package session holds the state shared by the page components: the
// authenticated user, their trip list and the active trip with its
// participant set. It replaces process-wide globals; every component gets the
// same *State through its constructor.
package session

import (
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/internal/realtime"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// ActiveTrip pairs a trip handle with the participant set opened for it.
// Both are replaced together and never mutated in place.
type ActiveTrip struct {
	Trip         realtime.TripHandle
	Participants realtime.ParticipantCollection
}

// TripID returns the ID of the active trip, or "" for a nil receiver.
func (a *ActiveTrip) TripID() string {
	if a == nil || a.Trip == nil {
		return ""
	}
	return a.Trip.TripID()
}

// Close releases both handles.
func (a *ActiveTrip) Close() error {
	if a == nil {
		return nil
	}
	var firstErr error
	if a.Trip != nil {
		firstErr = a.Trip.Close()
	}
	if a.Participants != nil {
		if err := a.Participants.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type State struct {
	mu     sync.RWMutex
	user   *types.User
	trips  []types.TripSummary
	active *ActiveTrip
}

func New() *State {
	return &State{}
}

// User returns a copy of the current user, nil when logged out.
func (s *State) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

func (s *State) SetUser(u *types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u.Clone()
}

// UpdateUser applies fn to the current user under the write lock. It returns
// false when no user is set or the current user is not userID.
func (s *State) UpdateUser(userID string, fn func(u *types.User)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != userID {
		return false
	}
	fn(s.user)
	return true
}

func (s *State) Trips() []types.TripSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TripSummary, len(s.trips))
	copy(out, s.trips)
	return out
}

func (s *State) SetTrips(trips []types.TripSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips = append([]types.TripSummary(nil), trips...)
}

// Active returns the active pair. The handles are shared, the pair is not.
func (s *State) Active() *ActiveTrip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	a := *s.active
	return &a
}

// SwapActive installs next and returns the pair it replaced. Readers see
// either the old pair or the new one, never a mix.
func (s *State) SwapActive(next *ActiveTrip) *ActiveTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	s.active = next
	return prev
}

// Clear logs the user out and returns the active pair so the caller can close it.
func (s *State) Clear() *ActiveTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	s.user = nil
	s.trips = nil
	s.active = nil
	return prev
}
