package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	trips        map[string]types.Trip
	participants map[string]map[string]types.Participant
	userTrips    map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:        make(map[string]types.Trip),
		participants: make(map[string]map[string]types.Participant),
		userTrips:    make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) GetTrip(ctx context.Context, tripID string) (*types.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, errors.NotFound("Trip", tripID)
	}
	c := trip.Clone()
	return &c, nil
}

func (s *MemoryStore) SaveTrip(ctx context.Context, trip *types.Trip) error {
	s.mu.Lock()
	s.trips[trip.ID] = trip.Clone()
	s.mu.Unlock()
	if trip.OwnerID != "" {
		return s.AddUserTrip(ctx, trip.OwnerID, trip.ID)
	}
	return nil
}

func (s *MemoryStore) ListParticipants(ctx context.Context, tripID string) ([]types.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]types.Participant, 0, len(s.participants[tripID]))
	for _, p := range s.participants[tripID] {
		list = append(list, cloneParticipant(p))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

func (s *MemoryStore) SaveParticipant(ctx context.Context, p *types.Participant) error {
	s.mu.Lock()
	if s.participants[p.TripID] == nil {
		s.participants[p.TripID] = make(map[string]types.Participant)
	}
	s.participants[p.TripID][p.UserID] = cloneParticipant(*p)
	s.mu.Unlock()
	return s.AddUserTrip(ctx, p.UserID, p.TripID)
}

func (s *MemoryStore) ListUserTrips(ctx context.Context, userID string) ([]types.TripSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.userTrips[userID]))
	for id := range s.userTrips[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summaries := make([]types.TripSummary, 0, len(ids))
	for _, id := range ids {
		if trip, ok := s.trips[id]; ok {
			summaries = append(summaries, summarize(&trip))
		}
	}
	return summaries, nil
}

func (s *MemoryStore) AddUserTrip(ctx context.Context, userID, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userTrips[userID] == nil {
		s.userTrips[userID] = make(map[string]struct{})
	}
	s.userTrips[userID][tripID] = struct{}{}
	return nil
}

func cloneParticipant(p types.Participant) types.Participant {
	if p.Coordinates != nil {
		coords := *p.Coordinates
		p.Coordinates = &coords
	}
	return p
}
