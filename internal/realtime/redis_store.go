package realtime

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/redis/go-redis/v9"
)

func tripKey(tripID string) string         { return "planner:trip:" + tripID }
func participantsKey(tripID string) string { return tripKey(tripID) + ":participants" }
func userTripsKey(userID string) string    { return "planner:user:" + userID + ":trips" }

// RedisStore keeps trips as JSON strings and participants in a hash per trip.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) GetTrip(ctx context.Context, tripID string) (*types.Trip, error) {
	data, err := s.rdb.Get(ctx, tripKey(tripID)).Result()
	if err == redis.Nil {
		return nil, errors.NotFound("Trip", tripID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to load trip")
	}

	var trip types.Trip
	if err := json.Unmarshal([]byte(data), &trip); err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to decode trip")
	}
	return &trip, nil
}

// SaveTrip stores the trip and lists it for its owner.
func (s *RedisStore) SaveTrip(ctx context.Context, trip *types.Trip) error {
	data, err := json.Marshal(trip)
	if err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to encode trip")
	}
	if err := s.rdb.Set(ctx, tripKey(trip.ID), string(data), 0).Err(); err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to save trip")
	}
	if trip.OwnerID != "" {
		return s.AddUserTrip(ctx, trip.OwnerID, trip.ID)
	}
	return nil
}

func (s *RedisStore) ListParticipants(ctx context.Context, tripID string) ([]types.Participant, error) {
	members, err := s.rdb.HGetAll(ctx, participantsKey(tripID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to load participants")
	}

	participants := make([]types.Participant, 0, len(members))
	for userID, data := range members {
		var p types.Participant
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, errors.Wrap(err, errors.ServerError, "failed to decode participant "+userID)
		}
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].UserID < participants[j].UserID
	})
	return participants, nil
}

// SaveParticipant upserts the member and lists the trip for them.
func (s *RedisStore) SaveParticipant(ctx context.Context, p *types.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to encode participant")
	}
	if err := s.rdb.HSet(ctx, participantsKey(p.TripID), p.UserID, string(data)).Err(); err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to save participant")
	}
	return s.AddUserTrip(ctx, p.UserID, p.TripID)
}

func (s *RedisStore) ListUserTrips(ctx context.Context, userID string) ([]types.TripSummary, error) {
	ids, err := s.rdb.SMembers(ctx, userTripsKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to load user trips")
	}
	if len(ids) == 0 {
		return []types.TripSummary{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = tripKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "failed to load user trips")
	}

	summaries := make([]types.TripSummary, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			// Trip deleted after being listed.
			continue
		}
		var trip types.Trip
		if err := json.Unmarshal([]byte(data), &trip); err != nil {
			return nil, errors.Wrap(err, errors.ServerError, "failed to decode trip")
		}
		summaries = append(summaries, summarize(&trip))
	}
	return summaries, nil
}

func (s *RedisStore) AddUserTrip(ctx context.Context, userID, tripID string) error {
	if err := s.rdb.SAdd(ctx, userTripsKey(userID), tripID).Err(); err != nil {
		return errors.Wrap(err, errors.ServerError, "failed to list trip for user")
	}
	return nil
}
