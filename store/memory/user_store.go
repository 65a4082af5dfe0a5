// Package memory keeps users in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/store"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

var _ store.UserStore = (*UserStore)(nil)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*types.User
	now   func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*types.User), now: time.Now}
}

func (s *UserStore) EnsureUser(ctx context.Context, id string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	u, ok := s.users[id]
	if !ok {
		u = &types.User{ID: id, CreatedAt: now}
		s.users[id] = u
	}
	u.UpdatedAt = now
	return u.Clone(), nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	c := u.Clone()
	c.Credentials = u.Credentials
	return c, nil
}

func (s *UserStore) UpdateCredentials(ctx context.Context, id string, creds types.Credentials) error {
	return s.update(id, func(u *types.User) { u.Credentials = creds })
}

func (s *UserStore) UpdateProfile(ctx context.Context, id string, profile types.Profile) error {
	return s.update(id, func(u *types.User) {
		u.Name = profile.Name
		u.Email = profile.Email
	})
}

func (s *UserStore) UpdateCoordinates(ctx context.Context, id string, coords types.Coordinates) error {
	return s.update(id, func(u *types.User) { u.Coordinates = &coords })
}

func (s *UserStore) update(id string, fn func(*types.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	fn(u)
	u.UpdatedAt = s.now()
	return nil
}
