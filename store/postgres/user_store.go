package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/store"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ensure UserStore implements store.UserStore interface.
var _ store.UserStore = (*UserStore)(nil)

// UserStore implements store.UserStore on the planner_users table.
type UserStore struct {
	db Querier
}

func NewUserStore(db Querier) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, name, email, latitude, longitude, created_at, updated_at`

// EnsureUser inserts id if it is new and returns the stored row either way.
func (s *UserStore) EnsureUser(ctx context.Context, id string) (*types.User, error) {
	query := `
		INSERT INTO planner_users (id)
		VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("error ensuring user: %w", err)
	}
	return user, nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*types.User, error) {
	query := `SELECT ` + userColumns + ` FROM planner_users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return user, nil
}

func (s *UserStore) UpdateCredentials(ctx context.Context, id string, creds types.Credentials) error {
	var expiresAt *time.Time
	if !creds.ExpiresAt.IsZero() {
		expiresAt = &creds.ExpiresAt
	}
	return s.update(ctx, "credentials", `
		UPDATE planner_users
		SET access_token = $2, token_expires_at = $3, updated_at = NOW()
		WHERE id = $1`,
		id, creds.AccessToken, expiresAt,
	)
}

func (s *UserStore) UpdateProfile(ctx context.Context, id string, profile types.Profile) error {
	return s.update(ctx, "profile", `
		UPDATE planner_users
		SET name = $2, email = $3, updated_at = NOW()
		WHERE id = $1`,
		id, profile.Name, profile.Email,
	)
}

func (s *UserStore) UpdateCoordinates(ctx context.Context, id string, coords types.Coordinates) error {
	return s.update(ctx, "coordinates", `
		UPDATE planner_users
		SET latitude = $2, longitude = $3, updated_at = NOW()
		WHERE id = $1`,
		id, coords.Latitude, coords.Longitude,
	)
}

func (s *UserStore) update(ctx context.Context, what, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating user %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %v: %w", args[0], store.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*types.User, error) {
	var (
		user     types.User
		lat, lng *float64
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &lat, &lng, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		user.Coordinates = &types.Coordinates{Latitude: *lat, Longitude: *lng}
	}
	return &user, nil
}
