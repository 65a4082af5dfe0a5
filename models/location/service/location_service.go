package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/geo"
	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/store"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

var errNoPosition = errors.New("locator returned no position")

// LocationResolver asks the locator where the user is, geocodes a bare
// address, and records the result on the session user.
type LocationResolver struct {
	locator  geo.Locator
	geocoder geo.Geocoder
	users    store.UserStore
	session  *session.State
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
}

var _ LocationResolverInterface = (*LocationResolver)(nil)

func NewLocationResolver(
	locator geo.Locator,
	geocoder geo.Geocoder,
	users store.UserStore,
	state *session.State,
	timeout time.Duration,
) *LocationResolver {
	return &LocationResolver{
		locator:  locator,
		geocoder: geocoder,
		users:    users,
		session:  state,
		timeout:  timeout,
		metrics:  metrics.Get(),
		log:      logger.GetLogger().Named("location"),
	}
}

// DetectLocation returns the normalized coordinates of the user, or nil when
// they cannot be determined within the timeout.
func (r *LocationResolver) DetectLocation(ctx context.Context) *types.Coordinates {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	raw, source, err := r.resolve(ctx)
	if err != nil {
		r.metrics.LocationResolutions.WithLabelValues("unavailable").Inc()
		r.log.Warnw("Location unavailable", "error", apperrors.LocationNotAvailable(err))
		return nil
	}

	coords := raw.Normalize()
	if err := coords.Validate(); err != nil {
		r.metrics.LocationResolutions.WithLabelValues("unavailable").Inc()
		r.log.Warnw("Location out of range", "source", source, "error", err)
		return nil
	}
	r.metrics.LocationResolutions.WithLabelValues(source).Inc()

	r.attach(ctx, coords)
	return &coords
}

func (r *LocationResolver) resolve(ctx context.Context) (types.RawCoordinates, string, error) {
	result, err := r.locator.Locate(ctx)
	if err != nil {
		return types.RawCoordinates{}, "", fmt.Errorf("locate: %w", err)
	}
	if result == nil {
		return types.RawCoordinates{}, "", errNoPosition
	}
	if result.Coords != nil {
		return *result.Coords, "locator", nil
	}
	if result.FormattedAddress == "" || r.geocoder == nil {
		return types.RawCoordinates{}, "", errNoPosition
	}

	candidates, err := r.geocoder.Geocode(ctx, result.FormattedAddress)
	if err != nil {
		return types.RawCoordinates{}, "", fmt.Errorf("geocode %q: %w", result.FormattedAddress, err)
	}
	first, ok := candidates.First()
	if !ok {
		return types.RawCoordinates{}, "", fmt.Errorf("geocode %q: no candidates", result.FormattedAddress)
	}
	return first.Raw(), "geocoder", nil
}

// attach stores coords on the session user. Persisting is best effort.
func (r *LocationResolver) attach(ctx context.Context, coords types.Coordinates) {
	user := r.session.User()
	if user == nil {
		return
	}
	r.session.UpdateUser(user.ID, func(u *types.User) {
		c := coords
		u.Coordinates = &c
	})
	if r.users == nil {
		return
	}
	if err := r.users.UpdateCoordinates(ctx, user.ID, coords); err != nil {
		r.log.Warnw("Failed to persist user location", "userID", user.ID, "error", err)
	}
}
