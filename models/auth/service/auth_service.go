package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/auth"
	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/internal/identity"
	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/store"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

var errNoLoginResponse = stderrors.New("identity provider returned no login response")

// SessionAuthenticator drives the identity provider until the user is
// connected with the required permissions, then records the user locally
// and on the session.
type SessionAuthenticator struct {
	provider identity.Provider
	users    store.UserStore
	session  *session.State
	trips    TripDetacher
	clock    clock.Clock
	config   config.AuthConfig
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger

	profiles *events.Bus[*types.User]
	wg       sync.WaitGroup
}

var _ SessionAuthenticatorInterface = (*SessionAuthenticator)(nil)

func NewSessionAuthenticator(
	provider identity.Provider,
	users store.UserStore,
	state *session.State,
	trips TripDetacher,
	c clock.Clock,
	cfg config.AuthConfig,
) *SessionAuthenticator {
	return &SessionAuthenticator{
		provider: provider,
		users:    users,
		session:  state,
		trips:    trips,
		clock:    c,
		config:   cfg,
		metrics:  metrics.Get(),
		log:      logger.GetLogger().Named("auth"),
		profiles: events.NewBus[*types.User]("profile"),
	}
}

// OnProfile is notified with the session user once its display name arrives.
func (s *SessionAuthenticator) OnProfile(fn func(*types.User)) events.Subscription {
	return s.profiles.Subscribe(fn)
}

// GetLoginStatus returns the authenticated user, prompting for login at most
// MaxLoginAttempts times.
func (s *SessionAuthenticator) GetLoginStatus(ctx context.Context) (*types.User, error) {
	resp, err := s.callProvider(ctx, func(ctx context.Context) (*types.LoginResponse, error) {
		return s.provider.LoginStatus(ctx)
	})
	if err != nil {
		s.metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, apperrors.AuthenticationFailed("login status unavailable", err)
	}

	for attempt := 1; !resp.Connected(); attempt++ {
		if attempt > s.config.MaxLoginAttempts {
			s.metrics.LoginAttempts.WithLabelValues("exhausted").Inc()
			s.log.Warnw("Login attempts exhausted", "attempts", s.config.MaxLoginAttempts, "status", resp.Status)
			return nil, apperrors.AuthenticationFailed("login was not completed",
				fmt.Errorf("status %q after %d attempts", resp.Status, s.config.MaxLoginAttempts))
		}

		s.log.Infow("Prompting for login", "attempt", attempt, "status", resp.Status, "scope", s.config.Scope)
		resp, err = s.callProvider(ctx, func(ctx context.Context) (*types.LoginResponse, error) {
			return s.provider.Login(ctx, s.config.Scope)
		})
		if err != nil {
			s.metrics.LoginAttempts.WithLabelValues("error").Inc()
			return nil, apperrors.AuthenticationFailed("login prompt failed", err)
		}
		s.metrics.LoginAttempts.WithLabelValues(string(resp.Status)).Inc()
	}

	authResp := resp.AuthResponse
	if err := s.checkPermissions(authResp); err != nil {
		return nil, err
	}
	if s.config.AppSecret != "" {
		if _, err := auth.VerifySignedRequest(authResp.SignedRequest, s.config.AppSecret, authResp.UserID); err != nil {
			s.log.Warnw("Signed request rejected", "userID", authResp.UserID, "error", err)
			return nil, err
		}
	}

	return s.complete(ctx, authResp)
}

// Logout forgets the session user and closes the active trip.
func (s *SessionAuthenticator) Logout(ctx context.Context) error {
	user := s.session.User()
	if s.trips != nil {
		s.trips.Detach()
	}
	s.session.SetUser(nil)
	s.session.SetTrips(nil)
	if user != nil {
		s.log.Infow("User logged out", "userID", user.ID)
	}
	return nil
}

// Close waits for outstanding profile fetches.
func (s *SessionAuthenticator) Close() {
	s.wg.Wait()
	s.profiles.Close()
}

func (s *SessionAuthenticator) callProvider(ctx context.Context, fn func(context.Context) (*types.LoginResponse, error)) (*types.LoginResponse, error) {
	if timeout := s.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := fn(ctx)
	if err == nil && resp == nil {
		return nil, errNoLoginResponse
	}
	return resp, err
}

// checkPermissions fails when the provider reported granted scopes and a
// required one is absent. Providers that do not report scopes are trusted.
func (s *SessionAuthenticator) checkPermissions(resp *types.AuthResponse) error {
	if resp.GrantedScopes == nil {
		s.log.Warnw("Identity provider did not report granted scopes", "userID", resp.UserID)
		return nil
	}

	granted := make(map[string]struct{}, len(resp.GrantedScopes))
	for _, scope := range resp.GrantedScopes {
		granted[scope] = struct{}{}
	}
	var missing []string
	for _, scope := range s.config.Scope {
		if _, ok := granted[scope]; !ok {
			missing = append(missing, scope)
		}
	}
	if len(missing) > 0 {
		s.metrics.LoginAttempts.WithLabelValues("missing_permissions").Inc()
		s.log.Warnw("Login is missing permissions", "userID", resp.UserID, "missing", missing)
		return apperrors.MissingPermissions(missing)
	}
	return nil
}

func (s *SessionAuthenticator) complete(ctx context.Context, resp *types.AuthResponse) (*types.User, error) {
	log := s.log.With("userID", resp.UserID)

	user, err := s.users.EnsureUser(ctx, resp.UserID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError, "failed to register user")
	}

	creds := types.Credentials{
		AccessToken:   resp.AccessToken,
		ExpiresIn:     resp.ExpiresIn,
		SignedRequest: resp.SignedRequest,
	}
	if resp.ExpiresIn > 0 {
		creds.ExpiresAt = s.clock.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if err := s.users.UpdateCredentials(ctx, resp.UserID, creds); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError, "failed to store credentials")
	}
	user.Credentials = creds

	// A location detected earlier in this session wins over the stored one.
	if prev := s.session.User(); prev != nil && prev.ID == user.ID && prev.Coordinates != nil {
		user.Coordinates = prev.Coordinates
	}
	s.session.SetUser(user)
	log.Infow("User authenticated", "token", logger.MaskToken(creds.AccessToken))

	s.wg.Add(1)
	go s.fetchProfile(user.ID, creds.AccessToken)

	return user.Clone(), nil
}

// fetchProfile loads the display name in the background. Failures only log.
func (s *SessionAuthenticator) fetchProfile(userID, accessToken string) {
	defer s.wg.Done()
	log := s.log.With("userID", userID)

	ctx := context.Background()
	if timeout := s.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	profile, err := s.provider.Profile(ctx, accessToken)
	if err != nil {
		log.Warnw("Failed to fetch profile", "error", err)
		return
	}

	if err := s.users.UpdateProfile(ctx, userID, *profile); err != nil {
		log.Warnw("Failed to store profile", "error", err)
	}

	updated := s.session.UpdateUser(userID, func(u *types.User) {
		u.Name = profile.Name
		if profile.Email != "" {
			u.Email = profile.Email
		}
	})
	if !updated {
		log.Infow("Session user changed before profile arrived")
		return
	}
	s.profiles.Publish(s.session.User())
}
