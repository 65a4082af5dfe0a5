package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/auth"
	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
	"github.com/NomadCrew/nomad-crew-planner/internal/session"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/store/memory"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) LoginStatus(ctx context.Context) (*types.LoginResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LoginResponse), args.Error(1)
}

func (m *MockIdentityProvider) Login(ctx context.Context, scope []string) (*types.LoginResponse, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LoginResponse), args.Error(1)
}

func (m *MockIdentityProvider) Profile(ctx context.Context, accessToken string) (*types.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

type detachRecorder struct{ calls int }

func (d *detachRecorder) Detach() { d.calls++ }

var testScope = []string{"public_profile", "email", "user_friends"}

func connected(userID string, scopes []string) *types.LoginResponse {
	return &types.LoginResponse{
		Status: types.LoginStatusConnected,
		AuthResponse: &types.AuthResponse{
			UserID:        userID,
			AccessToken:   "token-" + userID,
			ExpiresIn:     3600,
			GrantedScopes: scopes,
		},
	}
}

func notAuthorized() *types.LoginResponse {
	return &types.LoginResponse{Status: types.LoginStatusNotAuthorized}
}

type fixture struct {
	provider *MockIdentityProvider
	users    *memory.UserStore
	state    *session.State
	trips    *detachRecorder
	clock    *clock.Fake
	svc      *SessionAuthenticator
}

func newFixture(t *testing.T, mutate ...func(*config.AuthConfig)) *fixture {
	t.Helper()
	cfg := config.AuthConfig{
		Scope:            testScope,
		MaxLoginAttempts: 3,
		TimeoutSeconds:   5,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f := &fixture{
		provider: new(MockIdentityProvider),
		users:    memory.NewUserStore(),
		state:    session.New(),
		trips:    &detachRecorder{},
		clock:    clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = NewSessionAuthenticator(f.provider, f.users, f.state, f.trips, f.clock, cfg)
	t.Cleanup(f.svc.Close)
	return f
}

func TestGetLoginStatus_AlreadyConnected(t *testing.T) {
	f := newFixture(t)
	f.provider.On("LoginStatus", mock.Anything).Return(connected("u1", testScope), nil)
	f.provider.On("Profile", mock.Anything, "token-u1").Return(&types.Profile{ID: "u1", Name: "Ada"}, nil)

	user, err := f.svc.GetLoginStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "token-u1", user.Credentials.AccessToken)
	assert.Equal(t, f.clock.Now().Add(time.Hour), user.Credentials.ExpiresAt)

	stored, err := f.users.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "token-u1", stored.Credentials.AccessToken)
	assert.Equal(t, "u1", f.state.User().ID)

	assert.Eventually(t, func() bool {
		u := f.state.User()
		return u != nil && u.Name == "Ada"
	}, time.Second, 10*time.Millisecond)
	f.provider.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestGetLoginStatus_PromptsUntilConnected(t *testing.T) {
	f := newFixture(t)
	f.provider.On("LoginStatus", mock.Anything).Return(&types.LoginResponse{Status: types.LoginStatusUnknown}, nil)
	f.provider.On("Login", mock.Anything, testScope).Return(notAuthorized(), nil).Once()
	f.provider.On("Login", mock.Anything, testScope).Return(connected("u1", testScope), nil).Once()
	f.provider.On("Profile", mock.Anything, mock.Anything).Return(&types.Profile{Name: "Ada"}, nil)

	user, err := f.svc.GetLoginStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	f.provider.AssertNumberOfCalls(t, "Login", 2)
}

func TestGetLoginStatus_AttemptsExhausted(t *testing.T) {
	f := newFixture(t, func(c *config.AuthConfig) { c.MaxLoginAttempts = 2 })
	f.provider.On("LoginStatus", mock.Anything).Return(notAuthorized(), nil)
	f.provider.On("Login", mock.Anything, testScope).Return(notAuthorized(), nil)

	user, err := f.svc.GetLoginStatus(context.Background())
	assert.Nil(t, user)
	assert.True(t, apperrors.IsType(err, apperrors.AuthenticationFailure))
	f.provider.AssertNumberOfCalls(t, "Login", 2)
	assert.Nil(t, f.state.User())
}

func TestGetLoginStatus_ProviderError(t *testing.T) {
	f := newFixture(t)
	f.provider.On("LoginStatus", mock.Anything).Return(nil, errors.New("provider down"))

	_, err := f.svc.GetLoginStatus(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.AuthenticationFailure))
}

func TestGetLoginStatus_EmptyProviderResponse(t *testing.T) {
	t.Run("login status", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("LoginStatus", mock.Anything).Return(nil, nil)

		user, err := f.svc.GetLoginStatus(context.Background())
		assert.Nil(t, user)
		assert.True(t, apperrors.IsType(err, apperrors.AuthenticationFailure))
		assert.ErrorIs(t, err, errNoLoginResponse)
	})

	t.Run("login prompt", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("LoginStatus", mock.Anything).Return(notAuthorized(), nil)
		f.provider.On("Login", mock.Anything, testScope).Return(nil, nil)

		user, err := f.svc.GetLoginStatus(context.Background())
		assert.Nil(t, user)
		assert.True(t, apperrors.IsType(err, apperrors.AuthenticationFailure))
		assert.ErrorIs(t, err, errNoLoginResponse)
		f.provider.AssertNumberOfCalls(t, "Login", 1)
	})
}

func TestGetLoginStatus_LoginPromptTimesOut(t *testing.T) {
	f := newFixture(t, func(c *config.AuthConfig) { c.TimeoutSeconds = 1 })
	f.provider.On("LoginStatus", mock.Anything).Return(notAuthorized(), nil)
	f.provider.On("Login", mock.Anything, testScope).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(nil, context.DeadlineExceeded)

	_, err := f.svc.GetLoginStatus(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.AuthenticationFailure))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetLoginStatus_MissingPermissions(t *testing.T) {
	f := newFixture(t)
	f.provider.On("LoginStatus", mock.Anything).Return(connected("u1", []string{"public_profile"}), nil)

	_, err := f.svc.GetLoginStatus(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.MissingPermissionsError))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "email,user_friends", appErr.Detail)
	assert.Nil(t, f.state.User())
}

func TestGetLoginStatus_UnreportedScopesAccepted(t *testing.T) {
	f := newFixture(t)
	f.provider.On("LoginStatus", mock.Anything).Return(connected("u1", nil), nil)
	f.provider.On("Profile", mock.Anything, mock.Anything).Return(nil, errors.New("no profile"))

	user, err := f.svc.GetLoginStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestGetLoginStatus_SignedRequest(t *testing.T) {
	const secret = "app-secret"

	t.Run("valid", func(t *testing.T) {
		f := newFixture(t, func(c *config.AuthConfig) { c.AppSecret = secret })
		resp := connected("u1", testScope)
		signed, err := auth.SignRequest("u1", "app", secret, time.Hour)
		require.NoError(t, err)
		resp.AuthResponse.SignedRequest = signed
		f.provider.On("LoginStatus", mock.Anything).Return(resp, nil)
		f.provider.On("Profile", mock.Anything, mock.Anything).Return(&types.Profile{Name: "Ada"}, nil)

		user, err := f.svc.GetLoginStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, signed, user.Credentials.SignedRequest)
	})

	t.Run("issued for another user", func(t *testing.T) {
		f := newFixture(t, func(c *config.AuthConfig) { c.AppSecret = secret })
		resp := connected("u1", testScope)
		signed, err := auth.SignRequest("u2", "app", secret, time.Hour)
		require.NoError(t, err)
		resp.AuthResponse.SignedRequest = signed
		f.provider.On("LoginStatus", mock.Anything).Return(resp, nil)

		_, err = f.svc.GetLoginStatus(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.AuthenticationFailure))
		assert.Nil(t, f.state.User())
	})
}

func TestGetLoginStatus_ProfilePublished(t *testing.T) {
	f := newFixture(t)
	f.provider.On("LoginStatus", mock.Anything).Return(connected("u1", testScope), nil)
	f.provider.On("Profile", mock.Anything, "token-u1").Return(&types.Profile{ID: "u1", Name: "Ada", Email: "ada@example.com"}, nil)

	got := make(chan *types.User, 1)
	sub := f.svc.OnProfile(func(u *types.User) { got <- u })
	defer sub.Unsubscribe()

	_, err := f.svc.GetLoginStatus(context.Background())
	require.NoError(t, err)

	select {
	case u := <-got:
		assert.Equal(t, "Ada", u.Name)
		assert.Equal(t, "ada@example.com", u.Email)
	case <-time.After(time.Second):
		t.Fatal("profile was not published")
	}

	f.svc.Close()
	stored, err := f.users.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Name)
}

func TestGetLoginStatus_KeepsSessionLocation(t *testing.T) {
	f := newFixture(t)
	f.state.SetUser(&types.User{ID: "u1", Coordinates: &types.Coordinates{Latitude: 1, Longitude: 2}})
	f.provider.On("LoginStatus", mock.Anything).Return(connected("u1", testScope), nil)
	f.provider.On("Profile", mock.Anything, mock.Anything).Return(&types.Profile{Name: "Ada"}, nil)

	user, err := f.svc.GetLoginStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user.Coordinates)
	assert.Equal(t, 2.0, user.Coordinates.Longitude)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.state.SetUser(&types.User{ID: "u1"})
	f.state.SetTrips([]types.TripSummary{{ID: "t1"}})

	require.NoError(t, f.svc.Logout(context.Background()))
	assert.Nil(t, f.state.User())
	assert.Empty(t, f.state.Trips())
	assert.Equal(t, 1, f.trips.calls)
}
