package auth

import (
	"testing"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-for-testing"

func TestVerifySignedRequest(t *testing.T) {
	valid, err := SignRequest("user123", "app", testSecret, time.Hour)
	require.NoError(t, err)

	expired, err := SignRequest("user123", "app", testSecret, -time.Hour)
	require.NoError(t, err)

	otherSecret, err := SignRequest("user123", "app", "another-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		signed  string
		userID  string
		wantErr bool
	}{
		{name: "valid", signed: valid, userID: "user123"},
		{name: "subject mismatch", signed: valid, userID: "user456", wantErr: true},
		{name: "expired", signed: expired, userID: "user123", wantErr: true},
		{name: "wrong secret", signed: otherSecret, userID: "user123", wantErr: true},
		{name: "empty", signed: "", userID: "user123", wantErr: true},
		{name: "garbage", signed: "not.a.jwt", userID: "user123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := VerifySignedRequest(tt.signed, testSecret, tt.userID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.AuthenticationFailure))
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, "app", claims.AppID)
		})
	}
}

func TestVerifySignedRequest_RejectsOtherAlgorithms(t *testing.T) {
	claims := SignedRequestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = VerifySignedRequest(signed, testSecret, "user123")
	assert.Error(t, err)
}

func TestSignRequest_RequiresSecret(t *testing.T) {
	_, err := SignRequest("user123", "app", "", time.Hour)
	assert.True(t, errors.IsType(err, errors.ValidationError))
}

func TestVerifySocketToken(t *testing.T) {
	socket, err := SignSocketToken("user123", "app", testSecret, time.Minute)
	require.NoError(t, err)
	provider, err := SignRequest("user123", "app", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := VerifySocketToken(socket, testSecret, "user123")
	require.NoError(t, err)
	assert.Equal(t, jwt.ClaimStrings{SocketAudience}, claims.Audience)

	_, err = VerifySocketToken(provider, testSecret, "user123")
	assert.True(t, errors.IsType(err, errors.AuthenticationFailure), "provider signed requests must not open the socket")

	_, err = VerifySocketToken(socket, testSecret, "user456")
	assert.Error(t, err)
}
