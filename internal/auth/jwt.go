// Package auth verifies the signed requests issued by the identity provider
// and issues the short-lived tokens that admit a browser to the page socket.
package auth

import (
	"fmt"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/golang-jwt/jwt/v5"
)

// acceptableSkew tolerates clock drift between the provider and the planner.
const acceptableSkew = 30 * time.Second

// SocketAudience marks tokens that are only valid for the page socket.
const SocketAudience = "planner-ws"

// SignedRequestClaims is the payload of a provider signed request. The
// subject is the provider user ID.
type SignedRequestClaims struct {
	AppID string `json:"app_id,omitempty"`
	jwt.RegisteredClaims
}

// VerifySignedRequest checks an HS256 signed request against the app secret
// and requires its subject to be userID.
func VerifySignedRequest(signed, secret, userID string) (*SignedRequestClaims, error) {
	return verify(signed, secret, userID)
}

// VerifySocketToken checks a token issued by SignSocketToken for userID.
// Provider signed requests are not accepted.
func VerifySocketToken(signed, secret, userID string) (*SignedRequestClaims, error) {
	return verify(signed, secret, userID, jwt.WithAudience(SocketAudience))
}

func verify(signed, secret, userID string, opts ...jwt.ParserOption) (*SignedRequestClaims, error) {
	if signed == "" {
		return nil, errors.AuthenticationFailed("missing signed request", nil)
	}

	token, err := jwt.ParseWithClaims(signed, &SignedRequestClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		append([]jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(acceptableSkew),
		}, opts...)...,
	)
	if err != nil || !token.Valid {
		return nil, errors.AuthenticationFailed("invalid signed request", err)
	}

	claims, ok := token.Claims.(*SignedRequestClaims)
	if !ok {
		return nil, errors.AuthenticationFailed("invalid signed request claims", nil)
	}
	if claims.Subject != userID {
		return nil, errors.AuthenticationFailed("signed request subject mismatch",
			fmt.Errorf("expected %q, got %q", userID, claims.Subject))
	}
	return claims, nil
}

// SignRequest issues a signed request for userID. The development identity
// provider uses it to mimic the real one.
func SignRequest(userID, appID, secret string, ttl time.Duration) (string, error) {
	return sign(userID, appID, secret, ttl)
}

// SignSocketToken issues a token admitting userID to the page socket.
func SignSocketToken(userID, appID, secret string, ttl time.Duration) (string, error) {
	return sign(userID, appID, secret, ttl, SocketAudience)
}

func sign(userID, appID, secret string, ttl time.Duration, audience ...string) (string, error) {
	if secret == "" {
		return "", errors.ValidationFailed("invalid secret", "app secret is required to sign requests")
	}
	now := time.Now()
	claims := SignedRequestClaims{
		AppID: appID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
