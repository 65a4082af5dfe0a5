package middleware

import "github.com/NomadCrew/nomad-crew-planner/logger"

// contextKey defines a type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the gin context key for the verified user ID (string).
	UserIDKey contextKey = logger.UserIDContextKey
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = logger.RequestIDContextKey
)
