package store

import "errors"

// Error Handling Guidelines:
// - Stores: Use fmt.Errorf("context: %w", err) for wrapping errors
// - Services: translate store errors with apperrors.* functions

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
)
