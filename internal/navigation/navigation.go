// Package navigation tracks the addressable page location. Non-triggering
// navigation only records the new path; triggering navigation also runs the
// registered route handler.
package navigation

import (
	"strings"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/events"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// Options controls a navigation.
type Options struct {
	// Trigger runs the route handler for the new path.
	Trigger bool
	// Replace overwrites the current entry instead of pushing a new one.
	Replace bool
}

// Navigator updates the page location.
type Navigator interface {
	Navigate(path string, opts Options) error
}

// Entry is published on every navigation.
type Entry struct {
	Path    string
	Trigger bool
}

// TripPath builds index/index/trip/<tripID>/user/<userID>.
func TripPath(tripID, userID string) string {
	return strings.Join([]string{"index", "index", "trip", tripID, "user", userID}, "/")
}

// ParseTripPath extracts the trip and user IDs from a path built by TripPath.
// A leading slash is accepted.
func ParseTripPath(path string) (types.NavigationParams, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 6 || parts[0] != "index" || parts[1] != "index" || parts[2] != "trip" || parts[4] != "user" {
		return types.NavigationParams{}, false
	}
	if parts[3] == "" {
		return types.NavigationParams{}, false
	}
	return types.NavigationParams{TripID: parts[3], UserID: parts[5]}, true
}

// History is an in-process Navigator with a back stack.
type History struct {
	mu      sync.Mutex
	entries []string
	onRoute func(path string)

	navigated *events.Bus[Entry]
}

var _ Navigator = (*History)(nil)

func NewHistory() *History {
	return &History{navigated: events.NewBus[Entry]("navigation")}
}

// OnRoute sets the handler run by triggering navigations.
func (h *History) OnRoute(fn func(path string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRoute = fn
}

// Subscribe registers fn for every navigation.
func (h *History) Subscribe(fn func(Entry)) events.Subscription {
	return h.navigated.Subscribe(fn)
}

func (h *History) Navigate(path string, opts Options) error {
	path = strings.Trim(path, "/")
	if path == "" {
		return errors.ValidationFailed("invalid navigation", "path is required")
	}

	h.mu.Lock()
	if opts.Replace && len(h.entries) > 0 {
		h.entries[len(h.entries)-1] = path
	} else {
		h.entries = append(h.entries, path)
	}
	route := h.onRoute
	h.mu.Unlock()

	h.navigated.Publish(Entry{Path: path, Trigger: opts.Trigger})
	if opts.Trigger && route != nil {
		route(path)
	}
	return nil
}

// Current returns the current path, "" before the first navigation.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Back pops the current entry and returns the new current path.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return "", false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// Len returns the number of entries on the stack.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
