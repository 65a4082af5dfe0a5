// Package geo finds where the user is: locators report a position or an
// address, geocoders turn addresses into coordinates.
package geo

import (
	"context"

	"github.com/NomadCrew/nomad-crew-planner/types"
)

// Locator reports the device position. A nil result with a nil error means
// the position is unknown.
type Locator interface {
	Locate(ctx context.Context) (*types.LocatorResult, error)
}

// Geocoder resolves a textual address. Candidates are ordered best first.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.GeocodeCandidates, error)
}
