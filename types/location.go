package types

import (
	"encoding/json"
	"fmt"
)

// Coordinates is the normalized location attached to users and participants.
// Nothing beyond latitude and longitude is kept.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate ranges.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %f is outside valid range [-90, 90]", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %f is outside valid range [-180, 180]", c.Longitude)
	}
	return nil
}

// RawCoordinates is whatever a locator or geocoder reported.
type RawCoordinates struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

// Normalize drops everything except latitude and longitude.
func (r RawCoordinates) Normalize() Coordinates {
	return Coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
}

// LocatorResult is the answer of a device/IP locator. Coords may be nil when
// the locator only knows a textual address.
type LocatorResult struct {
	Coords           *RawCoordinates `json:"coords,omitempty"`
	FormattedAddress string          `json:"formattedAddress,omitempty"`
}

// GeocodeCandidate is one geocoding match.
type GeocodeCandidate struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
}

// Raw converts the candidate for normalization.
func (g GeocodeCandidate) Raw() RawCoordinates {
	return RawCoordinates{Latitude: g.Latitude, Longitude: g.Longitude}
}

// GeocodeCandidates decodes either a JSON array of candidates or a single
// candidate object. Providers differ on which one they return.
type GeocodeCandidates []GeocodeCandidate

func (g *GeocodeCandidates) UnmarshalJSON(data []byte) error {
	var many []GeocodeCandidate
	if err := json.Unmarshal(data, &many); err == nil {
		*g = many
		return nil
	}

	var one GeocodeCandidate
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("geocode candidates: %w", err)
	}
	*g = GeocodeCandidates{one}
	return nil
}

// First returns the first candidate; a sequence always resolves to its head.
func (g GeocodeCandidates) First() (GeocodeCandidate, bool) {
	if len(g) == 0 {
		return GeocodeCandidate{}, false
	}
	return g[0], true
}
