package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/NomadCrew/nomad-crew-planner/types"
)

// IPLocator asks an IP geolocation API (ipapi.co compatible) where the
// caller is. Some answers carry only the city and country.
type IPLocator struct {
	url       string
	userAgent string
	client    *http.Client
}

var _ Locator = (*IPLocator)(nil)

func NewIPLocator(url, userAgent string, client *http.Client) *IPLocator {
	return &IPLocator{url: url, userAgent: userAgent, client: client}
}

type ipLocation struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryName string   `json:"country_name"`
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
}

func (l *IPLocator) Locate(ctx context.Context) (*types.LocatorResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, err
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip locator api error: %s", resp.Status)
	}

	var loc ipLocation
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, err
	}
	if loc.Error {
		return nil, fmt.Errorf("ip locator api error: %s", loc.Reason)
	}

	result := &types.LocatorResult{FormattedAddress: joinAddress(loc.City, loc.Region, loc.CountryName)}
	if loc.Latitude != nil && loc.Longitude != nil {
		result.Coords = &types.RawCoordinates{Latitude: *loc.Latitude, Longitude: *loc.Longitude}
	}
	if result.Coords == nil && result.FormattedAddress == "" {
		return nil, nil
	}
	return result, nil
}

func joinAddress(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// StaticLocator reports a configured position. The value is either
// "lat,lng" or a free-form address left for the geocoder.
type StaticLocator struct {
	value string
}

var _ Locator = StaticLocator{}

func NewStaticLocator(value string) StaticLocator {
	return StaticLocator{value: strings.TrimSpace(value)}
}

func (l StaticLocator) Locate(ctx context.Context) (*types.LocatorResult, error) {
	if l.value == "" {
		return nil, nil
	}
	if coords, ok := parseLatLng(l.value); ok {
		return &types.LocatorResult{Coords: coords}, nil
	}
	return &types.LocatorResult{FormattedAddress: l.value}, nil
}

func parseLatLng(s string) (*types.RawCoordinates, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, false
	}
	return &types.RawCoordinates{Latitude: lat, Longitude: lng}, true
}
