package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

// HTTPGeocoder queries Open-Meteo and falls back to Nominatim.
type HTTPGeocoder struct {
	primaryURL  string
	fallbackURL string
	userAgent   string
	client      *http.Client
	log         *zap.SugaredLogger
}

var _ Geocoder = (*HTTPGeocoder)(nil)

func NewHTTPGeocoder(primaryURL, fallbackURL, userAgent string, client *http.Client) *HTTPGeocoder {
	return &HTTPGeocoder{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		userAgent:   userAgent,
		client:      client,
		log:         logger.GetLogger().Named("geocoder"),
	}
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (types.GeocodeCandidates, error) {
	candidates, err := g.primary(ctx, address)
	if err == nil || g.fallbackURL == "" {
		return candidates, err
	}

	g.log.Warnw("Primary geocoding failed, falling back to Nominatim",
		"address", address,
		"error", err)

	candidates, err = g.nominatim(ctx, address)
	if err != nil {
		g.log.Errorw("Both geocoding services failed",
			"address", address,
			"error", err)
		return nil, fmt.Errorf("no location found for: %s: %w", address, err)
	}
	return candidates, nil
}

func (g *HTTPGeocoder) primary(ctx context.Context, address string) (types.GeocodeCandidates, error) {
	params := url.Values{}
	params.Add("name", address)
	params.Add("count", "1")

	var geoResp struct {
		Results types.GeocodeCandidates `json:"results"`
	}
	if err := g.get(ctx, g.primaryURL, params, &geoResp); err != nil {
		return nil, fmt.Errorf("geocoding API error: %w", err)
	}
	if len(geoResp.Results) == 0 {
		return nil, fmt.Errorf("no location found for: %s", address)
	}
	return geoResp.Results, nil
}

func (g *HTTPGeocoder) nominatim(ctx context.Context, address string) (types.GeocodeCandidates, error) {
	params := url.Values{}
	params.Add("q", address)
	params.Add("format", "json")
	params.Add("limit", "1")

	var nominatimResp []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := g.get(ctx, g.fallbackURL, params, &nominatimResp); err != nil {
		return nil, fmt.Errorf("nominatim api error: %w", err)
	}

	candidates := make(types.GeocodeCandidates, 0, len(nominatimResp))
	for _, r := range nominatimResp {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", r.Lat)
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", r.Lon)
		}
		candidates = append(candidates, types.GeocodeCandidate{Latitude: lat, Longitude: lon, FormattedAddress: r.DisplayName})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no location found for: %s", address)
	}
	return candidates, nil
}

func (g *HTTPGeocoder) get(ctx context.Context, baseURL string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", baseURL, params.Encode()), nil)
	if err != nil {
		return err
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
