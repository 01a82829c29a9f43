package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGeocodeBaseURL = "https://nominatim.openstreetmap.org"
	searchEndpoint        = "/search"
	defaultHTTPTimeout    = 10 * time.Second
)

// GeocoderOption configures the geocoder client.
type GeocoderOption func(*Geocoder)

// WithBaseURL overrides the geocoding endpoint.
func WithBaseURL(baseURL string) GeocoderOption {
	return func(g *Geocoder) {
		if baseURL != "" {
			g.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithUserAgent sets the User-Agent header (required by public Nominatim).
func WithUserAgent(agent string) GeocoderOption {
	return func(g *Geocoder) {
		if agent != "" {
			g.UserAgent = agent
		}
	}
}

// Geocoder resolves free-text locations to WGS84 coordinates through a
// Nominatim-compatible endpoint.
type Geocoder struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewGeocoder creates a geocoder client.
func NewGeocoder(opts ...GeocoderOption) *Geocoder {
	g := &Geocoder{
		BaseURL:    defaultGeocodeBaseURL,
		UserAgent:  "ragcore-geocoder",
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup resolves a location name to coordinates. A location with no match
// returns an error; callers treat geocoding as best-effort.
func (g *Geocoder) Lookup(ctx context.Context, location string) (lat, lon float64, err error) {
	if strings.TrimSpace(location) == "" {
		return 0, 0, fmt.Errorf("location is required")
	}
	query := url.Values{}
	query.Set("q", location)
	query.Set("format", "json")
	query.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+searchEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, 0, fmt.Errorf("geocode API error: %s", strings.TrimSpace(string(body)))
	}
	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("no match for location %q", location)
	}
	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lat: %w", err)
	}
	lon, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lon: %w", err)
	}
	return lat, lon, nil
}
