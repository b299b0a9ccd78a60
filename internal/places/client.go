package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"task-planner/internal/cache"
	"task-planner/internal/logger"
)

// ErrMissingKey is returned when no Google Maps key is configured.
var ErrMissingKey = errors.New("missing Google Maps key, set GOOGLE_MAPS_KEY")

// DefaultBiasRadius is used when a location bias has no radius.
const DefaultBiasRadius = 20000

// Suggestion is one autocomplete prediction.
type Suggestion struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Place is a resolved suggestion.
type Place struct {
	Description string  `json:"description"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lng"`
}

// Bias steers autocomplete results towards a point.
type Bias struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters int
}

// Client wraps the Places and Geocoding web services.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	logger     *slog.Logger
}

func NewClient(apiKey, baseURL string, httpClient *http.Client, c cache.Cache) *Client {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		cache:      c,
		logger:     logger.With("places"),
	}
}

type apiStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (s apiStatus) err(fallback string) error {
	if s.ErrorMessage != "" {
		return errors.New(s.ErrorMessage)
	}
	if s.Status != "" {
		return errors.New(s.Status)
	}
	return errors.New(fallback)
}

// Autocomplete turns free text into ranked suggestions.
func (c *Client) Autocomplete(ctx context.Context, input string, bias *Bias) ([]Suggestion, error) {
	params := url.Values{}
	params.Set("input", input)
	if bias != nil && bias.Latitude != 0 && bias.Longitude != 0 {
		radius := bias.RadiusMeters
		if radius <= 0 {
			radius = DefaultBiasRadius
		}
		params.Set("location", latLng(bias.Latitude, bias.Longitude))
		params.Set("radius", strconv.Itoa(radius))
	}

	var resp struct {
		apiStatus
		Predictions []Suggestion `json:"predictions"`
	}
	if err := c.get(ctx, "/place/autocomplete/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		c.logger.WarnContext(ctx, "places autocomplete error", "status", resp.Status)
		return nil, resp.err("Places error")
	}
	return resp.Predictions, nil
}

// Details resolves a place id to an address and coordinates.
func (c *Client) Details(ctx context.Context, placeID string) (*Place, error) {
	key := "places:details:" + placeID
	var place Place
	if err := c.cache.GetJSON(ctx, key, &place); err == nil {
		return &place, nil
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "formatted_address,geometry/location")

	var resp struct {
		apiStatus
		Result struct {
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	if err := c.get(ctx, "/place/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		c.logger.WarnContext(ctx, "place details error", "status", resp.Status)
		return nil, resp.err("Place details error")
	}

	place = Place{
		Description: resp.Result.FormattedAddress,
		Latitude:    resp.Result.Geometry.Location.Lat,
		Longitude:   resp.Result.Geometry.Location.Lng,
	}
	if err := c.cache.SetJSON(ctx, key, place, 24*time.Hour); err != nil {
		c.logger.WarnContext(ctx, "places cache write failed", "error", err)
	}
	return &place, nil
}

// ReverseGeocode returns a readable address for lat/lng.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("latlng", latLng(lat, lng))

	var resp struct {
		apiStatus
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/geocode/json", params, &resp); err != nil {
		return "", err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		c.logger.WarnContext(ctx, "geocode error", "status", resp.Status)
		return "", resp.err("Geocode error")
	}
	if len(resp.Results) > 0 && resp.Results[0].FormattedAddress != "" {
		return resp.Results[0].FormattedAddress, nil
	}
	return FallbackLabel(lat, lng), nil
}

// FallbackLabel names a coordinate that has no address.
func FallbackLabel(lat, lng float64) string {
	return fmt.Sprintf("Lat %s, Lng %s", strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lng, 'f', -1, 64))
}

func (c *Client) get(ctx context.Context, path string, params url.Values, target interface{}) error {
	if c.apiKey == "" {
		return ErrMissingKey
	}
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}
	return nil
}

func latLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
