package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"task-planner/internal/cache"
	"task-planner/internal/logger"
)

// ErrMissingKey is returned when no OpenWeather key is configured.
var ErrMissingKey = errors.New("missing OpenWeather API key")

// Client talks to the OpenWeather REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	loc        *time.Location
	logger     *slog.Logger
}

// Options tune a Client. Zero values pick defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      cache.Cache
	CacheTTL   time.Duration
	Location   *time.Location
}

func NewClient(apiKey string, opts Options) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		loc:        opts.Location,
		logger:     logger.With("weather"),
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openweathermap.org"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.cache == nil {
		c.cache = cache.Noop{}
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = 10 * time.Minute
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c
}

// getJSON fetches path with query params, serving from cache when possible.
func (c *Client) getJSON(ctx context.Context, cacheKey, path string, params url.Values, target interface{}) error {
	if c.apiKey == "" {
		return ErrMissingKey
	}

	if err := c.cache.GetJSON(ctx, cacheKey, target); err == nil {
		return nil
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.WarnContext(ctx, "weather cache read failed", "key", cacheKey, "error", err)
	}

	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "weather request failed", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("weather: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode weather response: %w", err)
	}

	if err := c.cache.SetJSON(ctx, cacheKey, json.RawMessage(body), c.cacheTTL); err != nil {
		c.logger.WarnContext(ctx, "weather cache write failed", "key", cacheKey, "error", err)
	}
	return nil
}

func coordParams(lat, lng float64) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	return params
}

func cacheKey(kind string, lat, lng float64) string {
	return fmt.Sprintf("weather:%s:%.3f:%.3f", kind, lat, lng)
}
