package noaa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ngmaloney/pendulum/internal/models"
	"github.com/ngmaloney/pendulum/internal/observability"
)

// DefaultURL is the National Weather Service API
const DefaultURL = "https://api.weather.gov"

const (
	userAgent     = "pendulum-companion/1.0 (github.com/ngmaloney/pendulum)"
	maxBodySize   = 1 << 20
	celsiusOffset = 273.15
)

var (
	ErrNoStations    = errors.New("no observation stations near location")
	ErrNoTemperature = errors.New("latest observation has no temperature")
	ErrRateLimited   = errors.New("rate limited")
)

// Client reads current conditions from the nearest NWS observation station.
// It only covers locations the NWS serves.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string

	mu       sync.Mutex
	stations map[string]station // nearest station per rounded position
}

type station struct {
	ID   string
	Name string
}

// NewClient creates a NOAA client. An empty baseURL uses DefaultURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		stations:  make(map[string]station),
	}
}

// Current returns the latest observation at the station nearest lat/lon,
// with the temperature converted to Kelvin
func (c *Client) Current(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	start := time.Now()
	data, err := c.current(ctx, lat, lon)

	status := "success"
	switch {
	case errors.Is(err, ErrRateLimited):
		status = "rate_limited"
	case err != nil:
		status = "error"
	}
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return data, err
}

func (c *Client) current(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	st, err := c.nearestStation(ctx, lat, lon)
	if err != nil {
		return models.WeatherData{}, err
	}

	var obs observationResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/stations/%s/observations/latest", c.baseURL, st.ID), &obs); err != nil {
		return models.WeatherData{}, fmt.Errorf("failed to get observation: %w", err)
	}
	if obs.Properties.Temperature.Value == nil {
		return models.WeatherData{}, fmt.Errorf("station %s: %w", st.ID, ErrNoTemperature)
	}

	observedAt, err := time.Parse(time.RFC3339, obs.Properties.Timestamp)
	if err != nil {
		observedAt = time.Now()
	}
	text := obs.Properties.TextDescription

	return models.WeatherData{
		Location:     st.Name,
		Latitude:     lat,
		Longitude:    lon,
		TemperatureK: *obs.Properties.Temperature.Value + celsiusOffset,
		Conditions:   text,
		Description:  strings.ToLower(text),
		Timestamp:    observedAt,
	}, nil
}

// nearestStation resolves the grid point for lat/lon and picks the first
// observation station the NWS lists for it
func (c *Client) nearestStation(ctx context.Context, lat, lon float64) (station, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	c.mu.Lock()
	st, ok := c.stations[key]
	c.mu.Unlock()
	if ok {
		return st, nil
	}

	var point pointResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/points/%s", c.baseURL, key), &point); err != nil {
		return station{}, fmt.Errorf("failed to get grid point: %w", err)
	}
	if point.Properties.ObservationStations == "" {
		return station{}, ErrNoStations
	}

	var list stationsResponse
	if err := c.getJSON(ctx, point.Properties.ObservationStations, &list); err != nil {
		return station{}, fmt.Errorf("failed to list stations: %w", err)
	}
	if len(list.Features) == 0 {
		return station{}, ErrNoStations
	}

	st = station{
		ID:   list.Features[0].Properties.StationIdentifier,
		Name: list.Features[0].Properties.Name,
	}
	c.mu.Lock()
	c.stations[key] = st
	c.mu.Unlock()
	return st, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Internal types for NOAA API responses

type pointResponse struct {
	Properties struct {
		GridID              string `json:"gridId"`
		ObservationStations string `json:"observationStations"`
	} `json:"properties"`
}

type stationsResponse struct {
	Features []struct {
		Properties struct {
			StationIdentifier string `json:"stationIdentifier"`
			Name              string `json:"name"`
		} `json:"properties"`
	} `json:"features"`
}

type observationResponse struct {
	Properties struct {
		Timestamp       string `json:"timestamp"`
		TextDescription string `json:"textDescription"`
		Temperature     struct {
			UnitCode string   `json:"unitCode"`
			Value    *float64 `json:"value"`
		} `json:"temperature"`
	} `json:"properties"`
}
