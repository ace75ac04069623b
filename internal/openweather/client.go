package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ngmaloney/pendulum/internal/models"
	"github.com/ngmaloney/pendulum/internal/observability"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

// maxBodySize bounds how much of a response is read
const maxBodySize = 1 << 20

// Client fetches current conditions from the OpenWeatherMap API.
// Temperatures are requested without a units parameter, so they arrive in Kelvin.
type Client struct {
	apiKey         string
	apiURL         string
	timeout        time.Duration
	httpClient     *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewClient creates a client with three attempts and exponential backoff.
func NewClient(apiKey, apiURL string, timeout time.Duration) (*Client, error) {
	return NewClientWithRetry(apiKey, apiURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewClientWithRetry creates a client with explicit retry settings.
func NewClientWithRetry(apiKey, apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &Client{
		apiKey:         apiKey,
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type currentResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Name string `json:"name"`
}

// Current returns the current conditions at lat/lon.
func (c *Client) Current(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return models.WeatherData{}, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		result, err := c.call(ctx, lat, lon)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return models.WeatherData{}, err
		}
	}

	return models.WeatherData{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *Client) call(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, lat, lon)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherData{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.WeatherData{}, &requestError{err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := errorForStatus(resp.StatusCode); err != nil {
		return models.WeatherData{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp currentResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherData{}, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Weather) == 0 {
		return models.WeatherData{}, fmt.Errorf("%w: response has no weather entries", ErrUpstreamFailure)
	}

	return models.WeatherData{
		Location:     apiResp.Name,
		Latitude:     lat,
		Longitude:    lon,
		TemperatureK: apiResp.Main.Temp,
		Conditions:   apiResp.Weather[0].Main,
		Description:  apiResp.Weather[0].Description,
		Timestamp:    time.Now(),
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, lat, lon float64) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// requestError is a transport-level failure (timeout, refused connection)
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "http request failed: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	var re *requestError
	return errors.As(err, &re) && !errors.Is(err, context.Canceled)
}

func errorForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey)
	case code == http.StatusNotFound:
		return ErrLocationNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}
