package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ngmaloney/pendulum/internal/models"
	"github.com/ngmaloney/pendulum/internal/observability"
)

const (
	DefaultURL = "https://nominatim.openstreetmap.org/search"
	userAgent  = "PendulumCompanion/1.0" // Required by Nominatim ToS
)

var zipcodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Geocoder converts place queries to coordinates using Nominatim.
// Results are remembered for the life of the process.
type Geocoder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu       sync.Mutex
	resolved map[string]models.Coordinates
}

// NewGeocoder creates a geocoder against baseURL (DefaultURL when empty),
// paced at one request per second as Nominatim requires.
func NewGeocoder(baseURL string) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Geocoder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		resolved: make(map[string]models.Coordinates),
	}
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode converts a query (zipcode, "City, ST", free text) to coordinates
func (g *Geocoder) Geocode(ctx context.Context, query string) (models.Coordinates, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Coordinates{}, fmt.Errorf("query cannot be empty")
	}

	g.mu.Lock()
	if loc, ok := g.resolved[strings.ToLower(query)]; ok {
		g.mu.Unlock()
		return loc, nil
	}
	g.mu.Unlock()

	loc, err := g.lookup(ctx, query)
	if err != nil {
		observability.GeocodeCallsTotal.WithLabelValues("error").Inc()
		return models.Coordinates{}, err
	}
	observability.GeocodeCallsTotal.WithLabelValues("success").Inc()

	g.mu.Lock()
	g.resolved[strings.ToLower(query)] = loc
	g.mu.Unlock()
	return loc, nil
}

func (g *Geocoder) lookup(ctx context.Context, query string) (models.Coordinates, error) {
	params := url.Values{}
	params.Add("format", "json")
	params.Add("limit", "1")
	if isZipcode(query) {
		params.Add("postalcode", query)
		params.Add("countrycodes", "us")
	} else {
		params.Add("q", query)
	}
	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())

	if err := g.limiter.Wait(ctx); err != nil {
		return models.Coordinates{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("nominatim API returned status %d", resp.StatusCode)
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinates{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, fmt.Errorf("no results found for '%s'", query)
	}

	result := results[0]
	lat, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("parsing latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("parsing longitude: %w", err)
	}

	return models.Coordinates{
		Latitude:  lat,
		Longitude: lon,
		Name:      result.DisplayName,
	}, nil
}

// isZipcode checks if a string looks like a US zipcode
func isZipcode(s string) bool {
	return zipcodePattern.MatchString(s)
}
