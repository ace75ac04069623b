package companion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ngmaloney/pendulum/internal/cache"
	"github.com/ngmaloney/pendulum/internal/models"
	"github.com/ngmaloney/pendulum/internal/observability"
)

// WeatherSource fetches current conditions at a position
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (models.WeatherData, error)
}

// Geocoder resolves a place query to a position
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Coordinates, error)
}

// Location is where the companion reports weather for: fixed coordinates,
// or a query resolved through a Geocoder on first use.
type Location struct {
	Latitude  float64
	Longitude float64
	HasCoords bool
	Query     string
}

// WeatherService answers watch weather requests through a cache
type WeatherService struct {
	source    WeatherSource
	geocoder  Geocoder
	cache     cache.Cache
	cacheType string
	ttl       time.Duration
	location  Location
	logger    *zap.Logger
}

// NewWeatherService wires the service. geocoder may be nil when location has coordinates.
func NewWeatherService(source WeatherSource, geocoder Geocoder, c cache.Cache, cacheType string, ttl time.Duration, location Location, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		source:    source,
		geocoder:  geocoder,
		cache:     c,
		cacheType: cacheType,
		ttl:       ttl,
		location:  location,
		logger:    logger,
	}
}

// position returns the configured coordinates, geocoding the query if needed
func (s *WeatherService) position(ctx context.Context) (models.Coordinates, error) {
	if s.location.HasCoords {
		return models.Coordinates{Latitude: s.location.Latitude, Longitude: s.location.Longitude}, nil
	}
	if s.geocoder == nil {
		return models.Coordinates{}, fmt.Errorf("no coordinates and no geocoder for %q", s.location.Query)
	}
	pos, err := s.geocoder.Geocode(ctx, s.location.Query)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("resolving location: %w", err)
	}
	return pos, nil
}

// Current returns current conditions for the configured location
func (s *WeatherService) Current(ctx context.Context) (models.WeatherData, error) {
	pos, err := s.position(ctx)
	if err != nil {
		return models.WeatherData{}, err
	}

	key := cacheKey(pos)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(s.cacheType).Inc()
		s.logger.Debug("cache hit", zap.String("key", key))
		return data, nil
	}

	data, err := s.source.Current(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("fetching weather: %w", err)
	}
	if data.Location == "" {
		data.Location = pos.Name
	}

	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

// positions closer than ~1km share a cache entry
func cacheKey(pos models.Coordinates) string {
	return strconv.FormatFloat(pos.Latitude, 'f', 2, 64) + "," + strconv.FormatFloat(pos.Longitude, 'f', 2, 64)
}
