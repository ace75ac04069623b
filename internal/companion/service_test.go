package companion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngmaloney/pendulum/internal/cache"
	"github.com/ngmaloney/pendulum/internal/models"
)

type fakeSource struct {
	data  models.WeatherData
	err   error
	calls int
	lat   float64
	lon   float64
}

func (f *fakeSource) Current(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	f.calls++
	f.lat, f.lon = lat, lon
	return f.data, f.err
}

type fakeGeocoder struct {
	pos   models.Coordinates
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (models.Coordinates, error) {
	f.calls++
	return f.pos, f.err
}

func TestWeatherService_CachesByPosition(t *testing.T) {
	src := &fakeSource{data: models.WeatherData{TemperatureK: 290, Conditions: "Clear"}}
	svc := NewWeatherService(src, nil, cache.NewInMemoryCache(), "in_memory", time.Minute,
		Location{Latitude: 42.3601, Longitude: -71.0589, HasCoords: true}, nil)

	for i := 0; i < 3; i++ {
		got, err := svc.Current(context.Background())
		if err != nil {
			t.Fatalf("Current() error = %v", err)
		}
		if got.TemperatureK != 290 || got.Conditions != "Clear" {
			t.Errorf("Current() = %+v", got)
		}
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
	if src.lat != 42.3601 || src.lon != -71.0589 {
		t.Errorf("source position = %v,%v", src.lat, src.lon)
	}
}

func TestWeatherService_GeocodesQuery(t *testing.T) {
	src := &fakeSource{data: models.WeatherData{TemperatureK: 280, Conditions: "Rain"}}
	geo := &fakeGeocoder{pos: models.Coordinates{Latitude: 41.68, Longitude: -69.96, Name: "Chatham"}}
	svc := NewWeatherService(src, geo, cache.NewInMemoryCache(), "in_memory", time.Minute,
		Location{Query: "Chatham, MA"}, nil)

	got, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got.Location != "Chatham" {
		t.Errorf("Location = %q, want geocoded name", got.Location)
	}
	if src.lat != 41.68 || src.lon != -69.96 {
		t.Errorf("source position = %v,%v", src.lat, src.lon)
	}
}

func TestWeatherService_Errors(t *testing.T) {
	upstream := errors.New("boom")

	svc := NewWeatherService(&fakeSource{err: upstream}, nil, cache.NewInMemoryCache(), "in_memory", time.Minute,
		Location{HasCoords: true}, nil)
	if _, err := svc.Current(context.Background()); !errors.Is(err, upstream) {
		t.Errorf("Current() error = %v, want wrapped upstream error", err)
	}

	geo := &fakeGeocoder{err: errors.New("no results")}
	svc = NewWeatherService(&fakeSource{}, geo, cache.NewInMemoryCache(), "in_memory", time.Minute,
		Location{Query: "Atlantis"}, nil)
	if _, err := svc.Current(context.Background()); err == nil {
		t.Error("Current() with failing geocoder error = nil")
	}

	svc = NewWeatherService(&fakeSource{}, nil, cache.NewInMemoryCache(), "in_memory", time.Minute,
		Location{Query: "Atlantis"}, nil)
	if _, err := svc.Current(context.Background()); err == nil {
		t.Error("Current() without geocoder error = nil")
	}
}

func TestCacheKey(t *testing.T) {
	if got := cacheKey(models.Coordinates{Latitude: 42.3601, Longitude: -71.0589}); got != "42.36,-71.06" {
		t.Errorf("cacheKey() = %q", got)
	}
}
