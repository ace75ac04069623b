package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ngmaloney/pendulum/internal/database"
	"github.com/ngmaloney/pendulum/internal/platform"
)

// ClockStyle selects how the digital time is formatted.
type ClockStyle string

const (
	ClockAuto ClockStyle = "auto"
	Clock12h  ClockStyle = "12h"
	Clock24h  ClockStyle = "24h"
)

// Watch holds configuration for the watch process.
type Watch struct {
	Platform platform.Platform

	ClockStyle ClockStyle

	WeatherEnabled   bool
	CompanionURL     string
	CompanionTimeout time.Duration

	StorePath string

	LogPath  string
	LogLevel string
}

// Companion holds configuration for the companion service.
type Companion struct {
	ListenAddr string

	WeatherProvider   string // "openweather" or "noaa"
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration

	Latitude      float64
	Longitude     float64
	HasCoords     bool
	LocationQuery string
	GeocoderURL   string

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration
	LogLevel        string
}

type watchFile struct {
	Platform string `yaml:"platform"`

	Clock struct {
		Style string `yaml:"style"`
	} `yaml:"clock"`

	Weather struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"weather"`

	Companion struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"companion"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Log struct {
		Path  string `yaml:"path"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

type companionFile struct {
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	WeatherAPI struct {
		Provider         string `yaml:"provider"`
		URL              string `yaml:"url"`
		Key              string `yaml:"key"`
		Timeout          string `yaml:"timeout"`
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
	} `yaml:"weather_api"`

	Location struct {
		Latitude    *float64 `yaml:"lat"`
		Longitude   *float64 `yaml:"lon"`
		Query       string   `yaml:"query"`
		GeocoderURL string   `yaml:"geocoder_url"`
	} `yaml:"location"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	RateLimit struct {
		RPS   int `yaml:"rps"`
		Burst int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// readFile decodes the YAML file at path into out. An empty path leaves out
// untouched so that every field takes its default.
func readFile(path string, out interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// LoadWatch reads the watch configuration from path (optional) and applies
// defaults and environment overrides.
func LoadWatch(path string) (*Watch, error) {
	var fc watchFile
	if err := readFile(path, &fc); err != nil {
		return nil, err
	}

	name := fc.Platform
	if strings.TrimSpace(name) == "" {
		name = platform.Default
	}
	p, err := platform.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}

	cfg := &Watch{
		Platform:       p,
		WeatherEnabled: true,
	}

	cfg.ClockStyle = ClockStyle(strings.ToLower(strings.TrimSpace(fc.Clock.Style)))
	if cfg.ClockStyle == "" {
		cfg.ClockStyle = ClockAuto
	}
	switch cfg.ClockStyle {
	case ClockAuto, Clock12h, Clock24h:
	default:
		return nil, fmt.Errorf("clock.style must be auto, 12h or 24h, got %q", fc.Clock.Style)
	}

	if fc.Weather.Enabled != nil {
		cfg.WeatherEnabled = *fc.Weather.Enabled
	}

	cfg.CompanionURL = strings.TrimSpace(os.Getenv("PENDULUM_COMPANION_URL"))
	if cfg.CompanionURL == "" {
		cfg.CompanionURL = strings.TrimSpace(fc.Companion.URL)
	}
	if cfg.CompanionURL == "" {
		cfg.CompanionURL = "http://localhost:8080/appmessage"
	}
	cfg.CompanionTimeout = parseDuration(fc.Companion.Timeout, 30*time.Second)

	cfg.StorePath = fc.Store.Path
	if cfg.StorePath == "" {
		cfg.StorePath = database.DBPath()
	}

	cfg.LogPath = fc.Log.Path
	if cfg.LogPath == "" {
		cfg.LogPath = "pendulum.log"
	}
	cfg.LogLevel = logLevel(fc.Log.Level)

	return cfg, nil
}

// LoadCompanion reads the companion configuration from path (optional) and
// applies defaults and environment overrides. The API key comes from
// OPENWEATHER_API_KEY or weather_api.key.
func LoadCompanion(path string) (*Companion, error) {
	var fc companionFile
	if err := readFile(path, &fc); err != nil {
		return nil, err
	}

	cfg := &Companion{}

	cfg.ListenAddr = fc.Server.Listen
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.WeatherProvider = strings.TrimSpace(strings.ToLower(os.Getenv("WEATHER_PROVIDER")))
	if cfg.WeatherProvider == "" {
		cfg.WeatherProvider = strings.TrimSpace(strings.ToLower(fc.WeatherAPI.Provider))
	}
	if cfg.WeatherProvider == "" {
		cfg.WeatherProvider = "openweather"
	}

	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = strings.TrimSpace(fc.WeatherAPI.Key)
	}
	if cfg.WeatherAPIKey == "" && cfg.WeatherProvider == "openweather" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY required (set env or weather_api.key)")
	}
	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		switch cfg.WeatherProvider {
		case "noaa":
			cfg.WeatherAPIURL = "https://api.weather.gov"
		default:
			cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
		}
	}
	cfg.WeatherAPITimeout = parseDuration(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.RetryAttempts = fc.WeatherAPI.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.WeatherAPI.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.WeatherAPI.RetryMaxDelay, 2*time.Second)

	if fc.Location.Latitude != nil && fc.Location.Longitude != nil {
		cfg.Latitude = *fc.Location.Latitude
		cfg.Longitude = *fc.Location.Longitude
		cfg.HasCoords = true
	}
	cfg.LocationQuery = strings.TrimSpace(fc.Location.Query)
	cfg.GeocoderURL = fc.Location.GeocoderURL
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = "https://nominatim.openstreetmap.org/search"
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.RateLimit.RPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	cfg.RateLimitBurst = fc.RateLimit.Burst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)
	cfg.LogLevel = logLevel(fc.Log.Level)

	if err := validateCompanion(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logLevel prefers LOG_LEVEL over the file value.
func logLevel(fromFile string) string {
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(fromFile); v != "" {
		return v
	}
	return "info"
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func validateCompanion(cfg *Companion) error {
	switch cfg.WeatherProvider {
	case "openweather", "noaa":
	default:
		return fmt.Errorf("weather_api.provider must be openweather or noaa, got %q", cfg.WeatherProvider)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.HasCoords {
		if cfg.Latitude < -90 || cfg.Latitude > 90 || cfg.Longitude < -180 || cfg.Longitude > 180 {
			return fmt.Errorf("location out of range: %v,%v", cfg.Latitude, cfg.Longitude)
		}
	} else if cfg.LocationQuery == "" {
		return fmt.Errorf("location requires lat/lon or query")
	}
	return nil
}
