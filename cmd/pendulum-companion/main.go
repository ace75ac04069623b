package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ngmaloney/pendulum/internal/cache"
	"github.com/ngmaloney/pendulum/internal/companion"
	"github.com/ngmaloney/pendulum/internal/config"
	"github.com/ngmaloney/pendulum/internal/geocoding"
	"github.com/ngmaloney/pendulum/internal/noaa"
	"github.com/ngmaloney/pendulum/internal/observability"
	"github.com/ngmaloney/pendulum/internal/openweather"
)

func main() {
	configPath := flag.String("config", "", "Path to the companion configuration file (YAML)")
	flag.Parse()

	cfg, err := config.LoadCompanion(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var source companion.WeatherSource
	switch cfg.WeatherProvider {
	case "noaa":
		source = noaa.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	default:
		weatherClient, err := openweather.NewClientWithRetry(
			cfg.WeatherAPIKey,
			cfg.WeatherAPIURL,
			cfg.WeatherAPITimeout,
			cfg.RetryAttempts,
			cfg.RetryBaseDelay,
			cfg.RetryMaxDelay,
		)
		if err != nil {
			logger.Fatal("weather client", zap.Error(err))
		}
		source = weatherClient
	}
	logger.Info("weather provider", zap.String("provider", cfg.WeatherProvider), zap.String("url", cfg.WeatherAPIURL))

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	var geocoder companion.Geocoder
	if !cfg.HasCoords {
		geocoder = geocoding.NewGeocoder(cfg.GeocoderURL)
		logger.Info("location from geocoder", zap.String("query", cfg.LocationQuery))
	}
	location := companion.Location{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		HasCoords: cfg.HasCoords,
		Query:     cfg.LocationQuery,
	}
	weatherService := companion.NewWeatherService(source, geocoder, cacheSvc, cfg.CacheBackend, cfg.CacheTTL, location, logger)

	var cachePing func() error
	if memcacheCloser != nil {
		cachePing = memcacheCloser.Ping
	}
	handler := companion.NewHandler(weatherService, logger, cachePing)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := companion.NewRouter(handler, limiter, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WeatherAPITimeout*time.Duration(cfg.RetryAttempts) + 10*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
