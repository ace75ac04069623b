package companion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ngmaloney/pendulum/internal/appmsg"
	"github.com/ngmaloney/pendulum/internal/models"
	"github.com/ngmaloney/pendulum/internal/noaa"
	"github.com/ngmaloney/pendulum/internal/observability"
	"github.com/ngmaloney/pendulum/internal/openweather"
)

// maxDictionaryBytes matches the watch's outbox
const maxDictionaryBytes = appmsg.OutboxSizeMinimum

// Weather is what the handler needs from the weather service
type Weather interface {
	Current(ctx context.Context) (models.WeatherData, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather   Weather
	logger    *zap.Logger
	cachePing func() error
	started   time.Time
}

// NewHandler returns a new Handler. cachePing may be nil.
func NewHandler(weather Weather, logger *zap.Logger, cachePing func() error) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:   weather,
		logger:    logger,
		cachePing: cachePing,
		started:   time.Now(),
	}
}

// PostAppMessage handles POST /appmessage: one dictionary from the watch in,
// at most one dictionary out. A dictionary that is not a weather request is
// acknowledged with 204 and no reply.
func (h *Handler) PostAppMessage(w http.ResponseWriter, r *http.Request) {
	log := LoggerFrom(r.Context(), h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDictionaryBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "READ_FAILED", "could not read body")
		return
	}
	if len(body) > maxDictionaryBytes {
		observability.AppMessagesTotal.WithLabelValues("malformed").Inc()
		writeError(w, r, http.StatusRequestEntityTooLarge, "TOO_LARGE", "dictionary exceeds outbox size")
		return
	}

	d, err := appmsg.UnmarshalDictionary(body)
	if err != nil {
		observability.AppMessagesTotal.WithLabelValues("malformed").Inc()
		log.Warn("decoding dictionary", zap.Error(err))
		writeError(w, r, http.StatusBadRequest, "MALFORMED_DICTIONARY", err.Error())
		return
	}

	if !appmsg.IsWeatherRequest(d) {
		observability.AppMessagesTotal.WithLabelValues("unsupported").Inc()
		log.Info("ignoring dictionary without request key", zap.Int("tuples", d.Len()))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	observability.AppMessagesTotal.WithLabelValues("request").Inc()

	data, err := h.weather.Current(r.Context())
	if err != nil {
		log.Error("weather lookup failed", zap.Error(err))
		status, code := http.StatusBadGateway, "UPSTREAM_ERROR"
		if errors.Is(err, openweather.ErrRateLimited) || errors.Is(err, noaa.ErrRateLimited) {
			status, code = http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMITED"
		}
		writeError(w, r, status, code, "weather unavailable")
		return
	}

	reply, err := appmsg.NewWeatherReply(data.WholeKelvin(), data.Conditions).MarshalBinary()
	if err != nil {
		log.Error("encoding reply", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "ENCODE_FAILED", "could not encode reply")
		return
	}

	log.Info("weather reply",
		zap.Float64("temperature_k", data.TemperatureK),
		zap.String("conditions", data.Conditions),
		zap.String("location", data.Location))
	w.Header().Set("Content-Type", appmsg.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	checks := map[string]string{}
	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			checks["cache"] = err.Error()
		} else {
			checks["cache"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"checks": checks,
	})
}

// NewRouter builds the companion routes. limiter may be nil.
func NewRouter(h *Handler, limiter *rate.Limiter, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(TransactionIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	appRouter := router.PathPrefix("/appmessage").Subrouter()
	appRouter.Use(RateLimitMiddleware(limiter))
	appRouter.HandleFunc("", h.PostAppMessage).Methods(http.MethodPost)
	return router
}
