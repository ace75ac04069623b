package models

import (
	"math"
	"time"
)

// WeatherData is a current-conditions observation as the companion caches it
type WeatherData struct {
	Location     string    `json:"location"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lon"`
	TemperatureK float64   `json:"temperatureK"` // Kelvin, as OpenWeatherMap reports without units
	Conditions   string    `json:"conditions"`   // short group, e.g. "Clouds"
	Description  string    `json:"description"`  // e.g. "broken clouds"
	Timestamp    time.Time `json:"timestamp"`
}

// WholeKelvin truncates the temperature toward zero and clamps it to the
// int16 range carried by the watch dictionary.
func (w WeatherData) WholeKelvin() int16 {
	t := math.Trunc(w.TemperatureK)
	switch {
	case math.IsNaN(t):
		return 0
	case t > math.MaxInt16:
		return math.MaxInt16
	case t < math.MinInt16:
		return math.MinInt16
	}
	return int16(t)
}

// Coordinates is a resolved position
type Coordinates struct {
	Latitude  float64
	Longitude float64
	Name      string
}
