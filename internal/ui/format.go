package ui

import (
	"fmt"
	"time"

	"github.com/ngmaloney/pendulum/internal/weather"
)

const (
	timeFieldLen        = 5
	temperatureFieldLen = 3
	celsiusOffset       = 273
)

// FormatTime renders the digital time, "15:04" or "03:04" with no AM/PM
func FormatTime(t time.Time, use24h bool) string {
	layout := "03:04"
	if use24h {
		layout = "15:04"
	}
	return truncate(t.Format(layout), timeFieldLen)
}

// FormatTemperature shows Kelvin as whole Celsius ("17C"), or "???" for the
// sentinel. Values wider than the field are cut.
func FormatTemperature(r weather.Reading) string {
	if !r.HasTemperature() {
		return "???"
	}
	return truncate(fmt.Sprintf("%dC", r.TemperatureK-celsiusOffset), temperatureFieldLen)
}

// FormatConditions returns the conditions text as stored, empty included
func FormatConditions(r weather.Reading) string {
	return r.Conditions
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
