package weather

import "time"

const (
	// UnknownTemperature is the sentinel for a missing temperature
	UnknownTemperature = -1

	// UnknownConditions is the sentinel for missing conditions text
	UnknownConditions = "Unknown"
)

// Reading is one weather observation as shown on the watch
type Reading struct {
	TemperatureK int
	Conditions   string
	FetchedAt    time.Time
}

// UnknownReading is delivered when no valid data could be obtained
func UnknownReading() Reading {
	return Reading{TemperatureK: UnknownTemperature, Conditions: UnknownConditions}
}

// HasTemperature reports whether the temperature is a real value
func (r Reading) HasTemperature() bool {
	return r.TemperatureK != UnknownTemperature
}

// State is where the manager is in its request cycle
type State int

const (
	StateNoData State = iota
	StateAwaitingResponse
	StateFresh
	StateStale
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateNoData:
		return "no_data"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateUnknown:
		return "unknown"
	}
	return "invalid"
}
