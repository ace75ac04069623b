package appmsg

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

// Dictionary keys of the weather protocol
const (
	KeyRequest     uint32 = 0
	KeyTemperature uint32 = 1
	KeyConditions  uint32 = 2
)

// ConditionsMaxLen is the longest conditions text kept, in bytes
const ConditionsMaxLen = 15

// NewWeatherRequest builds the outbound ping {REQUEST: 0}
func NewWeatherRequest() *Dictionary {
	return NewDictionary().WriteUint8(KeyRequest, 0)
}

// NewWeatherReply builds the companion's answer
func NewWeatherReply(temperatureK int16, conditions string) *Dictionary {
	return NewDictionary().
		WriteInt16(KeyTemperature, temperatureK).
		WriteCString(KeyConditions, TruncateConditions(conditions))
}

// IsWeatherRequest reports whether d carries the request marker
func IsWeatherRequest(d *Dictionary) bool {
	_, ok := d.Find(KeyRequest)
	return ok
}

// WeatherFields are the fields found in an inbound weather dictionary.
// Absent fields are nil.
type WeatherFields struct {
	TemperatureK *int
	Conditions   *string
}

// ParseWeather walks d in wire order. Unrecognised keys are logged and
// skipped so newer companions can add fields.
func ParseWeather(d *Dictionary, logger *zap.Logger) WeatherFields {
	if logger == nil {
		logger = zap.NewNop()
	}

	var f WeatherFields
	for _, t := range d.Tuples() {
		switch t.Key {
		case KeyTemperature:
			// read as int16 whatever width the sender used
			v := int(int16(t.Int()))
			f.TemperatureK = &v
		case KeyConditions:
			s := TruncateConditions(t.CString())
			f.Conditions = &s
		default:
			logger.Warn("unknown dictionary key", zap.Uint32("key", t.Key), zap.Stringer("type", t.Type))
		}
	}
	return f
}

// TruncateConditions cuts s to ConditionsMaxLen bytes without splitting a
// UTF-8 sequence
func TruncateConditions(s string) string {
	if len(s) <= ConditionsMaxLen {
		return s
	}
	cut := ConditionsMaxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
