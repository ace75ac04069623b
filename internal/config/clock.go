package config

import "strings"

// locales that conventionally show a 12-hour clock
var twelveHourLocales = []string{"en_US", "en_CA", "en_AU", "en_NZ", "en_PH", "en_IN"}

// Use24Hour resolves the style against the environment. Auto consults
// LC_ALL, LC_TIME and LANG in that order and defaults to 24-hour.
func (s ClockStyle) Use24Hour(getenv func(string) string) bool {
	switch s {
	case Clock12h:
		return false
	case Clock24h:
		return true
	}
	for _, k := range []string{"LC_ALL", "LC_TIME", "LANG"} {
		v := getenv(k)
		if v == "" {
			continue
		}
		for _, prefix := range twelveHourLocales {
			if strings.HasPrefix(v, prefix) {
				return false
			}
		}
		return true
	}
	return true
}
