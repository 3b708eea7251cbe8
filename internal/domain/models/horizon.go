package models

import "time"

// Horizon is the time window a prediction refers to.
type Horizon string

const (
	Horizon15m Horizon = "15m"
	Horizon1h  Horizon = "1h"
	Horizon4h  Horizon = "4h"
	Horizon1d  Horizon = "1d"
)

// IsValidHorizon returns true if h is a supported horizon.
func IsValidHorizon(h Horizon) bool {
	switch h {
	case Horizon15m, Horizon1h, Horizon4h, Horizon1d:
		return true
	default:
		return false
	}
}

// NormalizeHorizon converts a raw string to a valid horizon, or "" when the
// caller should let the engine derive one.
func NormalizeHorizon(s string) Horizon {
	h := Horizon(s)
	if IsValidHorizon(h) {
		return h
	}
	return ""
}

// Duration returns the wall-clock span of the horizon.
func (h Horizon) Duration() time.Duration {
	switch h {
	case Horizon15m:
		return 15 * time.Minute
	case Horizon4h:
		return 4 * time.Hour
	case Horizon1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
