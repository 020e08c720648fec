package session

import "time"

const (
	MinIdleTimeout     = 30 * time.Second
	MaxIdleTimeout     = 1200 * time.Second
	DefaultIdleTimeout = 600 * time.Second

	MinDisplayDuration     = 1 * time.Second
	MaxDisplayDuration     = 600 * time.Second
	DefaultDisplayDuration = 30 * time.Second
)

// ClampIdleTimeout forces d into the idle timeout range. Non-positive
// values select the default.
func ClampIdleTimeout(d time.Duration) time.Duration {
	return clamp(d, MinIdleTimeout, MaxIdleTimeout, DefaultIdleTimeout)
}

// ClampDisplayDuration forces d into the display duration range.
// Non-positive values select the default.
func ClampDisplayDuration(d time.Duration) time.Duration {
	return clamp(d, MinDisplayDuration, MaxDisplayDuration, DefaultDisplayDuration)
}

// ValidIdleTimeout reports whether d is inside the idle timeout range
func ValidIdleTimeout(d time.Duration) bool {
	return d >= MinIdleTimeout && d <= MaxIdleTimeout
}

// ValidDisplayDuration reports whether d is inside the display duration range
func ValidDisplayDuration(d time.Duration) bool {
	return d >= MinDisplayDuration && d <= MaxDisplayDuration
}

func clamp(d, lo, hi, def time.Duration) time.Duration {
	switch {
	case d <= 0:
		return def
	case d < lo:
		return lo
	case d > hi:
		return hi
	}
	return d
}
