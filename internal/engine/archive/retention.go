package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Retention bounds.
const (
	DefaultRetention = 30 * 24 * time.Hour
	MinRetention     = time.Hour
	MaxRetention     = 365 * 24 * time.Hour
)

// ErrInvalidRetention indicates a retention outside [MinRetention, MaxRetention].
var ErrInvalidRetention = fmt.Errorf("retention must be between %s and %s", MinRetention, MaxRetention)

// ParseRetention parses a retention period given as a Go duration ("72h"),
// a number of days ("30d") or integer seconds ("86400").
func ParseRetention(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid retention %q: %w", s, err)
		}
		d = time.Duration(days) * 24 * time.Hour
	default:
		if secs, err := strconv.Atoi(s); err == nil {
			d = time.Duration(secs) * time.Second
			break
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid retention %q: %w", s, err)
		}
		d = parsed
	}
	if d < MinRetention || d > MaxRetention {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidRetention, d)
	}
	return d, nil
}
