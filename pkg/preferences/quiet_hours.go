package preferences

import (
	"fmt"
	"time"
)

// QuietHours is a daily window, in the user's timezone, during which
// non-critical notifications are suppressed. Start is inclusive, End is
// exclusive. A window whose Start is after its End wraps past midnight.
type QuietHours struct {
	Enabled  bool   `json:"enabled" bson:"enabled" yaml:"enabled"`
	Start    string `json:"start,omitempty" bson:"start,omitempty" yaml:"start,omitempty"` // HH:MM
	End      string `json:"end,omitempty" bson:"end,omitempty" yaml:"end,omitempty"`       // HH:MM
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Active reports whether now falls inside the window. A malformed window is
// reported as inactive together with an error; an unknown timezone falls back
// to UTC and is reported as an error with the UTC answer.
func (q QuietHours) Active(now time.Time) (bool, error) {
	if !q.Enabled {
		return false, nil
	}

	start, err := ParseClock(q.Start)
	if err != nil {
		return false, err
	}
	end, err := ParseClock(q.End)
	if err != nil {
		return false, err
	}

	loc, locErr := q.location()
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	return InWindow(minute, start, end), locErr
}

func (q QuietHours) location() (*time.Location, error) {
	if q.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("%w: %q", ErrInvalidTimezone, q.Timezone)
	}
	return loc, nil
}

// InWindow reports whether minute-of-day m is within [start, end).
// start > end wraps midnight; start == end is an empty window.
func InWindow(m, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return m >= start && m < end
	default:
		return m >= start || m < end
	}
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
