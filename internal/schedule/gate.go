// Package schedule decides whether the current instant qualifies for a
// subscriber's scheduled briefing.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"briefing_agent/internal/model"
)

// DefaultTolerance is the window around the desired send time within which a
// scheduled run is considered due.
const DefaultTolerance = 5 * time.Minute

// Gate compares the subscriber's local wall-clock time against their desired
// send time. Callers invoke it once per trigger firing; the Gate itself does
// not de-duplicate "due" signals.
type Gate struct {
	tolerance time.Duration
}

// New creates a Gate with the given tolerance window. A non-positive
// tolerance falls back to DefaultTolerance.
func New(tolerance time.Duration) *Gate {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Gate{tolerance: tolerance}
}

// IsDue reports whether nowUTC falls within the tolerance window around the
// subscriber's send time in their own timezone.
func (g *Gate) IsDue(prefs model.UserPreferences, nowUTC time.Time) (bool, error) {
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", prefs.Timezone, err)
	}

	hour, minute, err := ParseSendTime(prefs.SendTime)
	if err != nil {
		return false, err
	}

	local := nowUTC.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	diff := local.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= g.tolerance, nil
}

// ParseSendTime parses a wall-clock "HH:MM" string.
func ParseSendTime(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid send time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in send time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in send time %q", s)
	}
	return hour, minute, nil
}
