package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reserved time markers on the wire. Both must be preserved verbatim:
// EndOfDay denotes an interval that runs to midnight, NoInterval marks
// an unconfigured slot in a program table (minute resolution, no
// seconds field).
const (
	EndOfDay   = "23:59:59"
	NoInterval = "32:00"
)

// SecondsPerDay is one day in seconds, also the "nothing left today"
// sentinel returned by SecondsUntilNextTrigger.
const SecondsPerDay = 86400

// endOfDaySec is EndOfDay in seconds since midnight.
const endOfDaySec = 86399

// ToSeconds converts an "HH:MM:SS" time of day to seconds since
// midnight: ((H*60)+M)*60+S.
func ToSeconds(t string) (int, error) {
	parts := strings.Split(t, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed time %q", t)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed time %q", t)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed time %q", t)
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("malformed time %q", t)
	}
	return (h*60+m)*60 + s, nil
}

// FromSeconds converts seconds since midnight to "HH:MM:SS" with
// two-digit fields.
func FromSeconds(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec/60)%60, sec%60)
}

// Weekday maps a wall clock instant to the schedule's day numbering,
// Monday=0 through Sunday=6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DaySeconds returns the second of day 0-86399 for a wall clock instant.
func DaySeconds(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// NormalizeTime pads an edit-table time to "HH:MM:SS" with two-digit
// fields. The SQL ordering expressions slice the stored time at fixed
// offsets, so "6:30" must become "06:30:00" before it is persisted.
// Unparsable input passes through unchanged.
func NormalizeTime(t string) string {
	full := t
	if strings.Count(t, ":") == 1 {
		full = t + ":00"
	}
	sec, err := ToSeconds(full)
	if err != nil {
		return t
	}
	return FromSeconds(sec)
}
