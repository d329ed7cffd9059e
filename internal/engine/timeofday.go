package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimeOfDay is a number of minutes since midnight. Valid values are in [0, 1440).
type TimeOfDay int

const (
	MinutesPerDay = 24 * 60
	DateLayout    = "2006-01-02"
)

var timePattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)

// ParseTime accepts "HH:MM" or "HH:MM:SS". Seconds are validated and dropped.
func ParseTime(s string) (TimeOfDay, error) {
	if !timePattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}

	hour, _ := strconv.Atoi(s[0:2])
	minute, _ := strconv.Atoi(s[3:5])
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrMalformedTime, s)
	}
	if len(s) == 8 {
		if second, _ := strconv.Atoi(s[6:8]); second > 59 {
			return 0, fmt.Errorf("%w: %q out of range", ErrMalformedTime, s)
		}
	}

	return TimeOfDay(hour*60 + minute), nil
}

// FormatTime renders t as zero-padded "HH:MM".
func FormatTime(t TimeOfDay) string {
	sign := ""
	if t < 0 {
		sign = "-"
		t = -t
	}
	return fmt.Sprintf("%s%02d:%02d", sign, int(t)/60, int(t)%60)
}

// AddMinutes is plain arithmetic: the result may leave [0, 1440) and it is up to
// the caller's range checks to reject it.
func AddMinutes(t TimeOfDay, delta int) TimeOfDay {
	return t + TimeOfDay(delta)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

func (t TimeOfDay) String() string {
	return FormatTime(t)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(FormatTime(t)), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTime(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MinuteOfDay returns the wall-clock minute of ts in its own location.
func MinuteOfDay(ts time.Time) TimeOfDay {
	return TimeOfDay(ts.Hour()*60 + ts.Minute())
}

// ParseDate parses a yyyy-mm-dd calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return d, nil
}

// Today returns the calendar date of now (in now's location) as UTC midnight,
// comparable with ParseDate results.
func Today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// NowIfToday returns the current minute of day when date is the same calendar
// day as now, and nil otherwise.
func NowIfToday(date string, now time.Time) *TimeOfDay {
	day, err := ParseDate(date)
	if err != nil || !day.Equal(Today(now)) {
		return nil
	}
	m := MinuteOfDay(now)
	return &m
}
