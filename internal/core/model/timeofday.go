package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format stored on every record.
	DateLayout = "2006-01-02"
	// TimeLayout is the 12-hour clock format stored on every record.
	TimeLayout = "3:04:05 PM"
)

var timeOfDayLayouts = []string{
	TimeLayout,
	"3:04 PM",
	"03:04:05 PM",
	"03:04 PM",
	"15:04:05",
	"15:04",
}

// Date is a tenant-local calendar date in YYYY-MM-DD form. Lexical order is
// chronological order.
type Date string

// DateOf renders t's calendar date in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

func (d Date) String() string {
	return string(d)
}

// TimeOfDay is a tenant-local wall clock reading such as "9:15:00 AM".
type TimeOfDay string

// TimeOf renders t's wall clock in t's location.
func TimeOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Format(TimeLayout))
}

// ParseTimeOfDay accepts 12-hour ("7:00 PM", "7:00:00 PM") and 24-hour
// ("19:00", "19:00:00") forms and normalizes them to TimeLayout.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOf(t), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", s)
}

// MustParseTimeOfDay is ParseTimeOfDay for constants and tests.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Seconds returns the number of seconds since midnight, or -1 when the value
// cannot be parsed.
func (t TimeOfDay) Seconds() int {
	for _, layout := range timeOfDayLayouts {
		if p, err := time.Parse(layout, string(t)); err == nil {
			return p.Hour()*3600 + p.Minute()*60 + p.Second()
		}
	}
	return -1
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Seconds() < o.Seconds()
}

func (t TimeOfDay) String() string {
	return string(t)
}
