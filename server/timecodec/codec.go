// Package timecodec converts the free-form 12-hour time strings used by the
// timetable ("9:00 AM", "09:00am", "13:30", " 1 : 05 pm ") into minute-of-day
// integers and back.
//
// All equality and ordering between times goes through ToMinutes; the string
// forms are never compared directly.
package timecodec

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
)

const (
	// Invalid is returned by ToMinutes for text that is not a time of day.
	Invalid = -1

	// MinutesPerDay bounds the valid range [0, MinutesPerDay).
	MinutesPerDay = 24 * 60
)

// ToMinutes parses text into a minute of day in [0, 1439], or Invalid.
//
// Whitespace is ignored and the meridiem marker is case-insensitive. A PM hour
// below 12 is shifted by 12, 12 AM maps to hour 0, and a missing minute part
// defaults to 0. Hours above 23 or minutes above 59 are rejected.
func ToMinutes(text string) int {
	s := strings.ToLower(strings.Join(strings.Fields(text), ""))
	if s == "" {
		return Invalid
	}

	pm := strings.Contains(s, "pm")
	am := !pm && strings.Contains(s, "am")

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ':' {
			return r
		}
		return -1
	}, s)

	parts := strings.Split(cleaned, ":")
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Invalid
	}

	minute := 0
	if len(parts) > 1 && parts[1] != "" {
		minute, err = strconv.Atoi(parts[1])
		if err != nil {
			return Invalid
		}
	}

	if pm && hour < 12 {
		hour += 12
	}
	if am && hour == 12 {
		hour = 0
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Invalid
	}
	return hour*60 + minute
}

// Format renders a minute of day as "hh:mm AM/PM". Values outside
// [0, 1439] yield an empty string.
func Format(minutes int) string {
	if minutes < 0 || minutes >= MinutesPerDay {
		return ""
	}

	hour := minutes / 60
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour, minutes%60, meridiem)
}

// Parse is ToMinutes with a validation error instead of the Invalid sentinel.
func Parse(text string) (int, error) {
	m := ToMinutes(text)
	if m == Invalid {
		return Invalid, ledgererr.Validation("malformed time %q", text)
	}
	return m, nil
}

// Normalize parses text and re-renders it in canonical "hh:mm AM/PM" form.
func Normalize(text string) (string, error) {
	m, err := Parse(text)
	if err != nil {
		return "", err
	}
	return Format(m), nil
}

// Compare orders two time strings by minute of day. Invalid strings order
// before every valid time.
func Compare(a, b string) int {
	return cmp.Compare(ToMinutes(a), ToMinutes(b))
}

// Within reports whether a and b parse and lie at most tolerance minutes apart.
func Within(a, b string, tolerance int) bool {
	ma, mb := ToMinutes(a), ToMinutes(b)
	if ma == Invalid || mb == Invalid {
		return false
	}
	d := ma - mb
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
