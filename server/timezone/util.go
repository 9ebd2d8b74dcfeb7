// Package timezone provides timezone and calendar-key utilities for the ledger.
//
// Attendance is keyed by ISO calendar day ("2006-01-02") and buffered by month
// ("2006-01"). This package owns both formats, resolves "today" in the
// configured zone, and handles month arithmetic across year boundaries.
package timezone

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar-day key format.
	DateLayout = "2006-01-02"
	// MonthLayout is the month key format.
	MonthLayout = "2006-01"
)

// UTC is the coordinated universal time timezone
var UTC = time.UTC

// ParseTimezone parses an IANA timezone identifier (e.g., "Asia/Kolkata").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// DateKey formats t as a calendar-day key in the given timezone.
func DateKey(t time.Time, tz *time.Location) string {
	if tz == nil {
		tz = UTC
	}
	return t.In(tz).Format(DateLayout)
}

// Today returns today's calendar-day key in the given timezone.
func Today(tz *time.Location) string {
	return DateKey(time.Now(), tz)
}

// ParseDate parses a calendar-day key. The returned time is midnight UTC.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// IsValidDate reports whether date is a well-formed calendar-day key.
func IsValidDate(date string) bool {
	_, err := ParseDate(date)
	return err == nil
}

// WeekdayOf returns the weekday of a calendar-day key.
func WeekdayOf(date string) (time.Weekday, error) {
	t, err := ParseDate(date)
	if err != nil {
		return time.Sunday, err
	}
	return t.Weekday(), nil
}

// MonthKey returns the month key of year and month.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// MonthOf returns the month key a calendar-day key belongs to.
func MonthOf(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return MonthKey(t.Year(), t.Month()), nil
}

// ParseMonth splits a month key into year and month.
func ParseMonth(monthKey string) (int, time.Month, error) {
	t, err := time.Parse(MonthLayout, monthKey)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", monthKey, err)
	}
	return t.Year(), t.Month(), nil
}

// AddMonths shifts a month key by n months, rolling over year boundaries.
func AddMonths(monthKey string, n int) (string, error) {
	year, month, err := ParseMonth(monthKey)
	if err != nil {
		return "", err
	}
	// Day 1 never overflows, so AddDate is safe here.
	t := time.Date(year, month, 1, 0, 0, 0, 0, UTC).AddDate(0, n, 0)
	return MonthKey(t.Year(), t.Month()), nil
}

// AdjacentMonths returns the months before and after monthKey.
// "2024-01" yields "2023-12" and "2024-02".
func AdjacentMonths(monthKey string) (prev, next string, err error) {
	if prev, err = AddMonths(monthKey, -1); err != nil {
		return "", "", err
	}
	if next, err = AddMonths(monthKey, 1); err != nil {
		return "", "", err
	}
	return prev, next, nil
}

// MonthBounds returns the first and last calendar days of a month, at
// midnight UTC.
func MonthBounds(monthKey string) (first, last time.Time, err error) {
	year, month, err := ParseMonth(monthKey)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	first = time.Date(year, month, 1, 0, 0, 0, 0, UTC)
	last = first.AddDate(0, 1, -1)
	return first, last, nil
}

// DaysOf lists every calendar-day key of a month in order.
func DaysOf(monthKey string) ([]string, error) {
	first, last, err := MonthBounds(monthKey)
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, last.Day())
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}
