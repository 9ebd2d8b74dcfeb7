// Package scheduler expands the weekly timetable into dated class
// occurrences.
//
// Each weekday that carries classes becomes a weekly recurrence rule. The
// rule is expanded over a month with excluded dates (holidays, cancelled
// days) applied as EXDATEs.
package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/server/timezone"
	"github.com/hrygo/classledger/store"
)

// byDay maps time.Weekday to its RRULE BYDAY code.
var byDay = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Occurrence is one class slot on a concrete date.
type Occurrence struct {
	Date string
	Slot *store.SlotAssignment
}

// Options tunes an expansion.
type Options struct {
	// Exclude lists YYYY-MM-DD dates with no classes.
	Exclude []string
}

// WeeklyRule returns the RRULE string of a weekly class on weekday.
func WeeklyRule(weekday time.Weekday) string {
	return fmt.Sprintf("FREQ=WEEKLY;INTERVAL=1;BYDAY=%s", byDay[weekday])
}

// ClassDates returns every class occurrence of the timetable within a month,
// ordered by date and then by start time. Only class slots with a subject
// produce occurrences.
func ClassDates(tt *store.Timetable, monthKey string, opts Options) ([]Occurrence, error) {
	first, last, err := timezone.MonthBounds(monthKey)
	if err != nil {
		return nil, ledgererr.Validation("malformed month %q", monthKey)
	}
	excluded := make([]time.Time, 0, len(opts.Exclude))
	for _, d := range opts.Exclude {
		t, err := timezone.ParseDate(d)
		if err != nil {
			return nil, ledgererr.Validation("malformed excluded date %q", d)
		}
		excluded = append(excluded, t)
	}
	if tt == nil {
		return nil, nil
	}

	var out []Occurrence
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		classes := classSlots(tt.Day(wd))
		if len(classes) == 0 {
			continue
		}
		dates, err := expand(wd, first, last, excluded)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			date := d.Format(timezone.DateLayout)
			for _, s := range classes {
				out = append(out, Occurrence{Date: date, Slot: s.Clone()})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out, nil
}

// UnmarkedDates returns the dates, up to and including through, on which at
// least one scheduled subject has no log. An empty through means no bound.
func UnmarkedDates(occurrences []Occurrence, dateToLogs map[string][]*store.AttendanceLog, through string) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, o := range occurrences {
		if seen[o.Date] || (through != "" && o.Date > through) {
			continue
		}
		if !hasLog(dateToLogs[o.Date], o.Slot.SubjectID) {
			seen[o.Date] = true
			dates = append(dates, o.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// expand returns the midnight UTC dates of weekday between first and last,
// inclusive, minus excluded.
func expand(weekday time.Weekday, first, last time.Time, excluded []time.Time) ([]time.Time, error) {
	r, err := rrule.StrToRRule(WeeklyRule(weekday))
	if err != nil {
		return nil, fmt.Errorf("parse weekly rule for %s: %w", weekday, err)
	}
	r.DTStart(first)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range excluded {
		set.ExDate(ex)
	}
	return set.Between(first, last, true), nil
}

func classSlots(slots []*store.SlotAssignment) []*store.SlotAssignment {
	out := make([]*store.SlotAssignment, 0, len(slots))
	for _, s := range slots {
		if s != nil && s.Kind == store.KindClass && strings.TrimSpace(s.SubjectID) != "" {
			out = append(out, s)
		}
	}
	store.SortSlots(out)
	return out
}

func hasLog(logs []*store.AttendanceLog, subjectID string) bool {
	for _, l := range logs {
		if l.SubjectID == subjectID && !l.Status.IsPending() {
			return true
		}
	}
	return false
}
