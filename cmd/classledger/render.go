package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hrygo/classledger/server/service/timetable"
	"github.com/hrygo/classledger/server/stats"
	"github.com/hrygo/classledger/store"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderTimeline(w io.Writer, day *timetable.DayTimeline, names map[string]string) {
	fmt.Fprintln(w, day.Weekday)
	tw := newTable(w)
	for _, r := range day.Slots {
		subject := names[r.Slot.SubjectID]
		if subject == "" {
			subject = r.Slot.SubjectID
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			r.Slot.StartTime, orDash(r.Slot.EndTime), r.Slot.Kind, orDash(subject), orDash(r.Slot.Classroom))
	}
	tw.Flush()
	for _, c := range day.Conflicts {
		fmt.Fprintln(w, "  warning:", c.String())
	}
	for _, s := range day.Unmatched {
		fmt.Fprintf(w, "  unmatched: %s at %s\n", orDash(names[s.SubjectID]), s.StartTime)
	}
}

func renderDay(w io.Writer, date string, classes []*store.DayClass) {
	fmt.Fprintln(w, date)
	if len(classes) == 0 {
		fmt.Fprintln(w, "  no classes")
		return
	}
	tw := newTable(w)
	for _, c := range classes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Slot.StartTime, c.SubjectName, c.Status, c.Note)
	}
	tw.Flush()
}

func renderMonth(w io.Writer, monthKey string, tallies []*stats.SubjectTally, names map[string]string, classes int, unmarked []string) {
	fmt.Fprintf(w, "%s: %d scheduled classes\n", monthKey, classes)
	tw := newTable(w)
	fmt.Fprintln(tw, "  SUBJECT\tATTENDED\tTOTAL\t%")
	for _, t := range tallies {
		name := names[t.SubjectID]
		if name == "" {
			name = t.SubjectID
		}
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%.1f\n", name, t.Attended, t.Total, t.Percentage())
	}
	tw.Flush()
	if len(unmarked) > 0 {
		fmt.Fprintln(w, "unmarked:")
		for _, d := range unmarked {
			fmt.Fprintln(w, "  "+d)
		}
	}
}

func renderStats(w io.Writer, threshold float64, summaries []*stats.SubjectSummary, overall *stats.OverallSummary) {
	tw := newTable(w)
	fmt.Fprintln(tw, "SUBJECT\tATTENDED\tTOTAL\t%\tNEEDED\tSKIPPABLE")
	for _, s := range summaries {
		flag := ""
		if s.BelowThreshold {
			flag = " !"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%d\t%.1f\t%d\t%d\n",
			s.Subject.Name, flag, s.Subject.AttendedClasses, s.Subject.TotalClasses,
			s.Percentage, s.ClassesNeeded, s.SafeToSkip)
	}
	fmt.Fprintf(tw, "overall\t%d\t%d\t%.1f\t%d\t%d\n",
		overall.Attended, overall.Total, overall.Percentage, overall.ClassesNeeded, overall.SafeToSkip)
	tw.Flush()
	fmt.Fprintf(w, "threshold %.0f%%\n", threshold*100)
}

func renderResults(w io.Writer, results []*store.SemesterResult) {
	for _, r := range results {
		fmt.Fprintf(w, "semester %d: sgpa %.2f over %.1f credits\n", r.Semester, r.SGPA, r.TotalCredits)
		tw := newTable(w)
		for _, e := range r.Subjects {
			fmt.Fprintf(tw, "  %s\t%s\t%.1f\t%s\t%d\n", e.SubjectName, orDash(e.SubjectCode), e.Credits, e.Grade, e.GradePoint)
		}
		tw.Flush()
	}
}

func renderCGPA(w io.Writer, s *stats.CGPASummary) {
	fmt.Fprintf(w, "cgpa %.2f (local %.2f", s.CGPA, s.Local)
	if s.Server != nil {
		fmt.Fprintf(w, ", reported %.2f", *s.Server)
	}
	fmt.Fprintln(w, ")")
	if !s.Agrees {
		fmt.Fprintln(w, "warning: reported cgpa differs from the local computation")
	}
}

func renderPeriods(w io.Writer, periods []*store.Period) {
	tw := newTable(w)
	for _, p := range periods {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.StartTime, p.EndTime, p.Kind)
	}
	tw.Flush()
}

func renderSubjects(w io.Writer, subjects []*store.Subject) {
	tw := newTable(w)
	for _, s := range subjects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\n", s.ID, orDash(s.Code), s.Name, s.AttendedClasses, s.TotalClasses)
	}
	tw.Flush()
}
