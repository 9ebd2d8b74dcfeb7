package stats

import (
	"sort"

	"github.com/hrygo/classledger/store"
)

// SubjectTally counts one subject's logs over a period.
type SubjectTally struct {
	SubjectID string
	ByStatus  map[store.Status]int
	// Total and Attended follow the counter rules of store.Status.
	Total    int
	Attended int
}

// Percentage returns the attended share of counted classes.
func (t *SubjectTally) Percentage() float64 {
	return Percentage(t.Attended, t.Total)
}

// MonthTally counts the logs of a month per subject, sorted by subject id.
func MonthTally(dateToLogs map[string][]*store.AttendanceLog) []*SubjectTally {
	bySubject := make(map[string]*SubjectTally)
	for _, logs := range dateToLogs {
		for _, l := range logs {
			if l == nil || l.Status.IsPending() {
				continue
			}
			t, ok := bySubject[l.SubjectID]
			if !ok {
				t = &SubjectTally{SubjectID: l.SubjectID, ByStatus: make(map[store.Status]int)}
				bySubject[l.SubjectID] = t
			}
			t.ByStatus[l.Status]++
			if l.Status.CountsTowardTotal() {
				t.Total++
			}
			if l.Status.CountsAsAttended() {
				t.Attended++
			}
		}
	}

	out := make([]*SubjectTally, 0, len(bySubject))
	for _, t := range bySubject {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}
