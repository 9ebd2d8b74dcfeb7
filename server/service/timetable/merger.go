package timetable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/classledger/server/timecodec"
	"github.com/hrygo/classledger/store"
)

// Merge resolves the periods of a semester against the assignments of one
// weekday.
//
// Every period yields exactly one resolved slot, in chronological order: the
// first unclaimed assignment starting within MatchTolerance of the period,
// or a placeholder (break for break periods, free otherwise). No assignment
// fills two periods. Without periods the assignments are returned sorted by
// start time, unparseable starts last.
//
// Inputs are never modified; the result holds copies.
func Merge(weekday time.Weekday, periods []*store.Period, slots []*store.SlotAssignment) *DayTimeline {
	timeline := &DayTimeline{Weekday: weekday}

	valid, invalid := splitByStart(slots)

	if len(periods) == 0 {
		timeline.Slots = make([]*ResolvedSlot, 0, len(slots))
		for _, s := range append(valid, invalid...) {
			timeline.Slots = append(timeline.Slots, &ResolvedSlot{
				Slot:       s.Clone(),
				PeriodKind: s.Kind,
			})
		}
		timeline.Unmatched = cloneSlots(invalid)
		return timeline
	}

	sorted := make([]*store.Period, len(periods))
	copy(sorted, periods)
	store.SortPeriods(sorted)

	timeline.Conflicts = DetectConflicts(sorted)
	timeline.Slots = make([]*ResolvedSlot, 0, len(sorted))

	claimed := make([]bool, len(valid))
	cursor := 0
	for i, period := range sorted {
		start := timecodec.ToMinutes(period.StartTime)

		match := -1
		if start != timecodec.Invalid {
			for j := cursor; j < len(valid); j++ {
				m := timecodec.ToMinutes(valid[j].StartTime)
				if m < start-MatchTolerance {
					continue
				}
				if m <= start+MatchTolerance {
					match = j
				}
				break
			}
		}

		if match < 0 {
			timeline.Slots = append(timeline.Slots, placeholder(weekday, i, period))
			continue
		}

		claimed[match] = true
		cursor = match + 1

		slot := valid[match].Clone()
		if slot.Kind == "" {
			slot.Kind = period.Kind
		}
		timeline.Slots = append(timeline.Slots, &ResolvedSlot{
			Slot:       slot,
			PeriodID:   period.ID,
			PeriodKind: period.Kind,
		})
	}

	for j, s := range valid {
		if !claimed[j] {
			timeline.Unmatched = append(timeline.Unmatched, s.Clone())
		}
	}
	timeline.Unmatched = append(timeline.Unmatched, cloneSlots(invalid)...)
	return timeline
}

// RealAssignments returns the resolved slots that are real assignments.
func (d *DayTimeline) RealAssignments() []*store.SlotAssignment {
	list := make([]*store.SlotAssignment, 0, len(d.Slots))
	for _, r := range d.Slots {
		if !r.Placeholder {
			list = append(list, r.Slot)
		}
	}
	return list
}

// PlaceholderID returns the id Merge gives the placeholder of the index-th
// period on weekday.
func PlaceholderID(weekday time.Weekday, index int) string {
	return fmt.Sprintf("%s-%s-%d", placeholderPrefix, strings.ToLower(weekday.String()), index)
}

// IsPlaceholderID reports whether id was synthesized by Merge.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix+"-")
}

func placeholder(weekday time.Weekday, index int, period *store.Period) *ResolvedSlot {
	kind := store.KindFree
	if period.Kind == store.KindBreak {
		kind = store.KindBreak
	}
	return &ResolvedSlot{
		Slot: &store.SlotAssignment{
			ID:        PlaceholderID(weekday, index),
			Semester:  period.Semester,
			Weekday:   weekday,
			StartTime: period.StartTime,
			EndTime:   period.EndTime,
			Kind:      kind,
		},
		PeriodID:    period.ID,
		PeriodKind:  period.Kind,
		Placeholder: true,
	}
}

// splitByStart returns the slots with a parseable start sorted by minutes,
// and the others in input order.
func splitByStart(slots []*store.SlotAssignment) (valid, invalid []*store.SlotAssignment) {
	for _, s := range slots {
		if s == nil {
			continue
		}
		if timecodec.ToMinutes(s.StartTime) == timecodec.Invalid {
			invalid = append(invalid, s)
			continue
		}
		valid = append(valid, s)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return timecodec.ToMinutes(valid[i].StartTime) < timecodec.ToMinutes(valid[j].StartTime)
	})
	return valid, invalid
}

func cloneSlots(slots []*store.SlotAssignment) []*store.SlotAssignment {
	if len(slots) == 0 {
		return nil
	}
	out := make([]*store.SlotAssignment, len(slots))
	for i, s := range slots {
		out[i] = s.Clone()
	}
	return out
}
