package timetable

import (
	"fmt"
	"strings"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/server/timecodec"
	"github.com/hrygo/classledger/store"
)

// DetectConflicts returns every period whose start lies within
// MatchTolerance of the previous period's start. periods must be sorted.
func DetectConflicts(periods []*store.Period) []StructureConflict {
	var conflicts []StructureConflict
	for i := 1; i < len(periods); i++ {
		prev := timecodec.ToMinutes(periods[i-1].StartTime)
		cur := timecodec.ToMinutes(periods[i].StartTime)
		if prev == timecodec.Invalid || cur == timecodec.Invalid {
			continue
		}
		if gap := cur - prev; gap <= MatchTolerance {
			conflicts = append(conflicts, StructureConflict{
				PeriodID:      periods[i].ID,
				ConflictsWith: periods[i-1].ID,
				StartTime:     periods[i].StartTime,
				Gap:           gap,
			})
		}
	}
	return conflicts
}

// ValidateStructure checks a period list and returns it sorted, with times
// normalized and empty kinds defaulted to class. The input is not modified.
//
// Unparseable times, non-positive durations, unknown kinds and overlaps are
// validation errors. A pair of periods starting within MatchTolerance is not:
// it is returned as a conflict.
func ValidateStructure(periods []*store.Period) ([]*store.Period, []StructureConflict, error) {
	sorted := make([]*store.Period, 0, len(periods))
	for i, p := range periods {
		if p == nil {
			return nil, nil, ledgererr.Validation("period %d is empty", i)
		}
		n := p.Clone()
		start, err := timecodec.Parse(n.StartTime)
		if err != nil {
			return nil, nil, err
		}
		end, err := timecodec.Parse(n.EndTime)
		if err != nil {
			return nil, nil, err
		}
		if end <= start {
			return nil, nil, ledgererr.Validation("period %s ends at %s, not after its start %s",
				periodLabel(n, i), n.EndTime, n.StartTime)
		}
		if n.Kind == "" {
			n.Kind = store.KindClass
		}
		if !n.Kind.ValidPeriodKind() {
			return nil, nil, ledgererr.Validation("period %s has invalid kind %q", periodLabel(n, i), n.Kind)
		}
		n.StartTime, n.EndTime = timecodec.Format(start), timecodec.Format(end)
		sorted = append(sorted, n)
	}
	store.SortPeriods(sorted)

	conflicts := DetectConflicts(sorted)
	conflicting := make(map[int]bool, len(conflicts))
	for i := 1; i < len(sorted); i++ {
		if timecodec.ToMinutes(sorted[i].StartTime)-timecodec.ToMinutes(sorted[i-1].StartTime) <= MatchTolerance {
			conflicting[i] = true
		}
	}

	for i := 1; i < len(sorted); i++ {
		if conflicting[i] {
			continue
		}
		prevEnd := timecodec.ToMinutes(sorted[i-1].EndTime)
		if timecodec.ToMinutes(sorted[i].StartTime) < prevEnd {
			return nil, nil, ledgererr.Validation("period starting %s overlaps the period ending %s",
				sorted[i].StartTime, sorted[i-1].EndTime)
		}
	}
	return sorted, conflicts, nil
}

// ValidateSlot checks a slot assignment. Class slots need a subject; other
// kinds must not carry one.
func ValidateSlot(slot *store.SlotAssignment) error {
	if slot == nil {
		return ledgererr.Validation("slot is empty")
	}
	if slot.Weekday < 0 || slot.Weekday > 6 {
		return ledgererr.Validation("invalid weekday %d", slot.Weekday)
	}
	start, err := timecodec.Parse(slot.StartTime)
	if err != nil {
		return err
	}
	if strings.TrimSpace(slot.EndTime) != "" {
		end, err := timecodec.Parse(slot.EndTime)
		if err != nil {
			return err
		}
		if end <= start {
			return ledgererr.Validation("slot ends at %s, not after its start %s", slot.EndTime, slot.StartTime)
		}
	}
	if !slot.Kind.Valid() {
		return ledgererr.Validation("invalid slot kind %q", slot.Kind)
	}
	if slot.Kind == store.KindClass && slot.SubjectID == "" {
		return ledgererr.Validation("class slot at %s has no subject", slot.StartTime)
	}
	if slot.Kind != store.KindClass && slot.SubjectID != "" {
		return ledgererr.Validation("%s slot at %s must not carry a subject", slot.Kind, slot.StartTime)
	}
	return nil
}

// ConflictsError wraps conflicts in a structure-conflict error, or returns
// nil when there are none.
func ConflictsError(conflicts []StructureConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, c.String())
	}
	return ledgererr.StructureConflict(strings.Join(parts, "; ")).
		WithContext("count", len(conflicts))
}

func (c StructureConflict) String() string {
	return fmt.Sprintf("period %s at %s starts %d min after period %s", c.PeriodID, c.StartTime, c.Gap, c.ConflictsWith)
}

func periodLabel(p *store.Period, index int) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("#%d", index+1)
}
