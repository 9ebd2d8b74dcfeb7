package scheduler

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hrygo/classledger/server/timecodec"
	"github.com/hrygo/classledger/server/timezone"
)

const productID = "-//classledger//timetable//EN"

// Calendar renders occurrences as an iCalendar feed. names maps subject ids
// to display names; ids without a name are used as is. Slot times are read
// in loc. Occurrences whose times do not parse are skipped.
func Calendar(occurrences []Occurrence, names map[string]string, loc *time.Location, stamp time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, o := range occurrences {
		start, end, ok := occurrenceSpan(o, loc)
		if !ok {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("%s-%s@classledger", o.Date, o.Slot.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		summary := o.Slot.SubjectID
		if name, ok := names[o.Slot.SubjectID]; ok && name != "" {
			summary = name
		}
		ev.SetSummary(summary)
		if o.Slot.Classroom != "" {
			ev.SetLocation(o.Slot.Classroom)
		}
	}
	return cal.Serialize()
}

func occurrenceSpan(o Occurrence, loc *time.Location) (time.Time, time.Time, bool) {
	day, err := timezone.ParseDate(o.Date)
	if err != nil || o.Slot == nil {
		return time.Time{}, time.Time{}, false
	}
	from := timecodec.ToMinutes(o.Slot.StartTime)
	to := timecodec.ToMinutes(o.Slot.EndTime)
	if from == timecodec.Invalid || to == timecodec.Invalid || to <= from {
		return time.Time{}, time.Time{}, false
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(from) * time.Minute), midnight.Add(time.Duration(to) * time.Minute), true
}
