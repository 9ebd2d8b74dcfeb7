package store

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/classledger/internal/profile"
	"github.com/hrygo/classledger/server/timecodec"
)

// ErrNotFound is returned by drivers when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides access to the academic-data service through a Driver.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// writeLimiter throttles remote writes; nil means unlimited.
	writeLimiter *rate.Limiter
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	s := &Store{
		driver:  driver,
		profile: profile,
	}
	if profile != nil && profile.WriteRate > 0 {
		burst := profile.WriteBurst
		if burst <= 0 {
			burst = 1
		}
		s.writeLimiter = rate.NewLimiter(rate.Limit(profile.WriteRate), burst)
	}
	return s
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// waitWrite blocks until the limiter admits one more write.
func (s *Store) waitWrite(ctx context.Context) error {
	if s.writeLimiter == nil {
		return nil
	}
	if err := s.writeLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "write throttled")
	}
	return nil
}

// SortSlots orders slot assignments by start time in minutes. Slots whose
// start does not parse go last. The sort is stable.
func SortSlots(slots []*SlotAssignment) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slotKey(slots[i].StartTime) < slotKey(slots[j].StartTime)
	})
}

// SortPeriods orders periods by start time in minutes. The sort is stable.
func SortPeriods(periods []*Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		return slotKey(periods[i].StartTime) < slotKey(periods[j].StartTime)
	})
}

func slotKey(text string) int {
	m := timecodec.ToMinutes(text)
	if m == timecodec.Invalid {
		return timecodec.MinutesPerDay
	}
	return m
}

// CountedStatuses lists the statuses that count toward a subject's total.
func CountedStatuses() []Status {
	return filterStatuses(Status.CountsTowardTotal)
}

// AttendedStatuses lists the statuses that count as attended.
func AttendedStatuses() []Status {
	return filterStatuses(Status.CountsAsAttended)
}

func filterStatuses(keep func(Status) bool) []Status {
	list := make([]Status, 0, len(Statuses))
	for _, s := range Statuses {
		if keep(s) {
			list = append(list, s)
		}
	}
	return list
}
