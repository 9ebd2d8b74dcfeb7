package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/classledger/server/timezone"
	"github.com/hrygo/classledger/store"
)

// MonthFetcher loads one month of attendance logs from the academic-data
// service.
type MonthFetcher interface {
	FetchMonthLogs(ctx context.Context, year, month, semester int) (map[string][]*store.AttendanceLog, error)
}

// MonthBuffer keeps the active month and its two neighbours in a MonthCache.
type MonthBuffer struct {
	cache   *MonthCache
	fetcher MonthFetcher
	maxAge  time.Duration
	group   singleflight.Group

	mu       sync.Mutex
	semester int
	active   string
	// generation is bumped by every Clear so that fetches started before
	// it never write into the emptied cache. It is part of the singleflight
	// key, so a fetch after a Clear never joins one from before it.
	generation uint64
	// ticket orders fetches by the moment they began reading the source.
	// stored keeps, per month, the ticket of the data in the cache; a fetch
	// that began earlier never replaces it.
	ticket uint64
	stored map[string]uint64
}

// fetched is the outcome of one source read.
type fetched struct {
	data       map[string][]*store.AttendanceLog
	semester   int
	generation uint64
	ticket     uint64
}

// NewMonthBuffer creates a buffer for semester. Months older than maxAge are
// refetched on the next SetActiveMonth; maxAge <= 0 keeps months until
// cleared.
func NewMonthBuffer(fetcher MonthFetcher, semester int, maxAge time.Duration) *MonthBuffer {
	return &MonthBuffer{
		cache:    NewMonthCache(),
		fetcher:  fetcher,
		maxAge:   maxAge,
		semester: semester,
		stored:   make(map[string]uint64),
	}
}

// Cache exposes the underlying month cache.
func (b *MonthBuffer) Cache() *MonthCache {
	return b.cache
}

// Semester returns the semester whose logs are buffered.
func (b *MonthBuffer) Semester() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.semester
}

// ActiveMonth returns the month last passed to SetActiveMonth.
func (b *MonthBuffer) ActiveMonth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// SetSemester switches the buffered semester and drops every cached month.
func (b *MonthBuffer) SetSemester(semester int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.semester == semester {
		return
	}
	b.semester = semester
	b.clearLocked()
}

// Clear drops every cached month.
func (b *MonthBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *MonthBuffer) clearLocked() {
	b.generation++
	b.stored = make(map[string]uint64)
	b.cache.Clear()
}

// SetActiveMonth makes monthKey the active month and fetches it and its
// neighbours when missing or stale. The three fetches run concurrently. A
// failure on the active month is returned; neighbour failures are logged and
// leave that month absent.
func (b *MonthBuffer) SetActiveMonth(ctx context.Context, monthKey string) error {
	prev, next, err := timezone.AdjacentMonths(monthKey)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.active = monthKey
	b.mu.Unlock()

	var g errgroup.Group
	for _, key := range []string{monthKey, prev, next} {
		if b.isFresh(key) {
			continue
		}
		g.Go(func() error {
			if err := b.fetchShared(ctx, key); err != nil {
				if key == monthKey {
					return err
				}
				slog.Warn("failed to buffer adjacent month",
					slog.String("month", key),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	return g.Wait()
}

// Refresh clears the cache and re-buffers around the active month.
func (b *MonthBuffer) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.clearLocked()
	active := b.active
	b.mu.Unlock()

	if active == "" {
		return nil
	}
	return b.SetActiveMonth(ctx, active)
}

// Load buffers a single month when it is missing or stale, leaving the
// active month unchanged.
func (b *MonthBuffer) Load(ctx context.Context, monthKey string) error {
	if b.isFresh(monthKey) {
		return nil
	}
	return b.fetchShared(ctx, monthKey)
}

// RefetchMonth replaces one month from the source. The read always starts
// after the call, never joining a fetch already in flight, so the result
// reflects every write resolved before it. On failure the month is
// invalidated so no half-corrected copy remains.
func (b *MonthBuffer) RefetchMonth(ctx context.Context, monthKey string) error {
	year, month, err := timezone.ParseMonth(monthKey)
	if err != nil {
		return err
	}
	res, err := b.read(ctx, year, int(month))
	if err != nil {
		b.mu.Lock()
		b.stored[monthKey] = max(b.stored[monthKey], res.ticket)
		b.cache.Invalidate(monthKey)
		b.mu.Unlock()
		return errors.Wrapf(err, "failed to fetch month %s", monthKey)
	}
	b.put(monthKey, res)
	return nil
}

func (b *MonthBuffer) isFresh(monthKey string) bool {
	fetchedAt, ok := b.cache.FetchedAt(monthKey)
	if !ok {
		return false
	}
	return b.maxAge <= 0 || time.Since(fetchedAt) < b.maxAge
}

// fetchShared loads a month, collapsing concurrent loads of the same month
// within one generation.
func (b *MonthBuffer) fetchShared(ctx context.Context, monthKey string) error {
	year, month, err := timezone.ParseMonth(monthKey)
	if err != nil {
		return err
	}

	b.mu.Lock()
	key := fmt.Sprintf("%d/%d/%s", b.semester, b.generation, monthKey)
	b.mu.Unlock()

	v, err, shared := b.group.Do(key, func() (any, error) {
		return b.read(ctx, year, int(month))
	})
	if err != nil {
		return errors.Wrapf(err, "failed to fetch month %s", monthKey)
	}
	slog.Debug("fetched month", "month", monthKey, "shared", shared)
	b.put(monthKey, v.(*fetched))
	return nil
}

// read takes a ticket and reads one month from the source. The ticket is
// returned even when the read fails.
func (b *MonthBuffer) read(ctx context.Context, year, month int) (*fetched, error) {
	b.mu.Lock()
	b.ticket++
	res := &fetched{semester: b.semester, generation: b.generation, ticket: b.ticket}
	b.mu.Unlock()

	data, err := b.fetcher.FetchMonthLogs(ctx, year, month, res.semester)
	if err != nil {
		return res, err
	}
	res.data = data
	return res, nil
}

// put stores a fetched month unless the cache was cleared since the read
// began or already holds data from a later read.
func (b *MonthBuffer) put(monthKey string, res *fetched) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if res.generation != b.generation || res.semester != b.semester {
		return
	}
	if res.ticket <= b.stored[monthKey] {
		return
	}
	b.stored[monthKey] = res.ticket
	b.cache.Put(monthKey, MonthData(res.data))
}
