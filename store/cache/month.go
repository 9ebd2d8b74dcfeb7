package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/hrygo/classledger/store"
)

// MonthData maps a calendar day (YYYY-MM-DD) to the logs recorded on it.
type MonthData map[string][]*store.AttendanceLog

// Clone returns a deep copy of the month.
func (m MonthData) Clone() MonthData {
	if m == nil {
		return nil
	}
	out := make(MonthData, len(m))
	for date, logs := range m {
		out[date] = cloneLogs(logs)
	}
	return out
}

// Count returns the total number of logs in the month.
func (m MonthData) Count() int {
	n := 0
	for _, logs := range m {
		n += len(logs)
	}
	return n
}

func cloneLogs(logs []*store.AttendanceLog) []*store.AttendanceLog {
	if logs == nil {
		return nil
	}
	out := make([]*store.AttendanceLog, len(logs))
	for i, log := range logs {
		out[i] = log.Clone()
	}
	return out
}

// MonthEntry is one cached month.
type MonthEntry struct {
	MonthKey  string
	Logs      MonthData
	FetchedAt time.Time
}

// MonthCache holds whole months of attendance logs keyed by YYYY-MM.
//
// A month is only ever created by Put with a complete server month; ApplyDelta
// edits one date of a month that is already present. Values going in and out
// are deep-copied so callers never share state with the cache.
type MonthCache struct {
	mu      sync.RWMutex
	entries map[string]*MonthEntry
	now     func() time.Time
}

// NewMonthCache creates an empty month cache.
func NewMonthCache() *MonthCache {
	return &MonthCache{
		entries: make(map[string]*MonthEntry),
		now:     time.Now,
	}
}

// Get returns a copy of a cached month.
func (c *MonthCache) Get(monthKey string) (MonthData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[monthKey]
	if !ok {
		return nil, false
	}
	return entry.Logs.Clone(), true
}

// LogsOn returns a copy of the logs of one date in a cached month. The second
// result is false when the month itself is not cached.
func (c *MonthCache) LogsOn(monthKey, date string) ([]*store.AttendanceLog, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[monthKey]
	if !ok {
		return nil, false
	}
	return cloneLogs(entry.Logs[date]), true
}

// Put replaces a month wholesale.
func (c *MonthCache) Put(monthKey string, data MonthData) {
	logs := data.Clone()
	if logs == nil {
		logs = make(MonthData)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[monthKey] = &MonthEntry{
		MonthKey:  monthKey,
		Logs:      logs,
		FetchedAt: c.now(),
	}
}

// ApplyDelta replaces the logs of a single date in a cached month. Every
// other date is left untouched. An empty logs slice removes the date. It
// returns false, changing nothing, when the month is not cached.
func (c *MonthCache) ApplyDelta(monthKey, date string, logs []*store.AttendanceLog) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[monthKey]
	if !ok {
		return false
	}
	if len(logs) == 0 {
		delete(entry.Logs, date)
		return true
	}
	entry.Logs[date] = cloneLogs(logs)
	return true
}

// Invalidate drops one month.
func (c *MonthCache) Invalidate(monthKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, monthKey)
}

// Clear drops every month.
func (c *MonthCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*MonthEntry)
}

// Has reports whether a month is cached.
func (c *MonthCache) Has(monthKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[monthKey]
	return ok
}

// Keys returns the cached month keys in ascending order.
func (c *MonthCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FetchedAt returns when a month was last replaced by Put.
func (c *MonthCache) FetchedAt(monthKey string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[monthKey]
	if !ok {
		return time.Time{}, false
	}
	return entry.FetchedAt, true
}
