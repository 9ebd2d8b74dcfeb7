// Package stats derives attendance and grade aggregates.
//
// The functions in this package are pure and never modify their inputs.
// Collector wraps them around the academic-data service with a short-lived
// cache so repeated summaries do not refetch subjects and results.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/store"
	"github.com/hrygo/classledger/store/cache"
)

const (
	subjectsKeyPrefix = "subjects/"
	resultsKey        = "results"

	// CGPATolerance is the largest server/local CGPA gap still reported as
	// agreeing.
	CGPATolerance = 0.01
)

// Store is the interface for store operations needed by the Collector.
type Store interface {
	FetchSubjects(ctx context.Context, semester int) ([]*store.Subject, error)
	FetchSemesterResults(ctx context.Context) ([]*store.SemesterResult, error)
	SaveSemesterResult(ctx context.Context, result *store.SemesterResult) error
	DeleteSemesterResult(ctx context.Context, semester int) error
}

// SubjectSummary is the attendance standing of one subject.
type SubjectSummary struct {
	Subject        *store.Subject
	Percentage     float64
	ClassesNeeded  int
	SafeToSkip     int
	BelowThreshold bool
}

// OverallSummary is the attendance standing across every subject of a
// semester.
type OverallSummary struct {
	Subjects       int
	Attended       int
	Total          int
	Percentage     float64
	ClassesNeeded  int
	SafeToSkip     int
	BelowThreshold bool
}

// CGPASummary reports the effective CGPA and how it was derived.
type CGPASummary struct {
	CGPA   float64
	Local  float64
	Server *float64
	Agrees bool
}

// Collector computes aggregates from the academic-data service.
type Collector struct {
	store     Store
	cache     *cache.TieredCache
	threshold float64
}

// NewCollector creates a collector. A threshold outside (0,1) falls back to
// DefaultThreshold; ttl <= 0 uses the cache default.
func NewCollector(st Store, threshold float64, ttl time.Duration) *Collector {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	config := cache.DefaultTieredConfig()
	if ttl > 0 {
		config.L1TTL = ttl
	}
	return &Collector{
		store:     st,
		cache:     cache.NewTieredCache(config),
		threshold: threshold,
	}
}

// Threshold returns the attendance threshold used for projections.
func (c *Collector) Threshold() float64 {
	return c.threshold
}

// Summaries returns the standing of every subject of a semester, sorted by
// subject name.
func (c *Collector) Summaries(ctx context.Context, semester int) ([]*SubjectSummary, error) {
	subjects, err := c.subjects(ctx, semester)
	if err != nil {
		return nil, err
	}
	summaries := make([]*SubjectSummary, 0, len(subjects))
	for _, s := range subjects {
		summaries = append(summaries, &SubjectSummary{
			Subject:        s.Clone(),
			Percentage:     Percentage(s.AttendedClasses, s.TotalClasses),
			ClassesNeeded:  ClassesNeeded(s.AttendedClasses, s.TotalClasses, c.threshold),
			SafeToSkip:     SafeToSkip(s.AttendedClasses, s.TotalClasses, c.threshold),
			BelowThreshold: !meets(s.AttendedClasses, s.TotalClasses, c.threshold),
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Subject.Name < summaries[j].Subject.Name
	})
	return summaries, nil
}

// Overall returns the standing of a semester as a whole.
func (c *Collector) Overall(ctx context.Context, semester int) (*OverallSummary, error) {
	subjects, err := c.subjects(ctx, semester)
	if err != nil {
		return nil, err
	}
	o := &OverallSummary{Subjects: len(subjects)}
	for _, s := range subjects {
		o.Attended += s.AttendedClasses
		o.Total += s.TotalClasses
	}
	o.Percentage = Percentage(o.Attended, o.Total)
	o.ClassesNeeded = ClassesNeeded(o.Attended, o.Total, c.threshold)
	o.SafeToSkip = SafeToSkip(o.Attended, o.Total, c.threshold)
	o.BelowThreshold = !meets(o.Attended, o.Total, c.threshold)
	return o, nil
}

// Results returns every semester result ordered by semester.
func (c *Collector) Results(ctx context.Context) ([]*store.SemesterResult, error) {
	v, err := c.cache.Fetch(ctx, resultsKey, func(ctx context.Context, _ string) (any, error) {
		results, err := c.store.FetchSemesterResults(ctx)
		if err != nil {
			return nil, err
		}
		sorted := make([]*store.SemesterResult, 0, len(results))
		for _, r := range results {
			if r != nil {
				sorted = append(sorted, r.Clone())
			}
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Semester < sorted[j].Semester })
		return sorted, nil
	})
	if err != nil {
		return nil, ledgererr.RemoteRead("fetch semester results", err)
	}
	cached := v.([]*store.SemesterResult)
	out := make([]*store.SemesterResult, len(cached))
	for i, r := range cached {
		out[i] = r.Clone()
	}
	return out, nil
}

// SaveResult derives grades, SGPA and total credits, then stores the result.
func (c *Collector) SaveResult(ctx context.Context, result *store.SemesterResult) (*store.SemesterResult, error) {
	computed, err := ComputeResult(result)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveSemesterResult(ctx, computed); err != nil {
		return nil, ledgererr.RemoteWrite(fmt.Sprintf("save result of semester %d", computed.Semester), err)
	}
	c.cache.Delete(ctx, resultsKey)
	slog.Info("saved semester result",
		"semester", computed.Semester,
		"sgpa", computed.SGPA,
		"credits", computed.TotalCredits)
	return computed, nil
}

// DeleteResult removes the result of a semester.
func (c *Collector) DeleteResult(ctx context.Context, semester int) error {
	if err := c.store.DeleteSemesterResult(ctx, semester); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ledgererr.NotFound(fmt.Sprintf("result of semester %d", semester))
		}
		return ledgererr.RemoteWrite(fmt.Sprintf("delete result of semester %d", semester), err)
	}
	c.cache.Delete(ctx, resultsKey)
	return nil
}

// CGPA returns the effective CGPA across every stored result.
func (c *Collector) CGPA(ctx context.Context) (*CGPASummary, error) {
	results, err := c.Results(ctx)
	if err != nil {
		return nil, err
	}
	summary := &CGPASummary{
		CGPA:   CGPA(results),
		Local:  LocalCGPA(results),
		Agrees: CGPAAgrees(results, CGPATolerance),
	}
	if latest := latestResult(results); latest != nil && latest.CGPA != nil {
		v := *latest.CGPA
		summary.Server = &v
	}
	if !summary.Agrees {
		slog.Warn("server CGPA disagrees with local computation",
			"server", *summary.Server,
			"local", summary.Local)
	}
	return summary, nil
}

// Invalidate drops the cached subjects of a semester.
func (c *Collector) Invalidate(semester int) {
	c.cache.Delete(context.Background(), subjectsKey(semester))
}

// Refresh drops every cached lookup and reloads the subjects of semester.
func (c *Collector) Refresh(ctx context.Context, semester int) error {
	dropped := c.cache.DeletePrefix(ctx, subjectsKeyPrefix)
	c.cache.Delete(ctx, resultsKey)
	slog.Debug("stats cache refreshed", "semester", semester, "dropped", dropped)
	_, err := c.subjects(ctx, semester)
	return err
}

// Close releases the cache.
func (c *Collector) Close() error {
	return c.cache.Close()
}

func (c *Collector) subjects(ctx context.Context, semester int) ([]*store.Subject, error) {
	v, err := c.cache.Fetch(ctx, subjectsKey(semester), func(ctx context.Context, _ string) (any, error) {
		return c.store.FetchSubjects(ctx, semester)
	})
	if err != nil {
		return nil, ledgererr.RemoteRead(fmt.Sprintf("fetch subjects of semester %d", semester), err)
	}
	return v.([]*store.Subject), nil
}

func subjectsKey(semester int) string {
	return fmt.Sprintf("%s%d", subjectsKeyPrefix, semester)
}
