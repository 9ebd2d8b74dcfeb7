package stats

import (
	"math"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/store"
)

// Band is one row of the grading table.
type Band struct {
	Grade string
	Point int
	// Min is the lowest percentage in the band, inclusive.
	Min float64
}

// Bands lists the grading table from the highest band down.
var Bands = []Band{
	{Grade: "O", Point: 10, Min: 90},
	{Grade: "A+", Point: 9, Min: 75},
	{Grade: "A", Point: 8, Min: 65},
	{Grade: "B+", Point: 7, Min: 55},
	{Grade: "B", Point: 6, Min: 50},
	{Grade: "C", Point: 5, Min: 45},
	{Grade: "P", Point: 4, Min: 40},
	{Grade: "F", Point: 0, Min: math.Inf(-1)},
}

// GradeFor returns the band of a percentage.
func GradeFor(pct float64) Band {
	for _, b := range Bands {
		if pct >= b.Min {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

// Component maxima.
const (
	MaxInternalTheory    = 25
	MaxExternalTheory    = 75
	MaxInternalPractical = 40
	MaxExternalPractical = 60
	MaxNUES              = 100
)

// EntryPercentage returns the marks of an entry as a percentage of its
// component maximum. Marks outside [0, max] and marks on fields the
// component does not use are rejected.
func EntryPercentage(e store.GradeEntry) (float64, error) {
	if e.Credits < 0 {
		return 0, ledgererr.Validation("%s: negative credits %v", e.SubjectName, e.Credits)
	}

	type mark struct {
		name  string
		value float64
		max   float64
	}
	var used, unused []mark
	switch e.Component {
	case store.ComponentTheory:
		used = []mark{{"internal theory", e.InternalTheory, MaxInternalTheory}, {"external theory", e.ExternalTheory, MaxExternalTheory}}
		unused = []mark{{"internal practical", e.InternalPractical, 0}, {"external practical", e.ExternalPractical, 0}}
	case store.ComponentPractical:
		used = []mark{{"internal practical", e.InternalPractical, MaxInternalPractical}, {"external practical", e.ExternalPractical, MaxExternalPractical}}
		unused = []mark{{"internal theory", e.InternalTheory, 0}, {"external theory", e.ExternalTheory, 0}}
	case store.ComponentNUES:
		used = []mark{{"marks", e.InternalTheory, MaxNUES}}
		unused = []mark{{"external theory", e.ExternalTheory, 0}, {"internal practical", e.InternalPractical, 0}, {"external practical", e.ExternalPractical, 0}}
	default:
		return 0, ledgererr.Validation("%s: unknown component %q", e.SubjectName, e.Component)
	}

	var sum, maximum float64
	for _, m := range used {
		if m.value < 0 || m.value > m.max {
			return 0, ledgererr.Validation("%s: %s %v outside [0, %v]", e.SubjectName, m.name, m.value, m.max)
		}
		sum += m.value
		maximum += m.max
	}
	for _, m := range unused {
		if m.value != 0 {
			return 0, ledgererr.Validation("%s: %s is not part of a %s subject", e.SubjectName, m.name, e.Component)
		}
	}
	return sum / maximum * 100, nil
}

// Grade returns copies of entries with Grade and GradePoint filled in.
func Grade(entries []store.GradeEntry) ([]store.GradeEntry, error) {
	out := make([]store.GradeEntry, len(entries))
	for i, e := range entries {
		pct, err := EntryPercentage(e)
		if err != nil {
			return nil, err
		}
		band := GradeFor(pct)
		e.Grade, e.GradePoint = band.Grade, band.Point
		out[i] = e
	}
	return out, nil
}

// SGPA returns the credit-weighted mean grade point of entries, rounded to
// two decimals. It is 0 when no entry carries credits.
func SGPA(entries []store.GradeEntry) (float64, error) {
	graded, err := Grade(entries)
	if err != nil {
		return 0, err
	}
	var points, credits float64
	for _, e := range graded {
		points += float64(e.GradePoint) * e.Credits
		credits += e.Credits
	}
	if credits == 0 {
		return 0, nil
	}
	return round2(points / credits), nil
}

// TotalCredits sums the credits of entries.
func TotalCredits(entries []store.GradeEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Credits
	}
	return total
}

// ComputeResult returns a copy of r with grades, SGPA and total credits
// derived from its entries.
func ComputeResult(r *store.SemesterResult) (*store.SemesterResult, error) {
	if r == nil {
		return nil, ledgererr.Validation("result is empty")
	}
	if r.Semester <= 0 {
		return nil, ledgererr.Validation("semester must be positive, got %d", r.Semester)
	}
	out := r.Clone()
	graded, err := Grade(r.Subjects)
	if err != nil {
		return nil, err
	}
	out.Subjects = graded
	if out.SGPA, err = SGPA(r.Subjects); err != nil {
		return nil, err
	}
	out.TotalCredits = TotalCredits(r.Subjects)
	return out, nil
}

// CGPA returns the cumulative grade point average. The server-reported CGPA
// of the most recent semester wins when present; otherwise it is LocalCGPA.
func CGPA(results []*store.SemesterResult) float64 {
	if latest := latestResult(results); latest != nil && latest.CGPA != nil {
		return *latest.CGPA
	}
	return LocalCGPA(results)
}

// LocalCGPA returns the mean of semester SGPAs weighted by their total
// credits, rounded to two decimals.
func LocalCGPA(results []*store.SemesterResult) float64 {
	var points, credits float64
	for _, r := range results {
		if r == nil {
			continue
		}
		points += r.SGPA * r.TotalCredits
		credits += r.TotalCredits
	}
	if credits == 0 {
		return 0
	}
	return round2(points / credits)
}

// CGPAAgrees reports whether the server-reported CGPA of the most recent
// semester is within tolerance of LocalCGPA. Without a server figure there is
// nothing to disagree with.
func CGPAAgrees(results []*store.SemesterResult, tolerance float64) bool {
	latest := latestResult(results)
	if latest == nil || latest.CGPA == nil {
		return true
	}
	return math.Abs(*latest.CGPA-LocalCGPA(results)) <= tolerance+epsilon
}

func latestResult(results []*store.SemesterResult) *store.SemesterResult {
	var latest *store.SemesterResult
	for _, r := range results {
		if r != nil && (latest == nil || r.Semester > latest.Semester) {
			latest = r
		}
	}
	return latest
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
