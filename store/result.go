package store

import "context"

// Component is the assessment scheme of a graded subject.
type Component string

const (
	ComponentTheory    Component = "theory"
	ComponentPractical Component = "practical"
	// ComponentNUES is a non-university examination subject graded out of
	// 100 in a single component.
	ComponentNUES Component = "nues"
)

// Valid reports whether c is a known component.
func (c Component) Valid() bool {
	switch c {
	case ComponentTheory, ComponentPractical, ComponentNUES:
		return true
	}
	return false
}

// GradeEntry is the marks of one subject in a semester result.
type GradeEntry struct {
	SubjectName string    `json:"subjectName" yaml:"subject" validate:"required"`
	SubjectCode string    `json:"subjectCode,omitempty" yaml:"code,omitempty"`
	Credits     float64   `json:"credits" yaml:"credits" validate:"gt=0"`
	Component   Component `json:"component" yaml:"component" validate:"oneof=theory practical nues"`

	InternalTheory    float64 `json:"internalTheory" yaml:"internal_theory,omitempty" validate:"gte=0"`
	ExternalTheory    float64 `json:"externalTheory" yaml:"external_theory,omitempty" validate:"gte=0"`
	InternalPractical float64 `json:"internalPractical" yaml:"internal_practical,omitempty" validate:"gte=0"`
	ExternalPractical float64 `json:"externalPractical" yaml:"external_practical,omitempty" validate:"gte=0"`

	// Derived.
	Grade      string `json:"grade,omitempty" yaml:"grade,omitempty"`
	GradePoint int    `json:"gradePoint" yaml:"grade_point,omitempty"`
}

// SemesterResult is the graded outcome of a semester.
type SemesterResult struct {
	Semester     int          `json:"semester" yaml:"semester" validate:"gte=1"`
	Subjects     []GradeEntry `json:"subjects" yaml:"subjects" validate:"required,min=1,dive"`
	SGPA         float64      `json:"sgpa" yaml:"sgpa,omitempty"`
	TotalCredits float64      `json:"totalCredits" yaml:"total_credits,omitempty"`
	// CGPA is the cumulative figure reported by the academic service, if any.
	CGPA *float64 `json:"cgpa,omitempty" yaml:"cgpa,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *SemesterResult) Clone() *SemesterResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Subjects = append([]GradeEntry(nil), r.Subjects...)
	if r.CGPA != nil {
		v := *r.CGPA
		c.CGPA = &v
	}
	return &c
}

// FetchSemesterResults lists every stored result ordered by semester.
func (s *Store) FetchSemesterResults(ctx context.Context) ([]*SemesterResult, error) {
	return s.driver.FetchSemesterResults(ctx)
}

// SaveSemesterResult creates or replaces the result of a semester.
func (s *Store) SaveSemesterResult(ctx context.Context, result *SemesterResult) error {
	if err := s.waitWrite(ctx); err != nil {
		return err
	}
	return s.driver.SaveSemesterResult(ctx, result)
}

// DeleteSemesterResult removes the result of a semester.
func (s *Store) DeleteSemesterResult(ctx context.Context, semester int) error {
	if err := s.waitWrite(ctx); err != nil {
		return err
	}
	return s.driver.DeleteSemesterResult(ctx, semester)
}
