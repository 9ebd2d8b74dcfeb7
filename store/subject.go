package store

import "context"

// Subject is a course tracked in a semester. TotalClasses and
// AttendedClasses are maintained by the driver.
type Subject struct {
	ID              string
	Semester        int
	Name            string
	Code            string
	TotalClasses    int
	AttendedClasses int
}

// Clone returns a copy of the subject.
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// FetchSubjects lists the subjects of a semester ordered by name.
func (s *Store) FetchSubjects(ctx context.Context, semester int) ([]*Subject, error) {
	return s.driver.FetchSubjects(ctx, semester)
}

// SaveSubject creates or renames a subject. Counters are ignored.
func (s *Store) SaveSubject(ctx context.Context, semester int, subject *Subject) (*Subject, error) {
	if err := s.waitWrite(ctx); err != nil {
		return nil, err
	}
	return s.driver.SaveSubject(ctx, semester, subject)
}
