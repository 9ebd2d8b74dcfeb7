package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/classledger/internal/util"
	"github.com/hrygo/classledger/store"
)

func (d *DB) FetchSubjects(ctx context.Context, semester int) ([]*store.Subject, error) {
	query := `
		SELECT id, semester, name, code, total_classes, attended_classes
		FROM subject
		WHERE semester = ` + placeholder(1) + `
		ORDER BY name ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, semester)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query subjects")
	}
	defer rows.Close()

	list := make([]*store.Subject, 0)
	for rows.Next() {
		var subject store.Subject
		if err := rows.Scan(
			&subject.ID,
			&subject.Semester,
			&subject.Name,
			&subject.Code,
			&subject.TotalClasses,
			&subject.AttendedClasses,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan subject")
		}
		list = append(list, &subject)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate subjects")
	}
	return list, nil
}

// SaveSubject inserts a subject or updates its name and code. Counters are
// owned by the attendance writes and never taken from the argument.
func (d *DB) SaveSubject(ctx context.Context, semester int, subject *store.Subject) (*store.Subject, error) {
	saved := subject.Clone()
	if saved.ID == "" {
		saved.ID = util.GenShortID()
	}
	saved.Semester = semester

	stmt := `INSERT INTO subject (id, semester, name, code)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT(id) DO UPDATE SET
			semester = excluded.semester,
			name = excluded.name,
			code = excluded.code
		RETURNING total_classes, attended_classes`
	if err := d.db.QueryRowContext(ctx, stmt, saved.ID, saved.Semester, saved.Name, saved.Code).Scan(
		&saved.TotalClasses,
		&saved.AttendedClasses,
	); err != nil {
		return nil, errors.Wrap(err, "failed to save subject")
	}
	return saved, nil
}
