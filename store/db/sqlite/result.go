package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/classledger/store"
)

func (d *DB) FetchSemesterResults(ctx context.Context) ([]*store.SemesterResult, error) {
	query := `
		SELECT semester, subjects, sgpa, total_credits, cgpa
		FROM semester_result
		ORDER BY semester ASC`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query semester results")
	}
	defer rows.Close()

	list := make([]*store.SemesterResult, 0)
	for rows.Next() {
		var result store.SemesterResult
		var subjects string
		var cgpa sql.NullFloat64
		if err := rows.Scan(
			&result.Semester,
			&subjects,
			&result.SGPA,
			&result.TotalCredits,
			&cgpa,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan semester result")
		}
		if err := json.Unmarshal([]byte(subjects), &result.Subjects); err != nil {
			return nil, errors.Wrapf(err, "failed to decode subjects of semester %d", result.Semester)
		}
		if cgpa.Valid {
			result.CGPA = &cgpa.Float64
		}
		list = append(list, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate semester results")
	}
	return list, nil
}

func (d *DB) SaveSemesterResult(ctx context.Context, result *store.SemesterResult) error {
	subjects, err := json.Marshal(result.Subjects)
	if err != nil {
		return errors.Wrap(err, "failed to encode subjects")
	}
	var cgpa sql.NullFloat64
	if result.CGPA != nil {
		cgpa = sql.NullFloat64{Float64: *result.CGPA, Valid: true}
	}

	stmt := `INSERT INTO semester_result (semester, subjects, sgpa, total_credits, cgpa, updated_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT(semester) DO UPDATE SET
			subjects = excluded.subjects,
			sgpa = excluded.sgpa,
			total_credits = excluded.total_credits,
			cgpa = excluded.cgpa,
			updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt,
		result.Semester, string(subjects), result.SGPA, result.TotalCredits, cgpa, time.Now().Unix(),
	); err != nil {
		return errors.Wrapf(err, "failed to save result of semester %d", result.Semester)
	}
	return nil
}

func (d *DB) DeleteSemesterResult(ctx context.Context, semester int) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM semester_result WHERE semester = "+placeholder(1), semester)
	if err != nil {
		return errors.Wrap(err, "failed to delete semester result")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(store.ErrNotFound, "result of semester %d", semester)
	}
	return nil
}
