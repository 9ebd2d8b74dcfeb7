package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/classledger/store"
)

// placeholder returns a placeholder for SQLite (uses ?)
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// recomputeCounters rewrites a subject's counters from its logs.
func recomputeCounters(ctx context.Context, tx *sql.Tx, subjectID string) error {
	args := []any{}
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	in := func(list []store.Status) string {
		ph := make([]string, 0, len(list))
		for _, s := range list {
			ph = append(ph, bind(string(s)))
		}
		return strings.Join(ph, ", ")
	}

	total := "SELECT COUNT(*) FROM attendance_log WHERE subject_id = " + bind(subjectID) +
		" AND status IN (" + in(store.CountedStatuses()) + ")"
	attended := "SELECT COUNT(*) FROM attendance_log WHERE subject_id = " + bind(subjectID) +
		" AND status IN (" + in(store.AttendedStatuses()) + ")"
	stmt := "UPDATE subject SET total_classes = (" + total + "), attended_classes = (" + attended + ") WHERE id = " + bind(subjectID)

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrapf(err, "failed to recompute counters of subject %s", subjectID)
	}
	return nil
}
