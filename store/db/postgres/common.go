package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/classledger/store"
)

// placeholder returns a placeholder for PostgreSQL (uses $n)
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n placeholders for PostgreSQL
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// recomputeCounters rewrites a subject's counters from its logs.
func recomputeCounters(ctx context.Context, tx *sql.Tx, subjectID string) error {
	args := []any{subjectID}
	in := func(list []store.Status) string {
		ph := make([]string, 0, len(list))
		for _, s := range list {
			args = append(args, string(s))
			ph = append(ph, placeholder(len(args)))
		}
		return strings.Join(ph, ", ")
	}

	// $1 is reused for the subject id throughout.
	total := "SELECT COUNT(*) FROM attendance_log WHERE subject_id = $1 AND status IN (" + in(store.CountedStatuses()) + ")"
	attended := "SELECT COUNT(*) FROM attendance_log WHERE subject_id = $1 AND status IN (" + in(store.AttendedStatuses()) + ")"
	stmt := "UPDATE subject SET total_classes = (" + total + "), attended_classes = (" + attended + ") WHERE id = $1"

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrapf(err, "failed to recompute counters of subject %s", subjectID)
	}
	return nil
}
