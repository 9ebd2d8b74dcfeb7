package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/classledger/internal/util"
	"github.com/hrygo/classledger/store"
)

func (d *DB) FetchMonthLogs(ctx context.Context, year, month, semester int) (map[string][]*store.AttendanceLog, error) {
	if month < 1 || month > 12 {
		return nil, errors.Errorf("invalid month %d", month)
	}
	// Day 31 bounds every month under string comparison of ISO dates.
	first := fmt.Sprintf("%04d-%02d-01", year, month)
	last := fmt.Sprintf("%04d-%02d-31", year, month)

	query := `
		SELECT id, subject_id, semester, date, status, note, created_ts, updated_ts
		FROM attendance_log
		WHERE semester = ` + placeholder(1) + ` AND date >= ` + placeholder(2) + ` AND date <= ` + placeholder(3) + `
		ORDER BY date ASC, created_ts ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, semester, first, last)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query attendance logs")
	}
	defer rows.Close()

	result := make(map[string][]*store.AttendanceLog)
	for rows.Next() {
		var log store.AttendanceLog
		if err := rows.Scan(
			&log.ID,
			&log.SubjectID,
			&log.Semester,
			&log.Date,
			&log.Status,
			&log.Note,
			&log.CreatedTs,
			&log.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan attendance log")
		}
		result[log.Date] = append(result[log.Date], &log)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate attendance logs")
	}
	return result, nil
}

func (d *DB) FetchDayClasses(ctx context.Context, date string, semester int) ([]*store.DayClass, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid date %q", date)
	}

	query := `
		SELECT sa.id, sa.semester, sa.weekday, sa.start_time, sa.end_time,
			sa.subject_id, sa.kind, sa.classroom, COALESCE(s.name, '')
		FROM slot_assignment sa
		LEFT JOIN subject s ON s.id = sa.subject_id
		WHERE sa.semester = ` + placeholder(1) + ` AND sa.weekday = ` + placeholder(2) + `
			AND sa.kind = 'class' AND sa.subject_id != ''`

	rows, err := d.db.QueryContext(ctx, query, semester, int(day.Weekday()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query day slots")
	}
	defer rows.Close()

	slots := make([]*store.SlotAssignment, 0)
	names := make(map[string]string)
	for rows.Next() {
		var slot store.SlotAssignment
		var weekday int
		var name string
		if err := rows.Scan(
			&slot.ID,
			&slot.Semester,
			&weekday,
			&slot.StartTime,
			&slot.EndTime,
			&slot.SubjectID,
			&slot.Kind,
			&slot.Classroom,
			&name,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan day slot")
		}
		slot.Weekday = time.Weekday(weekday)
		names[slot.ID] = name
		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate day slots")
	}
	store.SortSlots(slots)

	logs, err := d.dayLogs(ctx, date, semester)
	if err != nil {
		return nil, err
	}

	list := make([]*store.DayClass, 0, len(slots))
	for _, slot := range slots {
		class := &store.DayClass{
			Slot:        slot,
			SubjectName: names[slot.ID],
			Status:      store.StatusPending,
		}
		if log, ok := logs[slot.SubjectID]; ok {
			class.Status = log.Status
			class.LogID = log.ID
			class.Note = log.Note
		}
		list = append(list, class)
	}
	return list, nil
}

// dayLogs returns the logs of a date keyed by subject.
func (d *DB) dayLogs(ctx context.Context, date string, semester int) (map[string]*store.AttendanceLog, error) {
	query := `
		SELECT id, subject_id, status, note
		FROM attendance_log
		WHERE semester = ` + placeholder(1) + ` AND date = ` + placeholder(2)

	rows, err := d.db.QueryContext(ctx, query, semester, date)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query day logs")
	}
	defer rows.Close()

	logs := make(map[string]*store.AttendanceLog)
	for rows.Next() {
		log := &store.AttendanceLog{Date: date, Semester: semester}
		if err := rows.Scan(&log.ID, &log.SubjectID, &log.Status, &log.Note); err != nil {
			return nil, errors.Wrap(err, "failed to scan day log")
		}
		logs[log.SubjectID] = log
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate day logs")
	}
	return logs, nil
}

func (d *DB) WriteAttendance(ctx context.Context, subjectID string, status store.Status, date, note string) (*store.AttendanceLog, error) {
	if !status.Valid() || status.IsPending() {
		return nil, errors.Errorf("cannot write attendance status %q", status)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	var semester int
	if err := tx.QueryRowContext(ctx, "SELECT semester FROM subject WHERE id = "+placeholder(1), subjectID).Scan(&semester); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "subject %s", subjectID)
		}
		return nil, errors.Wrap(err, "failed to look up subject")
	}

	now := time.Now().Unix()
	log := &store.AttendanceLog{
		ID:        util.GenUUID(),
		SubjectID: subjectID,
		Date:      date,
		Status:    status,
		Note:      note,
		Semester:  semester,
		CreatedTs: now,
		UpdatedTs: now,
	}

	stmt := `INSERT INTO attendance_log (id, subject_id, semester, date, status, note, created_ts, updated_ts)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT(subject_id, date) DO UPDATE SET
			status = excluded.status,
			note = excluded.note,
			updated_ts = excluded.updated_ts
		RETURNING id, created_ts`
	if err := tx.QueryRowContext(ctx, stmt,
		log.ID, log.SubjectID, log.Semester, log.Date, log.Status, log.Note, log.CreatedTs, log.UpdatedTs,
	).Scan(&log.ID, &log.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert attendance log")
	}

	if err := recomputeCounters(ctx, tx, subjectID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit attendance write")
	}
	return log, nil
}

func (d *DB) DeleteAttendance(ctx context.Context, logID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	var subjectID string
	if err := tx.QueryRowContext(ctx, "SELECT subject_id FROM attendance_log WHERE id = "+placeholder(1), logID).Scan(&subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(store.ErrNotFound, "attendance log %s", logID)
		}
		return errors.Wrap(err, "failed to look up attendance log")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_log WHERE id = "+placeholder(1), logID); err != nil {
		return errors.Wrap(err, "failed to delete attendance log")
	}
	if err := recomputeCounters(ctx, tx, subjectID); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit attendance delete")
}
