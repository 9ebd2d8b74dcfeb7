package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/classledger/internal/util"
	"github.com/hrygo/classledger/store"
)

func (d *DB) FetchTimetable(ctx context.Context, semester int) (*store.Timetable, error) {
	periods, err := d.listPeriods(ctx, semester)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, semester, weekday, start_time, end_time, subject_id, kind, classroom
		FROM slot_assignment
		WHERE semester = ` + placeholder(1)

	rows, err := d.db.QueryContext(ctx, query, semester)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query slot assignments")
	}
	defer rows.Close()

	schedule := make(map[time.Weekday][]*store.SlotAssignment)
	for rows.Next() {
		var slot store.SlotAssignment
		var weekday int
		if err := rows.Scan(
			&slot.ID,
			&slot.Semester,
			&weekday,
			&slot.StartTime,
			&slot.EndTime,
			&slot.SubjectID,
			&slot.Kind,
			&slot.Classroom,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan slot assignment")
		}
		slot.Weekday = time.Weekday(weekday)
		schedule[slot.Weekday] = append(schedule[slot.Weekday], &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate slot assignments")
	}
	for _, slots := range schedule {
		store.SortSlots(slots)
	}

	return &store.Timetable{
		Semester: semester,
		Periods:  periods,
		Schedule: schedule,
	}, nil
}

func (d *DB) listPeriods(ctx context.Context, semester int) ([]*store.Period, error) {
	query := `
		SELECT id, semester, start_time, end_time, kind
		FROM period
		WHERE semester = ` + placeholder(1) + `
		ORDER BY position ASC`

	rows, err := d.db.QueryContext(ctx, query, semester)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query periods")
	}
	defer rows.Close()

	list := make([]*store.Period, 0)
	for rows.Next() {
		var period store.Period
		if err := rows.Scan(
			&period.ID,
			&period.Semester,
			&period.StartTime,
			&period.EndTime,
			&period.Kind,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan period")
		}
		list = append(list, &period)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate periods")
	}
	store.SortPeriods(list)
	return list, nil
}

// SaveTimetableStructure replaces every period of the semester. Periods
// without an id are assigned one in place.
func (d *DB) SaveTimetableStructure(ctx context.Context, periods []*store.Period, semester int) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM period WHERE semester = "+placeholder(1), semester); err != nil {
		return errors.Wrap(err, "failed to clear periods")
	}

	stmt := `INSERT INTO period (id, semester, position, start_time, end_time, kind)
		VALUES (` + placeholders(6) + `)`
	for i, period := range periods {
		if period.ID == "" {
			period.ID = util.GenShortID()
		}
		period.Semester = semester
		if _, err := tx.ExecContext(ctx, stmt,
			period.ID, semester, i, period.StartTime, period.EndTime, period.Kind,
		); err != nil {
			return errors.Wrapf(err, "failed to insert period %s", period.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit timetable structure")
}

func (d *DB) SaveSlotAssignment(ctx context.Context, semester int, slot *store.SlotAssignment) (*store.SlotAssignment, error) {
	saved := slot.Clone()
	if saved.ID == "" {
		saved.ID = util.GenShortID()
	}
	saved.Semester = semester

	stmt := `INSERT INTO slot_assignment (id, semester, weekday, start_time, end_time, subject_id, kind, classroom)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT(id) DO UPDATE SET
			semester = excluded.semester,
			weekday = excluded.weekday,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			subject_id = excluded.subject_id,
			kind = excluded.kind,
			classroom = excluded.classroom`
	if _, err := d.db.ExecContext(ctx, stmt,
		saved.ID, saved.Semester, int(saved.Weekday), saved.StartTime, saved.EndTime,
		saved.SubjectID, saved.Kind, saved.Classroom,
	); err != nil {
		return nil, errors.Wrap(err, "failed to save slot assignment")
	}
	return saved, nil
}

func (d *DB) DeleteSlotAssignment(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM slot_assignment WHERE id = "+placeholder(1), id)
	if err != nil {
		return errors.Wrap(err, "failed to delete slot assignment")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(store.ErrNotFound, "slot assignment %s", id)
	}
	return nil
}
