package pgrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

type attendanceRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	ClassroomID  string      `db:"classroom_id"`
	Date         core.Date   `db:"date"`
	Status       string      `db:"status"`
	Note         string      `db:"note"`
	RecordedByID null.String `db:"recorded_by_id"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func newAttendanceRow(a attendance.Attendance) attendanceRow {
	return attendanceRow{
		ID:           a.ID,
		StudentID:    a.StudentID,
		ClassroomID:  a.ClassroomID,
		Date:         a.Date,
		Status:       string(a.Status),
		Note:         a.Note,
		RecordedByID: nullString(a.RecordedByID),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r attendanceRow) model() attendance.Attendance {
	return attendance.Attendance{
		ID:           r.ID,
		StudentID:    r.StudentID,
		ClassroomID:  r.ClassroomID,
		Date:         r.Date,
		Status:       attendance.Status(r.Status),
		Note:         r.Note,
		RecordedByID: r.RecordedByID.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const attendanceSelect = `SELECT id, student_id, classroom_id, date, status, note, recorded_by_id, created_at, updated_at
	FROM attendances`

type attendanceRepository struct {
	db *DB
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// dateRange filters column on a single day or an inclusive range.
func (c *conditions) dateRange(column string, day, from, to core.Date) {
	if !day.IsZero() {
		c.add(column+" = ?", day)
	}
	if !from.IsZero() {
		c.add(column+" >= ?", from)
	}
	if !to.IsZero() {
		c.add(column+" <= ?", to)
	}
}

func (repo *attendanceRepository) Query(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	var cond conditions
	cond.uuid("classroom_id", filter.ClassroomID)
	cond.ids("student_id", filter.StudentIDs)
	cond.dateRange("date", filter.Date, filter.From, filter.To)
	if filter.Status != "" {
		cond.add("status = ?", string(filter.Status))
	}

	var rows []attendanceRow
	q := attendanceSelect + cond.where() + " ORDER BY date DESC, student_id"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendances")
	}
	records := make([]attendance.Attendance, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.model())
	}
	return records, nil
}

func (repo *attendanceRepository) Get(ctx context.Context, id string) (attendance.Attendance, error) {
	var r attendanceRow
	if err := repo.db.getOne(ctx, attendance.ErrNotFound, &r, attendanceSelect+" WHERE id = $1", id); err != nil {
		return attendance.Attendance{}, err
	}
	return r.model(), nil
}

func (repo *attendanceRepository) Create(ctx context.Context, records ...attendance.Attendance) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, a := range records {
			err := repo.db.namedExec(ctx, `
				INSERT INTO attendances (id, student_id, classroom_id, date, status, note, recorded_by_id, created_at, updated_at)
				VALUES (:id, :student_id, :classroom_id, :date, :status, :note, :recorded_by_id, :created_at, :updated_at)`,
				newAttendanceRow(a),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *attendanceRepository) Update(ctx context.Context, records ...attendance.Attendance) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, a := range records {
			if !isUUID(a.ID) {
				return attendance.ErrNotFound
			}
			res, err := repo.db.namedExecResult(ctx, `
				UPDATE attendances SET classroom_id = :classroom_id, status = :status, note = :note,
					recorded_by_id = :recorded_by_id, updated_at = :updated_at
				WHERE id = :id`,
				newAttendanceRow(a),
			)
			if err != nil {
				return err
			}
			if err := affectedOrNotFound(res, attendance.ErrNotFound); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *attendanceRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM attendances WHERE id = $1", id)
}
