package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) Query(_ context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	records := []attendance.Attendance{}
	repo.db.read(func(t *tables) {
		for _, a := range t.attendances {
			switch {
			case filter.ClassroomID != "" && a.ClassroomID != filter.ClassroomID:
			case len(filter.StudentIDs) > 0 && !inSlice(a.StudentID, filter.StudentIDs):
			case !filter.Date.IsZero() && !a.Date.Equal(filter.Date):
			case !filter.From.IsZero() && a.Date.Before(filter.From):
			case !filter.To.IsZero() && a.Date.After(filter.To):
			case filter.Status != "" && a.Status != filter.Status:
			default:
				records = append(records, a)
			}
		}
	})
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}

func (repo *attendanceRepository) Get(_ context.Context, id string) (a attendance.Attendance, err error) {
	err = attendance.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.attendances[id]; ok {
			a, err = found, nil
		}
	})
	return a, err
}

func (repo *attendanceRepository) Create(ctx context.Context, records ...attendance.Attendance) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, a := range records {
			for _, other := range t.attendances {
				if other.StudentID == a.StudentID && other.Date.Equal(a.Date) {
					return uniqueViolation("student_id", "attendance already recorded for this student on this day")
				}
			}
			t.attendances[a.ID] = a
		}
		return nil
	})
}

func (repo *attendanceRepository) Update(ctx context.Context, records ...attendance.Attendance) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, a := range records {
			if _, ok := t.attendances[a.ID]; !ok {
				return attendance.ErrNotFound
			}
			t.attendances[a.ID] = a
		}
		return nil
	})
}

func (repo *attendanceRepository) Delete(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		delete(t.attendances, id)
		return nil
	})
}
