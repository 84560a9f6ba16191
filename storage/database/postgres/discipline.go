package pgrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/discipline"
)

type demeritPointRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	Category     string      `db:"category"`
	Points       int         `db:"points"`
	Date         core.Date   `db:"date"`
	Description  string      `db:"description"`
	RecordedByID null.String `db:"recorded_by_id"`
	CreatedAt    time.Time   `db:"created_at"`
}

func newDemeritPointRow(dp discipline.DemeritPoint) demeritPointRow {
	return demeritPointRow{
		ID:           dp.ID,
		StudentID:    dp.StudentID,
		Category:     string(dp.Category),
		Points:       dp.Points,
		Date:         dp.Date,
		Description:  dp.Description,
		RecordedByID: nullString(dp.RecordedByID),
		CreatedAt:    dp.CreatedAt,
	}
}

func (r demeritPointRow) model() discipline.DemeritPoint {
	return discipline.DemeritPoint{
		ID:           r.ID,
		StudentID:    r.StudentID,
		Category:     discipline.Category(r.Category),
		Points:       r.Points,
		Date:         r.Date,
		Description:  r.Description,
		RecordedByID: r.RecordedByID.String,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

const demeritPointSelect = `SELECT id, student_id, category, points, date, description, recorded_by_id, created_at
	FROM demerit_points`

type disciplineRepository struct {
	db *DB
}

func NewDisciplineRepository(db *DB) discipline.Repository {
	return &disciplineRepository{db: db}
}

func (repo *disciplineRepository) Query(ctx context.Context, filter discipline.QueryFilter) ([]discipline.DemeritPoint, error) {
	var cond conditions
	cond.ids("student_id", filter.StudentIDs)
	if len(filter.Categories) > 0 {
		categories := make(pq.StringArray, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			categories = append(categories, string(c))
		}
		cond.add("category = ANY(?)", categories)
	}
	cond.dateRange("date", filter.Date, filter.From, filter.To)

	var rows []demeritPointRow
	q := demeritPointSelect + cond.where() + " ORDER BY date DESC, created_at DESC, student_id"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying demerit points")
	}
	points := make([]discipline.DemeritPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, r.model())
	}
	return points, nil
}

func (repo *disciplineRepository) Get(ctx context.Context, id string) (discipline.DemeritPoint, error) {
	var r demeritPointRow
	if err := repo.db.getOne(ctx, discipline.ErrNotFound, &r, demeritPointSelect+" WHERE id = $1", id); err != nil {
		return discipline.DemeritPoint{}, err
	}
	return r.model(), nil
}

func (repo *disciplineRepository) Create(ctx context.Context, points ...discipline.DemeritPoint) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, dp := range points {
			err := repo.db.namedExec(ctx, `
				INSERT INTO demerit_points (id, student_id, category, points, date, description, recorded_by_id, created_at)
				VALUES (:id, :student_id, :category, :points, :date, :description, :recorded_by_id, :created_at)`,
				newDemeritPointRow(dp),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *disciplineRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM demerit_points WHERE id = $1", id)
}
