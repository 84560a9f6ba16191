package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/discipline"
)

type disciplineRepository struct {
	db *DB
}

func NewDisciplineRepository(db *DB) discipline.Repository {
	return &disciplineRepository{db: db}
}

func (repo *disciplineRepository) Query(_ context.Context, filter discipline.QueryFilter) ([]discipline.DemeritPoint, error) {
	var categories []string
	for _, c := range filter.Categories {
		categories = append(categories, string(c))
	}
	points := []discipline.DemeritPoint{}
	repo.db.read(func(t *tables) {
		for _, dp := range t.demerits {
			switch {
			case len(filter.StudentIDs) > 0 && !inSlice(dp.StudentID, filter.StudentIDs):
			case len(categories) > 0 && !inSlice(string(dp.Category), categories):
			case !filter.Date.IsZero() && !dp.Date.Equal(filter.Date):
			case !filter.From.IsZero() && dp.Date.Before(filter.From):
			case !filter.To.IsZero() && dp.Date.After(filter.To):
			default:
				points = append(points, dp)
			}
		}
	})
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.After(points[j].Date)
		}
		if !points[i].CreatedAt.Equal(points[j].CreatedAt) {
			return points[i].CreatedAt.After(points[j].CreatedAt)
		}
		return points[i].StudentID < points[j].StudentID
	})
	return points, nil
}

func (repo *disciplineRepository) Get(_ context.Context, id string) (dp discipline.DemeritPoint, err error) {
	err = discipline.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.demerits[id]; ok {
			dp, err = found, nil
		}
	})
	return dp, err
}

func (repo *disciplineRepository) Create(ctx context.Context, points ...discipline.DemeritPoint) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, dp := range points {
			if info, _ := dp.Category.Info(); info.SinglePerDay {
				for _, other := range t.demerits {
					if other.StudentID == dp.StudentID && other.Category == dp.Category && other.Date.Equal(dp.Date) {
						return uniqueViolation("category", "this category can only be recorded once per day")
					}
				}
			}
			t.demerits[dp.ID] = dp
		}
		return nil
	})
}

func (repo *disciplineRepository) Delete(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		delete(t.demerits, id)
		return nil
	})
}
