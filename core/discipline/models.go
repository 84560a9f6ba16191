package discipline

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

type Category string

const (
	CategoryLate       Category = "LATE"
	CategoryUniform    Category = "UNIFORM"
	CategoryTruancy    Category = "TRUANCY"
	CategoryPhone      Category = "PHONE"
	CategoryDisrespect Category = "DISRESPECT"
	CategorySmoking    Category = "SMOKING"
	CategoryFighting   Category = "FIGHTING"
	CategoryBullying   Category = "BULLYING"
	CategoryOther      Category = "OTHER"
)

type CategoryInfo struct {
	Category      Category `json:"category"`
	DefaultPoints int      `json:"default_points"` // 0: points must be given
	SinglePerDay  bool     `json:"single_per_day"`
}

// Categories lists every demerit category along with its rules.
var Categories = []CategoryInfo{
	{CategoryLate, 5, true},
	{CategoryUniform, 5, true},
	{CategoryTruancy, 10, false},
	{CategoryPhone, 10, false},
	{CategoryDisrespect, 15, false},
	{CategorySmoking, 25, false},
	{CategoryFighting, 50, false},
	{CategoryBullying, 50, false},
	{CategoryOther, 0, false},
}

var ErrNotFound = &core.NotFoundError{Entity: "demerit point"}

func (c Category) Info() (CategoryInfo, bool) {
	for _, info := range Categories {
		if info.Category == c {
			return info, true
		}
	}
	return CategoryInfo{}, false
}

type (
	DemeritPoint struct {
		ID           string    `json:"id"`
		StudentID    string    `json:"student_id"`
		Category     Category  `json:"category"`
		Points       int       `json:"points"`
		Date         core.Date `json:"date"`
		Description  string    `json:"description"`
		RecordedByID string    `json:"recorded_by_id"`
		CreatedAt    time.Time `json:"created_at"`
	}

	QueryFilter struct {
		StudentIDs []string
		Categories []Category
		Date       core.Date
		From       core.Date
		To         core.Date
	}

	Repository interface {
		// Query orders by date (latest first) then creation.
		Query(ctx context.Context, filter QueryFilter) ([]DemeritPoint, error)
		Get(ctx context.Context, id string) (DemeritPoint, error)
		Create(ctx context.Context, points ...DemeritPoint) error
		Delete(ctx context.Context, id string) error
	}
)
