package attendance

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

type Status string

const (
	StatusPresent    Status = "PRESENT"
	StatusSick       Status = "SICK"
	StatusPermission Status = "PERMISSION"
	StatusAbsent     Status = "ABSENT"
)

var (
	Statuses    = []Status{StatusPresent, StatusSick, StatusPermission, StatusAbsent}
	ErrNotFound = &core.NotFoundError{Entity: "attendance"}
)

type (
	Attendance struct {
		ID           string    `json:"id"`
		StudentID    string    `json:"student_id"`
		ClassroomID  string    `json:"classroom_id"`
		Date         core.Date `json:"date"`
		Status       Status    `json:"status"`
		Note         string    `json:"note"`
		RecordedByID string    `json:"recorded_by_id"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	QueryFilter struct {
		ClassroomID string
		StudentIDs  []string
		Date        core.Date
		From        core.Date
		To          core.Date
		Status      Status
	}

	Repository interface {
		// Query orders by date (latest first) then student.
		Query(ctx context.Context, filter QueryFilter) ([]Attendance, error)
		Get(ctx context.Context, id string) (Attendance, error)
		Create(ctx context.Context, records ...Attendance) error
		Update(ctx context.Context, records ...Attendance) error
		Delete(ctx context.Context, id string) error
	}
)
