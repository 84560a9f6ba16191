package discipline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	ErrCannotRecord  = core.NewPermissionError("only staff may record demerit points")
	ErrCannotDelete  = core.NewPermissionError("only admins and the recorder may delete demerit points")
	ErrFutureDate    = errors.New("date cannot be in the future")
	errInvalidPoints = errors.New("invalid demerit points")
)

type (
	// NewDemeritPoints records the same infraction for several students.
	NewDemeritPoints struct {
		StudentIDs  []string  `json:"student_ids" validate:"required,min=1,unique,dive,required"`
		Category    Category  `json:"category" validate:"required,oneof=LATE UNIFORM TRUANCY PHONE DISRESPECT SMOKING FIGHTING BULLYING OTHER"`
		Points      int       `json:"points" validate:"omitempty,min=1,max=100"`
		Date        core.Date `json:"date" validate:"required"`
		Description string    `json:"description" validate:"max=500"`
	}

	StudentSummary struct {
		StudentID     string `json:"student_id"`
		StudentNumber string `json:"student_number"`
		Name          string `json:"name"`
		TotalPoints   int    `json:"total_points"`
		Count         int    `json:"count"`
	}

	// SummaryFilter narrows the summary to a classroom or to some students.
	SummaryFilter struct {
		ClassroomID string
		QueryFilter
	}

	Service struct {
		repo     Repository
		schools  school.Repository
		tx       core.Transactor
		validate *validator.Validate
		conf     core.SchoolConfig
		now      func() time.Time
	}
)

func NewService(
	repo Repository,
	schools school.Repository,
	tx core.Transactor,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		schools:  schools,
		tx:       tx,
		validate: validate,
		conf:     conf.School,
		now:      time.Now,
	}
}

func (svc *Service) Today() core.Date {
	return svc.conf.Today(svc.now())
}

func (svc *Service) Create(ctx context.Context, actor school.Actor, data NewDemeritPoints) ([]DemeritPoint, error) {
	if !actor.IsStaff() {
		return nil, ErrCannotRecord
	}
	for i := range data.StudentIDs {
		data.StudentIDs[i] = core.CleanString(data.StudentIDs[i])
	}
	data.Category = Category(core.CleanString(string(data.Category)))
	data.Description = core.CleanString(data.Description)
	if err := svc.validate.Struct(data); err != nil {
		return nil, err
	}

	info, _ := data.Category.Info()
	var flds []core.FieldError
	if data.Date.After(svc.Today()) {
		flds = append(flds, core.FieldError{Field: "date", Error: ErrFutureDate.Error()})
	}
	if data.Points == 0 {
		if info.DefaultPoints == 0 {
			flds = append(flds, core.FieldError{Field: "points", Error: "this field is required"})
		}
		data.Points = info.DefaultPoints
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(errInvalidPoints, flds...)
	}

	var created []DemeritPoint
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{IDs: data.StudentIDs})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		known := make(map[string]bool, len(students))
		for _, s := range students {
			known[s.ID] = true
		}

		recorded := make(map[string]bool)
		if info.SinglePerDay {
			dups, err := svc.repo.Query(ctx, QueryFilter{
				StudentIDs: data.StudentIDs,
				Categories: []Category{data.Category},
				Date:       data.Date,
			})
			if err != nil {
				return errors.Wrap(err, "querying demerit points")
			}
			for _, dp := range dups {
				recorded[dp.StudentID] = true
			}
		}

		for i, id := range data.StudentIDs {
			field := fmt.Sprintf("student_ids[%d]", i)
			switch {
			case !known[id]:
				flds = append(flds, core.FieldError{Field: field, Error: school.ErrStudentNotFound.Error()})
			case recorded[id]:
				flds = append(flds, core.FieldError{
					Field: field,
					Error: fmt.Sprintf("%s was already recorded for this student on %s", data.Category, data.Date),
				})
			}
		}
		if len(flds) > 0 {
			return core.NewValidationError(errInvalidPoints, flds...)
		}

		now := time.Now().UTC()
		created = make([]DemeritPoint, 0, len(data.StudentIDs))
		for _, id := range data.StudentIDs {
			created = append(created, DemeritPoint{
				ID:           uuid.NewString(),
				StudentID:    id,
				Category:     data.Category,
				Points:       data.Points,
				Date:         data.Date,
				Description:  data.Description,
				RecordedByID: actor.User.ID,
				CreatedAt:    now,
			})
		}
		return errors.Wrap(svc.repo.Create(ctx, created...), "creating demerit points")
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// classroomStudentIDs narrows filter to the students of a classroom when one is given.
// ok is false when nothing can match.
func (svc *Service) classroomStudentIDs(ctx context.Context, classroomID string, filter QueryFilter) (QueryFilter, bool, error) {
	if classroomID == "" {
		return filter, true, nil
	}
	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{ClassroomID: classroomID, IDs: filter.StudentIDs})
	if err != nil {
		return filter, false, errors.Wrap(err, "querying classroom students")
	}
	filter.StudentIDs = make([]string, 0, len(students))
	for _, s := range students {
		filter.StudentIDs = append(filter.StudentIDs, s.ID)
	}
	return filter, len(filter.StudentIDs) > 0, nil
}

// Query returns demerit points of the students in classroomID (if given) matching filter;
// students and parents only get their own.
func (svc *Service) Query(ctx context.Context, actor school.Actor, classroomID string, filter QueryFilter) ([]DemeritPoint, error) {
	ids, restrict, err := school.RestrictStudentIDs(ctx, svc.schools, actor, filter.StudentIDs)
	if err != nil {
		return nil, err
	}
	if restrict {
		if len(ids) == 0 {
			return []DemeritPoint{}, nil
		}
		filter.StudentIDs = ids
	}
	filter, ok, err := svc.classroomStudentIDs(ctx, classroomID, filter)
	if err != nil || !ok {
		return []DemeritPoint{}, err
	}
	return svc.repo.Query(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, actor school.Actor, id string) error {
	dp, err := svc.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && dp.RecordedByID != actor.User.ID {
		return ErrCannotDelete
	}
	return errors.Wrap(svc.repo.Delete(ctx, dp.ID), "deleting demerit point")
}

// Summary totals the demerit points per student, the most penalized first.
func (svc *Service) Summary(ctx context.Context, actor school.Actor, filter SummaryFilter) ([]StudentSummary, error) {
	points, err := svc.Query(ctx, actor, filter.ClassroomID, filter.QueryFilter)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]*StudentSummary)
	ids := []string{}
	for _, dp := range points {
		sum, ok := byStudent[dp.StudentID]
		if !ok {
			sum = &StudentSummary{StudentID: dp.StudentID}
			byStudent[dp.StudentID] = sum
			ids = append(ids, dp.StudentID)
		}
		sum.TotalPoints += dp.Points
		sum.Count++
	}
	result := make([]StudentSummary, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	for _, s := range students {
		if sum, ok := byStudent[s.ID]; ok {
			sum.StudentNumber = s.StudentNumber
			sum.Name = s.Name
		}
	}
	for _, id := range ids {
		result = append(result, *byStudent[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TotalPoints != result[j].TotalPoints {
			return result[i].TotalPoints > result[j].TotalPoints
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}
