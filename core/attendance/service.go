package attendance

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
	ErrCannotRecord   = core.NewPermissionError("only admins and the homeroom teacher may record attendance")
	ErrFutureDate     = errors.New("date cannot be in the future")
	errInvalidRecords = errors.New("invalid attendance records")
)

type (
	RecordInput struct {
		StudentID string `json:"student_id" validate:"required"`
		Status    Status `json:"status" validate:"required,oneof=PRESENT SICK PERMISSION ABSENT"`
		Note      string `json:"note" validate:"max=255"`
	}

	// BulkAttendance records a classroom's attendance for a day.
	BulkAttendance struct {
		ClassroomID string        `json:"classroom_id" validate:"required"`
		Date        core.Date     `json:"date" validate:"required"`
		Records     []RecordInput `json:"records" validate:"required,min=1,dive"`
	}

	StudentSummary struct {
		StudentID     string `json:"student_id"`
		StudentNumber string `json:"student_number"`
		Name          string `json:"name"`
		Present       int    `json:"present"`
		Sick          int    `json:"sick"`
		Permission    int    `json:"permission"`
		Absent        int    `json:"absent"`
		Total         int    `json:"total"`
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

// Upsert records a day of attendance: existing (student, date) records are updated
// and the others created. It returns the classroom's records of the day.
func (svc *Service) Upsert(ctx context.Context, actor school.Actor, data BulkAttendance) ([]Attendance, error) {
	data.ClassroomID = core.CleanString(data.ClassroomID)
	for i := range data.Records {
		data.Records[i].StudentID = core.CleanString(data.Records[i].StudentID)
		data.Records[i].Status = Status(core.CleanString(string(data.Records[i].Status)))
		data.Records[i].Note = core.CleanString(data.Records[i].Note)
	}
	if err := svc.validate.Struct(data); err != nil {
		return nil, err
	}
	if data.Date.After(svc.Today()) {
		return nil, core.NewValidationError(ErrFutureDate, core.FieldError{Field: "date", Error: ErrFutureDate.Error()})
	}

	var result []Attendance
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := svc.schools.GetClassroom(ctx, data.ClassroomID)
		if err != nil {
			if errors.Cause(err) == school.ErrClassroomNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "classroom_id", Error: err.Error()})
			}
			return errors.Wrap(err, "getting classroom")
		}
		if !actor.CanManageClassroom(c) {
			return ErrCannotRecord
		}

		students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{ClassroomID: c.ID})
		if err != nil {
			return errors.Wrap(err, "querying classroom students")
		}
		inClassroom := make(map[string]bool, len(students))
		for _, s := range students {
			inClassroom[s.ID] = true
		}

		var flds []core.FieldError
		seen := make(map[string]bool, len(data.Records))
		studentIDs := make([]string, 0, len(data.Records))
		for i, rec := range data.Records {
			field := fmt.Sprintf("records[%d].student_id", i)
			switch {
			case seen[rec.StudentID]:
				flds = append(flds, core.FieldError{Field: field, Error: "duplicate student"})
			case !inClassroom[rec.StudentID]:
				flds = append(flds, core.FieldError{Field: field, Error: "student is not in this classroom"})
			default:
				seen[rec.StudentID] = true
				studentIDs = append(studentIDs, rec.StudentID)
			}
		}
		if len(flds) > 0 {
			return core.NewValidationError(errInvalidRecords, flds...)
		}

		existing, err := svc.repo.Query(ctx, QueryFilter{StudentIDs: studentIDs, Date: data.Date})
		if err != nil {
			return errors.Wrap(err, "querying attendance")
		}
		byStudent := make(map[string]Attendance, len(existing))
		for _, a := range existing {
			byStudent[a.StudentID] = a
		}

		now := time.Now().UTC()
		var creates, updates []Attendance
		for _, rec := range data.Records {
			if a, ok := byStudent[rec.StudentID]; ok {
				a.ClassroomID = c.ID
				a.Status = rec.Status
				a.Note = rec.Note
				a.RecordedByID = actor.User.ID
				a.UpdatedAt = now
				updates = append(updates, a)
				continue
			}
			creates = append(creates, Attendance{
				ID:           uuid.NewString(),
				StudentID:    rec.StudentID,
				ClassroomID:  c.ID,
				Date:         data.Date,
				Status:       rec.Status,
				Note:         rec.Note,
				RecordedByID: actor.User.ID,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if len(updates) > 0 {
			if err := svc.repo.Update(ctx, updates...); err != nil {
				return errors.Wrap(err, "updating attendance")
			}
		}
		if len(creates) > 0 {
			if err := svc.repo.Create(ctx, creates...); err != nil {
				return errors.Wrap(err, "creating attendance")
			}
		}

		result, err = svc.repo.Query(ctx, QueryFilter{ClassroomID: c.ID, Date: data.Date})
		return errors.Wrap(err, "querying attendance")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Query returns attendance records; students and parents only get their own.
func (svc *Service) Query(ctx context.Context, actor school.Actor, filter QueryFilter) ([]Attendance, error) {
	ids, restrict, err := school.RestrictStudentIDs(ctx, svc.schools, actor, filter.StudentIDs)
	if err != nil {
		return nil, err
	}
	if restrict {
		if len(ids) == 0 {
			return []Attendance{}, nil
		}
		filter.StudentIDs = ids
	}
	return svc.repo.Query(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, actor school.Actor, id string) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		c, err := svc.schools.GetClassroom(ctx, a.ClassroomID)
		if err != nil {
			return errors.Wrap(err, "getting classroom")
		}
		if !actor.CanManageClassroom(c) {
			return ErrCannotRecord
		}
		return errors.Wrap(svc.repo.Delete(ctx, a.ID), "deleting attendance")
	})
}

func (svc *Service) students(ctx context.Context, records []Attendance) (map[string]school.Student, error) {
	ids := []string{}
	for _, a := range records {
		if !core.StringInSlice(a.StudentID, ids) {
			ids = append(ids, a.StudentID)
		}
	}
	students := make(map[string]school.Student, len(ids))
	if len(ids) == 0 {
		return students, nil
	}
	ss, err := svc.schools.QueryStudents(ctx, school.StudentFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	for _, s := range ss {
		students[s.ID] = s
	}
	return students, nil
}

// Summary counts the attendance statuses of every student matching filter, ordered by name.
func (svc *Service) Summary(ctx context.Context, actor school.Actor, filter QueryFilter) ([]StudentSummary, error) {
	records, err := svc.Query(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	students, err := svc.students(ctx, records)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]*StudentSummary)
	summaries := []*StudentSummary{}
	for _, a := range records {
		sum, ok := byStudent[a.StudentID]
		if !ok {
			s := students[a.StudentID]
			sum = &StudentSummary{StudentID: a.StudentID, StudentNumber: s.StudentNumber, Name: s.Name}
			byStudent[a.StudentID] = sum
			summaries = append(summaries, sum)
		}
		switch a.Status {
		case StatusPresent:
			sum.Present++
		case StatusSick:
			sum.Sick++
		case StatusPermission:
			sum.Permission++
		case StatusAbsent:
			sum.Absent++
		}
		sum.Total++
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].StudentNumber < summaries[j].StudentNumber
	})
	result := make([]StudentSummary, 0, len(summaries))
	for _, sum := range summaries {
		result = append(result, *sum)
	}
	return result, nil
}

// Export tabulates the attendance records matching filter.
func (svc *Service) Export(ctx context.Context, actor school.Actor, filter QueryFilter) (core.Table, error) {
	table := core.Table{
		Name:   "attendance",
		Header: []string{"Date", "Student Number", "Student Name", "Classroom", "Status", "Note"},
		Rows:   [][]interface{}{},
	}
	records, err := svc.Query(ctx, actor, filter)
	if err != nil {
		return table, err
	}
	students, err := svc.students(ctx, records)
	if err != nil {
		return table, err
	}

	classrooms := make(map[string]school.Classroom)
	for _, a := range records {
		c, ok := classrooms[a.ClassroomID]
		if !ok {
			if c, err = svc.schools.GetClassroom(ctx, a.ClassroomID); err != nil {
				return table, errors.Wrap(err, "getting classroom")
			}
			classrooms[c.ID] = c
		}
		s := students[a.StudentID]
		table.Rows = append(table.Rows, []interface{}{
			a.Date.String(), s.StudentNumber, s.Name, c.Name(), string(a.Status), a.Note,
		})
	}
	return table, nil
}
