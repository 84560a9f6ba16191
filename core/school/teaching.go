package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var ErrSubjectAlreadyTaught = errors.New("this subject is already taught to this classroom during this academic year")

type NewTeachingAssignment struct {
	TeacherID    string `json:"teacher_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	ClassroomID  string `json:"classroom_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"omitempty,academicyear"` // current by default
}

func (svc *Service) QueryTeachingAssignments(ctx context.Context, filter TeachingAssignmentFilter) ([]TeachingAssignment, error) {
	return svc.repo.QueryTeachingAssignments(ctx, filter)
}

// CreateTeachingAssignment assigns a teacher to a subject & classroom, then opens the
// current term gradebooks of the classroom's students for that subject.
func (svc *Service) CreateTeachingAssignment(ctx context.Context, data NewTeachingAssignment) (TeachingAssignment, error) {
	data.TeacherID = core.CleanString(data.TeacherID)
	data.SubjectID = core.CleanString(data.SubjectID)
	data.ClassroomID = core.CleanString(data.ClassroomID)
	data.AcademicYear = core.CleanString(data.AcademicYear)
	if err := svc.validate.Struct(data); err != nil {
		return TeachingAssignment{}, err
	}
	term := svc.CurrentTerm()
	if data.AcademicYear == "" {
		data.AcademicYear = term.AcademicYear
	}

	ta := TeachingAssignment{
		ID:           uuid.NewString(),
		TeacherID:    data.TeacherID,
		SubjectID:    data.SubjectID,
		ClassroomID:  data.ClassroomID,
		AcademicYear: data.AcademicYear,
		CreatedAt:    time.Now().UTC(),
	}
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var flds []core.FieldError
		refs := []struct {
			field    string
			get      func() error
			notFound error
		}{
			{"teacher_id", func() error { _, err := svc.repo.GetTeacher(ctx, ta.TeacherID); return err }, ErrTeacherNotFound},
			{"subject_id", func() error { _, err := svc.repo.GetSubject(ctx, ta.SubjectID); return err }, ErrSubjectNotFound},
			{"classroom_id", func() error { _, err := svc.repo.GetClassroom(ctx, ta.ClassroomID); return err }, ErrClassroomNotFound},
		}
		for _, ref := range refs {
			if err := ref.get(); err != nil {
				if errors.Cause(err) != ref.notFound {
					return errors.Wrapf(err, "checking %s", ref.field)
				}
				flds = append(flds, core.FieldError{Field: ref.field, Error: ref.notFound.Error()})
			}
		}
		if len(flds) > 0 {
			return core.NewValidationError(errors.New("invalid teaching assignment"), flds...)
		}

		dups, err := svc.repo.QueryTeachingAssignments(ctx, TeachingAssignmentFilter{
			SubjectID:    ta.SubjectID,
			ClassroomID:  ta.ClassroomID,
			AcademicYear: ta.AcademicYear,
		})
		if err != nil {
			return errors.Wrap(err, "querying teaching assignments")
		}
		if len(dups) > 0 {
			return core.NewValidationError(
				ErrSubjectAlreadyTaught, core.FieldError{Field: "subject_id", Error: ErrSubjectAlreadyTaught.Error()},
			)
		}

		if err := svc.repo.CreateTeachingAssignment(ctx, ta); err != nil {
			return errors.Wrap(err, "creating teaching assignment")
		}
		if ta.AcademicYear != term.AcademicYear || svc.gradebooks == nil {
			return nil
		}
		students, err := svc.repo.QueryStudents(ctx, StudentFilter{ClassroomID: ta.ClassroomID})
		if err != nil {
			return errors.Wrap(err, "querying classroom students")
		}
		return errors.Wrap(svc.gradebooks.EnsureClassroomGradebooks(ctx, ta.ClassroomID, students...), "ensuring gradebooks")
	})
	if err != nil {
		return TeachingAssignment{}, err
	}
	return ta, nil
}

func (svc *Service) DeleteTeachingAssignment(ctx context.Context, id string) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetTeachingAssignment(ctx, id); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteTeachingAssignment(ctx, id), "deleting teaching assignment")
	})
}
