package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

type (
	// GradebookEnsurer opens the current term gradebooks of students placed in a classroom,
	// one per subject taught there.
	GradebookEnsurer interface {
		EnsureClassroomGradebooks(ctx context.Context, classroomID string, students ...Student) error
	}

	// FinalScoreRecomputer refreshes the stored final scores of a subject's term gradebooks
	// scored in classrooms of grade.
	FinalScoreRecomputer interface {
		RecomputeSubjectFinalScores(ctx context.Context, subjectID string, grade int, term core.Term) error
	}

	Gradebooks interface {
		GradebookEnsurer
		FinalScoreRecomputer
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		validate   *validator.Validate
		gradebooks Gradebooks
		conf       core.SchoolConfig
		now        func() time.Time
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	validate *validator.Validate,
	gradebooks Gradebooks,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		validate:   validate,
		gradebooks: gradebooks,
		conf:       conf.School,
		now:        time.Now,
	}
}

func (svc *Service) CurrentTerm() core.Term {
	return svc.conf.CurrentTerm(svc.now())
}

func (svc *Service) Today() core.Date {
	return svc.conf.Today(svc.now())
}

// Students

type UpdateStudent struct {
	StudentNumber string    `json:"student_number" validate:"omitempty,max=50"`
	ClassroomID   *string   `json:"classroom_id"` // "" removes the student from its classroom
	ParentID      *string   `json:"parent_id"`    // "" unlinks the parent
	Gender        string    `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate     core.Date `json:"birth_date"`
}

func (svc *Service) QueryStudents(ctx context.Context, actor Actor, filter StudentFilter) ([]Student, error) {
	ids, restrict, err := svc.RestrictStudentIDs(ctx, actor, filter.IDs)
	if err != nil {
		return nil, err
	}
	if restrict {
		if len(ids) == 0 {
			return []Student{}, nil
		}
		filter.IDs = ids
	}
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryStudents(ctx, filter)
}

// GetStudent returns ErrStudentNotFound for students the actor may not see.
func (svc *Service) GetStudent(ctx context.Context, actor Actor, id string) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !actor.CanViewStudent(s) {
		return Student{}, ErrStudentNotFound
	}
	return s, nil
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, data UpdateStudent) (Student, error) {
	data.StudentNumber = core.CleanString(data.StudentNumber)
	data.Gender = core.CleanString(data.Gender)
	if err := svc.validate.Struct(data); err != nil {
		return Student{}, err
	}

	var s Student
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = svc.repo.GetStudent(ctx, id); err != nil {
			return err
		}
		var flds []core.FieldError

		if data.StudentNumber != "" && data.StudentNumber != s.StudentNumber {
			taken, err := svc.repo.ExistingStudentNumbers(ctx, []string{data.StudentNumber})
			if err != nil {
				return errors.Wrap(err, "checking student numbers")
			}
			if len(taken) > 0 {
				flds = append(flds, core.FieldError{Field: "student_number", Error: "a student with this number already exists"})
			}
			s.StudentNumber = data.StudentNumber
		}

		movedClassroom := false
		if data.ClassroomID != nil && *data.ClassroomID != s.ClassroomID {
			if *data.ClassroomID != "" {
				if _, err := svc.repo.GetClassroom(ctx, *data.ClassroomID); err != nil {
					if errors.Cause(err) != ErrClassroomNotFound {
						return errors.Wrap(err, "getting classroom")
					}
					flds = append(flds, core.FieldError{Field: "classroom_id", Error: ErrClassroomNotFound.Error()})
				}
				movedClassroom = true
			}
			s.ClassroomID = *data.ClassroomID
		}

		if data.ParentID != nil && *data.ParentID != s.ParentID {
			if *data.ParentID != "" {
				if _, err := svc.repo.GetParent(ctx, *data.ParentID); err != nil {
					if errors.Cause(err) != ErrParentNotFound {
						return errors.Wrap(err, "getting parent")
					}
					flds = append(flds, core.FieldError{Field: "parent_id", Error: ErrParentNotFound.Error()})
				}
			}
			s.ParentID = *data.ParentID
		}

		if len(flds) > 0 {
			return core.NewValidationError(errors.New("invalid student data"), flds...)
		}
		if data.Gender != "" {
			s.Gender = data.Gender
		}
		if !data.BirthDate.IsZero() {
			s.BirthDate = data.BirthDate
		}
		s.UpdatedAt = time.Now().UTC()

		if err := svc.repo.UpdateStudent(ctx, s); err != nil {
			return errors.Wrap(err, "updating student")
		}
		if movedClassroom && svc.gradebooks != nil {
			return errors.Wrap(svc.gradebooks.EnsureClassroomGradebooks(ctx, s.ClassroomID, s), "ensuring gradebooks")
		}
		return nil
	})
	return s, err
}

// Teachers & Parents

func (svc *Service) QueryTeachers(ctx context.Context, filter ProfileFilter) ([]Teacher, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryTeachers(ctx, filter)
}

func (svc *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) QueryParents(ctx context.Context, filter ProfileFilter) ([]Parent, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryParents(ctx, filter)
}

func (svc *Service) GetParent(ctx context.Context, id string) (Parent, error) {
	return svc.repo.GetParent(ctx, id)
}
