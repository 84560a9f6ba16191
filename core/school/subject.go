package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	ErrSubjectExists  = errors.New("a subject with this name already exists")
	ErrSubjectInUse   = errors.New("a subject assigned to teachers cannot be deleted")
	ErrWeightsSum     = errors.New("assessment weights must add up to 100")
	errInvalidSubject = errors.New("invalid subject")
)

type SubjectInput struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// SubjectConfigInput configures a subject for a grade during a term (the current one by default).
type SubjectConfigInput struct {
	SubjectID        string   `json:"subject_id" validate:"required"`
	Grade            int      `json:"grade" validate:"required,min=1,max=12"`
	AcademicYear     string   `json:"academic_year" validate:"omitempty,academicyear"`
	Semester         int      `json:"semester" validate:"omitempty,oneof=1 2"`
	PassingScore     *float64 `json:"passing_score" validate:"omitempty,min=0,max=100"`
	AssignmentWeight int      `json:"assignment_weight" validate:"min=0,max=100"`
	QuizWeight       int      `json:"quiz_weight" validate:"min=0,max=100"`
	MidtermWeight    int      `json:"midterm_weight" validate:"min=0,max=100"`
	FinalWeight      int      `json:"final_weight" validate:"min=0,max=100"`
}

func (svc *Service) QuerySubjects(ctx context.Context, search string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, core.CleanString(search))
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) checkSubjectName(ctx context.Context, name, excludedID string) error {
	dup, err := svc.repo.GetSubjectByName(ctx, name)
	switch {
	case err == nil && dup.ID != excludedID:
		return core.NewValidationError(errInvalidSubject, core.FieldError{Field: "name", Error: ErrSubjectExists.Error()})
	case err != nil && errors.Cause(err) != ErrSubjectNotFound:
		return errors.Wrap(err, "getting subject by name")
	}
	return nil
}

func (svc *Service) CreateSubject(ctx context.Context, data SubjectInput) (Subject, error) {
	data.Name = core.CleanString(data.Name)
	data.Description = core.CleanString(data.Description)
	if err := svc.validate.Struct(data); err != nil {
		return Subject{}, err
	}

	now := time.Now().UTC()
	s := Subject{ID: uuid.NewString(), Name: data.Name, Description: data.Description, CreatedAt: now, UpdatedAt: now}
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.checkSubjectName(ctx, s.Name, ""); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.CreateSubject(ctx, s), "creating subject")
	})
	if err != nil {
		return Subject{}, err
	}
	return s, nil
}

func (svc *Service) UpdateSubject(ctx context.Context, id string, data SubjectInput) (Subject, error) {
	data.Name = core.CleanString(data.Name)
	data.Description = core.CleanString(data.Description)
	if err := svc.validate.Struct(data); err != nil {
		return Subject{}, err
	}

	var s Subject
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = svc.repo.GetSubject(ctx, id); err != nil {
			return err
		}
		if err := svc.checkSubjectName(ctx, data.Name, s.ID); err != nil {
			return err
		}
		s.Name = data.Name
		s.Description = data.Description
		s.UpdatedAt = time.Now().UTC()
		return errors.Wrap(svc.repo.UpdateSubject(ctx, s), "updating subject")
	})
	if err != nil {
		return Subject{}, err
	}
	return s, nil
}

// DeleteSubject rejects subjects still used by teaching assignments.
func (svc *Service) DeleteSubject(ctx context.Context, id string) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetSubject(ctx, id); err != nil {
			return err
		}
		tas, err := svc.repo.QueryTeachingAssignments(ctx, TeachingAssignmentFilter{SubjectID: id})
		if err != nil {
			return errors.Wrap(err, "querying teaching assignments")
		}
		if len(tas) > 0 {
			return core.NewValidationError(ErrSubjectInUse)
		}
		return errors.Wrap(svc.repo.DeleteSubject(ctx, id), "deleting subject")
	})
}

// Subject configs

func (svc *Service) QuerySubjectConfigs(ctx context.Context, filter SubjectConfigFilter) ([]SubjectConfig, error) {
	return svc.repo.QuerySubjectConfigs(ctx, filter)
}

// SubjectConfigFor returns the config of a subject for a grade and term, the default one if missing.
func SubjectConfigFor(ctx context.Context, repo Repository, subjectID string, grade int, term core.Term) (SubjectConfig, error) {
	sc, err := repo.GetSubjectConfig(ctx, subjectID, grade, term)
	if err != nil {
		if errors.Cause(err) == ErrSubjectConfigNotFound {
			return DefaultSubjectConfig(subjectID, grade, term), nil
		}
		return SubjectConfig{}, errors.Wrap(err, "getting subject config")
	}
	return sc, nil
}

// UpsertSubjectConfig creates or replaces the config keyed by (subject, grade, term).
func (svc *Service) UpsertSubjectConfig(ctx context.Context, data SubjectConfigInput) (sc SubjectConfig, created bool, err error) {
	data.SubjectID = core.CleanString(data.SubjectID)
	data.AcademicYear = core.CleanString(data.AcademicYear)
	if err := svc.validate.Struct(data); err != nil {
		return SubjectConfig{}, false, err
	}
	if data.AssignmentWeight+data.QuizWeight+data.MidtermWeight+data.FinalWeight != 100 {
		return SubjectConfig{}, false, core.NewValidationError(
			ErrWeightsSum, core.FieldError{Field: "weights", Error: ErrWeightsSum.Error()},
		)
	}

	term := svc.CurrentTerm()
	if data.AcademicYear != "" {
		term.AcademicYear = data.AcademicYear
	}
	if data.Semester != 0 {
		term.Semester = data.Semester
	}
	passing := DefaultPassingScore
	if data.PassingScore != nil {
		passing = *data.PassingScore
	}

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetSubject(ctx, data.SubjectID); err != nil {
			if errors.Cause(err) == ErrSubjectNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
			}
			return errors.Wrap(err, "getting subject")
		}

		now := time.Now().UTC()
		existing, err := svc.repo.GetSubjectConfig(ctx, data.SubjectID, data.Grade, term)
		switch {
		case err == nil:
			sc = existing
		case errors.Cause(err) == ErrSubjectConfigNotFound:
			created = true
			sc = SubjectConfig{
				ID:           uuid.NewString(),
				SubjectID:    data.SubjectID,
				Grade:        data.Grade,
				AcademicYear: term.AcademicYear,
				Semester:     term.Semester,
				CreatedAt:    now,
			}
		default:
			return errors.Wrap(err, "getting subject config")
		}

		sc.PassingScore = passing
		sc.AssignmentWeight = data.AssignmentWeight
		sc.QuizWeight = data.QuizWeight
		sc.MidtermWeight = data.MidtermWeight
		sc.FinalWeight = data.FinalWeight
		sc.UpdatedAt = now
		if created {
			err = svc.repo.CreateSubjectConfig(ctx, sc)
		} else {
			err = svc.repo.UpdateSubjectConfig(ctx, sc)
		}
		if err != nil {
			return errors.Wrap(err, "saving subject config")
		}
		if svc.gradebooks == nil {
			return nil
		}
		return errors.Wrap(svc.gradebooks.RecomputeSubjectFinalScores(ctx, sc.SubjectID, sc.Grade, sc.Term()), "recomputing final scores")
	})
	if err != nil {
		return SubjectConfig{}, false, err
	}
	return sc, created, nil
}
