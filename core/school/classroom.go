package school

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	ErrClassroomExists     = errors.New("a classroom with this grade, major and section already exists")
	ErrClassroomHasStudent = errors.New("a classroom with students cannot be deleted")
)

// ClassroomInput is used to create or replace a Classroom.
type ClassroomInput struct {
	Grade             int    `json:"grade" validate:"required,min=1,max=12"`
	Major             string `json:"major" validate:"required,notblank,max=50"`
	Section           int    `json:"section" validate:"required,min=1,max=99"`
	HomeroomTeacherID string `json:"homeroom_teacher_id"`
}

func (ci *ClassroomInput) Clean() {
	ci.Major = core.CleanString(ci.Major)
	ci.HomeroomTeacherID = core.CleanString(ci.HomeroomTeacherID)
}

func (svc *Service) QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error) {
	filter.Major = core.CleanString(filter.Major)
	return svc.repo.QueryClassrooms(ctx, filter)
}

func (svc *Service) GetClassroom(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, id)
}

// checkClassroom rejects a (grade, major, section) or a homeroom teacher already used by another classroom.
func (svc *Service) checkClassroom(ctx context.Context, data ClassroomInput, excludedID string) error {
	var flds []core.FieldError

	dup, err := svc.repo.FindClassroom(ctx, data.Grade, data.Major, data.Section)
	switch {
	case err == nil && dup.ID != excludedID:
		flds = append(flds, core.FieldError{Field: "classroom", Error: ErrClassroomExists.Error()})
	case err != nil && errors.Cause(err) != ErrClassroomNotFound:
		return errors.Wrap(err, "finding classroom")
	}

	if data.HomeroomTeacherID != "" {
		if _, err := svc.repo.GetTeacher(ctx, data.HomeroomTeacherID); err != nil {
			if errors.Cause(err) != ErrTeacherNotFound {
				return errors.Wrap(err, "getting teacher")
			}
			flds = append(flds, core.FieldError{Field: "homeroom_teacher_id", Error: ErrTeacherNotFound.Error()})
		} else {
			others, err := svc.repo.QueryClassrooms(ctx, ClassroomFilter{HomeroomTeacherID: data.HomeroomTeacherID})
			if err != nil {
				return errors.Wrap(err, "querying classrooms")
			}
			for _, other := range others {
				if other.ID != excludedID {
					flds = append(flds, core.FieldError{
						Field: "homeroom_teacher_id",
						Error: fmt.Sprintf("this teacher is already the homeroom teacher of %s", other.Name()),
					})
					break
				}
			}
		}
	}

	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid classroom"), flds...)
	}
	return nil
}

func (svc *Service) CreateClassroom(ctx context.Context, data ClassroomInput) (Classroom, error) {
	data.Clean()
	if err := svc.validate.Struct(data); err != nil {
		return Classroom{}, err
	}

	now := time.Now().UTC()
	c := Classroom{
		ID:                uuid.NewString(),
		Grade:             data.Grade,
		Major:             data.Major,
		Section:           data.Section,
		HomeroomTeacherID: data.HomeroomTeacherID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.checkClassroom(ctx, data, ""); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.CreateClassroom(ctx, c), "creating classroom")
	})
	if err != nil {
		return Classroom{}, err
	}
	return c, nil
}

func (svc *Service) UpdateClassroom(ctx context.Context, id string, data ClassroomInput) (Classroom, error) {
	data.Clean()
	if err := svc.validate.Struct(data); err != nil {
		return Classroom{}, err
	}

	var c Classroom
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = svc.repo.GetClassroom(ctx, id); err != nil {
			return err
		}
		if err := svc.checkClassroom(ctx, data, c.ID); err != nil {
			return err
		}
		c.Grade = data.Grade
		c.Major = data.Major
		c.Section = data.Section
		c.HomeroomTeacherID = data.HomeroomTeacherID
		c.UpdatedAt = time.Now().UTC()
		return errors.Wrap(svc.repo.UpdateClassroom(ctx, c), "updating classroom")
	})
	if err != nil {
		return Classroom{}, err
	}
	return c, nil
}

// DeleteClassroom also deletes the classroom's teaching assignments, attendances and assessments.
func (svc *Service) DeleteClassroom(ctx context.Context, id string) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetClassroom(ctx, id); err != nil {
			return err
		}
		count, err := svc.repo.CountStudents(ctx, id)
		if err != nil {
			return errors.Wrap(err, "counting students")
		}
		if count > 0 {
			return core.NewValidationError(ErrClassroomHasStudent)
		}
		return errors.Wrap(svc.repo.DeleteClassroom(ctx, id), "deleting classroom")
	})
}
