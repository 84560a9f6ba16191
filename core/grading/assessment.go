package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	ErrCannotGrade       = core.NewPermissionError("only the subject's teachers may grade this classroom")
	errInvalidScores     = errors.New("invalid scores")
	errInvalidAssessment = errors.New("invalid assessment")
)

type (
	NewAssessment struct {
		ClassroomID  string                `json:"classroom_id" validate:"required"`
		SubjectID    string                `json:"subject_id" validate:"required"`
		AcademicYear string                `json:"academic_year" validate:"omitempty,academicyear"`
		Semester     int                   `json:"semester" validate:"omitempty,oneof=1 2"`
		Type         school.AssessmentType `json:"type" validate:"required,oneof=ASSIGNMENT QUIZ MIDTERM FINAL"`
		Title        string                `json:"title" validate:"required,notblank,max=150"`
		MaxScore     float64               `json:"max_score" validate:"required,gt=0,max=1000"`
		Date         core.Date             `json:"date" validate:"required"`
	}

	// ScoreInput sets the score of a student; a nil Score removes it.
	ScoreInput struct {
		StudentID string   `json:"student_id"`
		Score     *float64 `json:"score"`
	}

	UpsertScores struct {
		Scores []ScoreInput `json:"scores"`
	}
)

// visibleClassroomIDs returns the classrooms of the students a non-staff actor may see.
func (svc *Service) visibleClassroomIDs(ctx context.Context, actor school.Actor) ([]string, error) {
	ids, _, err := school.VisibleStudentIDs(ctx, svc.schools, actor)
	if err != nil || len(ids) == 0 {
		return []string{}, err
	}
	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	classroomIDs := []string{}
	for _, s := range students {
		if s.ClassroomID != "" && !core.StringInSlice(s.ClassroomID, classroomIDs) {
			classroomIDs = append(classroomIDs, s.ClassroomID)
		}
	}
	return classroomIDs, nil
}

func (svc *Service) QueryAssessments(ctx context.Context, actor school.Actor, filter AssessmentFilter) ([]Assessment, error) {
	if !actor.IsStaff() {
		visible, err := svc.visibleClassroomIDs(ctx, actor)
		if err != nil {
			return nil, err
		}
		if len(filter.ClassroomIDs) > 0 {
			var ids []string
			for _, id := range filter.ClassroomIDs {
				if core.StringInSlice(id, visible) {
					ids = append(ids, id)
				}
			}
			visible = ids
		}
		if len(visible) == 0 {
			return []Assessment{}, nil
		}
		filter.ClassroomIDs = visible
	}
	return svc.repo.QueryAssessments(ctx, filter)
}

// GetAssessment returns ErrAssessmentNotFound for assessments of classrooms the actor may not see.
func (svc *Service) GetAssessment(ctx context.Context, actor school.Actor, id string) (Assessment, error) {
	a, err := svc.repo.GetAssessment(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if actor.IsStaff() {
		return a, nil
	}
	visible, err := svc.visibleClassroomIDs(ctx, actor)
	if err != nil {
		return Assessment{}, err
	}
	if !core.StringInSlice(a.ClassroomID, visible) {
		return Assessment{}, ErrAssessmentNotFound
	}
	return a, nil
}

func (svc *Service) CreateAssessment(ctx context.Context, actor school.Actor, data NewAssessment) (Assessment, error) {
	data.ClassroomID = core.CleanString(data.ClassroomID)
	data.SubjectID = core.CleanString(data.SubjectID)
	data.Title = core.CleanString(data.Title)
	data.Type = school.AssessmentType(core.CleanString(string(data.Type)))
	if err := svc.validate.Struct(data); err != nil {
		return Assessment{}, err
	}
	term := svc.CurrentTerm()
	if data.AcademicYear != "" {
		term.AcademicYear = data.AcademicYear
	}
	if data.Semester != 0 {
		term.Semester = data.Semester
	}

	now := time.Now().UTC()
	a := Assessment{
		ID:           uuid.NewString(),
		ClassroomID:  data.ClassroomID,
		SubjectID:    data.SubjectID,
		AcademicYear: term.AcademicYear,
		Semester:     term.Semester,
		Type:         data.Type,
		Title:        data.Title,
		MaxScore:     data.MaxScore,
		Date:         data.Date,
		CreatedByID:  actor.TeacherID(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var flds []core.FieldError
		if _, err := svc.schools.GetClassroom(ctx, a.ClassroomID); err != nil {
			if errors.Cause(err) != school.ErrClassroomNotFound {
				return errors.Wrap(err, "getting classroom")
			}
			flds = append(flds, core.FieldError{Field: "classroom_id", Error: school.ErrClassroomNotFound.Error()})
		}
		if _, err := svc.schools.GetSubject(ctx, a.SubjectID); err != nil {
			if errors.Cause(err) != school.ErrSubjectNotFound {
				return errors.Wrap(err, "getting subject")
			}
			flds = append(flds, core.FieldError{Field: "subject_id", Error: school.ErrSubjectNotFound.Error()})
		}
		if len(flds) > 0 {
			return core.NewValidationError(errInvalidAssessment, flds...)
		}

		ok, err := school.CanTeach(ctx, svc.schools, actor, a.SubjectID, a.ClassroomID, a.AcademicYear)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCannotGrade
		}

		if err := svc.repo.CreateAssessment(ctx, a); err != nil {
			return errors.Wrap(err, "creating assessment")
		}
		students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{ClassroomID: a.ClassroomID})
		if err != nil {
			return errors.Wrap(err, "querying classroom students")
		}
		studentIDs := make([]string, 0, len(students))
		for _, s := range students {
			studentIDs = append(studentIDs, s.ID)
		}
		_, err = svc.EnsureGradebooks(ctx, studentIDs, []string{a.SubjectID}, a.Term())
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	return a, nil
}

func (svc *Service) checkCanGrade(ctx context.Context, actor school.Actor, a Assessment) error {
	ok, err := school.CanTeach(ctx, svc.schools, actor, a.SubjectID, a.ClassroomID, a.AcademicYear)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCannotGrade
	}
	return nil
}

func (svc *Service) DeleteAssessment(ctx context.Context, actor school.Actor, id string) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.repo.GetAssessment(ctx, id)
		if err != nil {
			return err
		}
		if err := svc.checkCanGrade(ctx, actor, a); err != nil {
			return err
		}
		c, err := svc.schools.GetClassroom(ctx, a.ClassroomID)
		if err != nil {
			return errors.Wrap(err, "getting classroom")
		}

		scores, err := svc.repo.QueryScores(ctx, ScoreFilter{AssessmentIDs: []string{a.ID}})
		if err != nil {
			return errors.Wrap(err, "querying scores")
		}
		gradebookIDs := make([]string, 0, len(scores))
		for _, s := range scores {
			gradebookIDs = append(gradebookIDs, s.GradebookID)
		}

		if err := svc.repo.DeleteAssessment(ctx, a.ID); err != nil {
			return errors.Wrap(err, "deleting assessment")
		}
		return svc.recomputeFinalScores(ctx, a.SubjectID, c.Grade, a.Term(), gradebookIDs)
	})
}

// Scores returns the scores of an assessment; students and parents only get their own.
func (svc *Service) Scores(ctx context.Context, actor school.Actor, assessmentID string) ([]AssessmentScore, error) {
	a, err := svc.GetAssessment(ctx, actor, assessmentID)
	if err != nil {
		return nil, err
	}
	filter := ScoreFilter{AssessmentIDs: []string{a.ID}}
	ids, restrict, err := school.RestrictStudentIDs(ctx, svc.schools, actor, nil)
	if err != nil {
		return nil, err
	}
	if restrict {
		if len(ids) == 0 {
			return []AssessmentScore{}, nil
		}
		filter.StudentIDs = ids
	}
	return svc.repo.QueryScores(ctx, filter)
}

// UpsertScores records the scores of an assessment in one go: every entry is checked
// before anything is written.
func (svc *Service) UpsertScores(ctx context.Context, actor school.Actor, assessmentID string, data UpsertScores) ([]AssessmentScore, error) {
	if len(data.Scores) == 0 {
		return nil, core.NewValidationError(errInvalidScores, core.FieldError{Field: "scores", Error: "this field is required"})
	}

	var result []AssessmentScore
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.repo.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		if err := svc.checkCanGrade(ctx, actor, a); err != nil {
			return err
		}
		c, err := svc.schools.GetClassroom(ctx, a.ClassroomID)
		if err != nil {
			return errors.Wrap(err, "getting classroom")
		}
		students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{ClassroomID: a.ClassroomID})
		if err != nil {
			return errors.Wrap(err, "querying classroom students")
		}
		inClassroom := make(map[string]bool, len(students))
		for _, s := range students {
			inClassroom[s.ID] = true
		}

		var flds []core.FieldError
		seen := make(map[string]bool, len(data.Scores))
		studentIDs := make([]string, 0, len(data.Scores))
		for i, in := range data.Scores {
			key := fmt.Sprintf("scores[%d].", i)
			in.StudentID = core.CleanString(in.StudentID)
			data.Scores[i] = in
			switch {
			case in.StudentID == "":
				flds = append(flds, core.FieldError{Field: key + "student_id", Error: "this field is required"})
			case seen[in.StudentID]:
				flds = append(flds, core.FieldError{Field: key + "student_id", Error: "duplicate student"})
			case !inClassroom[in.StudentID]:
				flds = append(flds, core.FieldError{Field: key + "student_id", Error: "student is not in this classroom"})
			default:
				seen[in.StudentID] = true
				studentIDs = append(studentIDs, in.StudentID)
			}
			if in.Score != nil && (*in.Score < 0 || *in.Score > a.MaxScore) {
				flds = append(flds, core.FieldError{
					Field: key + "score",
					Error: fmt.Sprintf("must be between 0 and %g", a.MaxScore),
				})
			}
		}
		if len(flds) > 0 {
			return core.NewValidationError(errInvalidScores, flds...)
		}

		gbs, err := svc.EnsureGradebooks(ctx, studentIDs, []string{a.SubjectID}, a.Term())
		if err != nil {
			return err
		}
		existing, err := svc.repo.QueryScores(ctx, ScoreFilter{AssessmentIDs: []string{a.ID}})
		if err != nil {
			return errors.Wrap(err, "querying scores")
		}
		byStudent := make(map[string]AssessmentScore, len(existing))
		for _, s := range existing {
			byStudent[s.StudentID] = s
		}

		now := time.Now().UTC()
		var creates, updates []AssessmentScore
		var deletes, touched []string
		for _, in := range data.Scores {
			gb := gbs[gradebookKey(in.StudentID, a.SubjectID)]
			cur, exists := byStudent[in.StudentID]
			switch {
			case in.Score == nil && exists:
				deletes = append(deletes, cur.ID)
			case in.Score == nil:
				continue
			case exists:
				if cur.Score == *in.Score {
					continue
				}
				cur.Score = *in.Score
				cur.UpdatedAt = now
				updates = append(updates, cur)
			default:
				creates = append(creates, AssessmentScore{
					ID:           uuid.NewString(),
					AssessmentID: a.ID,
					GradebookID:  gb.ID,
					StudentID:    in.StudentID,
					Score:        *in.Score,
					CreatedAt:    now,
					UpdatedAt:    now,
				})
			}
			touched = append(touched, gb.ID)
		}

		if len(deletes) > 0 {
			if err := svc.repo.DeleteScores(ctx, deletes...); err != nil {
				return errors.Wrap(err, "deleting scores")
			}
		}
		if len(updates) > 0 {
			if err := svc.repo.UpdateScores(ctx, updates...); err != nil {
				return errors.Wrap(err, "updating scores")
			}
		}
		if len(creates) > 0 {
			if err := svc.repo.CreateScores(ctx, creates...); err != nil {
				return errors.Wrap(err, "creating scores")
			}
		}
		if err := svc.recomputeFinalScores(ctx, a.SubjectID, c.Grade, a.Term(), touched); err != nil {
			return err
		}

		result, err = svc.repo.QueryScores(ctx, ScoreFilter{AssessmentIDs: []string{a.ID}})
		return errors.Wrap(err, "querying scores")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
