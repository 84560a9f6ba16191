package grading

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type Service struct {
	repo     Repository
	schools  school.Repository
	tx       core.Transactor
	validate *validator.Validate
	conf     core.SchoolConfig
	now      func() time.Time
}

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

func (svc *Service) CurrentTerm() core.Term {
	return svc.conf.CurrentTerm(svc.now())
}

func gradebookKey(studentID, subjectID string) string {
	return studentID + "|" + subjectID
}

// EnsureGradebooks creates the missing term gradebooks of every (student, subject) pair
// and returns all of them, keyed by gradebookKey.
func (svc *Service) EnsureGradebooks(ctx context.Context, studentIDs, subjectIDs []string, term core.Term) (map[string]Gradebook, error) {
	gbs := make(map[string]Gradebook)
	if len(studentIDs) == 0 || len(subjectIDs) == 0 {
		return gbs, nil
	}

	existing, err := svc.repo.QueryGradebooks(ctx, GradebookFilter{
		StudentIDs:   studentIDs,
		AcademicYear: term.AcademicYear,
		Semester:     term.Semester,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying gradebooks")
	}
	for _, gb := range existing {
		gbs[gradebookKey(gb.StudentID, gb.SubjectID)] = gb
	}

	now := time.Now().UTC()
	var missing []Gradebook
	for _, studentID := range studentIDs {
		for _, subjectID := range subjectIDs {
			key := gradebookKey(studentID, subjectID)
			if _, ok := gbs[key]; ok {
				continue
			}
			gb := Gradebook{
				ID:           uuid.NewString(),
				StudentID:    studentID,
				SubjectID:    subjectID,
				AcademicYear: term.AcademicYear,
				Semester:     term.Semester,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			gbs[key] = gb
			missing = append(missing, gb)
		}
	}
	if len(missing) > 0 {
		if err := svc.repo.CreateGradebooks(ctx, missing...); err != nil {
			return nil, errors.Wrap(err, "creating gradebooks")
		}
	}
	return gbs, nil
}

// EnsureClassroomGradebooks opens the current term gradebooks of students for every subject
// taught in the classroom this academic year.
func (svc *Service) EnsureClassroomGradebooks(ctx context.Context, classroomID string, students ...school.Student) error {
	if classroomID == "" || len(students) == 0 {
		return nil
	}
	term := svc.CurrentTerm()
	tas, err := svc.schools.QueryTeachingAssignments(ctx, school.TeachingAssignmentFilter{
		ClassroomID:  classroomID,
		AcademicYear: term.AcademicYear,
	})
	if err != nil {
		return errors.Wrap(err, "querying teaching assignments")
	}

	subjectIDs := make([]string, 0, len(tas))
	for _, ta := range tas {
		if !core.StringInSlice(ta.SubjectID, subjectIDs) {
			subjectIDs = append(subjectIDs, ta.SubjectID)
		}
	}
	studentIDs := make([]string, 0, len(students))
	for _, s := range students {
		studentIDs = append(studentIDs, s.ID)
	}
	_, err = svc.EnsureGradebooks(ctx, studentIDs, subjectIDs, term)
	return err
}

// RecomputeSubjectFinalScores refreshes the final scores of the term gradebooks of a subject
// scored in classrooms of grade, once its subject config changed.
func (svc *Service) RecomputeSubjectFinalScores(ctx context.Context, subjectID string, grade int, term core.Term) error {
	classrooms, err := svc.schools.QueryClassrooms(ctx, school.ClassroomFilter{Grade: grade})
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if len(classrooms) == 0 {
		return nil
	}
	classroomIDs := make([]string, 0, len(classrooms))
	for _, c := range classrooms {
		classroomIDs = append(classroomIDs, c.ID)
	}

	assessments, err := svc.repo.QueryAssessments(ctx, AssessmentFilter{
		ClassroomIDs: classroomIDs,
		SubjectID:    subjectID,
		AcademicYear: term.AcademicYear,
		Semester:     term.Semester,
	})
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	if len(assessments) == 0 {
		return nil
	}
	assessmentIDs := make([]string, 0, len(assessments))
	for _, a := range assessments {
		assessmentIDs = append(assessmentIDs, a.ID)
	}

	scores, err := svc.repo.QueryScores(ctx, ScoreFilter{AssessmentIDs: assessmentIDs})
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	gradebookIDs := make([]string, 0, len(scores))
	for _, s := range scores {
		if !core.StringInSlice(s.GradebookID, gradebookIDs) {
			gradebookIDs = append(gradebookIDs, s.GradebookID)
		}
	}
	return svc.recomputeFinalScores(ctx, subjectID, grade, term, gradebookIDs)
}

// recomputeFinalScores refreshes the final score of gradebooks of a subject during a term,
// weighting by the subject config of grade.
func (svc *Service) recomputeFinalScores(ctx context.Context, subjectID string, grade int, term core.Term, gradebookIDs []string) error {
	if len(gradebookIDs) == 0 {
		return nil
	}
	cfg, err := school.SubjectConfigFor(ctx, svc.schools, subjectID, grade, term)
	if err != nil {
		return err
	}

	assessments, err := svc.repo.QueryAssessments(ctx, AssessmentFilter{
		SubjectID:    subjectID,
		AcademicYear: term.AcademicYear,
		Semester:     term.Semester,
	})
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	byID := make(map[string]Assessment, len(assessments))
	for _, a := range assessments {
		byID[a.ID] = a
	}

	scores, err := svc.repo.QueryScores(ctx, ScoreFilter{GradebookIDs: gradebookIDs})
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	perGradebook := make(map[string][]scoredAssessment, len(gradebookIDs))
	for _, s := range scores {
		a, ok := byID[s.AssessmentID]
		if !ok {
			continue
		}
		perGradebook[s.GradebookID] = append(perGradebook[s.GradebookID], scoredAssessment{
			Type:     a.Type,
			Score:    s.Score,
			MaxScore: a.MaxScore,
		})
	}

	now := time.Now().UTC()
	for _, id := range gradebookIDs {
		if err := svc.repo.UpdateFinalScore(ctx, id, finalScore(cfg, perGradebook[id]), now); err != nil {
			return errors.Wrap(err, "updating final score")
		}
	}
	return nil
}
