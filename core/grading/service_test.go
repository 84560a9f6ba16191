package grading_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	testutil "github.com/trezcool/shule/tests"
)

type fixture struct {
	*testutil.Env
	teacher, other, parent school.Actor
	alice, bob             school.Actor
	classroom              school.Classroom
	math                   school.Subject
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv()
	f := fixture{Env: env}
	f.teacher = env.Teacher(t, "jane")
	f.other = env.Teacher(t, "john")
	f.parent = env.Parent(t, "mom")
	f.classroom = env.Classroom(t, 10, "IPA", 1, "")
	f.math = env.Subject(t, "Mathematics")
	f.alice = env.Student(t, "alice", f.classroom.ID, f.parent.Parent.ID)
	f.bob = env.Student(t, "bob", f.classroom.ID, "")
	env.Teach(t, f.teacher.Teacher.ID, f.math.ID, f.classroom.ID)
	return f
}

func (f fixture) assessment(t *testing.T, typ school.AssessmentType, maxScore float64) grading.Assessment {
	t.Helper()
	a, err := f.GradingSvc.CreateAssessment(context.Background(), f.teacher, grading.NewAssessment{
		ClassroomID: f.classroom.ID,
		SubjectID:   f.math.ID,
		Type:        typ,
		Title:       string(typ) + " 1",
		MaxScore:    maxScore,
		Date:        core.NewDate(2025, time.March, 3),
	})
	require.NoError(t, err)
	return a
}

func (f fixture) finalScore(t *testing.T, studentID string) *float64 {
	t.Helper()
	gbs, err := f.Grades.QueryGradebooks(context.Background(), grading.GradebookFilter{
		StudentIDs: []string{studentID}, SubjectID: f.math.ID,
	})
	require.NoError(t, err)
	require.Len(t, gbs, 1)
	return gbs[0].FinalScore
}

func score(v float64) *float64 { return &v }

func TestService_CreateAssessment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.GradingSvc

	a := f.assessment(t, school.AssessmentMidterm, 100)
	assert.Equal(t, svc.CurrentTerm(), a.Term())
	assert.Equal(t, f.teacher.Teacher.ID, a.CreatedByID)

	data := grading.NewAssessment{
		ClassroomID: f.classroom.ID, SubjectID: f.math.ID, Type: school.AssessmentQuiz,
		Title: "Quiz", MaxScore: 10, Date: core.NewDate(2025, time.March, 4),
	}
	_, err := svc.CreateAssessment(ctx, f.other, data)
	assert.Equal(t, grading.ErrCannotGrade, err)

	invalid := data
	invalid.ClassroomID = "unknown"
	_, err = svc.CreateAssessment(ctx, f.teacher, invalid)
	assert.Contains(t, f.FieldErrors(err), "classroom_id")

	invalid = data
	invalid.Type, invalid.MaxScore = "ORAL", 0
	_, err = svc.CreateAssessment(ctx, f.teacher, invalid)
	flds := f.FieldErrors(err)
	assert.Contains(t, flds, "type")
	assert.Contains(t, flds, "max_score")

	t.Run("visibility", func(t *testing.T) {
		as, err := svc.QueryAssessments(ctx, f.parent, grading.AssessmentFilter{})
		require.NoError(t, err)
		assert.Len(t, as, 1)

		outsider := f.Student(t, "zed", "", "")
		as, err = svc.QueryAssessments(ctx, outsider, grading.AssessmentFilter{})
		require.NoError(t, err)
		assert.Empty(t, as)
		_, err = svc.GetAssessment(ctx, outsider, a.ID)
		assert.Equal(t, grading.ErrAssessmentNotFound, err)
	})
}

func TestService_UpsertScores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.GradingSvc
	midterm := f.assessment(t, school.AssessmentMidterm, 100)
	outsider := f.Student(t, "zed", "", "")

	t.Run("all or nothing", func(t *testing.T) {
		_, err := svc.UpsertScores(ctx, f.teacher, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
			{StudentID: f.alice.Student.ID, Score: score(80)},
			{StudentID: f.bob.Student.ID, Score: score(120)},
			{StudentID: f.alice.Student.ID, Score: score(70)},
			{StudentID: outsider.Student.ID, Score: score(70)},
		}})
		flds := f.FieldErrors(err)
		assert.Len(t, flds, 3)
		assert.Contains(t, flds, "scores[1].score")
		assert.Equal(t, "duplicate student", flds["scores[2].student_id"])
		assert.Equal(t, "student is not in this classroom", flds["scores[3].student_id"])

		scores, err := svc.Scores(ctx, f.teacher, midterm.ID)
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("not a teacher of the subject", func(t *testing.T) {
		_, err := svc.UpsertScores(ctx, f.other, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
			{StudentID: f.alice.Student.ID, Score: score(80)},
		}})
		assert.Equal(t, grading.ErrCannotGrade, err)
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("final scores", func(t *testing.T) {
		scores, err := svc.UpsertScores(ctx, f.teacher, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
			{StudentID: f.alice.Student.ID, Score: score(80)},
			{StudentID: f.bob.Student.ID, Score: score(50)},
		}})
		require.NoError(t, err)
		assert.Len(t, scores, 2)
		assert.Equal(t, 80.0, *f.finalScore(t, f.alice.Student.ID))

		quiz := f.assessment(t, school.AssessmentQuiz, 20)
		_, err = svc.UpsertScores(ctx, f.teacher, quiz.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
			{StudentID: f.alice.Student.ID, Score: score(10)},
		}})
		require.NoError(t, err)
		// equally weighted midterm (80%) & quiz (50%)
		assert.Equal(t, 65.0, *f.finalScore(t, f.alice.Student.ID))

		// a nil score removes it
		_, err = svc.UpsertScores(ctx, f.teacher, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
			{StudentID: f.alice.Student.ID},
		}})
		require.NoError(t, err)
		assert.Equal(t, 50.0, *f.finalScore(t, f.alice.Student.ID))

		gbs, err := svc.QueryGradebooks(ctx, f.parent, grading.GradebookFilter{})
		require.NoError(t, err)
		require.Len(t, gbs, 1)
		assert.Equal(t, f.alice.Student.ID, gbs[0].StudentID)
		assert.Len(t, gbs[0].Scores, 1)
		require.NotNil(t, gbs[0].Passed)
		assert.False(t, *gbs[0].Passed)

		require.NoError(t, svc.DeleteAssessment(ctx, f.teacher, quiz.ID))
		assert.Nil(t, f.finalScore(t, f.alice.Student.ID))
		assert.Equal(t, 50.0, *f.finalScore(t, f.bob.Student.ID))

		_, err = svc.GetAssessment(ctx, f.teacher, quiz.ID)
		assert.Equal(t, grading.ErrAssessmentNotFound, errors.Cause(err))
	})

	t.Run("students only see their own scores", func(t *testing.T) {
		scores, err := svc.Scores(ctx, f.bob, midterm.ID)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, f.bob.Student.ID, scores[0].StudentID)
	})

	t.Run("score sheet", func(t *testing.T) {
		table, err := svc.ScoreSheet(ctx, f.teacher, grading.AssessmentFilter{ClassroomIDs: []string{f.classroom.ID}})
		require.NoError(t, err)
		assert.Equal(t, "scores", table.Name)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, []interface{}{
			"S-bob", "Student bob", "10 IPA 1", "Mathematics",
			"MIDTERM 1", "MIDTERM", "2025-03-03", 100.0, 50.0,
		}, table.Rows[0])
	})
}

func TestService_SubjectConfigWeights(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.GradingSvc

	_, _, err := f.SchoolSvc.UpsertSubjectConfig(ctx, school.SubjectConfigInput{
		SubjectID: f.math.ID, Grade: 10, MidtermWeight: 20, FinalWeight: 80,
	})
	require.NoError(t, err)

	midterm := f.assessment(t, school.AssessmentMidterm, 100)
	final := f.assessment(t, school.AssessmentFinal, 50)
	_, err = svc.UpsertScores(ctx, f.teacher, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
		{StudentID: f.alice.Student.ID, Score: score(100)},
	}})
	require.NoError(t, err)
	_, err = svc.UpsertScores(ctx, f.teacher, final.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
		{StudentID: f.alice.Student.ID, Score: score(25)},
	}})
	require.NoError(t, err)
	// 0.2 * 100 + 0.8 * 50
	assert.Equal(t, 60.0, *f.finalScore(t, f.alice.Student.ID))
}

func TestService_SubjectConfigChangeRecomputesFinalScores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.GradingSvc

	midterm := f.assessment(t, school.AssessmentMidterm, 100)
	final := f.assessment(t, school.AssessmentFinal, 50)
	_, err := svc.UpsertScores(ctx, f.teacher, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
		{StudentID: f.alice.Student.ID, Score: score(100)},
	}})
	require.NoError(t, err)
	_, err = svc.UpsertScores(ctx, f.teacher, final.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
		{StudentID: f.alice.Student.ID, Score: score(25)},
	}})
	require.NoError(t, err)
	assert.Equal(t, 75.0, *f.finalScore(t, f.alice.Student.ID))

	// another grade's config leaves the scores alone
	_, _, err = f.SchoolSvc.UpsertSubjectConfig(ctx, school.SubjectConfigInput{
		SubjectID: f.math.ID, Grade: 11, MidtermWeight: 90, FinalWeight: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 75.0, *f.finalScore(t, f.alice.Student.ID))

	_, _, err = f.SchoolSvc.UpsertSubjectConfig(ctx, school.SubjectConfigInput{
		SubjectID: f.math.ID, Grade: 10, MidtermWeight: 20, FinalWeight: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, *f.finalScore(t, f.alice.Student.ID))
	assert.Nil(t, f.finalScore(t, f.bob.Student.ID))

	gbs, err := svc.QueryGradebooks(ctx, f.alice, grading.GradebookFilter{SubjectID: f.math.ID})
	require.NoError(t, err)
	require.Len(t, gbs, 1)
	assert.Equal(t, school.DefaultPassingScore, gbs[0].PassingScore)
	require.NotNil(t, gbs[0].Passed)
	assert.False(t, *gbs[0].Passed)
}

func TestService_QueryGradebooksPassingScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.GradingSvc

	lenient, strict := 50.0, 90.0
	for grade, passing := range map[int]*float64{10: &lenient, 11: &strict} {
		_, _, err := f.SchoolSvc.UpsertSubjectConfig(ctx, school.SubjectConfigInput{
			SubjectID: f.math.ID, Grade: grade, PassingScore: passing,
			AssignmentWeight: 25, QuizWeight: 25, MidtermWeight: 25, FinalWeight: 25,
		})
		require.NoError(t, err)
	}

	midterm := f.assessment(t, school.AssessmentMidterm, 100)
	_, err := svc.UpsertScores(ctx, f.teacher, midterm.ID, grading.UpsertScores{Scores: []grading.ScoreInput{
		{StudentID: f.alice.Student.ID, Score: score(60)},
	}})
	require.NoError(t, err)

	check := func(t *testing.T, actor school.Actor, wantPassing float64, wantPassed *bool) {
		t.Helper()
		gbs, err := svc.QueryGradebooks(ctx, actor, grading.GradebookFilter{SubjectID: f.math.ID})
		require.NoError(t, err)
		require.Len(t, gbs, 1)
		assert.Equal(t, wantPassing, gbs[0].PassingScore)
		assert.Equal(t, wantPassed, gbs[0].Passed)
	}
	yes := true
	check(t, f.alice, lenient, &yes)
	// unscored gradebooks fall back to the student's classroom
	check(t, f.bob, lenient, nil)

	t.Run("scored in a former classroom", func(t *testing.T) {
		moved := f.Classroom(t, 11, "IPA", 1, "")
		_, err := f.SchoolSvc.UpdateStudent(ctx, f.alice.Student.ID, school.UpdateStudent{ClassroomID: &moved.ID})
		require.NoError(t, err)

		check(t, f.alice, lenient, &yes)
		assert.Equal(t, 60.0, *f.finalScore(t, f.alice.Student.ID))
	})

	t.Run("gradebook of a student without classroom", func(t *testing.T) {
		_, err := f.SchoolSvc.UpdateStudent(ctx, f.alice.Student.ID, school.UpdateStudent{ClassroomID: new(string)})
		require.NoError(t, err)

		check(t, f.alice, lenient, &yes)
	})
}
