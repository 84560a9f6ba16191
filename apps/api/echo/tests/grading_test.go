package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/services/spreadsheet"
)

func score(v float64) *float64 {
	return &v
}

func Test_gradingApi(t *testing.T) {
	ae := setup(t)
	teacher := ae.Teacher(t, "teacher")
	other := ae.Teacher(t, "other")
	parent := ae.Parent(t, "parent")
	c := ae.Classroom(t, 10, "IPA", 1, "")
	s1 := ae.Student(t, "alpha", c.ID, parent.Parent.ID)
	s2 := ae.Student(t, "beta", c.ID, "")
	outsider := ae.Student(t, "gamma", "", "")
	math := ae.Subject(t, "Mathematics")
	ae.Teach(t, teacher.Teacher.ID, math.ID, c.ID)

	teacherToken := ae.token(t, teacher.User)
	today := core.DateOf(time.Now().UTC())
	newAssessment := func(classroomID string, typ school.AssessmentType) []byte {
		return marshalObj(t, grading.NewAssessment{
			ClassroomID: classroomID, SubjectID: math.ID, Type: typ, Title: "Algebra", MaxScore: 100, Date: today,
		})
	}

	ae.run(t, []httpTest{
		{
			name: "students cannot create", method: http.MethodPost, path: "/api/assessments", token: ae.token(t, s1.User),
			body: newAssessment(c.ID, school.AssessmentQuiz), wantCode: http.StatusForbidden,
		},
		{
			name: "teachers of other subjects cannot create", method: http.MethodPost, path: "/api/assessments", token: ae.token(t, other.User),
			body: newAssessment(c.ID, school.AssessmentQuiz), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: grading.ErrCannotGrade.Error()}),
		},
		{
			name: "unknown type", method: http.MethodPost, path: "/api/assessments", token: teacherToken,
			body: newAssessment(c.ID, "EXAM"), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown classroom", method: http.MethodPost, path: "/api/assessments", token: teacherToken,
			body: newAssessment("nope", school.AssessmentQuiz), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"classroom_id":"classroom not found"}`),
		},
	})

	rec := ae.do(newAuthRequest(http.MethodPost, "/api/assessments", teacherToken, newAssessment(c.ID, school.AssessmentQuiz)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a grading.Assessment
	decode(t, rec, &a)
	assert.Equal(t, ae.Conf.School.AcademicYear, a.AcademicYear)
	assert.Equal(t, teacher.Teacher.ID, a.CreatedByID)
	scoresPath := "/api/assessments/" + a.ID + "/scores"

	upsert := func(scores ...grading.ScoreInput) []byte {
		return marshalObj(t, grading.UpsertScores{Scores: scores})
	}

	ae.run(t, []httpTest{
		{
			name: "no scores", method: http.MethodPost, path: scoresPath, token: teacherToken, body: upsert(),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"scores":"this field is required"}`),
		},
		{
			name: "other teachers cannot grade", method: http.MethodPost, path: scoresPath, token: ae.token(t, other.User),
			body: upsert(grading.ScoreInput{StudentID: s1.Student.ID, Score: score(80)}), wantCode: http.StatusForbidden,
		},
		{
			name: "invalid scores", method: http.MethodPost, path: scoresPath, token: teacherToken,
			body: upsert(
				grading.ScoreInput{StudentID: s1.Student.ID, Score: score(80)},
				grading.ScoreInput{StudentID: s2.Student.ID, Score: score(150)},
				grading.ScoreInput{StudentID: outsider.Student.ID, Score: score(-1)},
			),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"scores[1].score": "must be between 0 and 100",
				"scores[2].student_id": "student is not in this classroom",
				"scores[2].score": "must be between 0 and 100"
			}`),
		},
		{name: "unknown assessment", method: http.MethodPost, path: "/api/assessments/nope/scores", token: teacherToken, body: upsert(grading.ScoreInput{StudentID: s1.Student.ID, Score: score(1)}), wantCode: http.StatusNotFound},
	})

	// the rejected scores were not written, not even the valid ones
	stored, err := ae.Grades.QueryScores(context.Background(), grading.ScoreFilter{AssessmentIDs: []string{a.ID}})
	require.NoError(t, err)
	assert.Empty(t, stored)

	t.Run("scored", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodPost, scoresPath, teacherToken, upsert(
			grading.ScoreInput{StudentID: s1.Student.ID, Score: score(80)},
			grading.ScoreInput{StudentID: s2.Student.ID, Score: score(60)},
		)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var scores []grading.AssessmentScore
		decode(t, rec, &scores)
		assert.Len(t, scores, 2)

		// a nil score removes it
		rec = ae.do(newAuthRequest(http.MethodPost, scoresPath, teacherToken, upsert(grading.ScoreInput{StudentID: s2.Student.ID})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &scores)
		require.Len(t, scores, 1)
		assert.Equal(t, s1.Student.ID, scores[0].StudentID)
	})

	t.Run("parents only see their children", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, scoresPath, ae.token(t, parent.User)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var scores []grading.AssessmentScore
		decode(t, rec, &scores)
		require.Len(t, scores, 1)
		assert.Equal(t, 80.0, scores[0].Score)

		rec = ae.do(newAuthRequest(http.MethodGet, "/api/assessments/"+a.ID, ae.token(t, outsider.User)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("gradebooks", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/gradebooks?subject_id="+math.ID, ae.token(t, s1.User)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var gbs []grading.GradebookView
		decode(t, rec, &gbs)
		require.Len(t, gbs, 1)
		assert.Equal(t, s1.Student.ID, gbs[0].StudentID)
		require.NotNil(t, gbs[0].FinalScore)
		assert.InDelta(t, 80, *gbs[0].FinalScore, 0.001)
		require.NotNil(t, gbs[0].Passed)
		assert.True(t, *gbs[0].Passed)
		require.Len(t, gbs[0].Scores, 1)
		assert.Equal(t, "Algebra", gbs[0].Scores[0].Title)
	})

	t.Run("export", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/assessments/export?classroom_id="+c.ID, teacherToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rows, err := spreadsheet.ReadRecords(rec.Body)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "S-alpha", rows[0].Get("student_number"))
		assert.Equal(t, "Mathematics", rows[0].Get("subject"))
		assert.Equal(t, "80", rows[0].Get("score"))
	})

	t.Run("delete", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodDelete, "/api/assessments/"+a.ID, ae.token(t, other.User)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = ae.do(newAuthRequest(http.MethodDelete, "/api/assessments/"+a.ID, teacherToken))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		gbs, err := ae.Grades.QueryGradebooks(context.Background(), grading.GradebookFilter{StudentIDs: []string{s1.Student.ID}})
		require.NoError(t, err)
		require.Len(t, gbs, 1)
		assert.Nil(t, gbs[0].FinalScore)
	})
}
