package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/discipline"
)

func Test_disciplineApi(t *testing.T) {
	ae := setup(t)
	teacher := ae.Teacher(t, "teacher")
	other := ae.Teacher(t, "other")
	parent := ae.Parent(t, "parent")
	c := ae.Classroom(t, 10, "IPA", 1, "")
	s1 := ae.Student(t, "alpha", c.ID, parent.Parent.ID)
	s2 := ae.Student(t, "beta", c.ID, "")
	s3 := ae.Student(t, "gamma", "", "")

	teacherToken := ae.token(t, teacher.User)
	today := core.DateOf(time.Now().UTC())
	points := func(category discipline.Category, pts int, date core.Date, ids ...string) []byte {
		return marshalObj(t, discipline.NewDemeritPoints{StudentIDs: ids, Category: category, Points: pts, Date: date})
	}

	ae.run(t, []httpTest{
		{
			name: "students cannot record", method: http.MethodPost, path: "/api/demerit-point", token: ae.token(t, s1.User),
			body: points(discipline.CategoryLate, 0, today, s2.Student.ID), wantCode: http.StatusForbidden,
		},
		{
			name: "points required for OTHER", method: http.MethodPost, path: "/api/demerit-point", token: teacherToken,
			body: points(discipline.CategoryOther, 0, today, s1.Student.ID), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"points":"this field is required"}`),
		},
		{
			name: "future date", method: http.MethodPost, path: "/api/demerit-point", token: teacherToken,
			body: points(discipline.CategoryPhone, 0, today.AddDays(1), s1.Student.ID), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"date":"date cannot be in the future"}`),
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/demerit-point", token: teacherToken,
			body: points(discipline.CategoryPhone, 0, today, s1.Student.ID, "nope"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_ids[1]":"student not found"}`),
		},
		{
			name: "recorded", method: http.MethodPost, path: "/api/demerit-point", token: teacherToken,
			body: points(discipline.CategoryLate, 0, today, s1.Student.ID, s2.Student.ID), wantCode: http.StatusCreated,
		},
		{
			name: "late twice the same day", method: http.MethodPost, path: "/api/demerit-point", token: teacherToken,
			body: points(discipline.CategoryLate, 0, today, s3.Student.ID, s2.Student.ID), wantCode: http.StatusBadRequest,
			wantData: []byte(fmt.Sprintf(`{"student_ids[1]":"LATE was already recorded for this student on %s"}`, today)),
		},
		{
			name: "late another day", method: http.MethodPost, path: "/api/demerit-point", token: teacherToken,
			body: points(discipline.CategoryLate, 0, today.AddDays(-1), s2.Student.ID), wantCode: http.StatusCreated,
		},
		{
			name: "custom points", method: http.MethodPost, path: "/api/demerit-point", token: ae.token(t, other.User),
			body: points(discipline.CategoryFighting, 30, today, s2.Student.ID), wantCode: http.StatusCreated,
		},
	})

	// the rejected LATE request did not record s3
	recorded, err := ae.Demerits.Query(context.Background(), discipline.QueryFilter{StudentIDs: []string{s3.Student.ID}})
	require.NoError(t, err)
	assert.Empty(t, recorded)

	query := func(t *testing.T, token, q string) []discipline.DemeritPoint {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/demerit-point"+q, token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var dps []discipline.DemeritPoint
		decode(t, rec, &dps)
		return dps
	}

	t.Run("query", func(t *testing.T) {
		assert.Len(t, query(t, teacherToken, ""), 4)
		assert.Len(t, query(t, teacherToken, "?classroom_id="+c.ID+"&category=LATE"), 3)
		assert.Len(t, query(t, teacherToken, "?date="+today.String()), 3)

		byParent := query(t, ae.token(t, parent.User), "")
		require.Len(t, byParent, 1)
		assert.Equal(t, s1.Student.ID, byParent[0].StudentID)
		assert.Equal(t, 5, byParent[0].Points)
	})

	t.Run("summary", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/demerit-point/summary?classroom_id="+c.ID, teacherToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summaries []discipline.StudentSummary
		decode(t, rec, &summaries)
		require.Len(t, summaries, 2)
		assert.Equal(t, discipline.StudentSummary{
			StudentID: s2.Student.ID, StudentNumber: "S-beta", Name: s2.User.Name, TotalPoints: 40, Count: 3,
		}, summaries[0])
		assert.Equal(t, 5, summaries[1].TotalPoints)
	})

	t.Run("categories", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/demerit-point/categories", ae.token(t, s1.User)))
		require.Equal(t, http.StatusOK, rec.Code)
		var categories []discipline.CategoryInfo
		decode(t, rec, &categories)
		assert.Equal(t, discipline.Categories, categories)
	})

	t.Run("delete", func(t *testing.T) {
		fights := query(t, teacherToken, "?category=FIGHTING")
		require.Len(t, fights, 1)

		rec := ae.do(newAuthRequest(http.MethodDelete, "/api/demerit-point/"+fights[0].ID, teacherToken))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, string(marshalObj(t, httpErr{Error: discipline.ErrCannotDelete.Error()})), rec.Body.String())

		rec = ae.do(newAuthRequest(http.MethodDelete, "/api/demerit-point/"+fights[0].ID, ae.token(t, other.User)))
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Empty(t, query(t, teacherToken, "?category=FIGHTING"))
	})
}
