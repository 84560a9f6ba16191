package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/services/spreadsheet"
)

func Test_attendanceApi(t *testing.T) {
	ae := setup(t)
	homeroom := ae.Teacher(t, "homeroom")
	other := ae.Teacher(t, "other")
	parent := ae.Parent(t, "parent")
	c := ae.Classroom(t, 10, "IPA", 1, homeroom.Teacher.ID)
	s1 := ae.Student(t, "alpha", c.ID, parent.Parent.ID)
	s2 := ae.Student(t, "beta", c.ID, "")
	outsider := ae.Student(t, "gamma", "", "")

	homeroomToken := ae.token(t, homeroom.User)
	day := core.DateOf(time.Now().UTC()).AddDays(-1)
	bulk := func(date core.Date, records ...attendance.RecordInput) []byte {
		return marshalObj(t, attendance.BulkAttendance{ClassroomID: c.ID, Date: date, Records: records})
	}
	present := attendance.RecordInput{StudentID: s1.Student.ID, Status: attendance.StatusPresent}
	absent := attendance.RecordInput{StudentID: s2.Student.ID, Status: attendance.StatusAbsent}

	ae.run(t, []httpTest{
		{name: "students cannot record", method: http.MethodPost, path: "/api/attendance", token: ae.token(t, s1.User), body: bulk(day, present), wantCode: http.StatusForbidden},
		{
			name: "other teachers cannot record", method: http.MethodPost, path: "/api/attendance", token: ae.token(t, other.User),
			body: bulk(day, present), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: attendance.ErrCannotRecord.Error()}),
		},
		{
			name: "future date", method: http.MethodPost, path: "/api/attendance", token: homeroomToken,
			body: bulk(day.AddDays(2), present), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"date":"date cannot be in the future"}`),
		},
		{
			name: "invalid status", method: http.MethodPost, path: "/api/attendance", token: homeroomToken,
			body:     bulk(day, attendance.RecordInput{StudentID: s1.Student.ID, Status: "LATE"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid rows", method: http.MethodPost, path: "/api/attendance", token: homeroomToken,
			body: bulk(day, present, present, attendance.RecordInput{StudentID: outsider.Student.ID, Status: attendance.StatusPresent}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"records[1].student_id":"duplicate student","records[2].student_id":"student is not in this classroom"}`),
		},
	})

	// nothing was written by the rejected requests
	recs, err := ae.Attendances.Query(context.Background(), attendance.QueryFilter{ClassroomID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, recs)

	t.Run("recorded then updated", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodPost, "/api/attendance", homeroomToken, bulk(day, present, absent)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var records []attendance.Attendance
		decode(t, rec, &records)
		assert.Len(t, records, 2)

		sick := attendance.RecordInput{StudentID: s2.Student.ID, Status: attendance.StatusSick, Note: "flu"}
		rec = ae.do(newAuthRequest(http.MethodPost, "/api/attendance", homeroomToken, bulk(day, sick)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &records)
		require.Len(t, records, 2)
		for _, a := range records {
			if a.StudentID == s2.Student.ID {
				assert.Equal(t, attendance.StatusSick, a.Status)
				assert.Equal(t, "flu", a.Note)
			}
		}
	})

	t.Run("query", func(t *testing.T) {
		query := func(token, q string) []attendance.Attendance {
			rec := ae.do(newAuthRequest(http.MethodGet, "/api/attendance"+q, token))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var records []attendance.Attendance
			decode(t, rec, &records)
			return records
		}

		byParent := query(ae.token(t, parent.User), "")
		require.Len(t, byParent, 1)
		assert.Equal(t, s1.Student.ID, byParent[0].StudentID)

		sick := query(homeroomToken, "?status=SICK&date="+day.String())
		require.Len(t, sick, 1)
		assert.Equal(t, s2.Student.ID, sick[0].StudentID)

		assert.Empty(t, query(homeroomToken, "?from="+day.AddDays(1).String()))
		assert.Len(t, query(homeroomToken, "?classroom_id="+c.ID+"&to="+day.String()), 2)
	})

	t.Run("invalid date param", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/attendance?date=yesterday", homeroomToken))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("unknown status param", func(t *testing.T) {
		for _, path := range []string{"/api/attendance?status=LATE", "/api/attendance/summary?status=sick"} {
			rec := ae.do(newAuthRequest(http.MethodGet, path, homeroomToken))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			ok, err := jsonBytesEqual(rec.Body.Bytes(), []byte(`{"status":"invalid status"}`))
			require.NoError(t, err)
			assert.True(t, ok, rec.Body.String())
		}
	})

	t.Run("summary", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/attendance/summary?classroom_id="+c.ID, homeroomToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summaries []attendance.StudentSummary
		decode(t, rec, &summaries)
		require.Len(t, summaries, 2)
		assert.Equal(t, s1.Student.ID, summaries[0].StudentID)
		assert.Equal(t, 1, summaries[0].Present)
		assert.Equal(t, 1, summaries[1].Sick)
		assert.Equal(t, 1, summaries[1].Total)
	})

	t.Run("export", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/attendance/export?classroom_id="+c.ID, homeroomToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, spreadsheet.ContentType, rec.Header().Get("Content-Type"))

		rows, err := spreadsheet.ReadRecords(rec.Body)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Equal(t, day.String(), row.Get("date"))
			assert.Equal(t, "10 IPA 1", row.Get("classroom"))
		}
	})

	t.Run("delete", func(t *testing.T) {
		recs, err := ae.Attendances.Query(context.Background(), attendance.QueryFilter{StudentIDs: []string{s1.Student.ID}})
		require.NoError(t, err)
		require.Len(t, recs, 1)

		rec := ae.do(newAuthRequest(http.MethodDelete, "/api/attendance/"+recs[0].ID, ae.token(t, other.User)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = ae.do(newAuthRequest(http.MethodDelete, "/api/attendance/"+recs[0].ID, homeroomToken))
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		rec = ae.do(newAuthRequest(http.MethodDelete, "/api/attendance/"+recs[0].ID, homeroomToken))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
