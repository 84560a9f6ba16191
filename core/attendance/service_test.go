package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_Upsert(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.AttendanceSvc
	homeroom := env.Teacher(t, "jane")
	other := env.Teacher(t, "john")
	c := env.Classroom(t, 10, "IPA", 1, homeroom.Teacher.ID)
	alice := env.Student(t, "alice", c.ID, "")
	bob := env.Student(t, "bob", c.ID, "")
	outsider := env.Student(t, "zed", "", "")
	day := core.NewDate(2025, time.January, 6)

	valid := attendance.BulkAttendance{ClassroomID: c.ID, Date: day, Records: []attendance.RecordInput{
		{StudentID: alice.Student.ID, Status: attendance.StatusPresent},
		{StudentID: bob.Student.ID, Status: attendance.StatusSick, Note: "flu"},
	}}

	tests := []struct {
		name  string
		data  attendance.BulkAttendance
		field string
	}{
		{"future date", attendance.BulkAttendance{ClassroomID: c.ID, Date: svc.Today().AddDays(1), Records: valid.Records}, "date"},
		{"unknown classroom", attendance.BulkAttendance{ClassroomID: "unknown", Date: day, Records: valid.Records}, "classroom_id"},
		{"no records", attendance.BulkAttendance{ClassroomID: c.ID, Date: day}, "records"},
		{"invalid status", attendance.BulkAttendance{ClassroomID: c.ID, Date: day, Records: []attendance.RecordInput{
			{StudentID: alice.Student.ID, Status: "LATE"},
		}}, "records[0].status"},
		{"not in classroom", attendance.BulkAttendance{ClassroomID: c.ID, Date: day, Records: []attendance.RecordInput{
			{StudentID: alice.Student.ID, Status: attendance.StatusPresent},
			{StudentID: outsider.Student.ID, Status: attendance.StatusPresent},
		}}, "records[1].student_id"},
		{"duplicate", attendance.BulkAttendance{ClassroomID: c.ID, Date: day, Records: []attendance.RecordInput{
			{StudentID: alice.Student.ID, Status: attendance.StatusPresent},
			{StudentID: alice.Student.ID, Status: attendance.StatusAbsent},
		}}, "records[1].student_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, homeroom, tc.data)
			require.Error(t, err)
			assert.Contains(t, env.FieldErrors(err), tc.field)
		})
	}

	t.Run("only the homeroom teacher", func(t *testing.T) {
		_, err := svc.Upsert(ctx, other, valid)
		assert.Equal(t, attendance.ErrCannotRecord, err)
	})

	t.Run("create then update", func(t *testing.T) {
		records, err := svc.Upsert(ctx, homeroom, valid)
		require.NoError(t, err)
		require.Len(t, records, 2)

		records, err = svc.Upsert(ctx, env.Admin(t, "root"), attendance.BulkAttendance{ClassroomID: c.ID, Date: day, Records: []attendance.RecordInput{
			{StudentID: bob.Student.ID, Status: attendance.StatusPresent},
		}})
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, a := range records {
			assert.Equal(t, attendance.StatusPresent, a.Status)
		}
	})
}

func TestService_QuerySummaryExport(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.AttendanceSvc
	admin := env.Admin(t, "root")
	parent := env.Parent(t, "mom")
	c := env.Classroom(t, 10, "IPA", 1, "")
	alice := env.Student(t, "alice", c.ID, parent.Parent.ID)
	bob := env.Student(t, "bob", c.ID, "")

	days := []core.Date{
		core.NewDate(2025, time.January, 6),
		core.NewDate(2025, time.January, 7),
		core.NewDate(2025, time.January, 8),
	}
	statuses := []attendance.Status{attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusPresent}
	for i, day := range days {
		_, err := svc.Upsert(ctx, admin, attendance.BulkAttendance{ClassroomID: c.ID, Date: day, Records: []attendance.RecordInput{
			{StudentID: alice.Student.ID, Status: statuses[i]},
			{StudentID: bob.Student.ID, Status: attendance.StatusPermission},
		}})
		require.NoError(t, err)
	}

	records, err := svc.Query(ctx, parent, attendance.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.True(t, records[0].Date.Equal(days[2]), "latest first")

	records, err = svc.Query(ctx, admin, attendance.QueryFilter{From: days[1], Status: attendance.StatusAbsent})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, alice.Student.ID, records[0].StudentID)

	summaries, err := svc.Summary(ctx, admin, attendance.QueryFilter{ClassroomID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, []attendance.StudentSummary{
		{StudentID: alice.Student.ID, StudentNumber: "S-alice", Name: "Student alice", Present: 2, Absent: 1, Total: 3},
		{StudentID: bob.Student.ID, StudentNumber: "S-bob", Name: "Student bob", Permission: 3, Total: 3},
	}, summaries)

	table, err := svc.Export(ctx, parent, attendance.QueryFilter{To: days[0]})
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Student Number", "Student Name", "Classroom", "Status", "Note"}, table.Header)
	assert.Equal(t, [][]interface{}{{"2025-01-06", "S-alice", "Student alice", "10 IPA 1", "PRESENT", ""}}, table.Rows)

	t.Run("delete", func(t *testing.T) {
		teacher := env.Teacher(t, "jane")
		assert.Equal(t, attendance.ErrCannotRecord, svc.Delete(ctx, teacher, records[0].ID))
		require.NoError(t, svc.Delete(ctx, admin, records[0].ID))
		_, err := env.Attendances.Get(ctx, records[0].ID)
		assert.Equal(t, attendance.ErrNotFound, err)
	})
}

func TestStatuses(t *testing.T) {
	assert.Equal(t, []attendance.Status{
		attendance.StatusPresent, attendance.StatusSick, attendance.StatusPermission, attendance.StatusAbsent,
	}, attendance.Statuses)
}
