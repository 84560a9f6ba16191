package discipline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/discipline"
	"github.com/trezcool/shule/core/school"
	testutil "github.com/trezcool/shule/tests"
)

func TestCategory_Info(t *testing.T) {
	tests := []struct {
		category     discipline.Category
		points       int
		singlePerDay bool
		ok           bool
	}{
		{discipline.CategoryLate, 5, true, true},
		{discipline.CategoryFighting, 50, false, true},
		{discipline.CategoryOther, 0, false, true},
		{"SLEEPING", 0, false, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.category), func(t *testing.T) {
			info, ok := tc.category.Info()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.points, info.DefaultPoints)
			assert.Equal(t, tc.singlePerDay, info.SinglePerDay)
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.DisciplineSvc
	teacher := env.Teacher(t, "jane")
	c := env.Classroom(t, 10, "IPA", 1, "")
	alice := env.Student(t, "alice", c.ID, "")
	bob := env.Student(t, "bob", c.ID, "")
	day := core.NewDate(2025, time.February, 3)

	t.Run("staff only", func(t *testing.T) {
		_, err := svc.Create(ctx, alice, discipline.NewDemeritPoints{
			StudentIDs: []string{bob.Student.ID}, Category: discipline.CategoryPhone, Date: day,
		})
		assert.Equal(t, discipline.ErrCannotRecord, err)
	})

	t.Run("default points", func(t *testing.T) {
		points, err := svc.Create(ctx, teacher, discipline.NewDemeritPoints{
			StudentIDs: []string{alice.Student.ID, bob.Student.ID}, Category: discipline.CategoryLate, Date: day,
		})
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 5, points[0].Points)
		assert.Equal(t, teacher.User.ID, points[0].RecordedByID)
	})

	tests := []struct {
		name  string
		data  discipline.NewDemeritPoints
		field string
	}{
		{"once per day", discipline.NewDemeritPoints{
			StudentIDs: []string{bob.Student.ID}, Category: discipline.CategoryLate, Date: day,
		}, "student_ids[0]"},
		{"unknown student", discipline.NewDemeritPoints{
			StudentIDs: []string{alice.Student.ID, "unknown"}, Category: discipline.CategoryPhone, Date: day,
		}, "student_ids[1]"},
		{"points required", discipline.NewDemeritPoints{
			StudentIDs: []string{alice.Student.ID}, Category: discipline.CategoryOther, Date: day,
		}, "points"},
		{"future date", discipline.NewDemeritPoints{
			StudentIDs: []string{alice.Student.ID}, Category: discipline.CategoryPhone, Date: svc.Today().AddDays(2),
		}, "date"},
		{"unknown category", discipline.NewDemeritPoints{
			StudentIDs: []string{alice.Student.ID}, Category: "SLEEPING", Date: day,
		}, "category"},
		{"duplicate students", discipline.NewDemeritPoints{
			StudentIDs: []string{alice.Student.ID, alice.Student.ID}, Category: discipline.CategoryPhone, Date: day,
		}, "student_ids"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, teacher, tc.data)
			require.Error(t, err)
			assert.Contains(t, env.FieldErrors(err), tc.field)
		})
	}

	t.Run("repeatable categories", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := svc.Create(ctx, teacher, discipline.NewDemeritPoints{
				StudentIDs: []string{bob.Student.ID}, Category: discipline.CategoryPhone, Points: 12, Date: day,
			})
			require.NoError(t, err)
		}
	})
}

func TestService_QuerySummaryDelete(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.DisciplineSvc
	admin := env.Admin(t, "root")
	jane := env.Teacher(t, "jane")
	john := env.Teacher(t, "john")
	parent := env.Parent(t, "mom")
	c := env.Classroom(t, 10, "IPA", 1, "")
	other := env.Classroom(t, 11, "IPS", 1, "")
	alice := env.Student(t, "alice", c.ID, parent.Parent.ID)
	bob := env.Student(t, "bob", c.ID, "")
	carol := env.Student(t, "carol", other.ID, "")
	day := core.NewDate(2025, time.February, 3)

	record := func(actor school.Actor, category discipline.Category, ids ...string) []discipline.DemeritPoint {
		points, err := svc.Create(ctx, actor, discipline.NewDemeritPoints{StudentIDs: ids, Category: category, Date: day})
		require.NoError(t, err)
		return points
	}
	record(jane, discipline.CategoryLate, alice.Student.ID, bob.Student.ID, carol.Student.ID)
	fights := record(jane, discipline.CategoryFighting, bob.Student.ID)
	record(john, discipline.CategoryTruancy, alice.Student.ID)

	summaries, err := svc.Summary(ctx, admin, discipline.SummaryFilter{ClassroomID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, []discipline.StudentSummary{
		{StudentID: bob.Student.ID, StudentNumber: "S-bob", Name: "Student bob", TotalPoints: 55, Count: 2},
		{StudentID: alice.Student.ID, StudentNumber: "S-alice", Name: "Student alice", TotalPoints: 15, Count: 2},
	}, summaries)

	points, err := svc.Query(ctx, parent, "", discipline.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, points, 2)

	points, err = svc.Query(ctx, admin, "", discipline.QueryFilter{Categories: []discipline.Category{discipline.CategoryLate}})
	require.NoError(t, err)
	assert.Len(t, points, 3)

	points, err = svc.Query(ctx, admin, other.ID, discipline.QueryFilter{StudentIDs: []string{alice.Student.ID}})
	require.NoError(t, err)
	assert.Empty(t, points)

	assert.Equal(t, discipline.ErrCannotDelete, svc.Delete(ctx, john, fights[0].ID))
	require.NoError(t, svc.Delete(ctx, jane, fights[0].ID))
	assert.Equal(t, discipline.ErrNotFound, svc.Delete(ctx, admin, fights[0].ID))
}
