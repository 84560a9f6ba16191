package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

const strongPwd = "Str0ng!Pass#9"

func studentRow(number int, values map[string]string) account.Row {
	return account.Row{Number: number, Values: values}
}

func TestStudentRows(t *testing.T) {
	rows, err := account.StudentRows([]account.Row{
		studentRow(2, map[string]string{"name": " Ann ", "grade": "10.0", "section": "1", "birth_date": "2010-05-21"}),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "Ann", rows[0].Name)
	assert.Equal(t, 10, rows[0].Grade)
	assert.Equal(t, 1, rows[0].Section)
	assert.Equal(t, "2010-05-21", rows[0].BirthDate.String())

	_, err = account.StudentRows([]account.Row{
		studentRow(2, map[string]string{"grade": "ten"}),
		studentRow(3, map[string]string{"section": "1.5", "birth_date": "21/05/2010"}),
	})
	require.Error(t, err)
	env := testutil.NewEnv()
	flds := env.FieldErrors(err)
	assert.Equal(t, "must be a whole number", flds["rows.2.grade"])
	assert.Equal(t, "must be a whole number", flds["rows.3.section"])
	assert.Contains(t, flds, "rows.3.birth_date")
}

func TestService_CreateStudents(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.AccountSvc
	classroom := env.Classroom(t, 10, "IPA", 1, "")
	teacher := env.Teacher(t, "jane")
	math := env.Subject(t, "Mathematics")
	env.Teach(t, teacher.Teacher.ID, math.ID, classroom.ID)
	env.Student(t, "taken", "", "")

	valid := func() []account.Row {
		return []account.Row{
			studentRow(2, map[string]string{
				"name": "Ann Lee", "username": "annlee", "email": "ann@mail.com",
				"student_number": "S-001", "gender": "F", "grade": "10", "major": "ipa", "section": "1",
			}),
			studentRow(3, map[string]string{
				"name": "Ben Ode", "username": "benode", "password": strongPwd,
				"student_number": "S-002", "gender": "M",
			}),
		}
	}

	tests := []struct {
		name   string
		mutate func(rows []account.Row)
		fields map[string]string
	}{
		{
			name: "duplicate username in file",
			mutate: func(rows []account.Row) {
				rows[1].Values["username"] = "annlee"
			},
			fields: map[string]string{"rows.3.username": "duplicate of row 2"},
		},
		{
			name: "taken student number",
			mutate: func(rows []account.Row) {
				rows[1].Values["student_number"] = "S-taken"
			},
			fields: map[string]string{"rows.3.student_number": "a student with this number already exists"},
		},
		{
			name: "unknown classroom",
			mutate: func(rows []account.Row) {
				rows[0].Values["section"] = "9"
			},
			fields: map[string]string{"rows.2.classroom": "classroom 10 ipa 9 not found"},
		},
		{
			name: "incomplete classroom",
			mutate: func(rows []account.Row) {
				rows[0].Values["major"] = ""
			},
			fields: map[string]string{"rows.2.classroom": "grade, major and section are all required to find the classroom"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows := valid()
			tc.mutate(rows)
			data, err := account.StudentRows(rows)
			require.NoError(t, err)

			_, err = svc.CreateStudents(ctx, data)
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
			flds := env.FieldErrors(err)
			for field, msg := range tc.fields {
				assert.Equal(t, msg, flds[field], field)
			}

			// nothing was created
			students, err := env.Schools.QueryStudents(ctx, school.StudentFilter{StudentNumbers: []string{"S-001", "S-002"}})
			require.NoError(t, err)
			assert.Empty(t, students)
			_, err = env.Users.GetByUsernameOrEmail(ctx, "annlee")
			assert.True(t, core.IsNotFound(err))
		})
	}

	t.Run("empty file", func(t *testing.T) {
		_, err := svc.CreateStudents(ctx, nil)
		assert.Equal(t, account.ErrNoRows.Error(), env.FieldErrors(err)["file"])
	})

	t.Run("valid", func(t *testing.T) {
		env.Mail.Reset()
		data, err := account.StudentRows(valid())
		require.NoError(t, err)

		accs, err := svc.CreateStudents(ctx, data)
		require.NoError(t, err)
		require.Len(t, accs, 2)

		assert.Equal(t, 2, accs[0].Row)
		assert.NotEmpty(t, accs[0].GeneratedPassword)
		assert.Empty(t, accs[1].GeneratedPassword)

		ann, err := env.Users.GetByUsernameOrEmail(ctx, "annlee")
		require.NoError(t, err)
		assert.NoError(t, ann.CheckPassword(accs[0].GeneratedPassword))
		assert.Equal(t, []string{user.RoleStudent}, ann.Roles)
		ben, err := env.Users.GetByUsernameOrEmail(ctx, "benode")
		require.NoError(t, err)
		assert.NoError(t, ben.CheckPassword(strongPwd))

		students, err := env.Schools.QueryStudents(ctx, school.StudentFilter{StudentNumbers: []string{"S-001", "S-002"}})
		require.NoError(t, err)
		require.Len(t, students, 2)
		byNumber := map[string]school.Student{}
		for _, s := range students {
			byNumber[s.StudentNumber] = s
		}
		assert.Equal(t, classroom.ID, byNumber["S-001"].ClassroomID)
		assert.Equal(t, accs[0].ProfileID, byNumber["S-001"].ID)
		assert.Empty(t, byNumber["S-002"].ClassroomID)

		// gradebooks are opened for the subjects taught in the classroom
		gbs, err := env.Grades.QueryGradebooks(ctx, grading.GradebookFilter{StudentIDs: []string{byNumber["S-001"].ID}})
		require.NoError(t, err)
		require.Len(t, gbs, 1)
		assert.Equal(t, math.ID, gbs[0].SubjectID)

		// only the users with an e-mail get their credentials
		msgs := env.Mail.SentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "ann@mail.com", msgs[0].To[0].Address)
		assert.Equal(t, "account_created", msgs[0].TemplateName)
	})

	t.Run("username already used", func(t *testing.T) {
		rows := valid()
		rows[0].Values["student_number"] = "S-003"
		rows[1].Values["student_number"] = "S-004"
		data, err := account.StudentRows(rows)
		require.NoError(t, err)

		_, err = svc.CreateStudents(ctx, data)
		flds := env.FieldErrors(err)
		assert.Equal(t, user.ErrUsernameExists.Error(), flds["rows.2.username"])
		assert.Equal(t, user.ErrUsernameExists.Error(), flds["rows.3.username"])
	})
}

func TestService_CreateStudent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()

	_, err := env.AccountSvc.CreateStudent(ctx, account.NewStudentAccount{
		Credentials:   account.Credentials{Name: "Ann"},
		StudentNumber: "S-001",
		Gender:        "X",
		ClassroomID:   "nope",
	})
	flds := env.FieldErrors(err)
	assert.Contains(t, flds, "username")
	assert.Contains(t, flds, "gender")
	assert.Equal(t, school.ErrClassroomNotFound.Error(), flds["classroom_id"])

	acc, err := env.AccountSvc.CreateStudent(ctx, account.NewStudentAccount{
		Credentials:   account.Credentials{Name: "Ann", Username: "annlee"},
		StudentNumber: "S-001",
		Gender:        "F",
	})
	require.NoError(t, err)
	assert.Zero(t, acc.Row)
	assert.NotEmpty(t, acc.GeneratedPassword)
}

func TestService_CreateTeachers(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	env.Teacher(t, "jane")

	rows := account.TeacherRows([]account.Row{
		{Number: 2, Values: map[string]string{"name": "Tom Hardy", "username": "tomh", "employee_number": "E-jane"}},
		{Number: 3, Values: map[string]string{"name": "Sue Storm", "username": "sues", "employee_number": "T-2"}},
		{Number: 4, Values: map[string]string{"name": "Ray Ban", "username": "rayban", "employee_number": "T-2"}},
	})
	_, err := env.AccountSvc.CreateTeachers(ctx, rows)
	flds := env.FieldErrors(err)
	assert.Equal(t, "a teacher with this employee number already exists", flds["rows.2.employee_number"])
	assert.Equal(t, "duplicate of row 3", flds["rows.4.employee_number"])
	assert.NotContains(t, flds, "rows.3.employee_number")

	rows[0].EmployeeNumber = "T-1"
	rows[2].EmployeeNumber = "T-3"
	accs, err := env.AccountSvc.CreateTeachers(ctx, rows)
	require.NoError(t, err)
	require.Len(t, accs, 3)

	teachers, err := env.Schools.QueryTeachers(ctx, school.ProfileFilter{Search: "T-"})
	require.NoError(t, err)
	assert.Len(t, teachers, 3)
}

func TestService_CreateParents(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	alice := env.Student(t, "alice", "", "")
	bob := env.Student(t, "bob", "", "")

	tests := []struct {
		name    string
		numbers string
		field   string
		msg     string
	}{
		{"unknown child", "S-alice, S-nobody", "rows.2.student_numbers", "student S-nobody not found"},
		{"same child twice", "S-alice, S-alice", "rows.2.student_numbers", "duplicate of row 2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows := account.ParentRows([]account.Row{
				{Number: 2, Values: map[string]string{"name": "Mary Doe", "username": "marydoe", "student_numbers": tc.numbers}},
			})
			_, err := env.AccountSvc.CreateParents(ctx, rows)
			assert.Equal(t, tc.msg, env.FieldErrors(err)[tc.field])

			s, err := env.Schools.GetStudent(ctx, alice.Student.ID)
			require.NoError(t, err)
			assert.Empty(t, s.ParentID)
		})
	}

	rows := account.ParentRows([]account.Row{
		{Number: 2, Values: map[string]string{"name": "Mary Doe", "username": "marydoe", "student_numbers": "S-alice, S-bob"}},
	})
	require.Equal(t, []string{"S-alice", "S-bob"}, rows[0].StudentNumbers)
	accs, err := env.AccountSvc.CreateParents(ctx, rows)
	require.NoError(t, err)
	require.Len(t, accs, 1)

	for _, id := range []string{alice.Student.ID, bob.Student.ID} {
		s, err := env.Schools.GetStudent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, accs[0].ProfileID, s.ParentID)
	}
}

func TestTemplate(t *testing.T) {
	for _, kind := range account.Kinds {
		assert.True(t, kind.IsValid())
		tbl := account.Template(kind)
		assert.Equal(t, string(kind)+"-template", tbl.Name)
		require.Len(t, tbl.Rows, 1)
		assert.Len(t, tbl.Rows[0], len(tbl.Header))
	}
	assert.False(t, account.Kind("admins").IsValid())
	assert.Contains(t, account.Template(account.KindParents).Header, "student_numbers")
}
