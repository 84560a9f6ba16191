package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func Test_schoolApi_classrooms(t *testing.T) {
	ae := setup(t)
	admin := ae.adminToken(t)
	homeroom := ae.Teacher(t, "homeroom")
	teacherToken := ae.token(t, homeroom.User)
	c10 := ae.Classroom(t, 10, "IPA", 1, homeroom.Teacher.ID)
	c11 := ae.Classroom(t, 11, "IPS", 1, "")
	ae.Student(t, "hero", c10.ID, "")

	create := func(grade int, major string, section int, homeroomID string) []byte {
		return marshalObj(t, school.ClassroomInput{Grade: grade, Major: major, Section: section, HomeroomTeacherID: homeroomID})
	}

	ae.run(t, []httpTest{
		{name: "auth required", path: "/api/classrooms", wantCode: http.StatusUnauthorized},
		{
			name: "teachers cannot create", method: http.MethodPost, path: "/api/classrooms", token: teacherToken,
			body: create(12, "IPA", 1, ""), wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/api/classrooms", token: admin,
			body: create(10, " ipa ", 1, ""), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"classroom":"a classroom with this grade, major and section already exists"}`),
		},
		{
			name: "homeroom teacher taken", method: http.MethodPost, path: "/api/classrooms", token: admin,
			body: create(12, "IPA", 1, homeroom.Teacher.ID), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"homeroom_teacher_id":"this teacher is already the homeroom teacher of 10 IPA 1"}`),
		},
		{
			name: "invalid grade", method: http.MethodPost, path: "/api/classrooms", token: admin,
			body: create(13, "IPA", 1, ""), wantCode: http.StatusBadRequest,
		},
		{
			name: "classroom with students", method: http.MethodDelete, path: "/api/classrooms/" + c10.ID, token: admin,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: school.ErrClassroomHasStudent.Error()}),
		},
		{name: "unknown", path: "/api/classrooms/nope", token: teacherToken, wantCode: http.StatusNotFound},
	})

	t.Run("query", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/classrooms?grade=11", teacherToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var classrooms []school.Classroom
		decode(t, rec, &classrooms)
		require.Len(t, classrooms, 1)
		assert.Equal(t, c11.ID, classrooms[0].ID)
	})

	t.Run("created", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodPost, "/api/classrooms", admin, create(12, " IPA ", 2, "")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c school.Classroom
		decode(t, rec, &c)
		assert.Equal(t, "IPA", c.Major)
		assert.Equal(t, 2, c.Section)
	})

	t.Run("updated then deleted", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodPut, "/api/classrooms/"+c11.ID, admin, create(11, "IPS", 3, "")))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c school.Classroom
		decode(t, rec, &c)
		assert.Equal(t, 3, c.Section)

		rec = ae.do(newAuthRequest(http.MethodDelete, "/api/classrooms/"+c11.ID, admin))
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})
}

func Test_schoolApi_subjects(t *testing.T) {
	ae := setup(t)
	admin := ae.adminToken(t)
	teacher := ae.Teacher(t, "teacher")
	math := ae.Subject(t, "Mathematics")
	art := ae.Subject(t, "Art")
	classroom := ae.Classroom(t, 10, "IPA", 1, "")
	ae.Teach(t, teacher.Teacher.ID, math.ID, classroom.ID)

	ae.run(t, []httpTest{
		{
			name: "teachers cannot create", method: http.MethodPost, path: "/api/subjects", token: ae.token(t, teacher.User),
			body: marshalObj(t, school.SubjectInput{Name: "Music"}), wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/subjects", token: admin,
			body: marshalObj(t, school.SubjectInput{Name: " mathematics"}), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name":"a subject with this name already exists"}`),
		},
		{
			name: "blank name", method: http.MethodPost, path: "/api/subjects", token: admin,
			body: marshalObj(t, school.SubjectInput{Name: "  "}), wantCode: http.StatusBadRequest,
		},
		{
			name: "in use", method: http.MethodDelete, path: "/api/subjects/" + math.ID, token: admin,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: school.ErrSubjectInUse.Error()}),
		},
		{name: "deleted", method: http.MethodDelete, path: "/api/subjects/" + art.ID, token: admin, wantCode: http.StatusNoContent},
		{name: "created", method: http.MethodPost, path: "/api/subjects", token: admin, body: marshalObj(t, school.SubjectInput{Name: "Music"}), wantCode: http.StatusCreated},
	})

	t.Run("search", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/subjects?search=MATH", ae.token(t, teacher.User)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var subjects []school.Subject
		decode(t, rec, &subjects)
		require.Len(t, subjects, 1)
		assert.Equal(t, math.ID, subjects[0].ID)
	})
}

func Test_schoolApi_rolesReadFromStoredUser(t *testing.T) {
	ae := setup(t)
	ctx := context.Background()
	deactivated := ae.Admin(t, "gone").User
	demoted := ae.Admin(t, "demoted").User
	formerTeacher := ae.Teacher(t, "former").User
	deactivatedToken, demotedToken, teacherToken := ae.token(t, deactivated), ae.token(t, demoted), ae.token(t, formerTeacher)

	deactivated.IsActive = false
	require.NoError(t, ae.Users.Update(ctx, deactivated))
	demoted.Roles = []string{user.RoleTeacher}
	require.NoError(t, ae.Users.Update(ctx, demoted))
	formerTeacher.Roles = []string{user.RoleStudent}
	require.NoError(t, ae.Users.Update(ctx, formerTeacher))

	music := marshalObj(t, school.SubjectInput{Name: "Music"})
	ae.run(t, []httpTest{
		{
			name: "deactivated admin", method: http.MethodPost, path: "/api/subjects", token: deactivatedToken, body: music,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "demoted admin", method: http.MethodPost, path: "/api/subjects", token: demotedToken, body: music,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "deactivated admin on staff route", method: http.MethodPost, path: "/api/attendance", token: deactivatedToken,
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "demoted teacher on staff route", method: http.MethodPost, path: "/api/attendance", token: teacherToken,
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})

	subjects, err := ae.SchoolSvc.QuerySubjects(ctx, "music")
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func Test_schoolApi_subjectConfigs(t *testing.T) {
	ae := setup(t)
	admin := ae.adminToken(t)
	math := ae.Subject(t, "Mathematics")

	config := func(assignment, quiz, midterm, final int) []byte {
		return marshalObj(t, school.SubjectConfigInput{
			SubjectID: math.ID, Grade: 10,
			AssignmentWeight: assignment, QuizWeight: quiz, MidtermWeight: midterm, FinalWeight: final,
		})
	}

	ae.run(t, []httpTest{
		{
			name: "weights must add up", method: http.MethodPut, path: "/api/subject-configs", token: admin, body: config(10, 10, 10, 10),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"weights":"assessment weights must add up to 100"}`),
		},
		{
			name: "unknown subject", method: http.MethodPut, path: "/api/subject-configs", token: admin,
			body:     marshalObj(t, school.SubjectConfigInput{SubjectID: "nope", Grade: 10, FinalWeight: 100}),
			wantCode: http.StatusBadRequest,
		},
		{name: "created", method: http.MethodPut, path: "/api/subject-configs", token: admin, body: config(10, 20, 30, 40), wantCode: http.StatusCreated},
		{name: "replaced", method: http.MethodPut, path: "/api/subject-configs", token: admin, body: config(0, 0, 50, 50), wantCode: http.StatusOK},
	})

	rec := ae.do(newAuthRequest(http.MethodGet, "/api/subject-configs?subject_id="+math.ID, admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var configs []school.SubjectConfig
	decode(t, rec, &configs)
	require.Len(t, configs, 1)
	assert.Equal(t, 50, configs[0].FinalWeight)
	assert.Equal(t, ae.Conf.School.AcademicYear, configs[0].AcademicYear)
	assert.Equal(t, ae.Conf.School.Semester, configs[0].Semester)
	assert.Equal(t, school.DefaultPassingScore, configs[0].PassingScore)
}

func Test_schoolApi_students(t *testing.T) {
	ae := setup(t)
	admin := ae.adminToken(t)
	parent := ae.Parent(t, "parent")
	classroom := ae.Classroom(t, 10, "IPA", 1, "")
	child := ae.Student(t, "child", classroom.ID, parent.Parent.ID)
	other := ae.Student(t, "other", classroom.ID, "")

	studentIDs := func(t *testing.T, token, query string) []string {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/students"+query, token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []school.Student
		decode(t, rec, &students)
		ids := make([]string, 0, len(students))
		for _, s := range students {
			ids = append(ids, s.ID)
		}
		return ids
	}

	t.Run("visibility", func(t *testing.T) {
		assert.ElementsMatch(t, []string{child.Student.ID, other.Student.ID}, studentIDs(t, admin, ""))
		assert.ElementsMatch(t, []string{child.Student.ID}, studentIDs(t, ae.token(t, parent.User), ""))
		assert.ElementsMatch(t, []string{other.Student.ID}, studentIDs(t, ae.token(t, other.User), ""))
		assert.Empty(t, studentIDs(t, ae.token(t, other.User), "?id="+child.Student.ID))
		assert.ElementsMatch(t, []string{other.Student.ID}, studentIDs(t, admin, "?student_number=S-other"))
	})

	ae.run(t, []httpTest{
		{name: "own profile", path: "/api/students/" + other.Student.ID, token: ae.token(t, other.User)},
		{name: "parent sees child", path: "/api/students/" + child.Student.ID, token: ae.token(t, parent.User)},
		{name: "hidden", path: "/api/students/" + child.Student.ID, token: ae.token(t, other.User), wantCode: http.StatusNotFound},
		{
			name: "admin only update", method: http.MethodPut, path: "/api/students/" + other.Student.ID, token: ae.token(t, parent.User),
			body: []byte(`{"gender":"M"}`), wantCode: http.StatusForbidden,
		},
	})

	t.Run("moved out of classroom", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodPut, "/api/students/"+other.Student.ID, admin, []byte(`{"classroom_id":""}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s school.Student
		decode(t, rec, &s)
		assert.Empty(t, s.ClassroomID)
		assert.ElementsMatch(t, []string{child.Student.ID}, studentIDs(t, admin, "?classroom_id="+classroom.ID))
	})
}

func Test_schoolApi_teachingAssignments(t *testing.T) {
	ae := setup(t)
	admin := ae.adminToken(t)
	teacher := ae.Teacher(t, "teacher")
	student := ae.Student(t, "hero", "", "")
	math := ae.Subject(t, "Mathematics")
	classroom := ae.Classroom(t, 10, "IPA", 1, "")
	assign := marshalObj(t, school.NewTeachingAssignment{TeacherID: teacher.Teacher.ID, SubjectID: math.ID, ClassroomID: classroom.ID})

	ae.run(t, []httpTest{
		{name: "students cannot list", path: "/api/teaching-assignments", token: ae.token(t, student.User), wantCode: http.StatusForbidden},
		{name: "teachers cannot assign", method: http.MethodPost, path: "/api/teaching-assignments", token: ae.token(t, teacher.User), body: assign, wantCode: http.StatusForbidden},
		{name: "assigned", method: http.MethodPost, path: "/api/teaching-assignments", token: admin, body: assign, wantCode: http.StatusCreated},
		{name: "already taught", method: http.MethodPost, path: "/api/teaching-assignments", token: admin, body: assign, wantCode: http.StatusBadRequest},
	})

	rec := ae.do(newAuthRequest(http.MethodGet, "/api/teaching-assignments?teacher_id="+teacher.Teacher.ID, ae.token(t, teacher.User)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tas []school.TeachingAssignment
	decode(t, rec, &tas)
	require.Len(t, tas, 1)
	assert.Equal(t, ae.Conf.School.AcademicYear, tas[0].AcademicYear)

	rec = ae.do(newAuthRequest(http.MethodDelete, "/api/teaching-assignments/"+tas[0].ID, admin))
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}
