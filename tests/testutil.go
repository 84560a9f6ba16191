// Package testutil wires the services on an in-memory database and creates fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/discipline"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

// Env holds the repositories & services of a test.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock

	Users       user.Repository
	Schools     school.Repository
	Grades      grading.Repository
	Attendances attendance.Repository
	Demerits    discipline.Repository

	UserSvc       *user.Service
	SchoolSvc     *school.Service
	GradingSvc    *grading.Service
	AttendanceSvc *attendance.Service
	DisciplineSvc *discipline.Service
	AccountSvc    *account.Service
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	validate, translator := NewValidator()
	db := inmemdb.Open()

	env := &Env{
		Conf:        conf,
		DB:          db,
		Validate:    validate,
		Translator:  translator,
		Mail:        emailsvc.NewConsoleServiceMock(conf, core.ParseEmailTemplates(appfs.FS, conf, logger), logger),
		Users:       inmemdb.NewUserRepository(db),
		Schools:     inmemdb.NewSchoolRepository(db),
		Grades:      inmemdb.NewGradingRepository(db),
		Attendances: inmemdb.NewAttendanceRepository(db),
		Demerits:    inmemdb.NewDisciplineRepository(db),
	}
	env.UserSvc = user.NewService(env.Users, validate, env.Mail, conf)
	env.GradingSvc = grading.NewService(env.Grades, env.Schools, db, validate, conf)
	env.SchoolSvc = school.NewService(env.Schools, db, validate, env.GradingSvc, conf)
	env.AttendanceSvc = attendance.NewService(env.Attendances, env.Schools, db, validate, conf)
	env.DisciplineSvc = discipline.NewService(env.Demerits, env.Schools, db, validate, conf)
	env.AccountSvc = account.NewService(env.Users, env.Schools, env.GradingSvc, db, validate, translator, env.Mail)
	return env
}

// CreateUser stores a user; its password is set when pwd is not empty.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	if err := repo.Create(context.Background(), usr); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) Admin(t *testing.T, uname string) school.Actor {
	t.Helper()
	usr := CreateUser(t, env.Users, "Admin "+uname, uname, uname+"@mail.com", "", []string{user.RoleAdmin}, true)
	return school.Actor{User: usr}
}

func (env *Env) Teacher(t *testing.T, uname string) school.Actor {
	t.Helper()
	usr := CreateUser(t, env.Users, "Teacher "+uname, uname, uname+"@mail.com", "", []string{user.RoleTeacher}, true)
	now := time.Now().UTC()
	tc := school.Teacher{ID: uuid.NewString(), UserID: usr.ID, Name: usr.Name, EmployeeNumber: "E-" + uname, CreatedAt: now, UpdatedAt: now}
	if err := env.Schools.CreateTeachers(context.Background(), tc); err != nil {
		t.Fatalf("Teacher() failed: %v", err)
	}
	return school.Actor{User: usr, Teacher: &tc}
}

func (env *Env) Parent(t *testing.T, uname string) school.Actor {
	t.Helper()
	usr := CreateUser(t, env.Users, "Parent "+uname, uname, uname+"@mail.com", "", []string{user.RoleParent}, true)
	now := time.Now().UTC()
	p := school.Parent{ID: uuid.NewString(), UserID: usr.ID, Name: usr.Name, CreatedAt: now, UpdatedAt: now}
	if err := env.Schools.CreateParents(context.Background(), p); err != nil {
		t.Fatalf("Parent() failed: %v", err)
	}
	return school.Actor{User: usr, Parent: &p}
}

// Student creates a student in classroomID (may be empty), linked to parentID (may be empty).
func (env *Env) Student(t *testing.T, uname, classroomID, parentID string) school.Actor {
	t.Helper()
	usr := CreateUser(t, env.Users, "Student "+uname, uname, "", "", []string{user.RoleStudent}, true)
	now := time.Now().UTC()
	s := school.Student{
		ID:            uuid.NewString(),
		UserID:        usr.ID,
		Name:          usr.Name,
		StudentNumber: "S-" + uname,
		ClassroomID:   classroomID,
		ParentID:      parentID,
		Gender:        school.GenderFemale,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := env.Schools.CreateStudents(context.Background(), s); err != nil {
		t.Fatalf("Student() failed: %v", err)
	}
	return school.Actor{User: usr, Student: &s}
}

func (env *Env) Classroom(t *testing.T, grade int, major string, section int, homeroomTeacherID string) school.Classroom {
	t.Helper()
	c, err := env.SchoolSvc.CreateClassroom(context.Background(), school.ClassroomInput{
		Grade: grade, Major: major, Section: section, HomeroomTeacherID: homeroomTeacherID,
	})
	if err != nil {
		t.Fatalf("Classroom() failed: %v", err)
	}
	return c
}

func (env *Env) Subject(t *testing.T, name string) school.Subject {
	t.Helper()
	s, err := env.SchoolSvc.CreateSubject(context.Background(), school.SubjectInput{Name: name})
	if err != nil {
		t.Fatalf("Subject() failed: %v", err)
	}
	return s
}

// Teach assigns teacherID to subjectID in classroomID for the current academic year.
func (env *Env) Teach(t *testing.T, teacherID, subjectID, classroomID string) school.TeachingAssignment {
	t.Helper()
	ta, err := env.SchoolSvc.CreateTeachingAssignment(context.Background(), school.NewTeachingAssignment{
		TeacherID: teacherID, SubjectID: subjectID, ClassroomID: classroomID,
	})
	if err != nil {
		t.Fatalf("Teach() failed: %v", err)
	}
	return ta
}

// FieldErrors returns the field errors of err keyed by field, nil when it is neither
// a *core.ValidationError nor a validator error.
func (env *Env) FieldErrors(err error) map[string]string {
	if verr, ok := errors.Cause(err).(*core.ValidationError); ok {
		return verr.FieldMap()
	}
	flds, err := core.TranslateFieldErrors(err, env.Translator, "")
	if err != nil {
		return nil
	}
	return core.ValidationError{Fields: flds}.FieldMap()
}
