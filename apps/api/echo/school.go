package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/core/school"
)

type schoolApi struct {
	svc      *school.Service
	accounts *account.Service
	sessions *sessions
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := schoolApi{
		svc:      s.deps.SchoolSvc,
		accounts: s.deps.AccountSvc,
		sessions: s.sessions,
	}
	admin := adminMiddleware(s.sessions)

	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent, admin)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent, admin)

	tg := g.Group("/teachers", jwt, admin)
	tg.GET("", api.queryTeachers)
	tg.POST("", api.createTeacher)
	tg.GET("/:id", api.retrieveTeacher)

	pg := g.Group("/parents", jwt, admin)
	pg.GET("", api.queryParents)
	pg.POST("", api.createParent)
	pg.GET("/:id", api.retrieveParent)

	cg := g.Group("/classrooms", jwt)
	cg.GET("", api.queryClassrooms)
	cg.POST("", api.createClassroom, admin)
	cg.GET("/:id", api.retrieveClassroom)
	cg.PUT("/:id", api.updateClassroom, admin)
	cg.DELETE("/:id", api.destroyClassroom, admin)

	subg := g.Group("/subjects", jwt)
	subg.GET("", api.querySubjects)
	subg.POST("", api.createSubject, admin)
	subg.GET("/:id", api.retrieveSubject)
	subg.PUT("/:id", api.updateSubject, admin)
	subg.DELETE("/:id", api.destroySubject, admin)

	scg := g.Group("/subject-configs", jwt)
	scg.GET("", api.querySubjectConfigs)
	scg.PUT("", api.upsertSubjectConfig, admin)

	tag := g.Group("/teaching-assignments", jwt)
	tag.GET("", api.queryTeachingAssignments, staffMiddleware(s.sessions))
	tag.POST("", api.createTeachingAssignment, admin)
	tag.DELETE("/:id", api.destroyTeachingAssignment, admin)
}

// Students

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	var filter school.StudentFilter
	err := echo.QueryParamsBinder(ctx).
		Strings("id", &filter.IDs).
		String("classroom_id", &filter.ClassroomID).
		String("parent_id", &filter.ParentID).
		Strings("student_number", &filter.StudentNumbers).
		String("search", &filter.Search).
		BindError()
	if err != nil {
		return err
	}

	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data account.NewStudentAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudentAccount")
	}
	acc, err := api.accounts.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	s, err := api.svc.GetStudent(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	var data school.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	s, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

// Teachers & Parents

func bindProfileFilter(ctx echo.Context) (school.ProfileFilter, error) {
	var filter school.ProfileFilter
	err := echo.QueryParamsBinder(ctx).
		Strings("id", &filter.IDs).
		String("search", &filter.Search).
		BindError()
	return filter, err
}

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	filter, err := bindProfileFilter(ctx)
	if err != nil {
		return err
	}
	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []school.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data account.NewTeacherAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacherAccount")
	}
	acc, err := api.accounts.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *schoolApi) retrieveTeacher(ctx echo.Context) error {
	t, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) queryParents(ctx echo.Context) error {
	filter, err := bindProfileFilter(ctx)
	if err != nil {
		return err
	}
	parents, err := api.svc.QueryParents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	if parents == nil {
		parents = []school.Parent{}
	}
	return ctx.JSON(http.StatusOK, parents)
}

func (api *schoolApi) createParent(ctx echo.Context) error {
	var data account.NewParentAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParentAccount")
	}
	acc, err := api.accounts.CreateParent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating parent account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *schoolApi) retrieveParent(ctx echo.Context) error {
	p, err := api.svc.GetParent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding parent")
	}
	return ctx.JSON(http.StatusOK, p)
}

// Classrooms

func (api *schoolApi) queryClassrooms(ctx echo.Context) error {
	var filter school.ClassroomFilter
	err := echo.QueryParamsBinder(ctx).
		Int("grade", &filter.Grade).
		String("major", &filter.Major).
		String("homeroom_teacher_id", &filter.HomeroomTeacherID).
		BindError()
	if err != nil {
		return err
	}
	classrooms, err := api.svc.QueryClassrooms(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if classrooms == nil {
		classrooms = []school.Classroom{}
	}
	return ctx.JSON(http.StatusOK, classrooms)
}

func (api *schoolApi) createClassroom(ctx echo.Context) error {
	var data school.ClassroomInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassroomInput")
	}
	c, err := api.svc.CreateClassroom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *schoolApi) retrieveClassroom(ctx echo.Context) error {
	c, err := api.svc.GetClassroom(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding classroom")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *schoolApi) updateClassroom(ctx echo.Context) error {
	var data school.ClassroomInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassroomInput")
	}
	c, err := api.svc.UpdateClassroom(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *schoolApi) destroyClassroom(ctx echo.Context) error {
	if err := api.svc.DeleteClassroom(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subjects

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.SubjectInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectInput")
	}
	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *schoolApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *schoolApi) updateSubject(ctx echo.Context) error {
	var data school.SubjectInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectInput")
	}
	sub, err := api.svc.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *schoolApi) destroySubject(ctx echo.Context) error {
	if err := api.svc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subject configs

func (api *schoolApi) querySubjectConfigs(ctx echo.Context) error {
	var filter school.SubjectConfigFilter
	err := echo.QueryParamsBinder(ctx).
		String("subject_id", &filter.SubjectID).
		Int("grade", &filter.Grade).
		String("academic_year", &filter.AcademicYear).
		Int("semester", &filter.Semester).
		BindError()
	if err != nil {
		return err
	}
	configs, err := api.svc.QuerySubjectConfigs(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subject configs")
	}
	if configs == nil {
		configs = []school.SubjectConfig{}
	}
	return ctx.JSON(http.StatusOK, configs)
}

func (api *schoolApi) upsertSubjectConfig(ctx echo.Context) error {
	var data school.SubjectConfigInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectConfigInput")
	}
	sc, created, err := api.svc.UpsertSubjectConfig(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting subject config")
	}
	if created {
		return ctx.JSON(http.StatusCreated, sc)
	}
	return ctx.JSON(http.StatusOK, sc)
}

// Teaching assignments

func (api *schoolApi) queryTeachingAssignments(ctx echo.Context) error {
	var filter school.TeachingAssignmentFilter
	err := echo.QueryParamsBinder(ctx).
		String("teacher_id", &filter.TeacherID).
		String("subject_id", &filter.SubjectID).
		String("classroom_id", &filter.ClassroomID).
		String("academic_year", &filter.AcademicYear).
		BindError()
	if err != nil {
		return err
	}
	tas, err := api.svc.QueryTeachingAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teaching assignments")
	}
	if tas == nil {
		tas = []school.TeachingAssignment{}
	}
	return ctx.JSON(http.StatusOK, tas)
}

func (api *schoolApi) createTeachingAssignment(ctx echo.Context) error {
	var data school.NewTeachingAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeachingAssignment")
	}
	ta, err := api.svc.CreateTeachingAssignment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teaching assignment")
	}
	return ctx.JSON(http.StatusCreated, ta)
}

func (api *schoolApi) destroyTeachingAssignment(ctx echo.Context) error {
	if err := api.svc.DeleteTeachingAssignment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting teaching assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
