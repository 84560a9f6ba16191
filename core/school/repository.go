package school

import (
	"context"

	"github.com/trezcool/shule/core"
)

var (
	ErrStudentNotFound            = &core.NotFoundError{Entity: "student"}
	ErrTeacherNotFound            = &core.NotFoundError{Entity: "teacher"}
	ErrParentNotFound             = &core.NotFoundError{Entity: "parent"}
	ErrClassroomNotFound          = &core.NotFoundError{Entity: "classroom"}
	ErrSubjectNotFound            = &core.NotFoundError{Entity: "subject"}
	ErrSubjectConfigNotFound      = &core.NotFoundError{Entity: "subject config"}
	ErrTeachingAssignmentNotFound = &core.NotFoundError{Entity: "teaching assignment"}
)

type (
	StudentFilter struct {
		IDs            []string
		ClassroomID    string
		ParentID       string
		StudentNumbers []string
		Search         string // name or student number
	}

	ProfileFilter struct {
		IDs    []string
		Search string // name or employee number
	}

	ClassroomFilter struct {
		Grade             int
		Major             string
		HomeroomTeacherID string
	}

	SubjectConfigFilter struct {
		SubjectID    string
		Grade        int
		AcademicYear string
		Semester     int
	}

	TeachingAssignmentFilter struct {
		TeacherID    string
		SubjectID    string
		ClassroomID  string
		AcademicYear string
	}

	// Repository reads and writes every school table. Result lists are ordered
	// by their natural key (names, grade/major/section, ...).
	Repository interface {
		CreateStudents(ctx context.Context, students ...Student) error
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		UpdateStudent(ctx context.Context, s Student) error
		// ExistingStudentNumbers returns which of numbers are already taken.
		ExistingStudentNumbers(ctx context.Context, numbers []string) ([]string, error)

		CreateTeachers(ctx context.Context, teachers ...Teacher) error
		QueryTeachers(ctx context.Context, filter ProfileFilter) ([]Teacher, error)
		GetTeacher(ctx context.Context, id string) (Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error)
		// ExistingEmployeeNumbers returns which of numbers are already taken.
		ExistingEmployeeNumbers(ctx context.Context, numbers []string) ([]string, error)

		CreateParents(ctx context.Context, parents ...Parent) error
		QueryParents(ctx context.Context, filter ProfileFilter) ([]Parent, error)
		GetParent(ctx context.Context, id string) (Parent, error)
		GetParentByUserID(ctx context.Context, userID string) (Parent, error)

		CreateClassroom(ctx context.Context, c Classroom) error
		QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error)
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		// FindClassroom matches major case-insensitively.
		FindClassroom(ctx context.Context, grade int, major string, section int) (Classroom, error)
		UpdateClassroom(ctx context.Context, c Classroom) error
		DeleteClassroom(ctx context.Context, id string) error
		CountStudents(ctx context.Context, classroomID string) (int, error)

		CreateSubject(ctx context.Context, s Subject) error
		QuerySubjects(ctx context.Context, search string) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		// GetSubjectByName matches name case-insensitively.
		GetSubjectByName(ctx context.Context, name string) (Subject, error)
		UpdateSubject(ctx context.Context, s Subject) error
		DeleteSubject(ctx context.Context, id string) error

		CreateSubjectConfig(ctx context.Context, sc SubjectConfig) error
		UpdateSubjectConfig(ctx context.Context, sc SubjectConfig) error
		QuerySubjectConfigs(ctx context.Context, filter SubjectConfigFilter) ([]SubjectConfig, error)
		GetSubjectConfig(ctx context.Context, subjectID string, grade int, term core.Term) (SubjectConfig, error)

		CreateTeachingAssignment(ctx context.Context, ta TeachingAssignment) error
		QueryTeachingAssignments(ctx context.Context, filter TeachingAssignmentFilter) ([]TeachingAssignment, error)
		GetTeachingAssignment(ctx context.Context, id string) (TeachingAssignment, error)
		DeleteTeachingAssignment(ctx context.Context, id string) error
	}
)
