package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type (
	studentRow struct {
		ID            string      `db:"id"`
		UserID        string      `db:"user_id"`
		Name          string      `db:"name"`
		StudentNumber string      `db:"student_number"`
		ClassroomID   null.String `db:"classroom_id"`
		ParentID      null.String `db:"parent_id"`
		Gender        string      `db:"gender"`
		BirthDate     core.Date   `db:"birth_date"`
		CreatedAt     time.Time   `db:"created_at"`
		UpdatedAt     time.Time   `db:"updated_at"`
	}

	teacherRow struct {
		ID             string    `db:"id"`
		UserID         string    `db:"user_id"`
		Name           string    `db:"name"`
		EmployeeNumber string    `db:"employee_number"`
		Phone          string    `db:"phone"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	parentRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		Name      string    `db:"name"`
		Phone     string    `db:"phone"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	classroomRow struct {
		ID                string      `db:"id"`
		Grade             int         `db:"grade"`
		Major             string      `db:"major"`
		Section           int         `db:"section"`
		HomeroomTeacherID null.String `db:"homeroom_teacher_id"`
		CreatedAt         time.Time   `db:"created_at"`
		UpdatedAt         time.Time   `db:"updated_at"`
	}
)

func newStudentRow(s school.Student) studentRow {
	return studentRow{
		ID:            s.ID,
		UserID:        s.UserID,
		StudentNumber: s.StudentNumber,
		ClassroomID:   nullString(s.ClassroomID),
		ParentID:      nullString(s.ParentID),
		Gender:        s.Gender,
		BirthDate:     s.BirthDate,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (r studentRow) model() school.Student {
	return school.Student{
		ID:            r.ID,
		UserID:        r.UserID,
		Name:          r.Name,
		StudentNumber: r.StudentNumber,
		ClassroomID:   r.ClassroomID.String,
		ParentID:      r.ParentID.String,
		Gender:        r.Gender,
		BirthDate:     r.BirthDate,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r teacherRow) model() school.Teacher {
	return school.Teacher{
		ID:             r.ID,
		UserID:         r.UserID,
		Name:           r.Name,
		EmployeeNumber: r.EmployeeNumber,
		Phone:          r.Phone,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (r parentRow) model() school.Parent {
	return school.Parent{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Phone:     r.Phone,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newClassroomRow(c school.Classroom) classroomRow {
	return classroomRow{
		ID:                c.ID,
		Grade:             c.Grade,
		Major:             c.Major,
		Section:           c.Section,
		HomeroomTeacherID: nullString(c.HomeroomTeacherID),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (r classroomRow) model() school.Classroom {
	return school.Classroom{
		ID:                r.ID,
		Grade:             r.Grade,
		Major:             r.Major,
		Section:           r.Section,
		HomeroomTeacherID: r.HomeroomTeacherID.String,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

const (
	studentSelect = `SELECT s.id, s.user_id, u.name, s.student_number, s.classroom_id, s.parent_id, s.gender,
		s.birth_date, s.created_at, s.updated_at FROM students s JOIN users u ON u.id = s.user_id`
	teacherSelect = `SELECT t.id, t.user_id, u.name, t.employee_number, t.phone, t.created_at, t.updated_at
		FROM teachers t JOIN users u ON u.id = t.user_id`
	parentSelect = `SELECT p.id, p.user_id, u.name, p.phone, p.created_at, p.updated_at
		FROM parents p JOIN users u ON u.id = p.user_id`
	classroomSelect = `SELECT id, grade, major, section, homeroom_teacher_id, created_at, updated_at FROM classrooms`
)

type schoolRepository struct {
	db *DB
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

// Students

func (repo *schoolRepository) CreateStudents(ctx context.Context, students ...school.Student) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, s := range students {
			err := repo.db.namedExec(ctx, `
				INSERT INTO students (id, user_id, student_number, classroom_id, parent_id, gender, birth_date, created_at, updated_at)
				VALUES (:id, :user_id, :student_number, :classroom_id, :parent_id, :gender, :birth_date, :created_at, :updated_at)`,
				newStudentRow(s),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *schoolRepository) queryStudents(ctx context.Context, cond conditions) ([]school.Student, error) {
	var rows []studentRow
	q := studentSelect + cond.where() + " ORDER BY LOWER(u.name), s.student_number"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.model())
	}
	return students, nil
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	var cond conditions
	cond.ids("s.id", filter.IDs)
	cond.uuid("s.classroom_id", filter.ClassroomID)
	cond.uuid("s.parent_id", filter.ParentID)
	if len(filter.StudentNumbers) > 0 {
		cond.add("s.student_number = ANY(?)", pq.StringArray(filter.StudentNumbers))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(u.name ILIKE ? OR s.student_number ILIKE ?)", pattern, pattern)
	}
	return repo.queryStudents(ctx, cond)
}

func (repo *schoolRepository) GetStudent(ctx context.Context, id string) (school.Student, error) {
	var r studentRow
	if err := repo.db.getOne(ctx, school.ErrStudentNotFound, &r, studentSelect+" WHERE s.id = $1", id); err != nil {
		return school.Student{}, err
	}
	return r.model(), nil
}

func (repo *schoolRepository) GetStudentByUserID(ctx context.Context, userID string) (school.Student, error) {
	var r studentRow
	if err := repo.db.getOne(ctx, school.ErrStudentNotFound, &r, studentSelect+" WHERE s.user_id = $1", userID); err != nil {
		return school.Student{}, err
	}
	return r.model(), nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) error {
	if !isUUID(s.ID) {
		return school.ErrStudentNotFound
	}
	res, err := repo.db.namedExecResult(ctx, `
		UPDATE students SET student_number = :student_number, classroom_id = :classroom_id, parent_id = :parent_id,
			gender = :gender, birth_date = :birth_date, updated_at = :updated_at
		WHERE id = :id`,
		newStudentRow(s),
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, school.ErrStudentNotFound)
}

func (repo *schoolRepository) ExistingStudentNumbers(ctx context.Context, numbers []string) ([]string, error) {
	taken := []string{}
	if len(numbers) == 0 {
		return taken, nil
	}
	err := repo.db.selectAll(ctx, &taken,
		"SELECT student_number FROM students WHERE student_number = ANY($1) ORDER BY student_number", pq.StringArray(numbers),
	)
	return taken, errors.Wrap(err, "querying student numbers")
}

// Teachers

func (repo *schoolRepository) CreateTeachers(ctx context.Context, teachers ...school.Teacher) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, t := range teachers {
			err := repo.db.exec(ctx, `
				INSERT INTO teachers (id, user_id, employee_number, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				t.ID, t.UserID, t.EmployeeNumber, t.Phone, t.CreatedAt, t.UpdatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *schoolRepository) QueryTeachers(ctx context.Context, filter school.ProfileFilter) ([]school.Teacher, error) {
	var cond conditions
	cond.ids("t.id", filter.IDs)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(u.name ILIKE ? OR t.employee_number ILIKE ?)", pattern, pattern)
	}

	var rows []teacherRow
	q := teacherSelect + cond.where() + " ORDER BY LOWER(u.name), t.employee_number"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]school.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.model())
	}
	return teachers, nil
}

func (repo *schoolRepository) GetTeacher(ctx context.Context, id string) (school.Teacher, error) {
	var r teacherRow
	if err := repo.db.getOne(ctx, school.ErrTeacherNotFound, &r, teacherSelect+" WHERE t.id = $1", id); err != nil {
		return school.Teacher{}, err
	}
	return r.model(), nil
}

func (repo *schoolRepository) GetTeacherByUserID(ctx context.Context, userID string) (school.Teacher, error) {
	var r teacherRow
	if err := repo.db.getOne(ctx, school.ErrTeacherNotFound, &r, teacherSelect+" WHERE t.user_id = $1", userID); err != nil {
		return school.Teacher{}, err
	}
	return r.model(), nil
}

func (repo *schoolRepository) ExistingEmployeeNumbers(ctx context.Context, numbers []string) ([]string, error) {
	taken := []string{}
	if len(numbers) == 0 {
		return taken, nil
	}
	err := repo.db.selectAll(ctx, &taken,
		"SELECT employee_number FROM teachers WHERE employee_number = ANY($1) ORDER BY employee_number", pq.StringArray(numbers),
	)
	return taken, errors.Wrap(err, "querying employee numbers")
}

// Parents

func (repo *schoolRepository) CreateParents(ctx context.Context, parents ...school.Parent) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, p := range parents {
			err := repo.db.exec(ctx,
				"INSERT INTO parents (id, user_id, phone, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
				p.ID, p.UserID, p.Phone, p.CreatedAt, p.UpdatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *schoolRepository) QueryParents(ctx context.Context, filter school.ProfileFilter) ([]school.Parent, error) {
	var cond conditions
	cond.ids("p.id", filter.IDs)
	if filter.Search != "" {
		cond.add("u.name ILIKE ?", likePattern(filter.Search))
	}

	var rows []parentRow
	q := parentSelect + cond.where() + " ORDER BY LOWER(u.name), p.id"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	parents := make([]school.Parent, 0, len(rows))
	for _, r := range rows {
		parents = append(parents, r.model())
	}
	return parents, nil
}

func (repo *schoolRepository) GetParent(ctx context.Context, id string) (school.Parent, error) {
	var r parentRow
	if err := repo.db.getOne(ctx, school.ErrParentNotFound, &r, parentSelect+" WHERE p.id = $1", id); err != nil {
		return school.Parent{}, err
	}
	return r.model(), nil
}

func (repo *schoolRepository) GetParentByUserID(ctx context.Context, userID string) (school.Parent, error) {
	var r parentRow
	if err := repo.db.getOne(ctx, school.ErrParentNotFound, &r, parentSelect+" WHERE p.user_id = $1", userID); err != nil {
		return school.Parent{}, err
	}
	return r.model(), nil
}

// Classrooms

func (repo *schoolRepository) CreateClassroom(ctx context.Context, c school.Classroom) error {
	return repo.db.namedExec(ctx, `
		INSERT INTO classrooms (id, grade, major, section, homeroom_teacher_id, created_at, updated_at)
		VALUES (:id, :grade, :major, :section, :homeroom_teacher_id, :created_at, :updated_at)`,
		newClassroomRow(c),
	)
}

func (repo *schoolRepository) queryClassrooms(ctx context.Context, cond conditions) ([]school.Classroom, error) {
	var rows []classroomRow
	q := classroomSelect + cond.where() + " ORDER BY grade, LOWER(major), section"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	classrooms := make([]school.Classroom, 0, len(rows))
	for _, r := range rows {
		classrooms = append(classrooms, r.model())
	}
	return classrooms, nil
}

func (repo *schoolRepository) QueryClassrooms(ctx context.Context, filter school.ClassroomFilter) ([]school.Classroom, error) {
	var cond conditions
	if filter.Grade != 0 {
		cond.add("grade = ?", filter.Grade)
	}
	if filter.Major != "" {
		cond.add("LOWER(major) = LOWER(?)", filter.Major)
	}
	cond.uuid("homeroom_teacher_id", filter.HomeroomTeacherID)
	return repo.queryClassrooms(ctx, cond)
}

func (repo *schoolRepository) GetClassroom(ctx context.Context, id string) (school.Classroom, error) {
	var r classroomRow
	if err := repo.db.getOne(ctx, school.ErrClassroomNotFound, &r, classroomSelect+" WHERE id = $1", id); err != nil {
		return school.Classroom{}, err
	}
	return r.model(), nil
}

func (repo *schoolRepository) FindClassroom(ctx context.Context, grade int, major string, section int) (school.Classroom, error) {
	var cond conditions
	cond.add("grade = ?", grade)
	cond.add("LOWER(major) = LOWER(?)", major)
	cond.add("section = ?", section)
	classrooms, err := repo.queryClassrooms(ctx, cond)
	if err != nil {
		return school.Classroom{}, err
	}
	if len(classrooms) == 0 {
		return school.Classroom{}, school.ErrClassroomNotFound
	}
	return classrooms[0], nil
}

func (repo *schoolRepository) UpdateClassroom(ctx context.Context, c school.Classroom) error {
	if !isUUID(c.ID) {
		return school.ErrClassroomNotFound
	}
	res, err := repo.db.namedExecResult(ctx, `
		UPDATE classrooms SET grade = :grade, major = :major, section = :section,
			homeroom_teacher_id = :homeroom_teacher_id, updated_at = :updated_at
		WHERE id = :id`,
		newClassroomRow(c),
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, school.ErrClassroomNotFound)
}

func (repo *schoolRepository) DeleteClassroom(ctx context.Context, id string) error {
	if !isUUID(id) {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM classrooms WHERE id = $1", id)
}

func (repo *schoolRepository) CountStudents(ctx context.Context, classroomID string) (int, error) {
	var n int
	if !isUUID(classroomID) {
		return n, nil
	}
	err := repo.db.get(ctx, &n, "SELECT COUNT(*) FROM students WHERE classroom_id = $1", classroomID)
	return n, errors.Wrap(mapError(err), "counting students")
}

// Subjects

const subjectSelect = "SELECT id, name, description, created_at, updated_at FROM subjects"

func (repo *schoolRepository) CreateSubject(ctx context.Context, s school.Subject) error {
	return repo.db.exec(ctx,
		"INSERT INTO subjects (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		s.ID, s.Name, s.Description, s.CreatedAt, s.UpdatedAt,
	)
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, search string) ([]school.Subject, error) {
	var cond conditions
	if search != "" {
		cond.add("name ILIKE ?", likePattern(search))
	}
	subjects := []school.Subject{}
	err := repo.db.selectAll(ctx, &subjects, subjectSelect+cond.where()+" ORDER BY LOWER(name)", cond.args...)
	return subjects, errors.Wrap(err, "querying subjects")
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id string) (s school.Subject, err error) {
	err = repo.db.getOne(ctx, school.ErrSubjectNotFound, &s, subjectSelect+" WHERE id = $1", id)
	return s, err
}

func (repo *schoolRepository) GetSubjectByName(ctx context.Context, name string) (s school.Subject, err error) {
	err = repo.db.get(ctx, &s, subjectSelect+" WHERE LOWER(name) = LOWER($1)", name)
	if errors.Is(err, sql.ErrNoRows) {
		return s, school.ErrSubjectNotFound
	}
	return s, mapError(err)
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, s school.Subject) error {
	if !isUUID(s.ID) {
		return school.ErrSubjectNotFound
	}
	res, err := repo.db.namedExecResult(ctx,
		"UPDATE subjects SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id",
		s,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, school.ErrSubjectNotFound)
}

func (repo *schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	if !isUUID(id) {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM subjects WHERE id = $1", id)
}

// Subject configs

const subjectConfigSelect = `SELECT id, subject_id, grade, academic_year, semester, passing_score,
	assignment_weight, quiz_weight, midterm_weight, final_weight, created_at, updated_at FROM subject_configs`

func (repo *schoolRepository) CreateSubjectConfig(ctx context.Context, sc school.SubjectConfig) error {
	return repo.db.namedExec(ctx, `
		INSERT INTO subject_configs (id, subject_id, grade, academic_year, semester, passing_score,
			assignment_weight, quiz_weight, midterm_weight, final_weight, created_at, updated_at)
		VALUES (:id, :subject_id, :grade, :academic_year, :semester, :passing_score,
			:assignment_weight, :quiz_weight, :midterm_weight, :final_weight, :created_at, :updated_at)`,
		sc,
	)
}

func (repo *schoolRepository) UpdateSubjectConfig(ctx context.Context, sc school.SubjectConfig) error {
	if !isUUID(sc.ID) {
		return school.ErrSubjectConfigNotFound
	}
	res, err := repo.db.namedExecResult(ctx, `
		UPDATE subject_configs SET passing_score = :passing_score, assignment_weight = :assignment_weight,
			quiz_weight = :quiz_weight, midterm_weight = :midterm_weight, final_weight = :final_weight,
			updated_at = :updated_at
		WHERE id = :id`,
		sc,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, school.ErrSubjectConfigNotFound)
}

func (repo *schoolRepository) QuerySubjectConfigs(ctx context.Context, filter school.SubjectConfigFilter) ([]school.SubjectConfig, error) {
	var cond conditions
	cond.uuid("subject_id", filter.SubjectID)
	if filter.Grade != 0 {
		cond.add("grade = ?", filter.Grade)
	}
	if filter.AcademicYear != "" {
		cond.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.Semester != 0 {
		cond.add("semester = ?", filter.Semester)
	}
	configs := []school.SubjectConfig{}
	q := subjectConfigSelect + cond.where() + " ORDER BY academic_year DESC, semester DESC, grade, subject_id"
	err := repo.db.selectAll(ctx, &configs, q, cond.args...)
	return configs, errors.Wrap(err, "querying subject configs")
}

func (repo *schoolRepository) GetSubjectConfig(ctx context.Context, subjectID string, grade int, term core.Term) (sc school.SubjectConfig, err error) {
	if !isUUID(subjectID) {
		return sc, school.ErrSubjectConfigNotFound
	}
	err = repo.db.get(ctx, &sc,
		subjectConfigSelect+" WHERE subject_id = $1 AND grade = $2 AND academic_year = $3 AND semester = $4",
		subjectID, grade, term.AcademicYear, term.Semester,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sc, school.ErrSubjectConfigNotFound
	}
	return sc, mapError(err)
}

// Teaching assignments

const teachingAssignmentSelect = `SELECT id, teacher_id, subject_id, classroom_id, academic_year, created_at
	FROM teaching_assignments`

func (repo *schoolRepository) CreateTeachingAssignment(ctx context.Context, ta school.TeachingAssignment) error {
	return repo.db.namedExec(ctx, `
		INSERT INTO teaching_assignments (id, teacher_id, subject_id, classroom_id, academic_year, created_at)
		VALUES (:id, :teacher_id, :subject_id, :classroom_id, :academic_year, :created_at)`,
		ta,
	)
}

func (repo *schoolRepository) QueryTeachingAssignments(ctx context.Context, filter school.TeachingAssignmentFilter) ([]school.TeachingAssignment, error) {
	var cond conditions
	cond.uuid("teacher_id", filter.TeacherID)
	cond.uuid("subject_id", filter.SubjectID)
	cond.uuid("classroom_id", filter.ClassroomID)
	if filter.AcademicYear != "" {
		cond.add("academic_year = ?", filter.AcademicYear)
	}
	tas := []school.TeachingAssignment{}
	q := teachingAssignmentSelect + cond.where() + " ORDER BY academic_year DESC, created_at, id"
	err := repo.db.selectAll(ctx, &tas, q, cond.args...)
	return tas, errors.Wrap(err, "querying teaching assignments")
}

func (repo *schoolRepository) GetTeachingAssignment(ctx context.Context, id string) (ta school.TeachingAssignment, err error) {
	err = repo.db.getOne(ctx, school.ErrTeachingAssignmentNotFound, &ta, teachingAssignmentSelect+" WHERE id = $1", id)
	return ta, err
}

func (repo *schoolRepository) DeleteTeachingAssignment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM teaching_assignments WHERE id = $1", id)
}
