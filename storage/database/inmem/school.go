package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *DB
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Students

func (t *tables) student(s school.Student) school.Student {
	s.Name = t.users[s.UserID].Name
	return s
}

func (repo *schoolRepository) CreateStudents(ctx context.Context, students ...school.Student) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, s := range students {
			for _, other := range t.students {
				switch {
				case other.StudentNumber == s.StudentNumber:
					return uniqueViolation("student_number", "a student with this number already exists")
				case other.UserID == s.UserID:
					return uniqueViolation("user_id", "this user already has a student profile")
				}
			}
			s.Name = ""
			t.students[s.ID] = s
		}
		return nil
	})
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.StudentFilter) ([]school.Student, error) {
	students := []school.Student{}
	repo.db.read(func(t *tables) {
		for _, s := range t.students {
			s = t.student(s)
			switch {
			case len(filter.IDs) > 0 && !inSlice(s.ID, filter.IDs):
			case filter.ClassroomID != "" && s.ClassroomID != filter.ClassroomID:
			case filter.ParentID != "" && s.ParentID != filter.ParentID:
			case len(filter.StudentNumbers) > 0 && !inSlice(s.StudentNumber, filter.StudentNumbers):
			case filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.StudentNumber, filter.Search):
			default:
				students = append(students, s)
			}
		}
	})
	sort.Slice(students, func(i, j int) bool {
		if a, b := strings.ToLower(students[i].Name), strings.ToLower(students[j].Name); a != b {
			return a < b
		}
		return students[i].StudentNumber < students[j].StudentNumber
	})
	return students, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string) (s school.Student, err error) {
	err = school.ErrStudentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.students[id]; ok {
			s, err = t.student(found), nil
		}
	})
	return s, err
}

func (repo *schoolRepository) GetStudentByUserID(_ context.Context, userID string) (s school.Student, err error) {
	err = school.ErrStudentNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.students {
			if found.UserID == userID {
				s, err = t.student(found), nil
				return
			}
		}
	})
	return s, err
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.students[s.ID]; !ok {
			return school.ErrStudentNotFound
		}
		for _, other := range t.students {
			if other.ID != s.ID && other.StudentNumber == s.StudentNumber {
				return uniqueViolation("student_number", "a student with this number already exists")
			}
		}
		s.Name = ""
		t.students[s.ID] = s
		return nil
	})
}

func (repo *schoolRepository) ExistingStudentNumbers(_ context.Context, numbers []string) ([]string, error) {
	taken := []string{}
	repo.db.read(func(t *tables) {
		for _, s := range t.students {
			if inSlice(s.StudentNumber, numbers) {
				taken = append(taken, s.StudentNumber)
			}
		}
	})
	sort.Strings(taken)
	return taken, nil
}

// Teachers

func (t *tables) teacher(tc school.Teacher) school.Teacher {
	tc.Name = t.users[tc.UserID].Name
	return tc
}

func (repo *schoolRepository) CreateTeachers(ctx context.Context, teachers ...school.Teacher) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, tc := range teachers {
			for _, other := range t.teachers {
				switch {
				case other.EmployeeNumber == tc.EmployeeNumber:
					return uniqueViolation("employee_number", "a teacher with this employee number already exists")
				case other.UserID == tc.UserID:
					return uniqueViolation("user_id", "this user already has a teacher profile")
				}
			}
			tc.Name = ""
			t.teachers[tc.ID] = tc
		}
		return nil
	})
}

func (repo *schoolRepository) QueryTeachers(_ context.Context, filter school.ProfileFilter) ([]school.Teacher, error) {
	teachers := []school.Teacher{}
	repo.db.read(func(t *tables) {
		for _, tc := range t.teachers {
			tc = t.teacher(tc)
			switch {
			case len(filter.IDs) > 0 && !inSlice(tc.ID, filter.IDs):
			case filter.Search != "" && !containsFold(tc.Name, filter.Search) && !containsFold(tc.EmployeeNumber, filter.Search):
			default:
				teachers = append(teachers, tc)
			}
		}
	})
	sort.Slice(teachers, func(i, j int) bool {
		if a, b := strings.ToLower(teachers[i].Name), strings.ToLower(teachers[j].Name); a != b {
			return a < b
		}
		return teachers[i].EmployeeNumber < teachers[j].EmployeeNumber
	})
	return teachers, nil
}

func (repo *schoolRepository) GetTeacher(_ context.Context, id string) (tc school.Teacher, err error) {
	err = school.ErrTeacherNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.teachers[id]; ok {
			tc, err = t.teacher(found), nil
		}
	})
	return tc, err
}

func (repo *schoolRepository) GetTeacherByUserID(_ context.Context, userID string) (tc school.Teacher, err error) {
	err = school.ErrTeacherNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.teachers {
			if found.UserID == userID {
				tc, err = t.teacher(found), nil
				return
			}
		}
	})
	return tc, err
}

func (repo *schoolRepository) ExistingEmployeeNumbers(_ context.Context, numbers []string) ([]string, error) {
	taken := []string{}
	repo.db.read(func(t *tables) {
		for _, tc := range t.teachers {
			if inSlice(tc.EmployeeNumber, numbers) {
				taken = append(taken, tc.EmployeeNumber)
			}
		}
	})
	sort.Strings(taken)
	return taken, nil
}

// Parents

func (t *tables) parent(p school.Parent) school.Parent {
	p.Name = t.users[p.UserID].Name
	return p
}

func (repo *schoolRepository) CreateParents(ctx context.Context, parents ...school.Parent) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, p := range parents {
			for _, other := range t.parents {
				if other.UserID == p.UserID {
					return uniqueViolation("user_id", "this user already has a parent profile")
				}
			}
			p.Name = ""
			t.parents[p.ID] = p
		}
		return nil
	})
}

func (repo *schoolRepository) QueryParents(_ context.Context, filter school.ProfileFilter) ([]school.Parent, error) {
	parents := []school.Parent{}
	repo.db.read(func(t *tables) {
		for _, p := range t.parents {
			p = t.parent(p)
			switch {
			case len(filter.IDs) > 0 && !inSlice(p.ID, filter.IDs):
			case filter.Search != "" && !containsFold(p.Name, filter.Search):
			default:
				parents = append(parents, p)
			}
		}
	})
	sort.Slice(parents, func(i, j int) bool {
		if a, b := strings.ToLower(parents[i].Name), strings.ToLower(parents[j].Name); a != b {
			return a < b
		}
		return parents[i].ID < parents[j].ID
	})
	return parents, nil
}

func (repo *schoolRepository) GetParent(_ context.Context, id string) (p school.Parent, err error) {
	err = school.ErrParentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.parents[id]; ok {
			p, err = t.parent(found), nil
		}
	})
	return p, err
}

func (repo *schoolRepository) GetParentByUserID(_ context.Context, userID string) (p school.Parent, err error) {
	err = school.ErrParentNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.parents {
			if found.UserID == userID {
				p, err = t.parent(found), nil
				return
			}
		}
	})
	return p, err
}

// Classrooms

func checkClassroomUniqueness(t *tables, c school.Classroom) error {
	for _, other := range t.classrooms {
		if other.ID == c.ID {
			continue
		}
		if other.SameSlot(c.Grade, c.Major, c.Section) {
			return uniqueViolation("classroom", "a classroom with this grade, major and section already exists")
		}
		if c.HomeroomTeacherID != "" && other.HomeroomTeacherID == c.HomeroomTeacherID {
			return uniqueViolation("homeroom_teacher_id", "this teacher is already the homeroom teacher of another classroom")
		}
	}
	return nil
}

func (repo *schoolRepository) CreateClassroom(ctx context.Context, c school.Classroom) error {
	return repo.db.write(ctx, func(t *tables) error {
		if err := checkClassroomUniqueness(t, c); err != nil {
			return err
		}
		t.classrooms[c.ID] = c
		return nil
	})
}

func (repo *schoolRepository) QueryClassrooms(_ context.Context, filter school.ClassroomFilter) ([]school.Classroom, error) {
	classrooms := []school.Classroom{}
	repo.db.read(func(t *tables) {
		for _, c := range t.classrooms {
			switch {
			case filter.Grade != 0 && c.Grade != filter.Grade:
			case filter.Major != "" && !strings.EqualFold(c.Major, filter.Major):
			case filter.HomeroomTeacherID != "" && c.HomeroomTeacherID != filter.HomeroomTeacherID:
			default:
				classrooms = append(classrooms, c)
			}
		}
	})
	sort.Slice(classrooms, func(i, j int) bool {
		a, b := classrooms[i], classrooms[j]
		if a.Grade != b.Grade {
			return a.Grade < b.Grade
		}
		if ma, mb := strings.ToLower(a.Major), strings.ToLower(b.Major); ma != mb {
			return ma < mb
		}
		return a.Section < b.Section
	})
	return classrooms, nil
}

func (repo *schoolRepository) GetClassroom(_ context.Context, id string) (c school.Classroom, err error) {
	err = school.ErrClassroomNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.classrooms[id]; ok {
			c, err = found, nil
		}
	})
	return c, err
}

func (repo *schoolRepository) FindClassroom(_ context.Context, grade int, major string, section int) (c school.Classroom, err error) {
	err = school.ErrClassroomNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.classrooms {
			if found.SameSlot(grade, major, section) {
				c, err = found, nil
				return
			}
		}
	})
	return c, err
}

func (repo *schoolRepository) UpdateClassroom(ctx context.Context, c school.Classroom) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.classrooms[c.ID]; !ok {
			return school.ErrClassroomNotFound
		}
		if err := checkClassroomUniqueness(t, c); err != nil {
			return err
		}
		t.classrooms[c.ID] = c
		return nil
	})
}

func (repo *schoolRepository) DeleteClassroom(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		t.deleteClassroom(id)
		return nil
	})
}

func (repo *schoolRepository) CountStudents(_ context.Context, classroomID string) (n int, err error) {
	repo.db.read(func(t *tables) {
		for _, s := range t.students {
			if s.ClassroomID == classroomID {
				n++
			}
		}
	})
	return n, nil
}

// Subjects

func checkSubjectUniqueness(t *tables, s school.Subject) error {
	for _, other := range t.subjects {
		if other.ID != s.ID && strings.EqualFold(other.Name, s.Name) {
			return uniqueViolation("name", school.ErrSubjectExists.Error())
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSubject(ctx context.Context, s school.Subject) error {
	return repo.db.write(ctx, func(t *tables) error {
		if err := checkSubjectUniqueness(t, s); err != nil {
			return err
		}
		t.subjects[s.ID] = s
		return nil
	})
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, search string) ([]school.Subject, error) {
	subjects := []school.Subject{}
	repo.db.read(func(t *tables) {
		for _, s := range t.subjects {
			if search == "" || containsFold(s.Name, search) {
				subjects = append(subjects, s)
			}
		}
	})
	sort.Slice(subjects, func(i, j int) bool {
		return strings.ToLower(subjects[i].Name) < strings.ToLower(subjects[j].Name)
	})
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, id string) (s school.Subject, err error) {
	err = school.ErrSubjectNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.subjects[id]; ok {
			s, err = found, nil
		}
	})
	return s, err
}

func (repo *schoolRepository) GetSubjectByName(_ context.Context, name string) (s school.Subject, err error) {
	err = school.ErrSubjectNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.subjects {
			if strings.EqualFold(found.Name, name) {
				s, err = found, nil
				return
			}
		}
	})
	return s, err
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, s school.Subject) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.subjects[s.ID]; !ok {
			return school.ErrSubjectNotFound
		}
		if err := checkSubjectUniqueness(t, s); err != nil {
			return err
		}
		t.subjects[s.ID] = s
		return nil
	})
}

func (repo *schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		t.deleteSubject(id)
		return nil
	})
}

// Subject configs

func (repo *schoolRepository) CreateSubjectConfig(ctx context.Context, sc school.SubjectConfig) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.subjectConfigs {
			if other.SubjectID == sc.SubjectID && other.Grade == sc.Grade && other.Term() == sc.Term() {
				return uniqueViolation("subject_id", "this subject is already configured for this grade and term")
			}
		}
		t.subjectConfigs[sc.ID] = sc
		return nil
	})
}

func (repo *schoolRepository) UpdateSubjectConfig(ctx context.Context, sc school.SubjectConfig) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.subjectConfigs[sc.ID]; !ok {
			return school.ErrSubjectConfigNotFound
		}
		t.subjectConfigs[sc.ID] = sc
		return nil
	})
}

func (repo *schoolRepository) QuerySubjectConfigs(_ context.Context, filter school.SubjectConfigFilter) ([]school.SubjectConfig, error) {
	configs := []school.SubjectConfig{}
	repo.db.read(func(t *tables) {
		for _, sc := range t.subjectConfigs {
			switch {
			case filter.SubjectID != "" && sc.SubjectID != filter.SubjectID:
			case filter.Grade != 0 && sc.Grade != filter.Grade:
			case filter.AcademicYear != "" && sc.AcademicYear != filter.AcademicYear:
			case filter.Semester != 0 && sc.Semester != filter.Semester:
			default:
				configs = append(configs, sc)
			}
		}
	})
	sort.Slice(configs, func(i, j int) bool {
		a, b := configs[i], configs[j]
		if a.AcademicYear != b.AcademicYear {
			return a.AcademicYear > b.AcademicYear
		}
		if a.Semester != b.Semester {
			return a.Semester > b.Semester
		}
		if a.Grade != b.Grade {
			return a.Grade < b.Grade
		}
		return a.SubjectID < b.SubjectID
	})
	return configs, nil
}

func (repo *schoolRepository) GetSubjectConfig(_ context.Context, subjectID string, grade int, term core.Term) (sc school.SubjectConfig, err error) {
	err = school.ErrSubjectConfigNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.subjectConfigs {
			if found.SubjectID == subjectID && found.Grade == grade && found.Term() == term {
				sc, err = found, nil
				return
			}
		}
	})
	return sc, err
}

// Teaching assignments

func (repo *schoolRepository) CreateTeachingAssignment(ctx context.Context, ta school.TeachingAssignment) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.teachingAssignments {
			if other.SubjectID == ta.SubjectID && other.ClassroomID == ta.ClassroomID && other.AcademicYear == ta.AcademicYear {
				return uniqueViolation("subject_id", school.ErrSubjectAlreadyTaught.Error())
			}
		}
		t.teachingAssignments[ta.ID] = ta
		return nil
	})
}

func (repo *schoolRepository) QueryTeachingAssignments(_ context.Context, filter school.TeachingAssignmentFilter) ([]school.TeachingAssignment, error) {
	tas := []school.TeachingAssignment{}
	repo.db.read(func(t *tables) {
		for _, ta := range t.teachingAssignments {
			switch {
			case filter.TeacherID != "" && ta.TeacherID != filter.TeacherID:
			case filter.SubjectID != "" && ta.SubjectID != filter.SubjectID:
			case filter.ClassroomID != "" && ta.ClassroomID != filter.ClassroomID:
			case filter.AcademicYear != "" && ta.AcademicYear != filter.AcademicYear:
			default:
				tas = append(tas, ta)
			}
		}
	})
	sort.Slice(tas, func(i, j int) bool {
		if tas[i].AcademicYear != tas[j].AcademicYear {
			return tas[i].AcademicYear > tas[j].AcademicYear
		}
		if !tas[i].CreatedAt.Equal(tas[j].CreatedAt) {
			return tas[i].CreatedAt.Before(tas[j].CreatedAt)
		}
		return tas[i].ID < tas[j].ID
	})
	return tas, nil
}

func (repo *schoolRepository) GetTeachingAssignment(_ context.Context, id string) (ta school.TeachingAssignment, err error) {
	err = school.ErrTeachingAssignmentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.teachingAssignments[id]; ok {
			ta, err = found, nil
		}
	})
	return ta, err
}

func (repo *schoolRepository) DeleteTeachingAssignment(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		delete(t.teachingAssignments, id)
		return nil
	})
}
