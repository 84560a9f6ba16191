package school

import (
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
)

const (
	GenderMale   = "M"
	GenderFemale = "F"

	DefaultPassingScore = 75.0
)

// AssessmentType is the kind of an assessment; each type has its own weight in a SubjectConfig.
type AssessmentType string

const (
	AssessmentAssignment AssessmentType = "ASSIGNMENT"
	AssessmentQuiz       AssessmentType = "QUIZ"
	AssessmentMidterm    AssessmentType = "MIDTERM"
	AssessmentFinal      AssessmentType = "FINAL"
)

var AssessmentTypes = []AssessmentType{AssessmentAssignment, AssessmentQuiz, AssessmentMidterm, AssessmentFinal}

func (t AssessmentType) IsValid() bool {
	for _, at := range AssessmentTypes {
		if t == at {
			return true
		}
	}
	return false
}

type (
	Student struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		Name          string    `json:"name"` // from the user account
		StudentNumber string    `json:"student_number"`
		ClassroomID   string    `json:"classroom_id"`
		ParentID      string    `json:"parent_id"`
		Gender        string    `json:"gender"`
		BirthDate     core.Date `json:"birth_date"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}

	Teacher struct {
		ID             string    `json:"id"`
		UserID         string    `json:"user_id"`
		Name           string    `json:"name"`
		EmployeeNumber string    `json:"employee_number"`
		Phone          string    `json:"phone"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	Parent struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Name      string    `json:"name"`
		Phone     string    `json:"phone"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Classroom struct {
		ID                string    `json:"id"`
		Grade             int       `json:"grade"`
		Major             string    `json:"major"`
		Section           int       `json:"section"`
		HomeroomTeacherID string    `json:"homeroom_teacher_id"`
		CreatedAt         time.Time `json:"created_at"`
		UpdatedAt         time.Time `json:"updated_at"`
	}

	Subject struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	// SubjectConfig sets the passing score and the assessment type weights
	// of a subject for a grade during a term.
	SubjectConfig struct {
		ID               string    `json:"id"`
		SubjectID        string    `json:"subject_id"`
		Grade            int       `json:"grade"`
		AcademicYear     string    `json:"academic_year"`
		Semester         int       `json:"semester"`
		PassingScore     float64   `json:"passing_score"`
		AssignmentWeight int       `json:"assignment_weight"`
		QuizWeight       int       `json:"quiz_weight"`
		MidtermWeight    int       `json:"midterm_weight"`
		FinalWeight      int       `json:"final_weight"`
		CreatedAt        time.Time `json:"created_at"`
		UpdatedAt        time.Time `json:"updated_at"`
	}

	// TeachingAssignment tells which teacher teaches a subject to a classroom during an academic year.
	TeachingAssignment struct {
		ID           string    `json:"id"`
		TeacherID    string    `json:"teacher_id"`
		SubjectID    string    `json:"subject_id"`
		ClassroomID  string    `json:"classroom_id"`
		AcademicYear string    `json:"academic_year"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

// Name reads like "10 IPA 2".
func (c Classroom) Name() string {
	return fmt.Sprintf("%d %s %d", c.Grade, c.Major, c.Section)
}

// SameSlot reports whether both classrooms have the same grade, major (case-insensitive) and section.
func (c Classroom) SameSlot(grade int, major string, section int) bool {
	return c.Grade == grade && c.Section == section && strings.EqualFold(c.Major, major)
}

func (sc SubjectConfig) Term() core.Term {
	return core.Term{AcademicYear: sc.AcademicYear, Semester: sc.Semester}
}

func (sc SubjectConfig) Weight(t AssessmentType) int {
	switch t {
	case AssessmentAssignment:
		return sc.AssignmentWeight
	case AssessmentQuiz:
		return sc.QuizWeight
	case AssessmentMidterm:
		return sc.MidtermWeight
	case AssessmentFinal:
		return sc.FinalWeight
	}
	return 0
}

// DefaultSubjectConfig weighs every assessment type equally.
func DefaultSubjectConfig(subjectID string, grade int, term core.Term) SubjectConfig {
	return SubjectConfig{
		SubjectID:        subjectID,
		Grade:            grade,
		AcademicYear:     term.AcademicYear,
		Semester:         term.Semester,
		PassingScore:     DefaultPassingScore,
		AssignmentWeight: 25,
		QuizWeight:       25,
		MidtermWeight:    25,
		FinalWeight:      25,
	}
}
