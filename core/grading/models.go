package grading

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	ErrGradebookNotFound  = &core.NotFoundError{Entity: "gradebook"}
	ErrAssessmentNotFound = &core.NotFoundError{Entity: "assessment"}
)

type (
	// Gradebook holds the scores of a student for a subject during a term.
	Gradebook struct {
		ID           string    `json:"id"`
		StudentID    string    `json:"student_id"`
		SubjectID    string    `json:"subject_id"`
		AcademicYear string    `json:"academic_year"`
		Semester     int       `json:"semester"`
		FinalScore   *float64  `json:"final_score"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	Assessment struct {
		ID           string                `json:"id"`
		ClassroomID  string                `json:"classroom_id"`
		SubjectID    string                `json:"subject_id"`
		AcademicYear string                `json:"academic_year"`
		Semester     int                   `json:"semester"`
		Type         school.AssessmentType `json:"type"`
		Title        string                `json:"title"`
		MaxScore     float64               `json:"max_score"`
		Date         core.Date             `json:"date"`
		CreatedByID  string                `json:"created_by_id"`
		CreatedAt    time.Time             `json:"created_at"`
		UpdatedAt    time.Time             `json:"updated_at"`
	}

	AssessmentScore struct {
		ID           string    `json:"id"`
		AssessmentID string    `json:"assessment_id"`
		GradebookID  string    `json:"gradebook_id"`
		StudentID    string    `json:"student_id"`
		Score        float64   `json:"score"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	GradebookFilter struct {
		IDs          []string
		StudentIDs   []string
		SubjectID    string
		AcademicYear string
		Semester     int
	}

	AssessmentFilter struct {
		IDs          []string
		ClassroomIDs []string
		SubjectID    string
		AcademicYear string
		Semester     int
		Type         school.AssessmentType
	}

	ScoreFilter struct {
		AssessmentIDs []string
		GradebookIDs  []string
		StudentIDs    []string
	}

	Repository interface {
		CreateGradebooks(ctx context.Context, gbs ...Gradebook) error
		// QueryGradebooks orders by academic year, semester then creation.
		QueryGradebooks(ctx context.Context, filter GradebookFilter) ([]Gradebook, error)
		UpdateFinalScore(ctx context.Context, id string, score *float64, updatedAt time.Time) error

		CreateAssessment(ctx context.Context, a Assessment) error
		// QueryAssessments orders by date then title.
		QueryAssessments(ctx context.Context, filter AssessmentFilter) ([]Assessment, error)
		GetAssessment(ctx context.Context, id string) (Assessment, error)
		// DeleteAssessment also deletes its scores.
		DeleteAssessment(ctx context.Context, id string) error

		QueryScores(ctx context.Context, filter ScoreFilter) ([]AssessmentScore, error)
		CreateScores(ctx context.Context, scores ...AssessmentScore) error
		UpdateScores(ctx context.Context, scores ...AssessmentScore) error
		DeleteScores(ctx context.Context, ids ...string) error
	}
)

func (gb Gradebook) Term() core.Term {
	return core.Term{AcademicYear: gb.AcademicYear, Semester: gb.Semester}
}

func (a Assessment) Term() core.Term {
	return core.Term{AcademicYear: a.AcademicYear, Semester: a.Semester}
}
