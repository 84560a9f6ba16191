package pgrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
)

type (
	gradebookRow struct {
		ID           string       `db:"id"`
		StudentID    string       `db:"student_id"`
		SubjectID    string       `db:"subject_id"`
		AcademicYear string       `db:"academic_year"`
		Semester     int          `db:"semester"`
		FinalScore   null.Float64 `db:"final_score"`
		CreatedAt    time.Time    `db:"created_at"`
		UpdatedAt    time.Time    `db:"updated_at"`
	}

	assessmentRow struct {
		ID           string      `db:"id"`
		ClassroomID  string      `db:"classroom_id"`
		SubjectID    string      `db:"subject_id"`
		AcademicYear string      `db:"academic_year"`
		Semester     int         `db:"semester"`
		Type         string      `db:"type"`
		Title        string      `db:"title"`
		MaxScore     float64     `db:"max_score"`
		Date         core.Date   `db:"date"`
		CreatedByID  null.String `db:"created_by_id"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}
)

func newGradebookRow(gb grading.Gradebook) gradebookRow {
	return gradebookRow{
		ID:           gb.ID,
		StudentID:    gb.StudentID,
		SubjectID:    gb.SubjectID,
		AcademicYear: gb.AcademicYear,
		Semester:     gb.Semester,
		FinalScore:   null.Float64FromPtr(gb.FinalScore),
		CreatedAt:    gb.CreatedAt,
		UpdatedAt:    gb.UpdatedAt,
	}
}

func (r gradebookRow) model() grading.Gradebook {
	return grading.Gradebook{
		ID:           r.ID,
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID,
		AcademicYear: r.AcademicYear,
		Semester:     r.Semester,
		FinalScore:   r.FinalScore.Ptr(),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func newAssessmentRow(a grading.Assessment) assessmentRow {
	return assessmentRow{
		ID:           a.ID,
		ClassroomID:  a.ClassroomID,
		SubjectID:    a.SubjectID,
		AcademicYear: a.AcademicYear,
		Semester:     a.Semester,
		Type:         string(a.Type),
		Title:        a.Title,
		MaxScore:     a.MaxScore,
		Date:         a.Date,
		CreatedByID:  nullString(a.CreatedByID),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r assessmentRow) model() grading.Assessment {
	return grading.Assessment{
		ID:           r.ID,
		ClassroomID:  r.ClassroomID,
		SubjectID:    r.SubjectID,
		AcademicYear: r.AcademicYear,
		Semester:     r.Semester,
		Type:         school.AssessmentType(r.Type),
		Title:        r.Title,
		MaxScore:     r.MaxScore,
		Date:         r.Date,
		CreatedByID:  r.CreatedByID.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const (
	gradebookSelect = `SELECT id, student_id, subject_id, academic_year, semester, final_score, created_at, updated_at
		FROM gradebooks`
	assessmentSelect = `SELECT id, classroom_id, subject_id, academic_year, semester, type, title, max_score, date,
		created_by_id, created_at, updated_at FROM assessments`
	scoreSelect = `SELECT id, assessment_id, gradebook_id, student_id, score, created_at, updated_at
		FROM assessment_scores`
)

type gradingRepository struct {
	db *DB
}

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) CreateGradebooks(ctx context.Context, gbs ...grading.Gradebook) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, gb := range gbs {
			err := repo.db.namedExec(ctx, `
				INSERT INTO gradebooks (id, student_id, subject_id, academic_year, semester, final_score, created_at, updated_at)
				VALUES (:id, :student_id, :subject_id, :academic_year, :semester, :final_score, :created_at, :updated_at)`,
				newGradebookRow(gb),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *gradingRepository) QueryGradebooks(ctx context.Context, filter grading.GradebookFilter) ([]grading.Gradebook, error) {
	var cond conditions
	cond.ids("id", filter.IDs)
	cond.ids("student_id", filter.StudentIDs)
	cond.uuid("subject_id", filter.SubjectID)
	if filter.AcademicYear != "" {
		cond.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.Semester != 0 {
		cond.add("semester = ?", filter.Semester)
	}

	var rows []gradebookRow
	q := gradebookSelect + cond.where() + " ORDER BY academic_year, semester, created_at, id"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying gradebooks")
	}
	gbs := make([]grading.Gradebook, 0, len(rows))
	for _, r := range rows {
		gbs = append(gbs, r.model())
	}
	return gbs, nil
}

func (repo *gradingRepository) UpdateFinalScore(ctx context.Context, id string, score *float64, updatedAt time.Time) error {
	if !isUUID(id) {
		return grading.ErrGradebookNotFound
	}
	return repo.db.exec(ctx,
		"UPDATE gradebooks SET final_score = $2, updated_at = $3 WHERE id = $1",
		id, null.Float64FromPtr(score), updatedAt,
	)
}

func (repo *gradingRepository) CreateAssessment(ctx context.Context, a grading.Assessment) error {
	return repo.db.namedExec(ctx, `
		INSERT INTO assessments (id, classroom_id, subject_id, academic_year, semester, type, title, max_score, date,
			created_by_id, created_at, updated_at)
		VALUES (:id, :classroom_id, :subject_id, :academic_year, :semester, :type, :title, :max_score, :date,
			:created_by_id, :created_at, :updated_at)`,
		newAssessmentRow(a),
	)
}

func (repo *gradingRepository) QueryAssessments(ctx context.Context, filter grading.AssessmentFilter) ([]grading.Assessment, error) {
	var cond conditions
	cond.ids("id", filter.IDs)
	cond.ids("classroom_id", filter.ClassroomIDs)
	cond.uuid("subject_id", filter.SubjectID)
	if filter.AcademicYear != "" {
		cond.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.Semester != 0 {
		cond.add("semester = ?", filter.Semester)
	}
	if filter.Type != "" {
		cond.add("type = ?", string(filter.Type))
	}

	var rows []assessmentRow
	q := assessmentSelect + cond.where() + " ORDER BY date, title, id"
	if err := repo.db.selectAll(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	as := make([]grading.Assessment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.model())
	}
	return as, nil
}

func (repo *gradingRepository) GetAssessment(ctx context.Context, id string) (grading.Assessment, error) {
	var r assessmentRow
	if err := repo.db.getOne(ctx, grading.ErrAssessmentNotFound, &r, assessmentSelect+" WHERE id = $1", id); err != nil {
		return grading.Assessment{}, err
	}
	return r.model(), nil
}

func (repo *gradingRepository) DeleteAssessment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return nil
	}
	// scores are deleted on cascade
	return repo.db.exec(ctx, "DELETE FROM assessments WHERE id = $1", id)
}

func (repo *gradingRepository) QueryScores(ctx context.Context, filter grading.ScoreFilter) ([]grading.AssessmentScore, error) {
	var cond conditions
	cond.ids("assessment_id", filter.AssessmentIDs)
	cond.ids("gradebook_id", filter.GradebookIDs)
	cond.ids("student_id", filter.StudentIDs)

	scores := []grading.AssessmentScore{}
	q := scoreSelect + cond.where() + " ORDER BY assessment_id, student_id"
	err := repo.db.selectAll(ctx, &scores, q, cond.args...)
	return scores, errors.Wrap(err, "querying scores")
}

func (repo *gradingRepository) CreateScores(ctx context.Context, scores ...grading.AssessmentScore) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, s := range scores {
			err := repo.db.namedExec(ctx, `
				INSERT INTO assessment_scores (id, assessment_id, gradebook_id, student_id, score, created_at, updated_at)
				VALUES (:id, :assessment_id, :gradebook_id, :student_id, :score, :created_at, :updated_at)`,
				s,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *gradingRepository) UpdateScores(ctx context.Context, scores ...grading.AssessmentScore) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		for _, s := range scores {
			res, err := repo.db.namedExecResult(ctx,
				"UPDATE assessment_scores SET score = :score, updated_at = :updated_at WHERE id = :id",
				s,
			)
			if err != nil {
				return err
			}
			if err := affectedOrNotFound(res, &core.NotFoundError{Entity: "score"}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *gradingRepository) DeleteScores(ctx context.Context, ids ...string) error {
	valid := uuids(ids)
	if len(valid) == 0 {
		return nil
	}
	return repo.db.exec(ctx, "DELETE FROM assessment_scores WHERE id = ANY($1::uuid[])", valid)
}
