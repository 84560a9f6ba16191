package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/shule/core/grading"
)

type gradingRepository struct {
	db *DB
}

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db}
}

func copyScore(score *float64) *float64 {
	if score == nil {
		return nil
	}
	s := *score
	return &s
}

func (repo *gradingRepository) CreateGradebooks(ctx context.Context, gbs ...grading.Gradebook) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, gb := range gbs {
			for _, other := range t.gradebooks {
				if other.StudentID == gb.StudentID && other.SubjectID == gb.SubjectID && other.Term() == gb.Term() {
					return uniqueViolation("gradebook", "this student already has a gradebook for this subject and term")
				}
			}
			gb.FinalScore = copyScore(gb.FinalScore)
			t.gradebooks[gb.ID] = gb
		}
		return nil
	})
}

func (repo *gradingRepository) QueryGradebooks(_ context.Context, filter grading.GradebookFilter) ([]grading.Gradebook, error) {
	gbs := []grading.Gradebook{}
	repo.db.read(func(t *tables) {
		for _, gb := range t.gradebooks {
			switch {
			case len(filter.IDs) > 0 && !inSlice(gb.ID, filter.IDs):
			case len(filter.StudentIDs) > 0 && !inSlice(gb.StudentID, filter.StudentIDs):
			case filter.SubjectID != "" && gb.SubjectID != filter.SubjectID:
			case filter.AcademicYear != "" && gb.AcademicYear != filter.AcademicYear:
			case filter.Semester != 0 && gb.Semester != filter.Semester:
			default:
				gb.FinalScore = copyScore(gb.FinalScore)
				gbs = append(gbs, gb)
			}
		}
	})
	sort.Slice(gbs, func(i, j int) bool {
		a, b := gbs[i], gbs[j]
		if a.AcademicYear != b.AcademicYear {
			return a.AcademicYear < b.AcademicYear
		}
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return gbs, nil
}

func (repo *gradingRepository) UpdateFinalScore(ctx context.Context, id string, score *float64, updatedAt time.Time) error {
	return repo.db.write(ctx, func(t *tables) error {
		gb, ok := t.gradebooks[id]
		if !ok {
			return grading.ErrGradebookNotFound
		}
		gb.FinalScore = copyScore(score)
		gb.UpdatedAt = updatedAt
		t.gradebooks[id] = gb
		return nil
	})
}

func (repo *gradingRepository) CreateAssessment(ctx context.Context, a grading.Assessment) error {
	return repo.db.write(ctx, func(t *tables) error {
		t.assessments[a.ID] = a
		return nil
	})
}

func (repo *gradingRepository) QueryAssessments(_ context.Context, filter grading.AssessmentFilter) ([]grading.Assessment, error) {
	as := []grading.Assessment{}
	repo.db.read(func(t *tables) {
		for _, a := range t.assessments {
			switch {
			case len(filter.IDs) > 0 && !inSlice(a.ID, filter.IDs):
			case len(filter.ClassroomIDs) > 0 && !inSlice(a.ClassroomID, filter.ClassroomIDs):
			case filter.SubjectID != "" && a.SubjectID != filter.SubjectID:
			case filter.AcademicYear != "" && a.AcademicYear != filter.AcademicYear:
			case filter.Semester != 0 && a.Semester != filter.Semester:
			case filter.Type != "" && a.Type != filter.Type:
			default:
				as = append(as, a)
			}
		}
	})
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		if as[i].Title != as[j].Title {
			return as[i].Title < as[j].Title
		}
		return as[i].ID < as[j].ID
	})
	return as, nil
}

func (repo *gradingRepository) GetAssessment(_ context.Context, id string) (a grading.Assessment, err error) {
	err = grading.ErrAssessmentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.assessments[id]; ok {
			a, err = found, nil
		}
	})
	return a, err
}

func (repo *gradingRepository) DeleteAssessment(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		t.deleteAssessment(id)
		return nil
	})
}

func (repo *gradingRepository) QueryScores(_ context.Context, filter grading.ScoreFilter) ([]grading.AssessmentScore, error) {
	scores := []grading.AssessmentScore{}
	repo.db.read(func(t *tables) {
		for _, s := range t.scores {
			switch {
			case len(filter.AssessmentIDs) > 0 && !inSlice(s.AssessmentID, filter.AssessmentIDs):
			case len(filter.GradebookIDs) > 0 && !inSlice(s.GradebookID, filter.GradebookIDs):
			case len(filter.StudentIDs) > 0 && !inSlice(s.StudentID, filter.StudentIDs):
			default:
				scores = append(scores, s)
			}
		}
	})
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].AssessmentID != scores[j].AssessmentID {
			return scores[i].AssessmentID < scores[j].AssessmentID
		}
		return scores[i].StudentID < scores[j].StudentID
	})
	return scores, nil
}

func (repo *gradingRepository) CreateScores(ctx context.Context, scores ...grading.AssessmentScore) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, s := range scores {
			for _, other := range t.scores {
				if other.AssessmentID == s.AssessmentID && other.GradebookID == s.GradebookID {
					return uniqueViolation("score", "this student already has a score for this assessment")
				}
			}
			t.scores[s.ID] = s
		}
		return nil
	})
}

func (repo *gradingRepository) UpdateScores(ctx context.Context, scores ...grading.AssessmentScore) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, s := range scores {
			if _, ok := t.scores[s.ID]; !ok {
				continue
			}
			t.scores[s.ID] = s
		}
		return nil
	})
}

func (repo *gradingRepository) DeleteScores(ctx context.Context, ids ...string) error {
	return repo.db.write(ctx, func(t *tables) error {
		for _, id := range ids {
			delete(t.scores, id)
		}
		return nil
	})
}
