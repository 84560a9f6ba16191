package grading

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type (
	ScoreView struct {
		AssessmentID string                `json:"assessment_id"`
		Title        string                `json:"title"`
		Type         school.AssessmentType `json:"type"`
		Date         core.Date             `json:"date"`
		MaxScore     float64               `json:"max_score"`
		Score        float64               `json:"score"`
	}

	GradebookView struct {
		Gradebook
		PassingScore float64     `json:"passing_score"`
		Passed       *bool       `json:"passed"`
		Scores       []ScoreView `json:"scores"`
	}
)

// QueryGradebooks returns gradebooks along with their scores; students and parents only get their own.
func (svc *Service) QueryGradebooks(ctx context.Context, actor school.Actor, filter GradebookFilter) ([]GradebookView, error) {
	ids, restrict, err := school.RestrictStudentIDs(ctx, svc.schools, actor, filter.StudentIDs)
	if err != nil {
		return nil, err
	}
	if restrict {
		if len(ids) == 0 {
			return []GradebookView{}, nil
		}
		filter.StudentIDs = ids
	}

	gbs, err := svc.repo.QueryGradebooks(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying gradebooks")
	}
	views := make([]GradebookView, 0, len(gbs))
	if len(gbs) == 0 {
		return views, nil
	}

	gradebookIDs := make([]string, 0, len(gbs))
	for _, gb := range gbs {
		gradebookIDs = append(gradebookIDs, gb.ID)
	}

	scores, err := svc.repo.QueryScores(ctx, ScoreFilter{GradebookIDs: gradebookIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	assessmentIDs := make([]string, 0, len(scores))
	for _, s := range scores {
		if !core.StringInSlice(s.AssessmentID, assessmentIDs) {
			assessmentIDs = append(assessmentIDs, s.AssessmentID)
		}
	}
	assessments := make(map[string]Assessment, len(assessmentIDs))
	if len(assessmentIDs) > 0 {
		as, err := svc.repo.QueryAssessments(ctx, AssessmentFilter{IDs: assessmentIDs})
		if err != nil {
			return nil, errors.Wrap(err, "querying assessments")
		}
		for _, a := range as {
			assessments[a.ID] = a
		}
	}
	perGradebook := make(map[string][]ScoreView, len(gbs))
	latest := make(map[string]Assessment, len(gbs))
	for _, s := range scores {
		a := assessments[s.AssessmentID]
		perGradebook[s.GradebookID] = append(perGradebook[s.GradebookID], ScoreView{
			AssessmentID: a.ID,
			Title:        a.Title,
			Type:         a.Type,
			Date:         a.Date,
			MaxScore:     a.MaxScore,
			Score:        s.Score,
		})
		if l, ok := latest[s.GradebookID]; a.ID != "" && (!ok || a.Date.After(l.Date)) {
			latest[s.GradebookID] = a
		}
	}

	grades, err := svc.gradebookGrades(ctx, gbs, latest)
	if err != nil {
		return nil, err
	}
	configs := make(map[string]school.SubjectConfig)
	for _, gb := range gbs {
		passing := school.DefaultPassingScore
		if grade, ok := grades[gb.ID]; ok {
			key := fmt.Sprintf("%s|%s|%d", gb.SubjectID, gb.Term(), grade)
			cfg, ok := configs[key]
			if !ok {
				if cfg, err = school.SubjectConfigFor(ctx, svc.schools, gb.SubjectID, grade, gb.Term()); err != nil {
					return nil, err
				}
				configs[key] = cfg
			}
			passing = cfg.PassingScore
		}

		gbScores := perGradebook[gb.ID]
		if gbScores == nil {
			gbScores = []ScoreView{}
		}
		views = append(views, GradebookView{
			Gradebook:    gb,
			PassingScore: passing,
			Passed:       passed(gb.FinalScore, passing),
			Scores:       gbScores,
		})
	}
	return views, nil
}

// gradebookGrades maps gradebooks to the grade weighting their final score: the grade of the classroom
// of their latest scored assessment, else the grade of the student's current classroom.
func (svc *Service) gradebookGrades(ctx context.Context, gbs []Gradebook, latest map[string]Assessment) (map[string]int, error) {
	classrooms := make(map[string]school.Classroom)
	classroom := func(id string) (school.Classroom, error) {
		if c, ok := classrooms[id]; ok {
			return c, nil
		}
		c, err := svc.schools.GetClassroom(ctx, id)
		if err != nil {
			return school.Classroom{}, errors.Wrap(err, "getting classroom")
		}
		classrooms[id] = c
		return c, nil
	}

	grades := make(map[string]int, len(gbs))
	var unscored []string
	for _, gb := range gbs {
		a, ok := latest[gb.ID]
		if !ok {
			if !core.StringInSlice(gb.StudentID, unscored) {
				unscored = append(unscored, gb.StudentID)
			}
			continue
		}
		c, err := classroom(a.ClassroomID)
		if err != nil {
			return nil, err
		}
		grades[gb.ID] = c.Grade
	}
	if len(unscored) == 0 {
		return grades, nil
	}

	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{IDs: unscored})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	placed := make(map[string]string, len(students))
	for _, s := range students {
		if s.ClassroomID != "" {
			placed[s.ID] = s.ClassroomID
		}
	}
	for _, gb := range gbs {
		if _, ok := grades[gb.ID]; ok {
			continue
		}
		id, ok := placed[gb.StudentID]
		if !ok {
			continue
		}
		c, err := classroom(id)
		if err != nil {
			return nil, err
		}
		grades[gb.ID] = c.Grade
	}
	return grades, nil
}

// ScoreSheet exports the scores of the assessments matching filter, one row per score.
func (svc *Service) ScoreSheet(ctx context.Context, actor school.Actor, filter AssessmentFilter) (core.Table, error) {
	table := core.Table{
		Name: "scores",
		Header: []string{
			"Student Number", "Student Name", "Classroom", "Subject",
			"Assessment", "Type", "Date", "Max Score", "Score",
		},
		Rows: [][]interface{}{},
	}

	assessments, err := svc.QueryAssessments(ctx, actor, filter)
	if err != nil || len(assessments) == 0 {
		return table, err
	}
	assessmentIDs := make([]string, 0, len(assessments))
	for _, a := range assessments {
		assessmentIDs = append(assessmentIDs, a.ID)
	}

	scoreFilter := ScoreFilter{AssessmentIDs: assessmentIDs}
	ids, restrict, err := school.RestrictStudentIDs(ctx, svc.schools, actor, nil)
	if err != nil {
		return table, err
	}
	if restrict {
		if len(ids) == 0 {
			return table, nil
		}
		scoreFilter.StudentIDs = ids
	}
	scores, err := svc.repo.QueryScores(ctx, scoreFilter)
	if err != nil {
		return table, errors.Wrap(err, "querying scores")
	}
	perAssessment := make(map[string][]AssessmentScore, len(assessments))
	studentIDs := []string{}
	for _, s := range scores {
		perAssessment[s.AssessmentID] = append(perAssessment[s.AssessmentID], s)
		if !core.StringInSlice(s.StudentID, studentIDs) {
			studentIDs = append(studentIDs, s.StudentID)
		}
	}

	students := make(map[string]school.Student, len(studentIDs))
	if len(studentIDs) > 0 {
		ss, err := svc.schools.QueryStudents(ctx, school.StudentFilter{IDs: studentIDs})
		if err != nil {
			return table, errors.Wrap(err, "querying students")
		}
		for _, s := range ss {
			students[s.ID] = s
		}
	}
	classrooms := make(map[string]school.Classroom)
	subjects := make(map[string]school.Subject)

	for _, a := range assessments {
		c, ok := classrooms[a.ClassroomID]
		if !ok {
			if c, err = svc.schools.GetClassroom(ctx, a.ClassroomID); err != nil {
				return table, errors.Wrap(err, "getting classroom")
			}
			classrooms[c.ID] = c
		}
		subj, ok := subjects[a.SubjectID]
		if !ok {
			if subj, err = svc.schools.GetSubject(ctx, a.SubjectID); err != nil {
				return table, errors.Wrap(err, "getting subject")
			}
			subjects[subj.ID] = subj
		}
		for _, s := range perAssessment[a.ID] {
			student := students[s.StudentID]
			table.Rows = append(table.Rows, []interface{}{
				student.StudentNumber, student.Name, c.Name(), subj.Name,
				a.Title, string(a.Type), a.Date.String(), a.MaxScore, s.Score,
			})
		}
	}
	return table, nil
}
