package grading

import (
	"math"

	"github.com/trezcool/shule/core/school"
)

// scoredAssessment is a score along with the assessment it was given for.
type scoredAssessment struct {
	Type     school.AssessmentType
	Score    float64
	MaxScore float64
}

// finalScore computes the weighted average of the per type averages (as percentages).
// Only the types having scores count; their weights are scaled back to 100%, and
// weighted equally when all of them weigh zero. Nil means there is no score yet.
func finalScore(cfg school.SubjectConfig, scores []scoredAssessment) *float64 {
	sums := make(map[school.AssessmentType]float64)
	counts := make(map[school.AssessmentType]int)
	for _, s := range scores {
		if s.MaxScore <= 0 {
			continue
		}
		sums[s.Type] += s.Score / s.MaxScore * 100
		counts[s.Type]++
	}
	if len(counts) == 0 {
		return nil
	}

	var total, weights, plain float64
	for _, t := range school.AssessmentTypes {
		n, ok := counts[t]
		if !ok {
			continue
		}
		avg := sums[t] / float64(n)
		w := float64(cfg.Weight(t))
		total += w * avg
		weights += w
		plain += avg
	}

	var final float64
	if weights > 0 {
		final = total / weights
	} else {
		final = plain / float64(len(counts))
	}
	final = math.Round(final*100) / 100
	return &final
}

// passed reports whether a final score reaches the passing score; nil without a final score.
func passed(final *float64, passingScore float64) *bool {
	if final == nil {
		return nil
	}
	ok := *final >= passingScore
	return &ok
}
