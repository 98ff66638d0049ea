package mastery

import (
	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// AggregateStats feeds the level-change rules. Percentiles are ordered most
// recent first and cover full tests only.
type AggregateStats struct {
	TotalAnswered       int
	TotalCorrect        int
	FullTestPercentiles []int
}

func (s AggregateStats) accuracy() float64 {
	if s.TotalAnswered == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalAnswered)
}

// levelRule is one row of the recommendation table, evaluated top to bottom.
// The table form keeps predicate/outcome pairs directly enumerable in tests.
type levelRule struct {
	name      string
	matches   func(AggregateStats) bool
	recommend models.LevelRecommendation
}

var levelRules = []levelRule{
	{
		// Two consecutive weak full tests suggest the level is a stretch.
		// A single bad test never triggers this.
		name: "struggling",
		matches: func(s AggregateStats) bool {
			if len(s.FullTestPercentiles) < config.LevelDownTestCount {
				return false
			}
			for _, p := range s.FullTestPercentiles[:config.LevelDownTestCount] {
				if p >= config.LevelDownPercentile {
					return false
				}
			}
			return true
		},
		recommend: models.RecommendLevelDown,
	},
	{
		name: "mastered",
		matches: func(s AggregateStats) bool {
			if s.TotalAnswered < config.MasteryMinQuestions || s.accuracy() < config.MasteryAccuracy {
				return false
			}
			if len(s.FullTestPercentiles) < config.MasteryTestCount {
				return false
			}
			for _, p := range s.FullTestPercentiles[:config.MasteryTestCount] {
				if p < config.MasteryPercentile {
					return false
				}
			}
			return true
		},
		recommend: models.RecommendLevelUp,
	},
}

// RecommendLevelChange evaluates the rule table and returns the first match,
// or hold when no rule fires.
func RecommendLevelChange(stats AggregateStats) models.LevelRecommendation {
	for _, rule := range levelRules {
		if rule.matches(stats) {
			return rule.recommend
		}
	}
	return models.RecommendHold
}

// NextLevelGrade advances a student one step up the grade ladder, crossing
// into middle level after elementary grade 4. The final return reports
// whether a step was possible.
func NextLevelGrade(level models.Level, grade int) (models.Level, int, bool) {
	switch level {
	case models.LevelElementary:
		if grade < config.LevelConfigs[models.LevelElementary].GradeMax {
			return level, grade + 1, true
		}
		return models.LevelMiddle, config.LevelConfigs[models.LevelMiddle].GradeMin, true
	case models.LevelMiddle:
		if grade < config.LevelConfigs[models.LevelMiddle].GradeMax {
			return level, grade + 1, true
		}
		return level, grade, false
	}
	return level, grade, false
}

// PrevLevelGrade steps a student back one grade, dropping into elementary
// from middle grade 5.
func PrevLevelGrade(level models.Level, grade int) (models.Level, int, bool) {
	switch level {
	case models.LevelMiddle:
		if grade > config.LevelConfigs[models.LevelMiddle].GradeMin {
			return level, grade - 1, true
		}
		return models.LevelElementary, config.LevelConfigs[models.LevelElementary].GradeMax, true
	case models.LevelElementary:
		if grade > config.LevelConfigs[models.LevelElementary].GradeMin {
			return level, grade - 1, true
		}
		return level, grade, false
	}
	return level, grade, false
}
