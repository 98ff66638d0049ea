package mastery

import (
	"testing"

	"github.com/ssat-prep/backend/internal/models"
)

func TestRecommendLevelChange(t *testing.T) {
	tests := []struct {
		name  string
		stats AggregateStats
		want  models.LevelRecommendation
	}{
		{
			"new student holds",
			AggregateStats{},
			models.RecommendHold,
		},
		{
			"high accuracy, three strong full tests",
			AggregateStats{TotalAnswered: 40, TotalCorrect: 36, FullTestPercentiles: []int{90, 88, 85}},
			models.RecommendLevelUp,
		},
		{
			"high accuracy but only two full tests",
			AggregateStats{TotalAnswered: 40, TotalCorrect: 36, FullTestPercentiles: []int{90, 88}},
			models.RecommendHold,
		},
		{
			"strong tests but accuracy below bar",
			AggregateStats{TotalAnswered: 40, TotalCorrect: 30, FullTestPercentiles: []int{90, 88, 86}},
			models.RecommendHold,
		},
		{
			"strong tests but too few questions",
			AggregateStats{TotalAnswered: 19, TotalCorrect: 19, FullTestPercentiles: []int{90, 88, 86}},
			models.RecommendHold,
		},
		{
			"one percentile below 85 blocks level-up",
			AggregateStats{TotalAnswered: 40, TotalCorrect: 36, FullTestPercentiles: []int{90, 84, 88}},
			models.RecommendHold,
		},
		{
			"two consecutive weak full tests",
			AggregateStats{TotalAnswered: 100, TotalCorrect: 50, FullTestPercentiles: []int{30, 35, 90}},
			models.RecommendLevelDown,
		},
		{
			"single bad test never triggers level-down",
			AggregateStats{TotalAnswered: 100, TotalCorrect: 50, FullTestPercentiles: []int{30}},
			models.RecommendHold,
		},
		{
			"bad then good test holds",
			AggregateStats{TotalAnswered: 100, TotalCorrect: 50, FullTestPercentiles: []int{30, 75}},
			models.RecommendHold,
		},
		{
			"exactly 40th percentile is not struggling",
			AggregateStats{TotalAnswered: 100, TotalCorrect: 50, FullTestPercentiles: []int{40, 39}},
			models.RecommendHold,
		},
		{
			"struggling rule wins over mastery when both could fire",
			AggregateStats{TotalAnswered: 40, TotalCorrect: 36, FullTestPercentiles: []int{30, 20, 90}},
			models.RecommendLevelDown,
		},
	}

	for _, tt := range tests {
		if got := RecommendLevelChange(tt.stats); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestNextLevelGrade(t *testing.T) {
	level, grade, ok := NextLevelGrade(models.LevelElementary, 3)
	if !ok || level != models.LevelElementary || grade != 4 {
		t.Errorf("elem grade 3 -> %s/%d ok=%v, want elementary/4 true", level, grade, ok)
	}

	level, grade, ok = NextLevelGrade(models.LevelElementary, 4)
	if !ok || level != models.LevelMiddle || grade != 5 {
		t.Errorf("elem grade 4 -> %s/%d ok=%v, want middle/5 true", level, grade, ok)
	}

	level, grade, ok = NextLevelGrade(models.LevelMiddle, 7)
	if ok {
		t.Errorf("middle grade 7 should have no next step, got %s/%d", level, grade)
	}
}

func TestPrevLevelGrade(t *testing.T) {
	level, grade, ok := PrevLevelGrade(models.LevelMiddle, 5)
	if !ok || level != models.LevelElementary || grade != 4 {
		t.Errorf("middle grade 5 -> %s/%d ok=%v, want elementary/4 true", level, grade, ok)
	}

	_, _, ok = PrevLevelGrade(models.LevelElementary, 3)
	if ok {
		t.Error("elementary grade 3 should have no previous step")
	}
}
