package students

import (
	"strings"
	"testing"

	"github.com/ssat-prep/backend/internal/models"
)

func snap(name string, attempted, correct int) models.MasterySnapshot {
	return models.MasterySnapshot{
		DisplayName:    name,
		TotalAttempted: attempted,
		TotalCorrect:   correct,
	}
}

func hasLine(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestRecommendations_FirstAttemptIsExclusive(t *testing.T) {
	recs := Recommendations(ProgressInput{})
	if len(recs) != 1 || !strings.Contains(recs[0], "first practice test") {
		t.Fatalf("recs = %v, want only the first-attempt line", recs)
	}
}

func TestRecommendations_NoFullTestYet(t *testing.T) {
	recs := Recommendations(ProgressInput{TotalAnswered: 12})
	if !hasLine(recs, "full practice test") {
		t.Errorf("recs = %v, want the full-test nudge", recs)
	}
}

func TestRecommendations_TopicBands(t *testing.T) {
	in := ProgressInput{
		TotalAnswered: 100,
		FullTests:     1,
		Mastery: []models.MasterySnapshot{
			snap("Synonyms", 20, 8),       // 0.40: weak
			snap("Analogies", 20, 15),     // 0.75: nearly there
			snap("Arithmetic", 20, 19),    // 0.95: strong
			snap("Geometry", 3, 0),        // too few attempts, ignored
		},
	}
	recs := Recommendations(in)
	if !hasLine(recs, "Focus on: Synonyms") {
		t.Errorf("recs = %v, want weak-topic line for Synonyms", recs)
	}
	if !hasLine(recs, "Keep practicing: Analogies") {
		t.Errorf("recs = %v, want nearly-there line for Analogies", recs)
	}
	if !hasLine(recs, "Great mastery in: Arithmetic") {
		t.Errorf("recs = %v, want strong line for Arithmetic", recs)
	}
	if hasLine(recs, "Geometry") {
		t.Errorf("recs = %v, topics under the attempt floor must not appear", recs)
	}
}

func TestRecommendations_ScoreTrend(t *testing.T) {
	up := Recommendations(ProgressInput{
		TotalAnswered:        50,
		FullTests:            2,
		RecentFullTestTotals: []int{1650, 1600},
	})
	if !hasLine(up, "trending up! (+50 points)") {
		t.Errorf("recs = %v, want upward trend with delta", up)
	}

	down := Recommendations(ProgressInput{
		TotalAnswered:        50,
		FullTests:            2,
		RecentFullTestTotals: []int{1500, 1600},
	})
	if !hasLine(down, "dipped") {
		t.Errorf("recs = %v, want downward trend line", down)
	}
	if hasLine(down, "trending up") {
		t.Errorf("recs = %v, trend rules must be mutually exclusive", down)
	}
}

func TestRecommendations_FallbackNeverEmpty(t *testing.T) {
	// Nothing fires: has a full test, topics under the attempt floor, no trend.
	recs := Recommendations(ProgressInput{
		TotalAnswered: 30,
		FullTests:     1,
		Mastery:       []models.MasterySnapshot{snap("Synonyms", 2, 1)},
	})
	if len(recs) != 1 || !strings.Contains(recs[0], "consistency is key") {
		t.Errorf("recs = %v, want only the catch-all", recs)
	}
}

func TestTopicsInBand_SortedForStableOutput(t *testing.T) {
	topics := topicsInBand([]models.MasterySnapshot{
		snap("Word Problems", 10, 2),
		snap("Algebra", 10, 3),
	}, 5, 0, weakAccuracy)
	if len(topics) != 2 || topics[0] != "Algebra" || topics[1] != "Word Problems" {
		t.Errorf("topics = %v, want alphabetical", topics)
	}
}
