package mastery

import (
	"testing"

	"github.com/ssat-prep/backend/internal/models"
)

func TestNextDifficulty(t *testing.T) {
	tests := []struct {
		current  float64
		accuracy float64
		count    int
		want     float64
	}{
		{3.0, 0.90, 10, 3.5}, // high accuracy, enough questions
		{3.0, 0.40, 10, 2.5}, // low accuracy
		{3.0, 0.70, 10, 3.0}, // middle band unchanged
		{3.0, 0.90, 4, 3.0},  // too few questions to move up
		{3.0, 0.40, 1, 2.5},  // one question is enough to move down
		{3.0, 0.85, 10, 3.0}, // threshold is strict: exactly 0.85 does not move up
		{3.0, 0.50, 10, 3.0}, // exactly 0.50 does not move down
		{5.0, 1.00, 20, 5.0}, // clamped at max
		{1.0, 0.00, 10, 1.0}, // clamped at min
		{4.8, 0.95, 10, 5.0}, // partial step clamps
		{1.2, 0.10, 10, 1.0},
	}

	for _, tt := range tests {
		got := NextDifficulty(tt.current, tt.accuracy, tt.count)
		if got != tt.want {
			t.Errorf("NextDifficulty(%f, %f, %d) = %f, want %f",
				tt.current, tt.accuracy, tt.count, got, tt.want)
		}
	}
}

func TestNextDifficulty_AlwaysInRange(t *testing.T) {
	for cur := 1.0; cur <= 5.0; cur += 0.5 {
		for acc := 0.0; acc <= 1.0; acc += 0.1 {
			for _, n := range []int{1, 5, 50} {
				got := NextDifficulty(cur, acc, n)
				if got < 1.0 || got > 5.0 {
					t.Fatalf("NextDifficulty(%f, %f, %d) = %f outside [1.0, 5.0]", cur, acc, n, got)
				}
			}
		}
	}
}

func TestLevelerApply_OncePerTopic(t *testing.T) {
	store := newFakeStore()
	store.UpsertTopicMastery(&models.TopicMastery{
		StudentID: 1, Topic: models.TopicSynonym, Difficulty: 3.0,
	})
	store.UpsertTopicMastery(&models.TopicMastery{
		StudentID: 1, Topic: models.TopicAnalogy, Difficulty: 2.0,
	})

	leveler := NewLeveler(store)
	events, err := leveler.Apply(1, []SessionTopicResult{
		{Topic: models.TopicSynonym, Correct: 9, Answered: 10},  // 0.90 → up
		{Topic: models.TopicAnalogy, Correct: 2, Answered: 10},  // 0.20 → down
		{Topic: models.TopicGeometry, Correct: 0, Answered: 0},  // untouched
		{Topic: models.TopicAlgebra, Correct: 7, Answered: 10},  // 0.70 → unchanged, no event
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	syn, _ := store.GetTopicMastery(1, models.TopicSynonym)
	if syn.Difficulty != 3.5 {
		t.Errorf("synonym difficulty = %f, want 3.5", syn.Difficulty)
	}
	ana, _ := store.GetTopicMastery(1, models.TopicAnalogy)
	if ana.Difficulty != 1.5 {
		t.Errorf("analogy difficulty = %f, want 1.5", ana.Difficulty)
	}
	if geo, _ := store.GetTopicMastery(1, models.TopicGeometry); geo != nil {
		t.Error("unanswered topic should not get a mastery row")
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2: %v", len(events), events)
	}
}

func TestLevelerApply_LazyRowAtDefault(t *testing.T) {
	store := newFakeStore()
	leveler := NewLeveler(store)

	// New topic, terrible session: created at 1.0 then clamped there.
	_, err := leveler.Apply(7, []SessionTopicResult{
		{Topic: models.TopicWordProblem, Correct: 0, Answered: 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	m, _ := store.GetTopicMastery(7, models.TopicWordProblem)
	if m != nil && m.Difficulty != 1.0 {
		t.Errorf("difficulty = %f, want 1.0 (clamped at floor)", m.Difficulty)
	}
}

func TestDifficultyMap_Defaults(t *testing.T) {
	store := newFakeStore()
	store.UpsertTopicMastery(&models.TopicMastery{
		StudentID: 1, Topic: models.TopicArithmetic, Difficulty: 4.0,
	})

	leveler := NewLeveler(store)
	dm, err := leveler.DifficultyMap(1, models.LevelMiddle)
	if err != nil {
		t.Fatal(err)
	}

	if dm[models.TopicArithmetic] != 4.0 {
		t.Errorf("arithmetic = %f, want 4.0", dm[models.TopicArithmetic])
	}
	if dm[models.TopicAlgebra] != 1.0 {
		t.Errorf("algebra = %f, want default 1.0", dm[models.TopicAlgebra])
	}
	if len(dm) != len(models.LevelTopics[models.LevelMiddle]) {
		t.Errorf("map covers %d topics, want %d", len(dm), len(models.LevelTopics[models.LevelMiddle]))
	}
}
