package mastery

import (
	"fmt"
	"log"
	"time"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// NextDifficulty computes the post-session difficulty for one topic. High
// session accuracy over a meaningful sample moves up half a point, low
// accuracy over any sample moves down; the result is always in [1.0, 5.0].
func NextDifficulty(current float64, sessionAccuracy float64, sessionQuestionCount int) float64 {
	switch {
	case sessionQuestionCount >= config.MinQuestionsForAdjust && sessionAccuracy > config.DifficultyUpThreshold:
		current += config.DifficultyStep
	case sessionQuestionCount >= 1 && sessionAccuracy < config.DifficultyDownThreshold:
		current -= config.DifficultyStep
	}
	return models.ClampDifficulty(current)
}

// Leveler applies the difficulty policy to persisted mastery records. It runs
// once per (student, topic) at session completion, never mid-session, so the
// selection difficulty stays stable within an attempt.
type Leveler struct {
	store Storage
}

func NewLeveler(store Storage) *Leveler {
	return &Leveler{store: store}
}

// SessionTopicResult summarizes one topic's outcomes within a completed
// session.
type SessionTopicResult struct {
	Topic    models.Topic
	Correct  int
	Answered int
}

// Apply adjusts the stored difficulty for each topic touched by a session.
// Returns human-readable change events for the presentation layer.
func (l *Leveler) Apply(studentID int64, results []SessionTopicResult) ([]string, error) {
	var events []string

	for _, r := range results {
		if r.Answered == 0 {
			continue
		}
		m, err := l.store.GetTopicMastery(studentID, r.Topic)
		if err != nil {
			return events, fmt.Errorf("leveler: %w", err)
		}
		if m == nil {
			m = &models.TopicMastery{
				StudentID:  studentID,
				Topic:      r.Topic,
				Difficulty: config.DifficultyDefault,
			}
		}

		accuracy := float64(r.Correct) / float64(r.Answered)
		next := NextDifficulty(m.Difficulty, accuracy, r.Answered)
		if next == m.Difficulty {
			continue
		}

		old := m.Difficulty
		m.Difficulty = next
		m.UpdatedAt = time.Now().UTC()
		if err := l.store.UpsertTopicMastery(m); err != nil {
			return events, fmt.Errorf("leveler: %w", err)
		}

		name := models.TopicDisplay[r.Topic]
		if next > old {
			events = append(events, fmt.Sprintf("Difficulty up! %s: %.1f -> %.1f", name, old, next))
		} else {
			events = append(events, fmt.Sprintf("Difficulty adjusted: %s: %.1f -> %.1f", name, old, next))
		}
		log.Printf("[leveler] student=%d topic=%s %.1f -> %.1f (accuracy=%.2f over %d)",
			studentID, r.Topic, old, next, accuracy, r.Answered)
	}

	return events, nil
}

// DifficultyMap returns the current serving difficulty per topic for a level,
// defaulting topics without a mastery row.
func (l *Leveler) DifficultyMap(studentID int64, level models.Level) (map[models.Topic]float64, error) {
	out := make(map[models.Topic]float64)
	for _, topic := range models.LevelTopics[level] {
		m, err := l.store.GetTopicMastery(studentID, topic)
		if err != nil {
			return nil, fmt.Errorf("difficulty map: %w", err)
		}
		if m == nil {
			out[topic] = config.DifficultyDefault
			continue
		}
		out[topic] = models.ClampDifficulty(m.Difficulty)
	}
	return out, nil
}
