package generator

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssat-prep/backend/internal/models"
)

// Raw shapes at the untyped provider boundary. Nothing loosely typed escapes
// this file: every item is validated into models.Question or dropped.
type rawBatch struct {
	Questions []rawQuestion `json:"questions"`
	Passages  []rawPassage  `json:"passages"`
}

type rawQuestion struct {
	Stem          string          `json:"stem"`
	Choices       []models.Choice `json:"choices"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
}

type rawPassage struct {
	Content   string        `json:"content"`
	Questions []rawQuestion `json:"questions"`
}

// ParseBatch validates a provider response into accepted questions. The JSON
// being unparseable is a provider failure; individual bad items are dropped
// with their siblings kept. Zero surviving items is also a provider failure.
func ParseBatch(responseBody string, topic models.Topic, level models.Level, difficulty float64, batchID string) ([]models.Question, error) {
	cleaned := stripCodeFences(responseBody)

	var batch rawBatch
	if err := json.Unmarshal([]byte(cleaned), &batch); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", models.ErrProvider, err)
	}

	now := time.Now().UTC()
	var accepted []models.Question
	dropped := 0

	if topic == models.TopicReadingComp {
		for _, p := range batch.Passages {
			group, bad := buildPassageGroup(p, level, difficulty, batchID, now)
			dropped += bad
			accepted = append(accepted, group...)
		}
	} else {
		for i, rq := range batch.Questions {
			q := buildQuestion(rq, topic, level, difficulty, batchID, now)
			if err := q.Validate(); err != nil {
				log.Printf("WARN: %v: batch=%s item=%d: %v", models.ErrValidation, batchID, i+1, err)
				dropped++
				continue
			}
			accepted = append(accepted, q)
		}
	}

	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: no valid questions in response (%d dropped)", models.ErrProvider, dropped)
	}
	if dropped > 0 {
		log.Printf("[generator] batch=%s: dropped %d invalid items, kept %d", batchID, dropped, len(accepted))
	}
	return accepted, nil
}

// buildPassageGroup validates one passage and its follow-ups as an atomic
// unit. A follow-up failing validation drops only that follow-up; a passage
// with no surviving follow-ups drops entirely.
func buildPassageGroup(p rawPassage, level models.Level, difficulty float64, batchID string, now time.Time) ([]models.Question, int) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, len(p.Questions)
	}

	groupID := uuid.NewString()
	var group []models.Question
	dropped := 0

	for i, rq := range p.Questions {
		q := buildQuestion(rq, models.TopicReadingComp, level, difficulty, batchID, now)
		q.Passage = p.Content
		q.PassageGroup = groupID
		if err := q.Validate(); err != nil {
			log.Printf("WARN: %v: batch=%s passage item=%d: %v", models.ErrValidation, batchID, i+1, err)
			dropped++
			continue
		}
		group = append(group, q)
	}
	return group, dropped
}

func buildQuestion(rq rawQuestion, topic models.Topic, level models.Level, difficulty float64, batchID string, now time.Time) models.Question {
	return models.Question{
		Level:         level,
		Topic:         topic,
		Difficulty:    models.ClampDifficulty(difficulty),
		Stem:          strings.TrimSpace(rq.Stem),
		Choices:       rq.Choices,
		CorrectAnswer: strings.ToUpper(strings.TrimSpace(rq.CorrectAnswer)),
		Explanation:   strings.TrimSpace(rq.Explanation),
		BatchID:       batchID,
		GeneratedAt:   now,
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
