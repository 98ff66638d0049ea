package models

import (
	"fmt"
	"time"
)

type Level string

const (
	LevelElementary Level = "elementary"
	LevelMiddle     Level = "middle"
)

var ValidLevels = map[Level]bool{
	LevelElementary: true,
	LevelMiddle:     true,
}

type Topic string

const (
	TopicSynonym     Topic = "synonym"
	TopicAnalogy     Topic = "analogy"
	TopicArithmetic  Topic = "arithmetic"
	TopicAlgebra     Topic = "algebra"
	TopicGeometry    Topic = "geometry"
	TopicWordProblem Topic = "word_problem"
	TopicReadingComp Topic = "reading_comprehension"
)

var ValidTopics = map[Topic]bool{
	TopicSynonym:     true,
	TopicAnalogy:     true,
	TopicArithmetic:  true,
	TopicAlgebra:     true,
	TopicGeometry:    true,
	TopicWordProblem: true,
	TopicReadingComp: true,
}

// LevelTopics lists the topics a level's questions draw from. Algebra only
// appears from middle level on.
var LevelTopics = map[Level][]Topic{
	LevelElementary: {TopicSynonym, TopicAnalogy, TopicArithmetic, TopicGeometry, TopicWordProblem, TopicReadingComp},
	LevelMiddle:     {TopicSynonym, TopicAnalogy, TopicArithmetic, TopicAlgebra, TopicGeometry, TopicWordProblem, TopicReadingComp},
}

// TopicDisplay maps a topic tag to its user-facing name.
var TopicDisplay = map[Topic]string{
	TopicSynonym:     "Synonyms",
	TopicAnalogy:     "Analogies",
	TopicArithmetic:  "Arithmetic",
	TopicAlgebra:     "Algebra",
	TopicGeometry:    "Geometry",
	TopicWordProblem: "Word Problems",
	TopicReadingComp: "Reading Comprehension",
}

type Choice struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question is immutable once created; the engine holds read-only views and
// uses the id for exposure dedup.
type Question struct {
	ID            int64     `json:"id"`
	Level         Level     `json:"level"`
	Topic         Topic     `json:"topic"`
	Difficulty    float64   `json:"difficulty"`
	Stem          string    `json:"stem"`
	Passage       string    `json:"passage,omitempty"`
	PassageGroup  string    `json:"passage_group,omitempty"`
	Choices       []Choice  `json:"choices"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
	BatchID       string    `json:"batch_id,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitempty"`
}

// Validate checks a question against the schema the pool accepts. Generated
// items that fail are dropped individually, never the whole batch.
func (q *Question) Validate() error {
	if !ValidLevels[q.Level] {
		return fmt.Errorf("invalid level %q", q.Level)
	}
	if !ValidTopics[q.Topic] {
		return fmt.Errorf("invalid topic %q", q.Topic)
	}
	if q.Stem == "" {
		return fmt.Errorf("empty stem")
	}
	if n := len(q.Choices); n < 4 || n > 5 {
		return fmt.Errorf("expected 4-5 choices, got %d", n)
	}
	letters := []string{"A", "B", "C", "D", "E"}
	correctFound := false
	for i, c := range q.Choices {
		if c.Letter != letters[i] {
			return fmt.Errorf("choice %d has letter %q, expected %q", i+1, c.Letter, letters[i])
		}
		if c.Text == "" {
			return fmt.Errorf("choice %s has empty text", c.Letter)
		}
		if c.Letter == q.CorrectAnswer {
			correctFound = true
		}
	}
	if !correctFound {
		return fmt.Errorf("correct_answer %q not among choices", q.CorrectAnswer)
	}
	if q.Topic == TopicReadingComp && q.Passage == "" {
		return fmt.Errorf("reading comprehension question has no passage")
	}
	if q.Difficulty < 1.0 || q.Difficulty > 5.0 {
		return fmt.Errorf("difficulty %.2f outside [1.0, 5.0]", q.Difficulty)
	}
	return nil
}

// ClampDifficulty bounds a difficulty value to the valid range.
func ClampDifficulty(d float64) float64 {
	if d < 1.0 {
		return 1.0
	}
	if d > 5.0 {
		return 5.0
	}
	return d
}

// ServedQuestion is the answer-stripped view handed to the presentation layer.
type ServedQuestion struct {
	ID         int64    `json:"id"`
	Topic      Topic    `json:"topic"`
	Difficulty float64  `json:"difficulty"`
	Stem       string   `json:"stem"`
	Passage    string   `json:"passage,omitempty"`
	Choices    []Choice `json:"choices"`
}

func (q *Question) ToServed() ServedQuestion {
	return ServedQuestion{
		ID:         q.ID,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Stem:       q.Stem,
		Passage:    q.Passage,
		Choices:    q.Choices,
	}
}
