package models

import "time"

// TopicMastery tracks one (student, topic) pair: the current serving
// difficulty and a bounded FIFO window of recent outcomes. Exactly one row
// exists per pair, created lazily on first attempt.
type TopicMastery struct {
	StudentID      int64     `json:"student_id"`
	Topic          Topic     `json:"topic"`
	Difficulty     float64   `json:"difficulty"`
	Window         []bool    `json:"window"`
	TotalAttempted int       `json:"total_attempted"`
	TotalCorrect   int       `json:"total_correct"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WindowAccuracy returns correct/total over the rolling window, 0 if empty.
func (m *TopicMastery) WindowAccuracy() float64 {
	if len(m.Window) == 0 {
		return 0
	}
	correct := 0
	for _, ok := range m.Window {
		if ok {
			correct++
		}
	}
	return float64(correct) / float64(len(m.Window))
}

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// MasterySnapshot is the plain-data view produced for the presentation layer.
type MasterySnapshot struct {
	Topic          Topic   `json:"topic"`
	DisplayName    string  `json:"display_name"`
	Difficulty     float64 `json:"difficulty"`
	WindowAccuracy float64 `json:"window_accuracy"`
	WindowSize     int     `json:"window_size"`
	TotalAttempted int     `json:"total_attempted"`
	TotalCorrect   int     `json:"total_correct"`
	Trend          Trend   `json:"trend"`
}

// LevelRecommendation is the level-change flag surfaced after full tests.
type LevelRecommendation string

const (
	RecommendLevelUp   LevelRecommendation = "level_up"
	RecommendLevelDown LevelRecommendation = "level_down"
	RecommendHold      LevelRecommendation = "hold"
)
