// Package mastery tracks per-topic rolling accuracy and owns the adaptive
// difficulty policy. The Tracker is the sole mutator of the rolling window;
// difficulty is written only by the Leveler at session boundaries.
package mastery

import (
	"fmt"
	"time"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// Storage is the persistence collaborator the tracker and leveler consume.
type Storage interface {
	GetTopicMastery(studentID int64, topic models.Topic) (*models.TopicMastery, error)
	GetAllTopicMastery(studentID int64) ([]models.TopicMastery, error)
	UpsertTopicMastery(m *models.TopicMastery) error
}

type Tracker struct {
	store Storage
}

func NewTracker(store Storage) *Tracker {
	return &Tracker{store: store}
}

// RecordAttempt appends an outcome to the topic's rolling window, evicting
// the oldest entry once the window exceeds its capacity. The mastery row is
// created lazily on first attempt at the default difficulty.
func (t *Tracker) RecordAttempt(studentID int64, topic models.Topic, correct bool) error {
	m, err := t.getOrCreate(studentID, topic)
	if err != nil {
		return err
	}

	m.Window = append(m.Window, correct)
	if len(m.Window) > config.MasteryWindowSize {
		m.Window = m.Window[len(m.Window)-config.MasteryWindowSize:]
	}
	m.TotalAttempted++
	if correct {
		m.TotalCorrect++
	}
	m.UpdatedAt = time.Now().UTC()

	if err := t.store.UpsertTopicMastery(m); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Accuracy returns correct/total over the current window, 0 if empty.
func (t *Tracker) Accuracy(studentID int64, topic models.Topic) (float64, error) {
	m, err := t.store.GetTopicMastery(studentID, topic)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, nil
	}
	return m.WindowAccuracy(), nil
}

// Trend compares first-half vs second-half accuracy of the window. Windows
// with fewer than 10 entries report stable.
func (t *Tracker) Trend(studentID int64, topic models.Topic) (models.Trend, error) {
	m, err := t.store.GetTopicMastery(studentID, topic)
	if err != nil {
		return models.TrendStable, err
	}
	if m == nil {
		return models.TrendStable, nil
	}
	return WindowTrend(m.Window), nil
}

// WindowTrend is the pure half-vs-half comparison behind Trend.
func WindowTrend(window []bool) models.Trend {
	if len(window) < 10 {
		return models.TrendStable
	}

	half := len(window) / 2
	first := accuracyOf(window[:half])
	second := accuracyOf(window[half:])

	const margin = 0.05
	switch {
	case second > first+margin:
		return models.TrendImproving
	case second < first-margin:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func accuracyOf(outcomes []bool) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	correct := 0
	for _, ok := range outcomes {
		if ok {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes))
}

// Snapshot assembles the plain-data mastery view for one student.
func (t *Tracker) Snapshot(studentID int64) ([]models.MasterySnapshot, error) {
	records, err := t.store.GetAllTopicMastery(studentID)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.MasterySnapshot, 0, len(records))
	for _, m := range records {
		snapshots = append(snapshots, models.MasterySnapshot{
			Topic:          m.Topic,
			DisplayName:    models.TopicDisplay[m.Topic],
			Difficulty:     m.Difficulty,
			WindowAccuracy: m.WindowAccuracy(),
			WindowSize:     len(m.Window),
			TotalAttempted: m.TotalAttempted,
			TotalCorrect:   m.TotalCorrect,
			Trend:          WindowTrend(m.Window),
		})
	}
	return snapshots, nil
}

func (t *Tracker) getOrCreate(studentID int64, topic models.Topic) (*models.TopicMastery, error) {
	m, err := t.store.GetTopicMastery(studentID, topic)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &models.TopicMastery{
			StudentID:  studentID,
			Topic:      topic,
			Difficulty: config.DifficultyDefault,
		}
	}
	return m, nil
}
