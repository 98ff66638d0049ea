package mastery

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ssat-prep/backend/internal/models"
)

// Store is the Postgres-backed Storage implementation.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetTopicMastery(studentID int64, topic models.Topic) (*models.TopicMastery, error) {
	var m models.TopicMastery
	var windowJSON []byte

	err := s.db.QueryRow(
		`SELECT student_id, topic, difficulty, outcomes, total_attempted, total_correct, updated_at
		 FROM topic_mastery WHERE student_id = $1 AND topic = $2`,
		studentID, topic,
	).Scan(&m.StudentID, &m.Topic, &m.Difficulty, &windowJSON,
		&m.TotalAttempted, &m.TotalCorrect, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get topic mastery: %v", models.ErrStorage, err)
	}

	if err := json.Unmarshal(windowJSON, &m.Window); err != nil {
		return nil, fmt.Errorf("%w: decode mastery window: %v", models.ErrStorage, err)
	}
	return &m, nil
}

func (s *Store) GetAllTopicMastery(studentID int64) ([]models.TopicMastery, error) {
	rows, err := s.db.Query(
		`SELECT student_id, topic, difficulty, outcomes, total_attempted, total_correct, updated_at
		 FROM topic_mastery WHERE student_id = $1 ORDER BY topic`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list topic mastery: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var records []models.TopicMastery
	for rows.Next() {
		var m models.TopicMastery
		var windowJSON []byte
		if err := rows.Scan(&m.StudentID, &m.Topic, &m.Difficulty, &windowJSON,
			&m.TotalAttempted, &m.TotalCorrect, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan topic mastery: %v", models.ErrStorage, err)
		}
		if err := json.Unmarshal(windowJSON, &m.Window); err != nil {
			return nil, fmt.Errorf("%w: decode mastery window: %v", models.ErrStorage, err)
		}
		records = append(records, m)
	}
	return records, rows.Err()
}

func (s *Store) UpsertTopicMastery(m *models.TopicMastery) error {
	window := m.Window
	if window == nil {
		window = []bool{}
	}
	windowJSON, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("%w: encode mastery window: %v", models.ErrStorage, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO topic_mastery (student_id, topic, difficulty, outcomes, total_attempted, total_correct, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (student_id, topic) DO UPDATE SET
		   difficulty = EXCLUDED.difficulty,
		   outcomes = EXCLUDED.outcomes,
		   total_attempted = EXCLUDED.total_attempted,
		   total_correct = EXCLUDED.total_correct,
		   updated_at = NOW()`,
		m.StudentID, m.Topic, m.Difficulty, windowJSON, m.TotalAttempted, m.TotalCorrect,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert topic mastery: %v", models.ErrStorage, err)
	}
	return nil
}
