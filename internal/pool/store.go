package pool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ssat-prep/backend/internal/models"
)

// Store is the Postgres-backed Storage implementation. Choices live in a
// JSONB column; exposure dedup is an EXISTS check against the exposures
// table, which means dedup survives forever once a row lands there.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const questionColumns = `id, level, topic, difficulty, stem, passage, passage_group,
       choices, correct_answer, explanation, batch_id, generated_at`

func (s *Store) GetUnseen(studentID int64, topic models.Topic, level models.Level, minDiff, maxDiff float64, limit int) ([]models.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+`
		 FROM questions q
		 WHERE q.topic = $1 AND q.level = $2
		   AND q.difficulty BETWEEN $3 AND $4
		   AND q.passage_group = ''
		   AND NOT EXISTS (
		       SELECT 1 FROM exposures e
		       WHERE e.student_id = $5 AND e.question_id = q.id)
		 ORDER BY random()
		 LIMIT $6`,
		topic, level, minDiff, maxDiff, studentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get unseen: %v", models.ErrStorage, err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

// GetUnseenPassages returns the questions of up to groupLimit passage groups
// that have no exposed member for this student. Questions come back ordered
// by group so each passage's set stays contiguous.
func (s *Store) GetUnseenPassages(studentID int64, level models.Level, minDiff, maxDiff float64, groupLimit int) ([]models.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+`
		 FROM questions q
		 WHERE q.passage_group IN (
		     SELECT g.passage_group
		     FROM questions g
		     WHERE g.topic = $1 AND g.level = $2
		       AND g.difficulty BETWEEN $3 AND $4
		       AND g.passage_group <> ''
		       AND NOT EXISTS (
		           SELECT 1 FROM exposures e
		           JOIN questions m ON m.id = e.question_id
		           WHERE e.student_id = $5 AND m.passage_group = g.passage_group)
		     GROUP BY g.passage_group
		     ORDER BY random()
		     LIMIT $6)
		 ORDER BY q.passage_group, q.id`,
		models.TopicReadingComp, level, minDiff, maxDiff, studentID, groupLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get unseen passages: %v", models.ErrStorage, err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *Store) CountUnseen(studentID int64, topic models.Topic, level models.Level) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*)
		 FROM questions q
		 WHERE q.topic = $1 AND q.level = $2
		   AND NOT EXISTS (
		       SELECT 1 FROM exposures e
		       WHERE e.student_id = $3 AND e.question_id = q.id)`,
		topic, level, studentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count unseen: %v", models.ErrStorage, err)
	}
	return count, nil
}

func (s *Store) MarkExposed(studentID int64, questionIDs []int64) error {
	if len(questionIDs) == 0 {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO exposures (student_id, question_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT (student_id, question_id) DO NOTHING`,
		studentID, pq.Array(questionIDs),
	)
	if err != nil {
		return fmt.Errorf("%w: mark exposed: %v", models.ErrStorage, err)
	}
	return nil
}

func (s *Store) SaveQuestions(ctx context.Context, questions []models.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin save: %v", models.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO questions
		    (level, topic, difficulty, stem, passage, passage_group,
		     choices, correct_answer, explanation, batch_id, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("%w: prepare save: %v", models.ErrStorage, err)
	}
	defer stmt.Close()

	for _, q := range questions {
		choicesJSON, err := json.Marshal(q.Choices)
		if err != nil {
			return fmt.Errorf("%w: encode choices: %v", models.ErrStorage, err)
		}
		if _, err := stmt.ExecContext(ctx,
			q.Level, q.Topic, q.Difficulty, q.Stem, q.Passage, q.PassageGroup,
			choicesJSON, q.CorrectAnswer, q.Explanation, q.BatchID, q.GeneratedAt,
		); err != nil {
			return fmt.Errorf("%w: insert question: %v", models.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit save: %v", models.ErrStorage, err)
	}
	return nil
}

func (s *Store) RecordBatch(batchID string, topic models.Topic, level models.Level, difficulty float64, requested, accepted int) error {
	_, err := s.db.Exec(
		`INSERT INTO generation_batches (batch_id, topic, level, difficulty, requested, accepted)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		batchID, topic, level, difficulty, requested, accepted,
	)
	if err != nil {
		return fmt.Errorf("%w: record batch: %v", models.ErrStorage, err)
	}
	return nil
}

// GetQuestions loads a set of questions by id, for answer checking and review.
func (s *Store) GetQuestions(ids []int64) (map[int64]models.Question, error) {
	if len(ids) == 0 {
		return map[int64]models.Question{}, nil
	}
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1::bigint[])`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get questions: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

func scanQuestions(rows *sql.Rows) ([]models.Question, error) {
	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var choicesJSON []byte
		if err := rows.Scan(&q.ID, &q.Level, &q.Topic, &q.Difficulty, &q.Stem,
			&q.Passage, &q.PassageGroup, &choicesJSON, &q.CorrectAnswer,
			&q.Explanation, &q.BatchID, &q.GeneratedAt); err != nil {
			return nil, fmt.Errorf("%w: scan question: %v", models.ErrStorage, err)
		}
		if err := json.Unmarshal(choicesJSON, &q.Choices); err != nil {
			return nil, fmt.Errorf("%w: decode choices: %v", models.ErrStorage, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate questions: %v", models.ErrStorage, err)
	}
	return questions, nil
}
