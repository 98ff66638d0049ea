package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ssat-prep/backend/internal/models"
)

// Store persists completed attempts. Sessions and their answers land in one
// transaction so a crash never leaves an attempt without its answers.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveAttempt(ctx context.Context, attempt *models.SessionAttempt) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin save attempt: %v", models.ErrStorage, err)
	}
	defer tx.Rollback()

	var sessionID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO sessions
		    (student_id, level, grade, mode, started_at, completed_at, changed_answers,
		     verbal_raw, verbal_scaled, verbal_percentile,
		     quantitative_raw, quantitative_scaled, quantitative_percentile,
		     reading_raw, reading_scaled, reading_percentile, total_scaled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id`,
		attempt.StudentID, attempt.Level, attempt.Grade, attempt.Mode,
		attempt.StartedAt, attempt.CompletedAt, attempt.ChangedAnswers,
		attempt.VerbalRaw, attempt.VerbalScaled, attempt.VerbalPercentile,
		attempt.QuantitativeRaw, attempt.QuantitativeScaled, attempt.QuantitativePercentile,
		attempt.ReadingRaw, attempt.ReadingScaled, attempt.ReadingPercentile,
		attempt.TotalScaled,
	).Scan(&sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: insert session: %v", models.ErrStorage, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO answers (session_id, student_id, question_id, selected, correct, time_spent_seconds, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare answers: %v", models.ErrStorage, err)
	}
	defer stmt.Close()

	for _, a := range attempt.Answers {
		if _, err := stmt.ExecContext(ctx,
			sessionID, a.StudentID, a.QuestionID, a.Selected, a.Correct, a.Seconds, a.AnsweredAt,
		); err != nil {
			return 0, fmt.Errorf("%w: insert answer: %v", models.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit attempt: %v", models.ErrStorage, err)
	}
	attempt.ID = sessionID
	return sessionID, nil
}

// AggregateCounts tallies lifetime answered (non-skipped) and correct counts
// across all of a student's sessions.
func (s *Store) AggregateCounts(studentID int64) (int, int, error) {
	var answered, correct int
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE correct)
		 FROM answers
		 WHERE student_id = $1 AND selected <> ''`,
		studentID,
	).Scan(&answered, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: aggregate counts: %v", models.ErrStorage, err)
	}
	return answered, correct, nil
}

// RecentFullTestPercentiles returns overall percentiles of the most recent
// full tests, newest first. The overall figure averages the three section
// percentiles, matching how the report presents them.
func (s *Store) RecentFullTestPercentiles(studentID int64, limit int) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT ROUND((verbal_percentile + quantitative_percentile + reading_percentile) / 3.0)
		 FROM sessions
		 WHERE student_id = $1 AND mode = $2
		   AND verbal_percentile IS NOT NULL
		   AND quantitative_percentile IS NOT NULL
		   AND reading_percentile IS NOT NULL
		 ORDER BY completed_at DESC
		 LIMIT $3`,
		studentID, models.ModeFullTest, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: recent full test percentiles: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var percentiles []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: scan percentile: %v", models.ErrStorage, err)
		}
		percentiles = append(percentiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate percentiles: %v", models.ErrStorage, err)
	}
	return percentiles, nil
}

const sessionColumns = `id, student_id, level, grade, mode, started_at, completed_at, changed_answers,
       verbal_raw, verbal_scaled, verbal_percentile,
       quantitative_raw, quantitative_scaled, quantitative_percentile,
       reading_raw, reading_scaled, reading_percentile, total_scaled`

func (s *Store) GetAttempt(sessionID int64) (*models.SessionAttempt, error) {
	var a models.SessionAttempt
	err := s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID,
	).Scan(&a.ID, &a.StudentID, &a.Level, &a.Grade, &a.Mode, &a.StartedAt, &a.CompletedAt,
		&a.ChangedAnswers,
		&a.VerbalRaw, &a.VerbalScaled, &a.VerbalPercentile,
		&a.QuantitativeRaw, &a.QuantitativeScaled, &a.QuantitativePercentile,
		&a.ReadingRaw, &a.ReadingScaled, &a.ReadingPercentile, &a.TotalScaled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get attempt: %v", models.ErrStorage, err)
	}
	return &a, nil
}

// ListAttempts returns a student's completed sessions, newest first.
func (s *Store) ListAttempts(studentID int64, limit int) ([]models.SessionAttempt, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE student_id = $1
		 ORDER BY completed_at DESC
		 LIMIT $2`,
		studentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list attempts: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var attempts []models.SessionAttempt
	for rows.Next() {
		var a models.SessionAttempt
		if err := rows.Scan(&a.ID, &a.StudentID, &a.Level, &a.Grade, &a.Mode, &a.StartedAt,
			&a.CompletedAt, &a.ChangedAnswers,
			&a.VerbalRaw, &a.VerbalScaled, &a.VerbalPercentile,
			&a.QuantitativeRaw, &a.QuantitativeScaled, &a.QuantitativePercentile,
			&a.ReadingRaw, &a.ReadingScaled, &a.ReadingPercentile, &a.TotalScaled); err != nil {
			return nil, fmt.Errorf("%w: scan attempt: %v", models.ErrStorage, err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate attempts: %v", models.ErrStorage, err)
	}
	return attempts, nil
}
