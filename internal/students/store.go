// Package students holds student records and the progress layer built on top
// of them: aggregate stats, study recommendations and level changes.
package students

import (
	"database/sql"
	"fmt"

	"github.com/ssat-prep/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(req models.CreateStudentRequest) (*models.Student, error) {
	var student models.Student
	err := s.db.QueryRow(
		`INSERT INTO students (name, grade, level)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, grade, level, created_at`,
		req.Name, req.Grade, req.Level,
	).Scan(&student.ID, &student.Name, &student.Grade, &student.Level, &student.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: create student: %v", models.ErrStorage, err)
	}
	return &student, nil
}

func (s *Store) Get(studentID int64) (*models.Student, error) {
	var student models.Student
	err := s.db.QueryRow(
		`SELECT id, name, grade, level, created_at FROM students WHERE id = $1`,
		studentID,
	).Scan(&student.ID, &student.Name, &student.Grade, &student.Level, &student.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get student: %v", models.ErrStorage, err)
	}
	return &student, nil
}

func (s *Store) List() ([]models.Student, error) {
	rows, err := s.db.Query(`SELECT id, name, grade, level, created_at FROM students ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list students: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.Student
	for rows.Next() {
		var student models.Student
		if err := rows.Scan(&student.ID, &student.Name, &student.Grade, &student.Level, &student.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan student: %v", models.ErrStorage, err)
		}
		out = append(out, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate students: %v", models.ErrStorage, err)
	}
	return out, nil
}

func (s *Store) UpdateLevelGrade(studentID int64, level models.Level, grade int) error {
	_, err := s.db.Exec(
		`UPDATE students SET level = $1, grade = $2 WHERE id = $3`,
		level, grade, studentID,
	)
	if err != nil {
		return fmt.Errorf("%w: update level: %v", models.ErrStorage, err)
	}
	return nil
}
