package pool

import (
	"context"
	"log"
	"time"

	"github.com/ssat-prep/backend/internal/models"
)

// StudentSource lists the students whose pools the worker keeps topped up.
type StudentSource interface {
	List() ([]models.Student, error)
}

// DifficultySource reports each student's current serving difficulty per topic.
type DifficultySource interface {
	DifficultyMap(studentID int64, level models.Level) (map[models.Topic]float64, error)
}

// Worker sweeps every student's question pool on a timer and generates into
// topics that have fallen below the replenish threshold, so sessions rarely
// have to generate inline.
type Worker struct {
	manager      *Manager
	students     StudentSource
	difficulties DifficultySource
	interval     time.Duration
}

func NewWorker(manager *Manager, students StudentSource, difficulties DifficultySource, interval time.Duration) *Worker {
	return &Worker{
		manager:      manager,
		students:     students,
		difficulties: difficulties,
		interval:     interval,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Println("[pool-worker] Background replenish worker started")

	for {
		select {
		case <-ctx.Done():
			log.Println("[pool-worker] Shutting down")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	list, err := w.students.List()
	if err != nil {
		log.Printf("WARN: [pool-worker] listing students: %v", err)
		return
	}

	for _, student := range list {
		if ctx.Err() != nil {
			return
		}
		difficulties, err := w.difficulties.DifficultyMap(student.ID, student.Level)
		if err != nil {
			log.Printf("WARN: [pool-worker] difficulty map for student %d: %v", student.ID, err)
			continue
		}
		if err := w.manager.ReplenishAll(ctx, student.ID, student.Level, difficulties); err != nil {
			log.Printf("WARN: [pool-worker] replenish for student %d: %v", student.ID, err)
		}
	}
}
