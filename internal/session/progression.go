// Package session drives a single test or drill attempt from setup through
// completion: it pulls questions from the pool up front, walks the student
// through a submit/confirm flow, and commits results to storage, mastery and
// scoring when the attempt ends.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

type State string

const (
	StateSetup    State = "setup"
	StateQuestion State = "question"
	StateConfirm  State = "confirm"
	StateFeedback State = "feedback"
	StateComplete State = "complete"
)

// Feedback reveals correctness after a committed answer. Only instant
// feedback modes (quick drill, mini test) produce one.
type Feedback struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

// sectionSpan maps a contiguous index range of the question list to the
// section it came from, for per-section scoring.
type sectionSpan struct {
	section config.SectionConfig
	start   int
	end     int
}

// Progression is one attempt's state machine. Exactly one instance exists per
// in-flight attempt; the HTTP layer keys instances by student so a student
// never has two running at once.
type Progression struct {
	svc       *Service
	studentID int64
	grade     int
	level     models.Level
	mode      models.SessionMode

	state     State
	questions []models.Question
	spans     []sectionSpan
	answers   []models.AnswerRecord
	index     int
	shortfall int

	tentative string
	discarded map[int]string
	changed   int

	startedAt time.Time
	shownAt   time.Time
	deadline  time.Time

	report *models.ScoreReport
}

func (p *Progression) State() State { return p.state }
func (p *Progression) Mode() models.SessionMode { return p.mode }
func (p *Progression) Index() int { return p.index }
func (p *Progression) Total() int { return len(p.questions) }
func (p *Progression) Shortfall() int { return p.shortfall }
func (p *Progression) ChangedAnswers() int { return p.changed }
func (p *Progression) Answers() []models.AnswerRecord { return p.answers }

// Report returns the score report once the attempt has completed. Nil for
// drills and for unfinished attempts.
func (p *Progression) Report() *models.ScoreReport { return p.report }

// Deadline returns the wall-clock cutoff for timed attempts and whether one
// is set.
func (p *Progression) Deadline() (time.Time, bool) {
	return p.deadline, !p.deadline.IsZero()
}

// Current returns the answer-stripped view of the question at the cursor.
func (p *Progression) Current() (*models.ServedQuestion, error) {
	if p.state != StateQuestion && p.state != StateConfirm {
		return nil, fmt.Errorf("no current question in state %s", p.state)
	}
	served := p.questions[p.index].ToServed()
	return &served, nil
}

// Submit holds choice as the tentative answer and moves to confirm. Nothing
// is recorded yet; the student can still go back.
func (p *Progression) Submit(ctx context.Context, choice string) error {
	if expired, err := p.checkDeadline(ctx); expired || err != nil {
		return err
	}
	if p.state != StateQuestion {
		return fmt.Errorf("cannot submit in state %s", p.state)
	}
	if !p.validChoice(choice) {
		return fmt.Errorf("%w: choice %q not offered by question %d", models.ErrValidation, choice, p.questions[p.index].ID)
	}
	p.tentative = choice
	p.state = StateConfirm
	return nil
}

// GoBack discards the tentative choice and re-opens the same question. The
// discarded choice is remembered so a later different submission counts as a
// changed answer.
func (p *Progression) GoBack(ctx context.Context) error {
	if expired, err := p.checkDeadline(ctx); expired || err != nil {
		return err
	}
	if p.state != StateConfirm {
		return fmt.Errorf("cannot go back in state %s", p.state)
	}
	p.discarded[p.index] = p.tentative
	p.tentative = ""
	p.state = StateQuestion
	return nil
}

// Commit records the tentative answer and advances. Instant feedback modes
// stop in the feedback state and return the verdict; other modes move
// straight to the next question or to completion.
func (p *Progression) Commit(ctx context.Context) (*Feedback, error) {
	if expired, err := p.checkDeadline(ctx); expired || err != nil {
		return nil, err
	}
	if p.state != StateConfirm {
		return nil, fmt.Errorf("cannot commit in state %s", p.state)
	}

	q := p.questions[p.index]
	if prior, ok := p.discarded[p.index]; ok && prior != p.tentative {
		p.changed++
	}
	p.recordAnswer(q, p.tentative)
	p.tentative = ""

	if p.mode.InstantFeedback() {
		p.state = StateFeedback
		return &Feedback{
			Correct:       p.answers[len(p.answers)-1].Correct,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}, nil
	}
	return nil, p.advance(ctx)
}

// Next leaves the feedback screen for the next question or completion.
func (p *Progression) Next(ctx context.Context) error {
	if p.state != StateFeedback {
		return fmt.Errorf("cannot advance in state %s", p.state)
	}
	return p.advance(ctx)
}

// Skip records the current question as unanswered and advances. Skipping
// costs nothing at Elementary and avoids the wrong-answer penalty at Middle.
func (p *Progression) Skip(ctx context.Context) error {
	if expired, err := p.checkDeadline(ctx); expired || err != nil {
		return err
	}
	if p.state != StateQuestion {
		return fmt.Errorf("cannot skip in state %s", p.state)
	}
	p.recordAnswer(p.questions[p.index], "")
	return p.advance(ctx)
}

func (p *Progression) validChoice(choice string) bool {
	for _, c := range p.questions[p.index].Choices {
		if c.Letter == choice {
			return true
		}
	}
	return false
}

func (p *Progression) recordAnswer(q models.Question, selected string) {
	now := p.svc.now()
	p.answers = append(p.answers, models.AnswerRecord{
		StudentID:  p.studentID,
		QuestionID: q.ID,
		Selected:   selected,
		Correct:    selected != "" && selected == q.CorrectAnswer,
		Seconds:    now.Sub(p.shownAt).Seconds(),
		AnsweredAt: now,
	})
}

func (p *Progression) advance(ctx context.Context) error {
	p.index++
	if p.index >= len(p.questions) {
		return p.complete(ctx)
	}
	p.state = StateQuestion
	p.shownAt = p.svc.now()
	return nil
}

// checkDeadline enforces the wall-clock cutoff. Expiry force-completes the
// attempt, auto-filling everything not yet committed as skipped.
func (p *Progression) checkDeadline(ctx context.Context) (bool, error) {
	if p.deadline.IsZero() || p.svc.now().Before(p.deadline) {
		return false, nil
	}
	for i := p.index; i < len(p.questions); i++ {
		p.recordAnswer(p.questions[i], "")
	}
	p.index = len(p.questions)
	p.tentative = ""
	return true, p.complete(ctx)
}

func (p *Progression) complete(ctx context.Context) error {
	p.state = StateComplete
	return p.svc.finalize(ctx, p)
}
