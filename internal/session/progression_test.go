package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/mastery"
	"github.com/ssat-prep/backend/internal/models"
	"github.com/ssat-prep/backend/internal/pool"
)

// fakeSupplier hands out synthetic questions with unique ids. Correct answer
// is always B.
type fakeSupplier struct {
	nextID int64
}

func (f *fakeSupplier) question(topic models.Topic, level models.Level) models.Question {
	f.nextID++
	return models.Question{
		ID:         f.nextID,
		Level:      level,
		Topic:      topic,
		Difficulty: 2.0,
		Stem:       fmt.Sprintf("Question %d", f.nextID),
		Choices: []models.Choice{
			{Letter: "A", Text: "first"}, {Letter: "B", Text: "second"},
			{Letter: "C", Text: "third"}, {Letter: "D", Text: "fourth"},
		},
		CorrectAnswer: "B",
		Explanation:   "B is the one.",
	}
}

func (f *fakeSupplier) FetchBatch(ctx context.Context, studentID int64, topic models.Topic, level models.Level, difficulty float64, count int) (*pool.Batch, error) {
	b := &pool.Batch{}
	for i := 0; i < count; i++ {
		b.Questions = append(b.Questions, f.question(topic, level))
	}
	return b, nil
}

func (f *fakeSupplier) MixedBatch(ctx context.Context, studentID int64, section config.SectionConfig, level models.Level, difficulties map[models.Topic]float64) (*pool.Batch, error) {
	b := &pool.Batch{}
	for i := 0; i < section.QuestionCount; i++ {
		topic := section.Topics[i%len(section.Topics)]
		b.Questions = append(b.Questions, f.question(topic, level))
	}
	return b, nil
}

type fakeTracker struct {
	calls   int
	correct int
}

func (f *fakeTracker) RecordAttempt(studentID int64, topic models.Topic, correct bool) error {
	f.calls++
	if correct {
		f.correct++
	}
	return nil
}

type fakeLeveler struct {
	applied [][]mastery.SessionTopicResult
}

func (f *fakeLeveler) DifficultyMap(studentID int64, level models.Level) (map[models.Topic]float64, error) {
	return map[models.Topic]float64{}, nil
}

func (f *fakeLeveler) Apply(studentID int64, results []mastery.SessionTopicResult) ([]string, error) {
	f.applied = append(f.applied, results)
	return nil, nil
}

type fakeSessionStore struct {
	saved       []*models.SessionAttempt
	percentiles []int
	answered    int
	correct     int
}

func (f *fakeSessionStore) SaveAttempt(ctx context.Context, attempt *models.SessionAttempt) (int64, error) {
	f.saved = append(f.saved, attempt)
	for _, a := range attempt.Answers {
		if !a.Skipped() {
			f.answered++
			if a.Correct {
				f.correct++
			}
		}
	}
	return int64(len(f.saved)), nil
}

func (f *fakeSessionStore) AggregateCounts(studentID int64) (int, int, error) {
	return f.answered, f.correct, nil
}

func (f *fakeSessionStore) RecentFullTestPercentiles(studentID int64, limit int) ([]int, error) {
	if len(f.percentiles) > limit {
		return f.percentiles[:limit], nil
	}
	return f.percentiles, nil
}

type fixture struct {
	svc     *Service
	tracker *fakeTracker
	leveler *fakeLeveler
	store   *fakeSessionStore
	clock   time.Time
}

func newFixture(timerEnabled bool) *fixture {
	fx := &fixture{
		tracker: &fakeTracker{},
		leveler: &fakeLeveler{},
		store:   &fakeSessionStore{},
		clock:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	fx.svc = NewService(&fakeSupplier{}, fx.tracker, fx.leveler, fx.store,
		config.Settings{TimerEnabled: timerEnabled})
	fx.svc.now = func() time.Time { return fx.clock }
	return fx
}

func middleStudent() models.Student {
	return models.Student{ID: 1, Name: "Avery", Grade: 6, Level: models.LevelMiddle}
}

func elementaryStudent() models.Student {
	return models.Student{ID: 2, Name: "Sam", Grade: 4, Level: models.LevelElementary}
}

func answerCurrent(t *testing.T, p *Progression, choice string) *Feedback {
	t.Helper()
	ctx := context.Background()
	if err := p.Submit(ctx, choice); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fb, err := p.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if p.State() == StateFeedback {
		if err := p.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	return fb
}

func TestQuickDrillFlow(t *testing.T) {
	fx := newFixture(true)
	p, err := fx.svc.Start(context.Background(), middleStudent(), StartParams{
		Mode: models.ModeQuickDrill, Topic: models.TopicArithmetic,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Total() != config.DrillDefaultQuestions {
		t.Fatalf("drill size = %d, want %d", p.Total(), config.DrillDefaultQuestions)
	}
	if _, timed := p.Deadline(); timed {
		t.Error("quick drills must not carry a deadline")
	}

	fb := answerCurrent(t, p, "B")
	if fb == nil || !fb.Correct || fb.CorrectAnswer != "B" {
		t.Fatalf("feedback = %+v, want correct B", fb)
	}
	for p.State() != StateComplete {
		answerCurrent(t, p, "A")
	}

	if p.Report() != nil {
		t.Error("quick drills must not produce a score report")
	}
	if fx.tracker.calls != 10 || fx.tracker.correct != 1 {
		t.Errorf("mastery fed %d/%d, want 10 attempts with 1 correct", fx.tracker.calls, fx.tracker.correct)
	}
	if len(fx.leveler.applied) != 1 || len(fx.leveler.applied[0]) != 1 {
		t.Fatalf("leveler applied %v, want once with one topic", fx.leveler.applied)
	}
	if r := fx.leveler.applied[0][0]; r.Topic != models.TopicArithmetic || r.Answered != 10 || r.Correct != 1 {
		t.Errorf("leveler result = %+v", r)
	}
	if len(fx.store.saved) != 1 || len(fx.store.saved[0].Answers) != 10 {
		t.Fatalf("attempt not committed with its answers")
	}
}

func TestGoBackDiscardsTentativeChoice(t *testing.T) {
	fx := newFixture(false)
	p, err := fx.svc.Start(context.Background(), middleStudent(), StartParams{
		Mode: models.ModeQuickDrill, Topic: models.TopicGeometry,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Same choice after going back: not a changed answer.
	if err := p.Submit(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	index := p.Index()
	if err := p.GoBack(ctx); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateQuestion || p.Index() != index {
		t.Fatalf("go back landed on state %s index %d", p.State(), p.Index())
	}
	answerCurrent(t, p, "A")
	if p.ChangedAnswers() != 0 {
		t.Errorf("changed = %d after resubmitting the same choice, want 0", p.ChangedAnswers())
	}

	// Different choice after going back: counted.
	if err := p.Submit(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if err := p.GoBack(ctx); err != nil {
		t.Fatal(err)
	}
	answerCurrent(t, p, "C")
	if p.ChangedAnswers() != 1 {
		t.Errorf("changed = %d after switching choice, want 1", p.ChangedAnswers())
	}
}

func TestSubmitRejectsUnknownChoice(t *testing.T) {
	fx := newFixture(false)
	p, err := fx.svc.Start(context.Background(), middleStudent(), StartParams{
		Mode: models.ModeQuickDrill, Topic: models.TopicSynonym,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = p.Submit(context.Background(), "E")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("want ErrValidation for a letter the question does not offer, got %v", err)
	}
	if p.State() != StateQuestion {
		t.Errorf("state = %s after rejected submit, want question", p.State())
	}
}

func TestSectionPracticeProducesReport(t *testing.T) {
	fx := newFixture(false)
	p, err := fx.svc.Start(context.Background(), elementaryStudent(), StartParams{
		Mode: models.ModeSectionPractice, Section: "Verbal",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Total() != 30 {
		t.Fatalf("verbal section size = %d, want 30", p.Total())
	}

	for p.State() != StateComplete {
		answerCurrent(t, p, "B")
	}

	report := p.Report()
	if report == nil {
		t.Fatal("section practice must produce a report")
	}
	if len(report.Sections) != 1 || report.Sections[0].SectionName != "Verbal" {
		t.Fatalf("sections = %+v", report.Sections)
	}
	sec := report.Sections[0]
	if sec.RawScore != 30 || sec.CorrectCount != 30 || sec.WrongCount != 0 {
		t.Errorf("raw = %+v, want perfect 30", sec)
	}
	if sec.ScaledScore != 600 {
		t.Errorf("scaled = %d, want elementary ceiling 600", sec.ScaledScore)
	}
	saved := fx.store.saved[0]
	if saved.VerbalScaled == nil || *saved.VerbalScaled != 600 {
		t.Errorf("attempt verbal scaled not persisted: %+v", saved.VerbalScaled)
	}
	if saved.QuantitativeScaled != nil {
		t.Error("untested sections must stay null")
	}
}

func TestFullTestMergesQuantitativeSections(t *testing.T) {
	fx := newFixture(false)
	p, err := fx.svc.Start(context.Background(), middleStudent(), StartParams{Mode: models.ModeFullTest})
	if err != nil {
		t.Fatal(err)
	}
	if p.Total() != 150 {
		t.Fatalf("middle full test = %d questions, want 150", p.Total())
	}

	for p.State() != StateComplete {
		answerCurrent(t, p, "B")
	}

	report := p.Report()
	if report == nil {
		t.Fatal("full test must produce a report")
	}
	if len(report.Sections) != 3 {
		t.Fatalf("sections = %+v, want quantitative merged into 3 rows", report.Sections)
	}
	byName := map[string]models.SectionScore{}
	for _, sec := range report.Sections {
		byName[sec.SectionName] = sec
	}
	quant := byName["Quantitative"]
	if quant.TotalCount != 50 {
		t.Errorf("quantitative count = %d, want both sections' 50", quant.TotalCount)
	}
	if quant.RawScore != 25 {
		t.Errorf("quantitative raw = %.2f, want averaged 25", quant.RawScore)
	}
	if byName["Verbal"].TotalCount != 60 || byName["Reading"].TotalCount != 40 {
		t.Errorf("verbal/reading counts wrong: %+v", byName)
	}
	if report.TotalScaled != byName["Verbal"].ScaledScore+quant.ScaledScore+byName["Reading"].ScaledScore {
		t.Error("total scaled must sum the merged sections")
	}
}

func TestDeadlineForcesCompletion(t *testing.T) {
	fx := newFixture(true)
	p, err := fx.svc.Start(context.Background(), elementaryStudent(), StartParams{
		Mode: models.ModeSectionPractice, Section: "Math",
	})
	if err != nil {
		t.Fatal(err)
	}
	deadline, timed := p.Deadline()
	if !timed || deadline != fx.clock.Add(30*time.Minute) {
		t.Fatalf("deadline = %v timed=%v, want start+30m", deadline, timed)
	}

	ctx := context.Background()
	answerCurrent(t, p, "B")
	answerCurrent(t, p, "A")

	fx.clock = fx.clock.Add(31 * time.Minute)
	if err := p.Submit(ctx, "B"); err != nil {
		t.Fatalf("expired submit should force completion, not error: %v", err)
	}
	if p.State() != StateComplete {
		t.Fatalf("state = %s after expiry, want complete", p.State())
	}

	saved := fx.store.saved[0]
	if len(saved.Answers) != 30 {
		t.Fatalf("saved %d answers, want all 30 auto-filled", len(saved.Answers))
	}
	skipped := 0
	for _, a := range saved.Answers {
		if a.Skipped() {
			skipped++
		}
	}
	if skipped != 28 {
		t.Errorf("skipped = %d, want the 28 unanswered items", skipped)
	}
	if fx.tracker.calls != 2 {
		t.Errorf("mastery fed %d attempts, want only the 2 actually answered", fx.tracker.calls)
	}
	report := p.Report()
	if report == nil || report.Sections[0].SkippedCount != 28 {
		t.Fatalf("report = %+v, want 28 skipped in the Math section", report)
	}
}

func TestMiniTestIsScoredWithInstantFeedback(t *testing.T) {
	fx := newFixture(false)
	p, err := fx.svc.Start(context.Background(), elementaryStudent(), StartParams{Mode: models.ModeMiniTest})
	if err != nil {
		t.Fatal(err)
	}
	// Elementary mini: ceil(30/3) + ceil(30/3) + ceil(28/3) questions.
	if p.Total() != 30 {
		t.Fatalf("mini test size = %d, want 30", p.Total())
	}

	fb := answerCurrent(t, p, "B")
	if fb == nil {
		t.Fatal("mini tests show instant feedback")
	}
	for p.State() != StateComplete {
		answerCurrent(t, p, "B")
	}
	if p.Report() == nil {
		t.Fatal("mini tests are scored")
	}
}

func TestStartRejectsBadParams(t *testing.T) {
	fx := newFixture(false)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, middleStudent(), StartParams{Mode: "cram"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown mode: got %v", err)
	}
	if _, err := fx.svc.Start(ctx, middleStudent(), StartParams{Mode: models.ModeQuickDrill, Topic: "trigonometry"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown topic: got %v", err)
	}
	if _, err := fx.svc.Start(ctx, middleStudent(), StartParams{Mode: models.ModeSectionPractice, Section: "Essay"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown section: got %v", err)
	}
}
