package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/mastery"
	"github.com/ssat-prep/backend/internal/models"
	"github.com/ssat-prep/backend/internal/pool"
	"github.com/ssat-prep/backend/internal/scoring"
)

// QuestionSupplier is the slice of the pool manager setup needs.
type QuestionSupplier interface {
	FetchBatch(ctx context.Context, studentID int64, topic models.Topic, level models.Level, difficulty float64, count int) (*pool.Batch, error)
	MixedBatch(ctx context.Context, studentID int64, section config.SectionConfig, level models.Level, difficulties map[models.Topic]float64) (*pool.Batch, error)
}

// MasteryRecorder receives each answered question at completion.
type MasteryRecorder interface {
	RecordAttempt(studentID int64, topic models.Topic, correct bool) error
}

// DifficultyLeveler reads per-topic difficulties for setup and adjusts them
// once per topic at completion.
type DifficultyLeveler interface {
	DifficultyMap(studentID int64, level models.Level) (map[models.Topic]float64, error)
	Apply(studentID int64, results []mastery.SessionTopicResult) ([]string, error)
}

// Storage persists completed attempts and answers aggregate stats for the
// level-change recommendation.
type Storage interface {
	SaveAttempt(ctx context.Context, attempt *models.SessionAttempt) (int64, error)
	AggregateCounts(studentID int64) (answered, correct int, err error)
	RecentFullTestPercentiles(studentID int64, limit int) ([]int, error)
}

// StartParams selects what kind of attempt to run. Topic applies to quick
// drills, Section to section practice.
type StartParams struct {
	Mode    models.SessionMode `json:"mode"`
	Topic   models.Topic       `json:"topic,omitempty"`
	Section string             `json:"section,omitempty"`
	Count   int                `json:"count,omitempty"`
}

type Service struct {
	supplier     QuestionSupplier
	tracker      MasteryRecorder
	leveler      DifficultyLeveler
	store        Storage
	timerEnabled bool
	now          func() time.Time
}

func NewService(supplier QuestionSupplier, tracker MasteryRecorder, leveler DifficultyLeveler, store Storage, settings config.Settings) *Service {
	return &Service{
		supplier:     supplier,
		tracker:      tracker,
		leveler:      leveler,
		store:        store,
		timerEnabled: settings.TimerEnabled,
		now:          time.Now,
	}
}

// Mini tests run each section at a third of its full length and time.
const miniDivisor = 3

// Start resolves mode parameters, pulls the full question list up front and
// returns the attempt positioned on its first question.
func (s *Service) Start(ctx context.Context, student models.Student, params StartParams) (*Progression, error) {
	if !models.ValidModes[params.Mode] {
		return nil, fmt.Errorf("%w: unknown mode %q", models.ErrValidation, params.Mode)
	}
	levelCfg, ok := config.LevelConfigs[student.Level]
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %q", models.ErrValidation, student.Level)
	}

	difficulties, err := s.leveler.DifficultyMap(student.ID, student.Level)
	if err != nil {
		return nil, fmt.Errorf("load difficulties: %w", err)
	}

	p := &Progression{
		svc:       s,
		studentID: student.ID,
		grade:     student.Grade,
		level:     student.Level,
		mode:      params.Mode,
		state:     StateSetup,
		discarded: map[int]string{},
		startedAt: s.now(),
	}

	var timeMinutes int
	switch params.Mode {
	case models.ModeFullTest:
		for _, section := range levelCfg.Sections {
			if err := s.appendSection(ctx, p, section, difficulties); err != nil {
				return nil, err
			}
			timeMinutes += section.TimeMinutes
		}
	case models.ModeSectionPractice:
		section, ok := findSection(levelCfg, params.Section)
		if !ok {
			return nil, fmt.Errorf("%w: level %s has no section %q", models.ErrValidation, student.Level, params.Section)
		}
		if err := s.appendSection(ctx, p, section, difficulties); err != nil {
			return nil, err
		}
		timeMinutes = section.TimeMinutes
	case models.ModeMiniTest:
		for _, section := range levelCfg.Sections {
			mini := section
			mini.QuestionCount = (section.QuestionCount + miniDivisor - 1) / miniDivisor
			mini.TimeMinutes = (section.TimeMinutes + miniDivisor - 1) / miniDivisor
			if err := s.appendSection(ctx, p, mini, difficulties); err != nil {
				return nil, err
			}
			timeMinutes += mini.TimeMinutes
		}
	case models.ModeQuickDrill:
		if !models.ValidTopics[params.Topic] {
			return nil, fmt.Errorf("%w: unknown topic %q", models.ErrValidation, params.Topic)
		}
		count := params.Count
		if count == 0 {
			count = config.DrillDefaultQuestions
		}
		if count < config.DrillMinQuestions {
			count = config.DrillMinQuestions
		}
		if count > config.DrillMaxQuestions {
			count = config.DrillMaxQuestions
		}
		difficulty := difficulties[params.Topic]
		if difficulty == 0 {
			difficulty = config.DifficultyDefault
		}
		batch, err := s.supplier.FetchBatch(ctx, student.ID, params.Topic, student.Level, difficulty, count)
		if err != nil {
			return nil, fmt.Errorf("fetch drill questions: %w", err)
		}
		p.questions = batch.Questions
		p.shortfall = batch.Shortfall
	}

	if len(p.questions) == 0 {
		return nil, fmt.Errorf("%w: no questions available for %s", models.ErrValidation, params.Mode)
	}

	if s.timerEnabled && params.Mode != models.ModeQuickDrill {
		p.deadline = p.startedAt.Add(time.Duration(timeMinutes) * time.Minute)
	}
	if p.shortfall > 0 {
		log.Printf("[session] student %d %s starting %d short of requested", student.ID, params.Mode, p.shortfall)
	}

	p.state = StateQuestion
	p.shownAt = s.now()
	return p, nil
}

func (s *Service) appendSection(ctx context.Context, p *Progression, section config.SectionConfig, difficulties map[models.Topic]float64) error {
	batch, err := s.supplier.MixedBatch(ctx, p.studentID, section, p.level, difficulties)
	if err != nil {
		return fmt.Errorf("fetch %s questions: %w", section.Name, err)
	}
	start := len(p.questions)
	p.questions = append(p.questions, batch.Questions...)
	p.shortfall += batch.Shortfall
	p.spans = append(p.spans, sectionSpan{section: section, start: start, end: len(p.questions)})
	return nil
}

func findSection(levelCfg config.LevelConfig, name string) (config.SectionConfig, bool) {
	for _, section := range levelCfg.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return config.SectionConfig{}, false
}

// finalize commits the attempt, feeds mastery per answered question, levels
// each touched topic once, and builds the score report for scored modes.
func (s *Service) finalize(ctx context.Context, p *Progression) error {
	completedAt := s.now()
	attempt := &models.SessionAttempt{
		StudentID:      p.studentID,
		Level:          p.level,
		Grade:          p.grade,
		Mode:           p.mode,
		StartedAt:      p.startedAt,
		CompletedAt:    &completedAt,
		Answers:        p.answers,
		ChangedAnswers: p.changed,
	}

	sections := s.scoreSections(p)
	applySectionFields(attempt, sections)

	sessionID, err := s.store.SaveAttempt(ctx, attempt)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}

	byID := make(map[int64]models.Question, len(p.questions))
	for _, q := range p.questions {
		byID[q.ID] = q
	}

	results := map[models.Topic]*mastery.SessionTopicResult{}
	for _, a := range p.answers {
		if a.Skipped() {
			continue
		}
		topic := byID[a.QuestionID].Topic
		if err := s.tracker.RecordAttempt(p.studentID, topic, a.Correct); err != nil {
			return fmt.Errorf("record mastery: %w", err)
		}
		r, ok := results[topic]
		if !ok {
			r = &mastery.SessionTopicResult{Topic: topic}
			results[topic] = r
		}
		r.Answered++
		if a.Correct {
			r.Correct++
		}
	}
	if len(results) > 0 {
		flat := make([]mastery.SessionTopicResult, 0, len(results))
		for _, r := range results {
			flat = append(flat, *r)
		}
		if _, err := s.leveler.Apply(p.studentID, flat); err != nil {
			return fmt.Errorf("apply leveling: %w", err)
		}
	}

	if p.mode.Scored() {
		report := &models.ScoreReport{
			SessionID:      sessionID,
			Level:          p.level,
			Mode:           p.mode,
			Sections:       sections,
			TopicBreakdown: scoring.TopicBreakdown(p.answers, p.questions),
		}
		for _, sec := range sections {
			report.TotalScaled += sec.ScaledScore
		}
		report.Recommendation = s.recommend(p.studentID)
		p.report = report
	}

	log.Printf("[session] student %d completed %s: %d answers, %d changed",
		p.studentID, p.mode, len(p.answers), p.changed)
	return nil
}

// scoreSections scores each span and merges same-named score fields, so the
// two Middle quantitative sections report as one averaged Quantitative entry.
func (s *Service) scoreSections(p *Progression) []models.SectionScore {
	if !p.mode.Scored() || len(p.spans) == 0 {
		return nil
	}

	type agg struct {
		score models.SectionScore
		n     int
	}
	var order []string
	byField := map[string]*agg{}

	for _, span := range p.spans {
		answers := answersForSpan(p.answers, span)
		raw := scoring.CalculateRawScore(answers, p.level)
		scaled, percentile := scoring.ConvertScore(raw.Raw, span.section, p.level)

		var seconds float64
		for _, a := range answers {
			seconds += a.Seconds
		}

		field := scoring.SectionScoreField(span.section.Name)
		a, ok := byField[field]
		if !ok {
			a = &agg{score: models.SectionScore{SectionName: displayName(field)}}
			byField[field] = a
			order = append(order, field)
		}
		a.score.RawScore += raw.Raw
		a.score.ScaledScore += scaled
		a.score.Percentile += percentile
		a.score.TotalCount += span.end - span.start
		a.score.CorrectCount += raw.Correct
		a.score.WrongCount += raw.Wrong
		a.score.SkippedCount += raw.Skipped
		a.score.TimeSeconds += seconds
		a.n++
	}

	sections := make([]models.SectionScore, 0, len(order))
	for _, field := range order {
		a := byField[field]
		if a.n > 1 {
			a.score.RawScore /= float64(a.n)
			a.score.ScaledScore = (a.score.ScaledScore + a.n/2) / a.n
			a.score.Percentile = (a.score.Percentile + a.n/2) / a.n
		}
		sections = append(sections, a.score)
	}
	return sections
}

// answersForSpan picks the answers whose questions belong to the span; the
// answer list is ordered the same as the question list.
func answersForSpan(answers []models.AnswerRecord, span sectionSpan) []models.AnswerRecord {
	if span.start >= len(answers) {
		return nil
	}
	end := span.end
	if end > len(answers) {
		end = len(answers)
	}
	return answers[span.start:end]
}

func displayName(field string) string {
	switch field {
	case "verbal":
		return "Verbal"
	case "quantitative":
		return "Quantitative"
	case "reading":
		return "Reading"
	}
	return field
}

func applySectionFields(attempt *models.SessionAttempt, sections []models.SectionScore) {
	for _, sec := range sections {
		raw, scaled, percentile := sec.RawScore, sec.ScaledScore, sec.Percentile
		switch scoring.SectionScoreField(sec.SectionName) {
		case "verbal":
			attempt.VerbalRaw, attempt.VerbalScaled, attempt.VerbalPercentile = &raw, &scaled, &percentile
		case "quantitative":
			attempt.QuantitativeRaw, attempt.QuantitativeScaled, attempt.QuantitativePercentile = &raw, &scaled, &percentile
		case "reading":
			attempt.ReadingRaw, attempt.ReadingScaled, attempt.ReadingPercentile = &raw, &scaled, &percentile
		}
	}
	if len(sections) > 0 {
		total := 0
		for _, sec := range sections {
			total += sec.ScaledScore
		}
		attempt.TotalScaled = &total
	}
}

// recommend evaluates the level-change rules against the student's whole
// history, including the attempt just saved. Failures degrade to a hold.
func (s *Service) recommend(studentID int64) models.LevelRecommendation {
	answered, correct, err := s.store.AggregateCounts(studentID)
	if err != nil {
		log.Printf("WARN: [session] aggregate counts for student %d: %v", studentID, err)
		return models.RecommendHold
	}
	percentiles, err := s.store.RecentFullTestPercentiles(studentID, config.MasteryTestCount)
	if err != nil {
		log.Printf("WARN: [session] recent percentiles for student %d: %v", studentID, err)
		return models.RecommendHold
	}
	return mastery.RecommendLevelChange(mastery.AggregateStats{
		TotalAnswered:       answered,
		TotalCorrect:        correct,
		FullTestPercentiles: percentiles,
	})
}
