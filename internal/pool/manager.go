package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// Storage is the persistence surface the pool manager needs. Exposure rows
// are permanent: once a question is marked for a student it is never served
// to that student again.
type Storage interface {
	GetUnseen(studentID int64, topic models.Topic, level models.Level, minDiff, maxDiff float64, limit int) ([]models.Question, error)
	GetUnseenPassages(studentID int64, level models.Level, minDiff, maxDiff float64, groupLimit int) ([]models.Question, error)
	CountUnseen(studentID int64, topic models.Topic, level models.Level) (int, error)
	MarkExposed(studentID int64, questionIDs []int64) error
	SaveQuestions(ctx context.Context, questions []models.Question) error
	RecordBatch(batchID string, topic models.Topic, level models.Level, difficulty float64, requested, accepted int) error
}

// QuestionSource produces fresh questions when the pool runs dry.
type QuestionSource interface {
	Generate(ctx context.Context, topic models.Topic, level models.Level, difficulty float64, count int) ([]models.Question, error)
}

// Batch is what a fetch returns. Shortfall counts how many of the requested
// questions could not be supplied; it is informational, not an error.
type Batch struct {
	Questions []models.Question
	Shortfall int
}

// TopicStats reports pool inventory for one topic.
type TopicStats struct {
	Topic       models.Topic `json:"topic"`
	UnseenCount int          `json:"unseen_count"`
	Low         bool         `json:"low"`
}

type Manager struct {
	store       Storage
	source      QuestionSource
	batchSize   int
	minPoolSize int
}

func NewManager(store Storage, source QuestionSource, settings config.Settings) *Manager {
	return &Manager{
		store:       store,
		source:      source,
		batchSize:   settings.QuestionsPerGen,
		minPoolSize: settings.MinPoolSize,
	}
}

// FetchBatch serves up to count unseen questions for the student at the given
// difficulty. It tries a narrow window around the target first, widens to the
// full difficulty range, and only then generates. Generation failure is
// absorbed: the caller gets whatever the pool had, with the gap reported as
// Shortfall. Served questions are marked exposed immediately.
func (m *Manager) FetchBatch(ctx context.Context, studentID int64, topic models.Topic, level models.Level, difficulty float64, count int) (*Batch, error) {
	if count <= 0 {
		return &Batch{}, nil
	}

	questions, err := m.fetchUnseen(studentID, topic, level, difficulty, count)
	if err != nil {
		return nil, err
	}

	if len(questions) < count {
		needed := m.batchSize
		if count-len(questions) > needed {
			needed = count - len(questions)
		}
		if _, genErr := m.generateInto(ctx, topic, level, difficulty, needed); genErr != nil {
			log.Printf("WARN: [pool] generation failed for %s/%s: %v", level, topic, genErr)
		} else {
			questions, err = m.fetchUnseen(studentID, topic, level, difficulty, count)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(questions) > 0 {
		ids := make([]int64, len(questions))
		for i, q := range questions {
			ids[i] = q.ID
		}
		if err := m.store.MarkExposed(studentID, ids); err != nil {
			return nil, fmt.Errorf("mark exposed: %w", err)
		}
	}

	return &Batch{
		Questions: questions,
		Shortfall: count - len(questions),
	}, nil
}

// fetchUnseen pulls from the pool: narrow difficulty window, then the full
// range. Reading comprehension is served by whole passage group so a passage
// is never split across sessions.
func (m *Manager) fetchUnseen(studentID int64, topic models.Topic, level models.Level, difficulty float64, count int) ([]models.Question, error) {
	minDiff := models.ClampDifficulty(difficulty - config.DifficultyStep)
	maxDiff := models.ClampDifficulty(difficulty + config.DifficultyStep)

	if topic == models.TopicReadingComp {
		questions, err := m.store.GetUnseenPassages(studentID, level, minDiff, maxDiff, passageGroupsFor(count))
		if err != nil {
			return nil, fmt.Errorf("get unseen passages: %w", err)
		}
		if len(questions) < count {
			questions, err = m.store.GetUnseenPassages(studentID, level, config.DifficultyMin, config.DifficultyMax, passageGroupsFor(count))
			if err != nil {
				return nil, fmt.Errorf("get unseen passages (wide): %w", err)
			}
		}
		return trimToWholeGroups(questions, count), nil
	}

	questions, err := m.store.GetUnseen(studentID, topic, level, minDiff, maxDiff, count)
	if err != nil {
		return nil, fmt.Errorf("get unseen: %w", err)
	}
	if len(questions) < count {
		questions, err = m.store.GetUnseen(studentID, topic, level, config.DifficultyMin, config.DifficultyMax, count)
		if err != nil {
			return nil, fmt.Errorf("get unseen (wide): %w", err)
		}
	}
	return questions, nil
}

// passageGroupsFor over-requests groups so that count questions can usually
// be covered even when some groups are short.
func passageGroupsFor(count int) int {
	groups := count/3 + 1
	if groups < 2 {
		groups = 2
	}
	return groups
}

// trimToWholeGroups takes complete passage groups until adding the next one
// would exceed count. A passage is never split, so the result can fall short
// of count; the gap surfaces as Shortfall.
func trimToWholeGroups(questions []models.Question, count int) []models.Question {
	if len(questions) <= count {
		return questions
	}
	cut := 0
	for cut < len(questions) {
		end := cut + 1
		group := questions[cut].PassageGroup
		for end < len(questions) && questions[end].PassageGroup == group {
			end++
		}
		if end > count {
			break
		}
		cut = end
	}
	return questions[:cut]
}

func (m *Manager) generateInto(ctx context.Context, topic models.Topic, level models.Level, difficulty float64, count int) (int, error) {
	generated, err := m.source.Generate(ctx, topic, level, difficulty, count)
	if err != nil {
		return 0, err
	}
	if len(generated) == 0 {
		return 0, fmt.Errorf("%w: generator returned no usable questions", models.ErrProvider)
	}
	if err := m.store.SaveQuestions(ctx, generated); err != nil {
		return 0, fmt.Errorf("save generated: %w", err)
	}
	if err := m.store.RecordBatch(generated[0].BatchID, topic, level, difficulty, count, len(generated)); err != nil {
		log.Printf("WARN: [pool] record batch %s: %v", generated[0].BatchID, err)
	}
	log.Printf("[pool] generated %d/%d questions for %s/%s at %.1f", len(generated), count, level, topic, difficulty)
	return len(generated), nil
}

// MixedBatch assembles a full section: the section's question count split
// evenly across its topics, remainder to the first topic, then shuffled.
// Reading sections have a single topic so the whole count goes to passages.
func (m *Manager) MixedBatch(ctx context.Context, studentID int64, section config.SectionConfig, level models.Level, difficulties map[models.Topic]float64) (*Batch, error) {
	perTopic := section.QuestionCount / len(section.Topics)
	remainder := section.QuestionCount % len(section.Topics)

	var questions []models.Question
	shortfall := 0
	for i, topic := range section.Topics {
		want := perTopic
		if i == 0 {
			want += remainder
		}
		difficulty, ok := difficulties[topic]
		if !ok {
			difficulty = config.DifficultyDefault
		}
		batch, err := m.FetchBatch(ctx, studentID, topic, level, difficulty, want)
		if err != nil {
			return nil, err
		}
		questions = append(questions, batch.Questions...)
		shortfall += batch.Shortfall
	}

	shuffleKeepingGroups(questions)

	return &Batch{Questions: questions, Shortfall: shortfall}, nil
}

// shuffleKeepingGroups randomizes question order while keeping each passage
// group contiguous and in its original internal order.
func shuffleKeepingGroups(questions []models.Question) {
	type block struct {
		items []models.Question
	}
	var blocks []block
	for i := 0; i < len(questions); {
		j := i + 1
		if questions[i].PassageGroup != "" {
			for j < len(questions) && questions[j].PassageGroup == questions[i].PassageGroup {
				j++
			}
		}
		// Copy the block: it must not alias questions, which is overwritten below.
		items := make([]models.Question, j-i)
		copy(items, questions[i:j])
		blocks = append(blocks, block{items: items})
		i = j
	}
	rand.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })
	idx := 0
	for _, b := range blocks {
		idx += copy(questions[idx:], b.items)
	}
}

// Pregenerate runs one generation batch unconditionally and reports how many
// questions survived validation. Used by the admin pre-generation endpoint.
func (m *Manager) Pregenerate(ctx context.Context, topic models.Topic, level models.Level, difficulty float64, count int) (int, error) {
	if count <= 0 {
		count = m.batchSize
	}
	return m.generateInto(ctx, topic, level, difficulty, count)
}

// Replenish tops up one topic's pool for a student if the unseen count has
// dropped below the minimum. Returns whether a generation ran.
func (m *Manager) Replenish(ctx context.Context, studentID int64, topic models.Topic, level models.Level, difficulty float64) (bool, error) {
	unseen, err := m.store.CountUnseen(studentID, topic, level)
	if err != nil {
		return false, fmt.Errorf("count unseen: %w", err)
	}
	if unseen >= m.minPoolSize {
		return false, nil
	}
	log.Printf("[pool] %s/%s low for student %d: unseen=%d threshold=%d", level, topic, studentID, unseen, m.minPoolSize)
	if _, err := m.generateInto(ctx, topic, level, difficulty, m.batchSize); err != nil {
		if errors.Is(err, models.ErrProvider) {
			log.Printf("WARN: [pool] replenish failed for %s/%s: %v", level, topic, err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReplenishAll sweeps every topic of a level for one student. Used by the
// background worker between sessions so sessions rarely generate inline.
func (m *Manager) ReplenishAll(ctx context.Context, studentID int64, level models.Level, difficulties map[models.Topic]float64) error {
	for _, topic := range models.LevelTopics[level] {
		difficulty, ok := difficulties[topic]
		if !ok {
			difficulty = config.DifficultyDefault
		}
		if _, err := m.Replenish(ctx, studentID, topic, level, difficulty); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Stats reports per-topic unseen counts for a student at a level.
func (m *Manager) Stats(studentID int64, level models.Level) ([]TopicStats, error) {
	topics := models.LevelTopics[level]
	stats := make([]TopicStats, 0, len(topics))
	for _, topic := range topics {
		unseen, err := m.store.CountUnseen(studentID, topic, level)
		if err != nil {
			return nil, fmt.Errorf("count unseen: %w", err)
		}
		stats = append(stats, TopicStats{Topic: topic, UnseenCount: unseen, Low: unseen < m.minPoolSize})
	}
	return stats, nil
}
