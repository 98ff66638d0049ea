package students

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/mastery"
	"github.com/ssat-prep/backend/internal/models"
)

// ProgressInput aggregates everything the recommendation rules look at.
// RecentFullTestTotals and RecentFullTestPercentiles are newest first.
type ProgressInput struct {
	TotalAnswered        int
	TotalCorrect         int
	FullTests            int
	Mastery              []models.MasterySnapshot
	RecentFullTestTotals []int
}

// Topic accuracy bands for the study recommendations.
const (
	weakAccuracy   = 0.60
	strongAccuracy = 0.85

	weakMinAttempts   = 5
	strongMinAttempts = 10
)

// progressRule is one row of the recommendation table. Rules run top to
// bottom and each may contribute one line; an exclusive rule that fires
// suppresses everything below it.
type progressRule struct {
	name      string
	exclusive bool
	apply     func(ProgressInput) (string, bool)
}

var progressRules = []progressRule{
	{
		name:      "first_attempt",
		exclusive: true,
		apply: func(in ProgressInput) (string, bool) {
			if in.TotalAnswered > 0 {
				return "", false
			}
			return "Take your first practice test to see where you stand!", true
		},
	},
	{
		name: "no_full_test",
		apply: func(in ProgressInput) (string, bool) {
			if in.FullTests > 0 {
				return "", false
			}
			return "Try a full practice test to get a complete score report.", true
		},
	},
	{
		name: "weak_topics",
		apply: func(in ProgressInput) (string, bool) {
			topics := topicsInBand(in.Mastery, weakMinAttempts, 0, weakAccuracy)
			if len(topics) == 0 {
				return "", false
			}
			return fmt.Sprintf("Focus on: %s - try quick drills to build skills.", strings.Join(topics, ", ")), true
		},
	},
	{
		name: "nearly_there_topics",
		apply: func(in ProgressInput) (string, bool) {
			topics := topicsInBand(in.Mastery, weakMinAttempts, weakAccuracy, strongAccuracy)
			if len(topics) == 0 {
				return "", false
			}
			return fmt.Sprintf("Keep practicing: %s - you're getting closer to mastery!", strings.Join(topics, ", ")), true
		},
	},
	{
		name: "score_trend_up",
		apply: func(in ProgressInput) (string, bool) {
			if len(in.RecentFullTestTotals) < 2 || in.RecentFullTestTotals[0] <= in.RecentFullTestTotals[1] {
				return "", false
			}
			return fmt.Sprintf("Your scores are trending up! (+%d points)", in.RecentFullTestTotals[0]-in.RecentFullTestTotals[1]), true
		},
	},
	{
		name: "score_trend_down",
		apply: func(in ProgressInput) (string, bool) {
			if len(in.RecentFullTestTotals) < 2 || in.RecentFullTestTotals[0] >= in.RecentFullTestTotals[1] {
				return "", false
			}
			return "Scores dipped slightly. Focus on weak areas with targeted drills.", true
		},
	},
	{
		name: "strong_topics",
		apply: func(in ProgressInput) (string, bool) {
			topics := topicsInBand(in.Mastery, strongMinAttempts, strongAccuracy, 1.01)
			if len(topics) == 0 {
				return "", false
			}
			return fmt.Sprintf("Great mastery in: %s!", strings.Join(topics, ", ")), true
		},
	},
}

// Recommendations evaluates the rule table in order. A catch-all line keeps
// the list from ever being empty.
func Recommendations(in ProgressInput) []string {
	var recs []string
	for _, rule := range progressRules {
		line, fired := rule.apply(in)
		if !fired {
			continue
		}
		recs = append(recs, line)
		if rule.exclusive {
			return recs
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Keep practicing regularly - consistency is key!")
	}
	return recs
}

// topicsInBand lists display names of topics whose lifetime accuracy sits in
// [low, high), ordered by name for stable output.
func topicsInBand(snapshots []models.MasterySnapshot, minAttempts int, low, high float64) []string {
	var out []string
	for _, m := range snapshots {
		if m.TotalAttempted < minAttempts {
			continue
		}
		acc := float64(m.TotalCorrect) / float64(m.TotalAttempted)
		if acc >= low && acc < high {
			out = append(out, m.DisplayName)
		}
	}
	sort.Strings(out)
	return out
}

// AttemptSource is the slice of session storage the progress layer reads.
type AttemptSource interface {
	AggregateCounts(studentID int64) (answered, correct int, err error)
	ListAttempts(studentID int64, limit int) ([]models.SessionAttempt, error)
	RecentFullTestPercentiles(studentID int64, limit int) ([]int, error)
}

// MasterySource supplies per-topic snapshots.
type MasterySource interface {
	Snapshot(studentID int64) ([]models.MasterySnapshot, error)
}

// Overview is the dashboard payload for one student.
type Overview struct {
	Student             models.Student           `json:"student"`
	TotalAnswered       int                      `json:"total_answered"`
	TotalCorrect        int                      `json:"total_correct"`
	Mastery             []models.MasterySnapshot `json:"mastery"`
	RecentSessions      []models.SessionAttempt  `json:"recent_sessions"`
	Recommendations     []string                 `json:"recommendations"`
	LevelRecommendation models.LevelRecommendation `json:"level_recommendation"`
}

type Progress struct {
	students *Store
	attempts AttemptSource
	masteries MasterySource
}

func NewProgress(students *Store, attempts AttemptSource, masteries MasterySource) *Progress {
	return &Progress{students: students, attempts: attempts, masteries: masteries}
}

const recentSessionLimit = 20

func (p *Progress) Overview(studentID int64) (*Overview, error) {
	student, err := p.students.Get(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("%w: student %d not found", models.ErrValidation, studentID)
	}

	answered, correct, err := p.attempts.AggregateCounts(studentID)
	if err != nil {
		return nil, err
	}
	sessions, err := p.attempts.ListAttempts(studentID, recentSessionLimit)
	if err != nil {
		return nil, err
	}
	snapshots, err := p.masteries.Snapshot(studentID)
	if err != nil {
		return nil, err
	}
	percentiles, err := p.attempts.RecentFullTestPercentiles(studentID, config.MasteryTestCount)
	if err != nil {
		return nil, err
	}

	in := ProgressInput{
		TotalAnswered: answered,
		TotalCorrect:  correct,
		Mastery:       snapshots,
	}
	for _, s := range sessions {
		if s.Mode == models.ModeFullTest && s.TotalScaled != nil {
			in.FullTests++
			in.RecentFullTestTotals = append(in.RecentFullTestTotals, *s.TotalScaled)
		}
	}

	return &Overview{
		Student:         *student,
		TotalAnswered:   answered,
		TotalCorrect:    correct,
		Mastery:         snapshots,
		RecentSessions:  sessions,
		Recommendations: Recommendations(in),
		LevelRecommendation: mastery.RecommendLevelChange(mastery.AggregateStats{
			TotalAnswered:       answered,
			TotalCorrect:        correct,
			FullTestPercentiles: percentiles,
		}),
	}, nil
}

// ApplyLevelChange moves a student one step up or down the level/grade
// ladder. Direction accepts the recommendation flags.
func (p *Progress) ApplyLevelChange(studentID int64, direction models.LevelRecommendation) (*models.Student, error) {
	student, err := p.students.Get(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("%w: student %d not found", models.ErrValidation, studentID)
	}

	var (
		level models.Level
		grade int
		ok    bool
	)
	switch direction {
	case models.RecommendLevelUp:
		level, grade, ok = mastery.NextLevelGrade(student.Level, student.Grade)
	case models.RecommendLevelDown:
		level, grade, ok = mastery.PrevLevelGrade(student.Level, student.Grade)
	default:
		return nil, fmt.Errorf("%w: direction must be level_up or level_down", models.ErrValidation)
	}
	if !ok {
		return nil, fmt.Errorf("%w: student %d is already at the %s end of the ladder", models.ErrValidation, studentID, direction)
	}

	if err := p.students.UpdateLevelGrade(studentID, level, grade); err != nil {
		return nil, err
	}
	log.Printf("[progress] student %d moved to %s grade %d (%s)", studentID, level, grade, direction)
	student.Level = level
	student.Grade = grade
	return student, nil
}
