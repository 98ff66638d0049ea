package models

import "time"

type SessionMode string

const (
	ModeFullTest        SessionMode = "full_test"
	ModeSectionPractice SessionMode = "section_practice"
	ModeMiniTest        SessionMode = "mini_test"
	ModeQuickDrill      SessionMode = "quick_drill"
)

var ValidModes = map[SessionMode]bool{
	ModeFullTest:        true,
	ModeSectionPractice: true,
	ModeMiniTest:        true,
	ModeQuickDrill:      true,
}

// InstantFeedback reports whether the mode reveals correctness after each
// committed answer.
func (m SessionMode) InstantFeedback() bool {
	return m == ModeQuickDrill || m == ModeMiniTest
}

// Scored reports whether completing the mode produces a ScoreReport.
// Quick drills only feed mastery.
func (m SessionMode) Scored() bool {
	return m == ModeFullTest || m == ModeSectionPractice || m == ModeMiniTest
}

// AnswerRecord is one committed answer within a session attempt.
// Selected is empty for skipped or timed-out questions.
type AnswerRecord struct {
	ID         int64     `json:"id,omitempty"`
	SessionID  int64     `json:"session_id,omitempty"`
	StudentID  int64     `json:"student_id"`
	QuestionID int64     `json:"question_id"`
	Selected   string    `json:"selected,omitempty"`
	Correct    bool      `json:"correct"`
	Seconds    float64   `json:"time_spent_seconds"`
	AnsweredAt time.Time `json:"answered_at"`
}

func (a *AnswerRecord) Skipped() bool { return a.Selected == "" }

// SessionAttempt is the ordered record of one progression run. Transient
// until committed to storage at completion.
type SessionAttempt struct {
	ID             int64          `json:"id"`
	StudentID      int64          `json:"student_id"`
	Level          Level          `json:"level"`
	Grade          int            `json:"grade"`
	Mode           SessionMode    `json:"mode"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Answers        []AnswerRecord `json:"answers,omitempty"`
	ChangedAnswers int            `json:"changed_answers"`

	// Per-section scores, populated at completion for scored modes.
	VerbalRaw              *float64 `json:"verbal_raw,omitempty"`
	VerbalScaled           *int     `json:"verbal_scaled,omitempty"`
	VerbalPercentile       *int     `json:"verbal_percentile,omitempty"`
	QuantitativeRaw        *float64 `json:"quantitative_raw,omitempty"`
	QuantitativeScaled     *int     `json:"quantitative_scaled,omitempty"`
	QuantitativePercentile *int     `json:"quantitative_percentile,omitempty"`
	ReadingRaw             *float64 `json:"reading_raw,omitempty"`
	ReadingScaled          *int     `json:"reading_scaled,omitempty"`
	ReadingPercentile      *int     `json:"reading_percentile,omitempty"`
	TotalScaled            *int     `json:"total_scaled,omitempty"`
}

// SectionScore carries one section's results within a ScoreReport.
type SectionScore struct {
	SectionName  string  `json:"section_name"`
	RawScore     float64 `json:"raw_score"`
	ScaledScore  int     `json:"scaled_score"`
	Percentile   int     `json:"percentile"`
	TotalCount   int     `json:"total_questions"`
	CorrectCount int     `json:"correct_count"`
	WrongCount   int     `json:"wrong_count"`
	SkippedCount int     `json:"skipped_count"`
	TimeSeconds  float64 `json:"time_used_seconds"`
}

// TopicBreakdown aggregates per-topic accuracy within a report.
type TopicBreakdown struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// ScoreReport is produced at completion of full-length, section and mini-test
// modes. Drills do not receive one.
type ScoreReport struct {
	SessionID      int64                    `json:"session_id"`
	Level          Level                    `json:"level"`
	Mode           SessionMode              `json:"mode"`
	Sections       []SectionScore           `json:"sections"`
	TotalScaled    int                      `json:"total_scaled"`
	TopicBreakdown map[Topic]TopicBreakdown `json:"topic_breakdown,omitempty"`
	Recommendation LevelRecommendation      `json:"level_recommendation,omitempty"`
}
