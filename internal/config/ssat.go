package config

import "github.com/ssat-prep/backend/internal/models"

// SectionConfig describes one timed section of an SSAT practice test.
type SectionConfig struct {
	Name          string
	QuestionCount int
	TimeMinutes   int
	Topics        []models.Topic
}

// LevelConfig describes the structure and scoring range of a test level.
type LevelConfig struct {
	Level       models.Level
	DisplayName string
	GradeMin    int
	GradeMax    int
	Sections    []SectionConfig
	ScoreMin    int
	ScoreMax    int
	HasPenalty  bool
	Penalty     float64
}

var ElementarySections = []SectionConfig{
	{Name: "Math", QuestionCount: 30, TimeMinutes: 30, Topics: []models.Topic{models.TopicArithmetic, models.TopicGeometry, models.TopicWordProblem}},
	{Name: "Verbal", QuestionCount: 30, TimeMinutes: 20, Topics: []models.Topic{models.TopicSynonym, models.TopicAnalogy}},
	{Name: "Reading", QuestionCount: 28, TimeMinutes: 30, Topics: []models.Topic{models.TopicReadingComp}},
}

var MiddleSections = []SectionConfig{
	{Name: "Quantitative 1", QuestionCount: 25, TimeMinutes: 30, Topics: []models.Topic{models.TopicArithmetic, models.TopicAlgebra, models.TopicGeometry}},
	{Name: "Reading", QuestionCount: 40, TimeMinutes: 40, Topics: []models.Topic{models.TopicReadingComp}},
	{Name: "Verbal", QuestionCount: 60, TimeMinutes: 30, Topics: []models.Topic{models.TopicSynonym, models.TopicAnalogy}},
	{Name: "Quantitative 2", QuestionCount: 25, TimeMinutes: 30, Topics: []models.Topic{models.TopicArithmetic, models.TopicAlgebra, models.TopicGeometry}},
}

var LevelConfigs = map[models.Level]LevelConfig{
	models.LevelElementary: {
		Level:       models.LevelElementary,
		DisplayName: "Elementary Level",
		GradeMin:    3,
		GradeMax:    4,
		Sections:    ElementarySections,
		ScoreMin:    300,
		ScoreMax:    600,
		HasPenalty:  false,
		Penalty:     0,
	},
	models.LevelMiddle: {
		Level:       models.LevelMiddle,
		DisplayName: "Middle Level",
		GradeMin:    5,
		GradeMax:    7,
		Sections:    MiddleSections,
		ScoreMin:    440,
		ScoreMax:    710,
		HasPenalty:  true,
		Penalty:     0.25,
	},
}

// Difficulty policy constants. Difficulty is continuous on [1.0, 5.0] and moves
// in half-point steps at session boundaries only.
const (
	DifficultyMin     = 1.0
	DifficultyMax     = 5.0
	DifficultyDefault = 1.0
	DifficultyStep    = 0.5

	DifficultyUpThreshold   = 0.85
	DifficultyDownThreshold = 0.50
	MinQuestionsForAdjust   = 5
)

// Level-change recommendation thresholds.
const (
	MasteryAccuracy     = 0.85
	MasteryMinQuestions = 20
	MasteryPercentile   = 85
	MasteryTestCount    = 3

	LevelDownPercentile = 40
	LevelDownTestCount  = 2
)

// Rolling-window size for per-topic accuracy.
const MasteryWindowSize = 50

// Drill bounds.
const (
	DrillMinQuestions     = 10
	DrillMaxQuestions     = 20
	DrillDefaultQuestions = 10
)
