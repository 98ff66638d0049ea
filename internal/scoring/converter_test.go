package scoring

import (
	"testing"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

func answerSet(correct, wrong, skipped int) []models.AnswerRecord {
	var answers []models.AnswerRecord
	for i := 0; i < correct; i++ {
		answers = append(answers, models.AnswerRecord{Selected: "A", Correct: true})
	}
	for i := 0; i < wrong; i++ {
		answers = append(answers, models.AnswerRecord{Selected: "B", Correct: false})
	}
	for i := 0; i < skipped; i++ {
		answers = append(answers, models.AnswerRecord{})
	}
	return answers
}

func TestCalculateRawScore_ElementaryNoPenalty(t *testing.T) {
	rs := CalculateRawScore(answerSet(20, 8, 2), models.LevelElementary)

	if rs.Raw != 20 {
		t.Errorf("raw = %f, want 20 (no penalty at elementary)", rs.Raw)
	}
	if rs.Correct != 20 || rs.Wrong != 8 || rs.Skipped != 2 {
		t.Errorf("counts = %d/%d/%d, want 20/8/2", rs.Correct, rs.Wrong, rs.Skipped)
	}
}

func TestCalculateRawScore_MiddlePenalty(t *testing.T) {
	rs := CalculateRawScore(answerSet(20, 8, 2), models.LevelMiddle)

	want := 20.0 - 8*0.25
	if rs.Raw != want {
		t.Errorf("raw = %f, want %f", rs.Raw, want)
	}
}

func TestCalculateRawScore_NeverNegative(t *testing.T) {
	rs := CalculateRawScore(answerSet(0, 10, 0), models.LevelMiddle)
	if rs.Raw != 0 {
		t.Errorf("raw = %f, want 0 (floored)", rs.Raw)
	}
}

func TestScaledScore_Bounds(t *testing.T) {
	tests := []struct {
		raw    float64
		maxRaw int
		level  models.Level
		want   int
	}{
		{0, 30, models.LevelElementary, 300},
		{30, 30, models.LevelElementary, 600},
		{15, 30, models.LevelElementary, 450},
		{0, 25, models.LevelMiddle, 440},
		{25, 25, models.LevelMiddle, 710},
		{-5, 30, models.LevelElementary, 300}, // clamped below
		{99, 30, models.LevelElementary, 600}, // clamped above
	}

	for _, tt := range tests {
		got := ScaledScore(tt.raw, tt.maxRaw, tt.level)
		if got != tt.want {
			t.Errorf("ScaledScore(%f, %d, %s) = %d, want %d", tt.raw, tt.maxRaw, tt.level, got, tt.want)
		}
	}
}

func TestScaledScore_Monotonic(t *testing.T) {
	for _, level := range []models.Level{models.LevelElementary, models.LevelMiddle} {
		prev := -1
		for raw := 0; raw <= 40; raw++ {
			got := ScaledScore(float64(raw), 40, level)
			if got < prev {
				t.Fatalf("%s: scaled score decreased at raw=%d: %d < %d", level, raw, got, prev)
			}
			prev = got
		}
	}
}

func TestConvertScore_WithinPublishedRange(t *testing.T) {
	for _, level := range []models.Level{models.LevelElementary, models.LevelMiddle} {
		cfg := config.LevelConfigs[level]
		for _, section := range cfg.Sections {
			for raw := 0.0; raw <= float64(section.QuestionCount); raw += 0.25 {
				scaled, pct := ConvertScore(raw, section, level)
				if scaled < cfg.ScoreMin || scaled > cfg.ScoreMax {
					t.Fatalf("%s/%s raw=%f: scaled %d outside [%d, %d]",
						level, section.Name, raw, scaled, cfg.ScoreMin, cfg.ScoreMax)
				}
				if pct < 1 || pct > 99 {
					t.Fatalf("%s/%s raw=%f: percentile %d outside [1, 99]", level, section.Name, raw, pct)
				}
			}
		}
	}
}

func TestPercentile_NearestBelowAndClamp(t *testing.T) {
	// Elementary verbal table: {450, 41}, {480, 55}
	if got := Percentile(450, "Verbal", models.LevelElementary); got != 41 {
		t.Errorf("Percentile(450) = %d, want 41 (exact entry)", got)
	}
	if got := Percentile(465, "Verbal", models.LevelElementary); got != 41 {
		t.Errorf("Percentile(465) = %d, want 41 (nearest below)", got)
	}
	if got := Percentile(200, "Verbal", models.LevelElementary); got != 1 {
		t.Errorf("Percentile(200) = %d, want 1 (clamped to first entry)", got)
	}
	if got := Percentile(999, "Verbal", models.LevelElementary); got != 99 {
		t.Errorf("Percentile(999) = %d, want 99 (clamped to last entry)", got)
	}
}

func TestPercentile_Monotonic(t *testing.T) {
	sections := map[models.Level][]string{
		models.LevelElementary: {"Verbal", "Math", "Reading"},
		models.LevelMiddle:     {"Verbal", "Quantitative 1", "Reading"},
	}
	for level, names := range sections {
		cfg := config.LevelConfigs[level]
		for _, name := range names {
			prev := 0
			for s := cfg.ScoreMin; s <= cfg.ScoreMax; s++ {
				got := Percentile(s, name, level)
				if got < prev {
					t.Fatalf("%s/%s: percentile decreased at scaled=%d: %d < %d", level, name, s, got, prev)
				}
				prev = got
			}
		}
	}
}

func TestTopicBreakdown(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Topic: models.TopicSynonym},
		{ID: 2, Topic: models.TopicSynonym},
		{ID: 3, Topic: models.TopicArithmetic},
	}
	answers := []models.AnswerRecord{
		{QuestionID: 1, Selected: "A", Correct: true},
		{QuestionID: 2, Selected: "B", Correct: false},
		{QuestionID: 3, Selected: "C", Correct: true},
		{QuestionID: 99, Selected: "A", Correct: true}, // unknown question ignored
	}

	breakdown := TopicBreakdown(answers, questions)

	syn := breakdown[models.TopicSynonym]
	if syn.Correct != 1 || syn.Total != 2 || syn.Accuracy != 0.5 {
		t.Errorf("synonym breakdown = %+v, want 1/2 at 0.5", syn)
	}
	arith := breakdown[models.TopicArithmetic]
	if arith.Correct != 1 || arith.Total != 1 || arith.Accuracy != 1.0 {
		t.Errorf("arithmetic breakdown = %+v, want 1/1 at 1.0", arith)
	}
	if len(breakdown) != 2 {
		t.Errorf("breakdown has %d topics, want 2", len(breakdown))
	}
}

func TestSectionScoreField(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Verbal", "verbal"},
		{"Quantitative 1", "quantitative"},
		{"Quantitative 2", "quantitative"},
		{"Math", "quantitative"},
		{"Reading", "reading"},
		{"Mystery", "verbal"},
	}
	for _, tt := range tests {
		if got := SectionScoreField(tt.name); got != tt.want {
			t.Errorf("SectionScoreField(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
