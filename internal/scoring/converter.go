// Package scoring converts raw test performance into scaled scores and
// estimated percentiles. Everything here is pure: inputs are pre-validated by
// callers and out-of-range values are clamped, never rejected.
package scoring

import (
	"math"
	"strings"

	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// RawScore summarizes the raw outcome of one section's answers.
type RawScore struct {
	Raw     float64
	Correct int
	Wrong   int
	Skipped int
}

// CalculateRawScore tallies a section's answers. Middle level subtracts the
// wrong-answer penalty (0.25 per incorrect); skipped questions cost nothing
// at either level. The result never goes below zero.
func CalculateRawScore(answers []models.AnswerRecord, level models.Level) RawScore {
	cfg := config.LevelConfigs[level]

	var rs RawScore
	for _, a := range answers {
		switch {
		case a.Skipped():
			rs.Skipped++
		case a.Correct:
			rs.Correct++
		default:
			rs.Wrong++
		}
	}

	rs.Raw = float64(rs.Correct)
	if cfg.HasPenalty {
		rs.Raw -= float64(rs.Wrong) * cfg.Penalty
	}
	if rs.Raw < 0 {
		rs.Raw = 0
	}
	return rs
}

// ConvertScore maps a raw score to a scaled score and percentile for the
// given section and level. The raw score is clamped to [0, section ceiling],
// linearly interpolated into the level's published scaled range, rounded, and
// the percentile looked up from the static reference table.
func ConvertScore(rawScore float64, section config.SectionConfig, level models.Level) (scaled int, percentile int) {
	scaled = ScaledScore(rawScore, section.QuestionCount, level)
	percentile = Percentile(scaled, section.Name, level)
	return scaled, percentile
}

// ScaledScore interpolates rawScore into the level's scaled range using
// maxRaw as the interpolation domain.
func ScaledScore(rawScore float64, maxRaw int, level models.Level) int {
	cfg, ok := config.LevelConfigs[level]
	if !ok {
		return 0
	}
	if maxRaw <= 0 {
		return cfg.ScoreMin
	}

	fraction := rawScore / float64(maxRaw)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	scaled := float64(cfg.ScoreMin) + fraction*float64(cfg.ScoreMax-cfg.ScoreMin)
	return int(math.Round(scaled))
}

// TopicBreakdown computes per-topic accuracy over a set of answers.
func TopicBreakdown(answers []models.AnswerRecord, questions []models.Question) map[models.Topic]models.TopicBreakdown {
	byID := make(map[int64]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	out := make(map[models.Topic]models.TopicBreakdown)
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		stats := out[q.Topic]
		stats.Total++
		if a.Correct {
			stats.Correct++
		}
		out[q.Topic] = stats
	}

	for topic, stats := range out {
		if stats.Total > 0 {
			stats.Accuracy = float64(stats.Correct) / float64(stats.Total)
			out[topic] = stats
		}
	}
	return out
}

// SectionScoreField maps a section name onto the session score field it feeds.
// Quantitative 1 and 2 both land on "quantitative" and are combined at report
// time.
func SectionScoreField(sectionName string) string {
	name := strings.ToLower(sectionName)
	switch {
	case strings.Contains(name, "verbal"):
		return "verbal"
	case strings.Contains(name, "quant"), strings.Contains(name, "math"):
		return "quantitative"
	case strings.Contains(name, "reading"):
		return "reading"
	default:
		return "verbal"
	}
}
