package scoring

import (
	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// percentileEntry pairs a scaled score with its estimated percentile.
// Entries are ordered by score and percentiles are monotonic non-decreasing.
type percentileEntry struct {
	Score      int
	Percentile int
}

// Static reference tables keyed by level then section score field. Lookup is
// nearest-below with clamping at both ends; no extrapolation.
var percentileTables = map[models.Level]map[string][]percentileEntry{
	models.LevelElementary: {
		"verbal": {
			{300, 1}, {330, 3}, {360, 8}, {390, 16}, {420, 27},
			{450, 41}, {480, 55}, {510, 68}, {540, 80}, {570, 91}, {600, 99},
		},
		"quantitative": {
			{300, 1}, {330, 4}, {360, 10}, {390, 19}, {420, 30},
			{450, 44}, {480, 58}, {510, 71}, {540, 82}, {570, 92}, {600, 99},
		},
		"reading": {
			{300, 1}, {330, 3}, {360, 9}, {390, 17}, {420, 28},
			{450, 42}, {480, 56}, {510, 69}, {540, 81}, {570, 91}, {600, 99},
		},
	},
	models.LevelMiddle: {
		"verbal": {
			{440, 1}, {470, 4}, {500, 11}, {530, 21}, {560, 34},
			{590, 48}, {620, 62}, {650, 75}, {680, 87}, {710, 99},
		},
		"quantitative": {
			{440, 1}, {470, 5}, {500, 13}, {530, 24}, {560, 37},
			{590, 51}, {620, 64}, {650, 77}, {680, 88}, {710, 99},
		},
		"reading": {
			{440, 1}, {470, 4}, {500, 12}, {530, 22}, {560, 35},
			{590, 49}, {620, 63}, {650, 76}, {680, 87}, {710, 99},
		},
	},
}

// Percentile looks up the estimated percentile for a scaled score. Scores
// below the first entry clamp to its percentile, scores above the last clamp
// likewise; between entries the nearest entry at or below the score wins.
func Percentile(scaledScore int, sectionName string, level models.Level) int {
	tables, ok := percentileTables[level]
	if !ok {
		return fallbackPercentile(scaledScore, level)
	}
	table, ok := tables[SectionScoreField(sectionName)]
	if !ok || len(table) == 0 {
		return fallbackPercentile(scaledScore, level)
	}

	if scaledScore <= table[0].Score {
		return table[0].Percentile
	}
	if scaledScore >= table[len(table)-1].Score {
		return table[len(table)-1].Percentile
	}

	result := table[0].Percentile
	for _, e := range table {
		if e.Score > scaledScore {
			break
		}
		result = e.Percentile
	}
	return result
}

// fallbackPercentile estimates a percentile linearly across the level's
// scaled range when no table applies.
func fallbackPercentile(scaledScore int, level models.Level) int {
	cfg, ok := config.LevelConfigs[level]
	if !ok {
		return 50
	}
	if scaledScore <= cfg.ScoreMin {
		return 1
	}
	if scaledScore >= cfg.ScoreMax {
		return 99
	}
	fraction := float64(scaledScore-cfg.ScoreMin) / float64(cfg.ScoreMax-cfg.ScoreMin)
	p := int(fraction*98 + 1)
	if p < 1 {
		p = 1
	}
	if p > 99 {
		p = 99
	}
	return p
}
