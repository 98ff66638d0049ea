package generator

import (
	"fmt"
	"strings"

	"github.com/ssat-prep/backend/internal/models"
)

// topicGuidance gives the model topic-specific instructions.
var topicGuidance = map[models.Topic]string{
	models.TopicSynonym:     "Each question presents a single capitalized word; the choices are candidate synonyms. Exactly one choice is the best synonym; distractors should be plausible near-misses (related meaning, same register, or common confusions).",
	models.TopicAnalogy:     "Each question presents a word pair relationship (e.g. 'Kitten is to cat as...'). The correct choice completes the same relationship; distractors use related but different relationships.",
	models.TopicArithmetic:  "Whole-number and fraction computation, percentages, ratios, and estimation. No calculator is assumed; arithmetic must work out to clean values.",
	models.TopicAlgebra:     "Simple equations, expressions, patterns, and word-to-symbol translation appropriate for middle school. One unknown at most.",
	models.TopicGeometry:    "Perimeter, area, angles, coordinate basics, and spatial reasoning. Describe figures in words; never reference an image.",
	models.TopicWordProblem: "Multi-step story problems using everyday contexts (money, time, measurement). The arithmetic must be unambiguous from the text.",
}

func levelDescription(level models.Level) string {
	if level == models.LevelMiddle {
		return "Middle Level SSAT (grades 5-7)"
	}
	return "Elementary Level SSAT (grades 3-4)"
}

func difficultyDescription(difficulty float64) string {
	switch {
	case difficulty < 2.0:
		return "easy: straightforward single-step items a typical student answers correctly"
	case difficulty < 3.0:
		return "medium-easy: mostly single-step with an occasional twist"
	case difficulty < 4.0:
		return "medium: requires careful reading or two steps of reasoning"
	case difficulty < 4.5:
		return "hard: multi-step reasoning with attractive distractors"
	default:
		return "very hard: the most demanding items that still stay on-level"
	}
}

// SystemPrompt is the per-topic generation persona.
func SystemPrompt(topic models.Topic, level models.Level) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s item writer producing %s practice questions.\n\n",
		levelDescription(level), models.TopicDisplay[topic])
	b.WriteString(topicGuidance[topic])
	b.WriteString(`

Output STRICT JSON only, no markdown fences, matching:
{"questions":[{"stem":"...","choices":[{"letter":"A","text":"..."},...],"correct_answer":"A","explanation":"..."}]}

Rules:
- Every question has exactly 5 choices lettered A through E, in order.
- correct_answer is one of the choice letters.
- explanation teaches why the correct choice wins and the others lose.
- Vary the correct letter across the batch; never cluster on one letter.
- Every stem must be self-contained and age-appropriate.`)
	return b.String()
}

// BuildUserPrompt requests a batch of one topic at one difficulty.
func BuildUserPrompt(topic models.Topic, level models.Level, difficulty float64, count int) string {
	return fmt.Sprintf(
		"Generate %d %s questions for the %s.\nTarget difficulty %.1f on a 1-5 scale (%s).\nReturn the JSON object only.",
		count, models.TopicDisplay[topic], levelDescription(level),
		difficulty, difficultyDescription(difficulty))
}

// RCSystemPrompt is the passage-group generation persona.
func RCSystemPrompt(level models.Level) string {
	wordCount := 150
	if level == models.LevelMiddle {
		wordCount = 300
	}
	return fmt.Sprintf(`You are an expert %s reading item writer.

Write original passages of about %d words (fiction, science, history, or biography) with comprehension questions covering main idea, detail, inference, and vocabulary in context.

Output STRICT JSON only, no markdown fences, matching:
{"passages":[{"content":"...","questions":[{"stem":"...","choices":[{"letter":"A","text":"..."},...],"correct_answer":"A","explanation":"..."}]}]}

Rules:
- Every question has exactly 5 choices lettered A through E, in order.
- Each question must be answerable from the passage alone.
- Vary the correct letter; never cluster on one letter.`,
		levelDescription(level), wordCount)
}

// BuildRCUserPrompt requests passage groups with a fixed follow-up count.
func BuildRCUserPrompt(level models.Level, difficulty float64, numPassages, questionsPerPassage int) string {
	return fmt.Sprintf(
		"Generate %d reading comprehension passages for the %s, each with %d questions.\nTarget difficulty %.1f on a 1-5 scale (%s).\nReturn the JSON object only.",
		numPassages, levelDescription(level), questionsPerPassage,
		difficulty, difficultyDescription(difficulty))
}
