// Package generator produces candidate exam questions through an LLM and
// validates them into the strict Question shape before anything downstream
// sees them.
package generator

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/google/uuid"
	"github.com/ssat-prep/backend/internal/config"
	"github.com/ssat-prep/backend/internal/models"
)

// LLMClient is the interface both client implementations satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Generator wraps an LLMClient with SSAT batch methods. Calls are blocking,
// single-request/single-response; a malformed response is a full failure of
// that call and is never mixed into the pool.
type Generator struct {
	llm   LLMClient
	model string
}

func NewGenerator(settings config.Settings) *Generator {
	if settings.MockGenerator {
		log.Println("Generator using mock data")
		return &Generator{llm: NewMockClient(), model: "mock"}
	}
	log.Println("Generator using Anthropic API:", settings.AnthropicModel)
	return &Generator{
		llm:   NewAPIClient(settings.AnthropicModel),
		model: settings.AnthropicModel,
	}
}

func NewWithClient(llm LLMClient, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

func (g *Generator) ModelName() string {
	return g.model
}

// Generate requests count questions of one topic at the given difficulty.
// Reading comprehension is generated as passage groups; other topics as flat
// batches. Items failing schema validation are dropped individually.
func (g *Generator) Generate(ctx context.Context, topic models.Topic, level models.Level, difficulty float64, count int) ([]models.Question, error) {
	batchID := uuid.NewString()[:8]

	var systemPrompt, userPrompt string
	if topic == models.TopicReadingComp {
		passages := count / questionsPerPassage
		if passages < 1 {
			passages = 1
		}
		systemPrompt = RCSystemPrompt(level)
		userPrompt = BuildRCUserPrompt(level, difficulty, passages, questionsPerPassage)
	} else {
		systemPrompt = SystemPrompt(topic, level)
		userPrompt = BuildUserPrompt(topic, level, difficulty, count)
	}

	resp, err := g.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProvider, err)
	}

	questions, err := ParseBatch(resp.Content, topic, level, difficulty, batchID)
	if err != nil {
		return nil, err
	}

	log.Printf("[generator] batch=%s topic=%s level=%s difficulty=%.1f: %d questions accepted",
		batchID, topic, level, difficulty, len(questions))
	return questions, nil
}

// Passage groups carry a fixed follow-up count.
const questionsPerPassage = 4

// ── APIClient — Anthropic SDK ──────────────────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   8192,
		Temperature: param.NewOpt(0.8),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	// Single attempt: retry policy belongs to the caller, and a timeout
	// surfaces as an ordinary provider failure.
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API: %w", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	return &LLMResponse{
		Content:      buildMockJSON(),
		PromptTokens: 1200,
		OutputTokens: 2500,
	}, nil
}

func buildMockJSON() string {
	letters := []string{"A", "B", "C", "D", "E"}
	questions := "["
	for i := 0; i < 10; i++ {
		correct := letters[i%5]
		if i > 0 {
			questions += ","
		}
		choices := "["
		for j, l := range letters {
			if j > 0 {
				choices += ","
			}
			choices += fmt.Sprintf(`{"letter":%q,"text":"[Mock] choice %s for item %d"}`, l, l, i+1)
		}
		choices += "]"
		questions += fmt.Sprintf(
			`{"stem":"[Mock] Practice question %d: which choice is marked correct?","choices":%s,"correct_answer":%q,"explanation":"[Mock] Choice %s is marked correct in this mock item."}`,
			i+1, choices, correct, correct)
	}
	questions += "]"

	// One mock passage group so reading comprehension works offline too.
	passage := fmt.Sprintf(
		`[{"content":"[Mock] A short passage about a lighthouse keeper and the storm that tested the town's patience.","questions":%s}]`,
		questions)
	return fmt.Sprintf(`{"questions":%s,"passages":%s}`, questions, passage)
}
