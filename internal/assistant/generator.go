package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mind-engage/quizbuilder/internal/quiz"
)

// Reference supplies optional background text for a topic.
type Reference interface {
	Lookup(ctx context.Context, topic string) string
}

// Generator asks the model for multiple-choice questions, grounded on
// reference text when some is available.
type Generator struct {
	llm     llms.Model
	ref     Reference
	timeout time.Duration
}

func NewGenerator(llm llms.Model, ref Reference, timeout time.Duration) *Generator {
	return &Generator{llm: llm, ref: ref, timeout: timeout}
}

var errEmptyGeneration = errors.New("model returned no questions")

// Generate returns at most n question drafts. Validation happens when the
// drafts are stored.
func (g *Generator) Generate(ctx context.Context, topic string, n int) ([]quiz.QuestionDraft, error) {
	var reference string
	if g.ref != nil {
		reference = g.ref.Lookup(ctx, topic)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, generatorSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, generationPrompt(SanitizeForModel(topic), n, reference)),
	}, llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return nil, errEmptyGeneration
	}
	qs, err := parseQuestions(resp.Choices[0].Content)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, errEmptyGeneration
	}
	if len(qs) > n {
		qs = qs[:n]
	}
	return qs, nil
}

// parseQuestions accepts either a bare array or {"questions": [...]}.
func parseQuestions(content string) ([]quiz.QuestionDraft, error) {
	raw := bytes.TrimSpace([]byte(content))
	var qs []quiz.QuestionDraft
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &qs); err != nil {
			return nil, fmt.Errorf("decode generated questions: %w", err)
		}
		return qs, nil
	}
	var wrapped struct {
		Questions []quiz.QuestionDraft `json:"questions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	return wrapped.Questions, nil
}
