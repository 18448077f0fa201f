// Package assistant runs the instructor chat assistant: a bounded loop in
// which the model may call a closed set of quiz tools on the caller's behalf.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mind-engage/quizbuilder/internal/events"
)

var (
	ErrUpstream   = errors.New("ai service error")
	ErrRoundLimit = errors.New("tool round limit reached")
)

const (
	DefaultMaxRounds = 8
	DefaultTimeout   = 60 * time.Second
)

// Caller identifies who the tools act for. It is set by the server from the
// authenticated session.
type Caller struct {
	UserID string
	Theme  string
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type Reply struct {
	Response    string  `json:"response"`
	ActionTaken *string `json:"action_taken"`
	Data        any     `json:"data"`
}

type Assistant struct {
	llm       llms.Model
	tools     *toolset
	audit     *events.Repo
	maxRounds int
	timeout   time.Duration
	log       *slog.Logger
}

type Option func(*Assistant)

func WithMaxRounds(n int) Option         { return func(a *Assistant) { a.maxRounds = n } }
func WithTimeout(d time.Duration) Option { return func(a *Assistant) { a.timeout = d } }
func WithLogger(l *slog.Logger) Option   { return func(a *Assistant) { a.log = l } }
func WithAuditLog(r *events.Repo) Option { return func(a *Assistant) { a.audit = r } }

func New(llm llms.Model, quizzes QuizStore, stats StatsSource, gen QuestionSource, opts ...Option) *Assistant {
	a := &Assistant{
		llm:       llm,
		tools:     &toolset{quizzes: quizzes, stats: stats, gen: gen},
		maxRounds: DefaultMaxRounds,
		timeout:   DefaultTimeout,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Chat sends the conversation to the model and executes tool calls until the
// model answers in text. More than maxRounds tool rounds fail with
// ErrRoundLimit.
func (a *Assistant) Chat(ctx context.Context, caller Caller, message string, history []Turn) (*Reply, error) {
	msgs := transcript(caller.Theme, message, history)

	var (
		lastTool string
		lastData any
	)
	for round := 0; ; round++ {
		choice, err := a.complete(ctx, msgs)
		if err != nil {
			return nil, err
		}
		if len(choice.ToolCalls) == 0 {
			return &Reply{Response: choice.Content, ActionTaken: optional(lastTool), Data: lastData}, nil
		}
		if round >= a.maxRounds {
			a.log.Warn("assistant round limit", "user", caller.UserID, "rounds", round)
			return nil, ErrRoundLimit
		}

		ai := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			ai.Parts = append(ai.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			ai.Parts = append(ai.Parts, tc)
		}
		msgs = append(msgs, ai)

		for _, tc := range choice.ToolCalls {
			name, args := "", ""
			if tc.FunctionCall != nil {
				name, args = tc.FunctionCall.Name, tc.FunctionCall.Arguments
			}
			payload := a.run(ctx, caller, name, args)
			lastTool, lastData = name, payload

			content, err := json.Marshal(payload)
			if err != nil {
				content, _ = json.Marshal(errorResult{Error: err.Error()})
			}
			msgs = append(msgs, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       name,
					Content:    string(content),
				}},
			})
		}
	}
}

func transcript(theme, message string, history []Turn) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(history)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt(theme)))
	for _, t := range history {
		if t.Role == "user" {
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, SanitizeForModel(t.Content)))
			continue
		}
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeAI, t.Content))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, SanitizeForModel(message)))
}

func (a *Assistant) complete(ctx context.Context, msgs []llms.MessageContent) (*llms.ContentChoice, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := a.llm.GenerateContent(ctx, msgs, llms.WithTools(Tools))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return resp.Choices[0], nil
}

// run executes one tool call and always produces a payload for the model.
func (a *Assistant) run(ctx context.Context, caller Caller, name, args string) any {
	start := time.Now()
	payload, err := a.tools.execute(ctx, caller.UserID, ToolName(name), args)
	if err != nil {
		payload = errorResult{Error: err.Error()}
	}
	ok := succeeded(payload)
	a.log.Info("assistant tool", "tool", name, "user", caller.UserID, "success", ok, "took", time.Since(start))
	if err != nil {
		a.log.Warn("assistant tool failed", "tool", name, "err", err)
	}
	if a.audit != nil {
		rec := map[string]any{"tool": name, "user_id": caller.UserID, "success": ok}
		if aerr := a.audit.Append(ctx, events.TypeAssistantTool, caller.UserID, rec); aerr != nil {
			a.log.Error("audit append failed", "err", aerr)
		}
	}
	return payload
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
