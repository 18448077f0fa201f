package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/mind-engage/quizbuilder/internal/db/dbtest"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

// scripted replays canned responses and records what it was sent.
type scripted struct {
	responses []*llms.ContentResponse
	err       error
	calls     [][]llms.MessageContent
	opts      []llms.CallOptions
	loop      *llms.ContentResponse
}

func (m *scripted) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var o llms.CallOptions
	for _, f := range options {
		f(&o)
	}
	m.calls = append(m.calls, append([]llms.MessageContent(nil), msgs...))
	m.opts = append(m.opts, o)
	if m.err != nil {
		return nil, m.err
	}
	if m.loop != nil {
		return m.loop, nil
	}
	if len(m.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func (m *scripted) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func text(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func calls(tcs ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: tcs}}}
}

func call(id string, name ToolName, args string) llms.ToolCall {
	return llms.ToolCall{ID: id, Type: "function", FunctionCall: &llms.FunctionCall{Name: string(name), Arguments: args}}
}

// stubGen hands out distinct valid questions and records requested topics.
type stubGen struct {
	topics []string
	counts []int
	err    error
}

func (g *stubGen) Generate(_ context.Context, topic string, n int) ([]quiz.QuestionDraft, error) {
	g.topics = append(g.topics, topic)
	g.counts = append(g.counts, n)
	if g.err != nil {
		return nil, g.err
	}
	out := make([]quiz.QuestionDraft, n)
	for i := range out {
		out[i] = draftQuestion(fmt.Sprintf("%s question %d?", topic, i+1))
	}
	return out, nil
}

func draftQuestion(text string) quiz.QuestionDraft {
	expl := "because"
	return quiz.QuestionDraft{
		QuestionText:  text,
		OptionA:       "alpha",
		OptionB:       "beta",
		OptionC:       "gamma",
		OptionD:       "delta",
		CorrectAnswer: "C",
		Explanation:   &expl,
	}
}

type fixture struct {
	h     *sql.DB
	store *quiz.SQLStore
	inst  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := dbtest.Open(t)
	return &fixture{
		h:     h,
		store: quiz.NewSQLStore(h, quiz.WithClock(dbtest.NewClock().Now)),
		inst:  dbtest.SeedUser(t, h, "instructor", "Prof"),
	}
}

func (f *fixture) seedQuiz(t *testing.T, owner, title string, questions int) *quiz.Quiz {
	t.Helper()
	d := quiz.Draft{Title: title, Topic: title + " topic"}
	for i := 0; i < questions; i++ {
		d.Questions = append(d.Questions, draftQuestion(fmt.Sprintf("%s q%d?", title, i+1)))
	}
	q, err := f.store.Create(context.Background(), d, owner)
	require.NoError(t, err)
	return q
}

func (f *fixture) seedUser(t *testing.T) string {
	t.Helper()
	return dbtest.SeedUser(t, f.h, "instructor", "")
}
