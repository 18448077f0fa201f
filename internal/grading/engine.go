package grading

import (
	"context"
	"fmt"
	"strings"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type      string
	AnswerKey string
}

// Result is the outcome of grading a single slot.
type Result struct {
	Correct  bool
	Answered bool
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, selected *string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, selected *string) (Result, error)
}

// TypeSingleChoice is the only question type quizzes carry; an empty Q.Type
// means it.
const TypeSingleChoice = "mcq_single"

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, selected *string) (Result, error) {
	if q.Type == "" {
		q.Type = TypeSingleChoice
	}
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("no grading strategy for %q", q.Type)
	}
	return s.Grade(ctx, q, selected)
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeSingleChoice: singleChoiceStrategy{},
		},
	}
}

// singleChoiceStrategy compares option letters case-insensitively. An empty
// selection is unanswered and wrong.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q Q, selected *string) (Result, error) {
	if selected == nil || strings.TrimSpace(*selected) == "" {
		return Result{}, nil
	}
	return Result{Answered: true, Correct: strings.EqualFold(strings.TrimSpace(*selected), strings.TrimSpace(q.AnswerKey))}, nil
}
