package assistant

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/mind-engage/quizbuilder/internal/quiz"
)

// resolveQuiz finds one of the caller's quizzes by title: an exact
// case-insensitive match first, then containment in either direction.
// Candidates are scanned newest first and the first hit wins. On a miss the
// caller's titles are returned for the model to offer.
func (t *toolset) resolveQuiz(ctx context.Context, userID, title string) (*quiz.Quiz, []string, error) {
	owned, err := t.quizzes.ListByInstructor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	want := strings.ToLower(strings.TrimSpace(title))
	if q, ok := lo.Find(owned, func(q quiz.Quiz) bool { return strings.ToLower(q.Title) == want }); ok {
		return &q, nil, nil
	}
	if want != "" {
		if q, ok := lo.Find(owned, func(q quiz.Quiz) bool {
			have := strings.ToLower(q.Title)
			return strings.Contains(have, want) || strings.Contains(want, have)
		}); ok {
			return &q, nil, nil
		}
	}
	return nil, lo.Map(owned, func(q quiz.Quiz, _ int) string { return q.Title }), nil
}
