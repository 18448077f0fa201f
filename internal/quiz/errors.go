package quiz

import "errors"

var (
	// ErrNotFound covers both absent quizzes and quizzes owned by someone else.
	ErrNotFound         = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionsLocked is returned when replacing the question set of a quiz
	// that already has attempts.
	ErrQuestionsLocked = errors.New("quiz already has attempts; questions cannot be replaced")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}
