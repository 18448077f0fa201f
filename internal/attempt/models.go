package attempt

import (
	"errors"
	"time"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var (
	// ErrNotFound covers absent attempts, attempts owned by someone else and,
	// for mutations, attempts that are already completed.
	ErrNotFound      = errors.New("attempt not found or already completed")
	ErrInvalidAnswer = errors.New("selected_answer must be one of A, B, C, D")
)

type Attempt struct {
	ID          string     `json:"id"`
	QuizID      string     `json:"quiz_id"`
	UserID      string     `json:"user_id"`
	Status      Status     `json:"status"`
	Score       *int       `json:"score"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Answers     []Slot     `json:"answers"`
}

// Slot is the per-question answer row created when the attempt starts.
type Slot struct {
	QuestionID     string  `json:"question_id"`
	SelectedAnswer *string `json:"selected_answer"`
	IsCorrect      *bool   `json:"is_correct"`
}

// Answer is a student's selection for one question. A nil selection clears it.
type Answer struct {
	QuestionID     string  `json:"question_id"`
	SelectedAnswer *string `json:"selected_answer"`
}

type QuestionResult struct {
	ID             string  `json:"id"`
	QuestionText   string  `json:"question_text"`
	OptionA        string  `json:"option_a"`
	OptionB        string  `json:"option_b"`
	OptionC        string  `json:"option_c"`
	OptionD        string  `json:"option_d"`
	CorrectAnswer  string  `json:"correct_answer,omitempty"`
	Explanation    *string `json:"explanation,omitempty"`
	SelectedAnswer *string `json:"selected_answer"`
	IsCorrect      *bool   `json:"is_correct"`
}

// Result is the read projection of one attempt. Answer keys are only filled
// in once the attempt is completed.
type Result struct {
	ID             string           `json:"id"`
	QuizID         string           `json:"quiz_id"`
	QuizTitle      string           `json:"quiz_title"`
	Status         Status           `json:"status"`
	Score          *int             `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at"`
	Questions      []QuestionResult `json:"questions"`
}

type Summary struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quiz_id"`
	QuizTitle      string     `json:"quiz_title"`
	Status         Status     `json:"status"`
	Score          *int       `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}
