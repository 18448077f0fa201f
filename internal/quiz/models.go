package quiz

import (
	"strings"
	"time"
)

type Quiz struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   *string     `json:"description"`
	Topic         string      `json:"topic"`
	InstructorID  string      `json:"instructor_id"`
	IsPublished   bool        `json:"is_published"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Tags          []string    `json:"tags"`
	Questions     []Question  `json:"questions,omitempty"`
	QuestionCount int         `json:"question_count"`
	Instructor    *Instructor `json:"instructor,omitempty"`
}

type Instructor struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	Email       string  `json:"email"`
}

type Question struct {
	ID            string    `json:"id"`
	QuizID        string    `json:"quiz_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
	Explanation   *string   `json:"explanation,omitempty"`
	OrderIndex    int       `json:"order_index"`
	CreatedAt     time.Time `json:"created_at"`
}

// Options returns the option texts in A..D order.
func (q Question) Options() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// StudentView strips answer keys and explanations.
func (q *Quiz) StudentView() *Quiz {
	out := *q
	out.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.CorrectAnswer = ""
		qu.Explanation = nil
		out.Questions[i] = qu
	}
	return &out
}

// QuestionDraft is the input shape of a new question.
type QuestionDraft struct {
	QuestionText  string  `json:"question_text" validate:"required"`
	OptionA       string  `json:"option_a" validate:"required"`
	OptionB       string  `json:"option_b" validate:"required"`
	OptionC       string  `json:"option_c" validate:"required"`
	OptionD       string  `json:"option_d" validate:"required"`
	CorrectAnswer string  `json:"correct_answer" validate:"required,oneof=A B C D"`
	Explanation   *string `json:"explanation"`
}

func (d QuestionDraft) options() [4]string {
	return [4]string{d.OptionA, d.OptionB, d.OptionC, d.OptionD}
}

type Draft struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=1000"`
	Topic       string          `json:"topic" validate:"required,max=255"`
	IsPublished *bool           `json:"is_published"`
	Tags        []string        `json:"tags" validate:"dive,max=100"`
	Questions   []QuestionDraft `json:"questions" validate:"required,min=1,dive"`
}

// Patch changes only the fields that are set. A non-nil Tags or Questions
// replaces the whole set.
type Patch struct {
	Title       *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=1000"`
	Topic       *string         `json:"topic" validate:"omitempty,min=1,max=255"`
	IsPublished *bool           `json:"is_published"`
	Tags        []string        `json:"tags" validate:"omitempty,dive,max=100"`
	Questions   []QuestionDraft `json:"questions" validate:"omitempty,min=1,dive"`
}

type QuestionPatch struct {
	QuestionText  *string `json:"question_text" validate:"omitempty,min=1"`
	OptionA       *string `json:"option_a" validate:"omitempty,min=1"`
	OptionB       *string `json:"option_b" validate:"omitempty,min=1"`
	OptionC       *string `json:"option_c" validate:"omitempty,min=1"`
	OptionD       *string `json:"option_d" validate:"omitempty,min=1"`
	CorrectAnswer *string `json:"correct_answer" validate:"omitempty,oneof=A B C D"`
	Explanation   *string `json:"explanation"`
}

// Empty reports whether the patch changes nothing.
func (p QuestionPatch) Empty() bool {
	return p.QuestionText == nil && p.OptionA == nil && p.OptionB == nil && p.OptionC == nil &&
		p.OptionD == nil && p.CorrectAnswer == nil && p.Explanation == nil
}

type Sort string

const (
	SortNewest       Sort = "newest"
	SortOldest       Sort = "oldest"
	SortAlphabetical Sort = "alphabetical"
	SortPopular      Sort = "popular"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Filter struct {
	Search   string
	Tags     []string
	Sort     Sort
	Page     int
	PageSize int
}

func (f *Filter) normalize() error {
	f.Search = strings.TrimSpace(f.Search)
	switch f.Sort {
	case "":
		f.Sort = SortNewest
	case SortNewest, SortOldest, SortAlphabetical, SortPopular:
	default:
		return &ValidationError{Field: "sort", Msg: "sort must be one of newest, oldest, alphabetical, popular"}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize == 0:
		f.PageSize = DefaultPageSize
	case f.PageSize < 1:
		f.PageSize = 1
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	return nil
}

type Page struct {
	Items      []Quiz `json:"items"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}
