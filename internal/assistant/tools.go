package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tmc/langchaingo/llms"
)

// ToolName is the closed set of operations the model may request.
type ToolName string

const (
	ToolGenerateQuiz     ToolName = "generate_quiz"
	ToolEditQuiz         ToolName = "edit_quiz"
	ToolDeleteQuiz       ToolName = "delete_quiz"
	ToolListQuizzes      ToolName = "list_quizzes"
	ToolGetQuizDetails   ToolName = "get_quiz_details"
	ToolGetQuizAnalytics ToolName = "get_quiz_analytics"
	ToolEditQuestion     ToolName = "edit_question"
	ToolAddQuestions     ToolName = "add_questions"
)

type generateQuizArgs struct {
	Topic        string   `json:"topic" validate:"required,max=255"`
	Title        string   `json:"title" validate:"max=200"`
	Tags         []string `json:"tags" validate:"dive,max=100"`
	NumQuestions int      `json:"num_questions"`
}

type editQuizArgs struct {
	QuizTitle   string   `json:"quiz_title" validate:"required"`
	NewTitle    *string  `json:"new_title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=100"`
}

type quizTitleArgs struct {
	QuizTitle string `json:"quiz_title" validate:"required"`
}

type listQuizzesArgs struct {
	Search string `json:"search"`
}

type editQuestionArgs struct {
	QuizTitle      string  `json:"quiz_title" validate:"required"`
	QuestionNumber int     `json:"question_number" validate:"required,min=1"`
	QuestionText   *string `json:"question_text"`
	OptionA        *string `json:"option_a"`
	OptionB        *string `json:"option_b"`
	OptionC        *string `json:"option_c"`
	OptionD        *string `json:"option_d"`
	CorrectAnswer  *string `json:"correct_answer" validate:"omitempty,oneof=A B C D a b c d"`
	Explanation    *string `json:"explanation"`
}

type addQuestionsArgs struct {
	QuizTitle    string `json:"quiz_title" validate:"required"`
	Topic        string `json:"topic" validate:"max=255"`
	NumQuestions int    `json:"num_questions"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

// decodeArgs unmarshals model-supplied arguments into dst and validates them.
// Empty arguments decode as {}.
func decodeArgs(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid argument %s: failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func clampQuestions(n, def int) int {
	if n == 0 {
		return def
	}
	return max(1, min(n, 5))
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }

func strArray(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

func tool(name ToolName, desc string, params map[string]any) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        string(name),
			Description: desc,
			Parameters:  params,
		},
	}
}

// Tools is the tool menu offered to the model on every round.
var Tools = []llms.Tool{
	tool(ToolGenerateQuiz, "Generate a new quiz with AI-created questions on a topic", object(map[string]any{
		"topic": str("The educational topic for the quiz"),
		"title": str("Optional custom title for the quiz"),
		"tags":  strArray("Optional tags for categorizing the quiz"),
		"num_questions": map[string]any{
			"type": "integer", "description": "Number of questions (1-5, default 5)", "minimum": 1, "maximum": 5,
		},
	}, "topic")),
	tool(ToolEditQuiz, "Edit a quiz's properties (title, description, tags)", object(map[string]any{
		"quiz_title":  str("Title of the quiz to edit"),
		"new_title":   str("New title"),
		"description": str("New description"),
		"tags":        strArray("New tags"),
	}, "quiz_title")),
	tool(ToolDeleteQuiz, "Delete a quiz by title", object(map[string]any{
		"quiz_title": str("Title of the quiz to delete"),
	}, "quiz_title")),
	tool(ToolListQuizzes, "List instructor's quizzes with optional search filter", object(map[string]any{
		"search": str("Optional search term"),
	})),
	tool(ToolGetQuizDetails, "Get detailed information about a quiz", object(map[string]any{
		"quiz_title": str("Title of the quiz"),
	}, "quiz_title")),
	tool(ToolGetQuizAnalytics, "Get analytics and statistics for a quiz", object(map[string]any{
		"quiz_title": str("Title of the quiz"),
	}, "quiz_title")),
	tool(ToolEditQuestion, "Edit a specific question within a quiz", object(map[string]any{
		"quiz_title":      str("Title of the quiz"),
		"question_number": map[string]any{"type": "integer", "description": "Question number (1, 2, 3...)", "minimum": 1},
		"question_text":   str("New question text"),
		"option_a":        str("New option A"),
		"option_b":        str("New option B"),
		"option_c":        str("New option C"),
		"option_d":        str("New option D"),
		"correct_answer": map[string]any{
			"type": "string", "description": "Correct answer (A, B, C, or D)", "enum": []string{"A", "B", "C", "D"},
		},
		"explanation": str("New explanation"),
	}, "quiz_title", "question_number")),
	tool(ToolAddQuestions, "Add new questions to an existing quiz (1-5 at a time)", object(map[string]any{
		"quiz_title": str("Title of the quiz"),
		"topic":      str("Topic for new questions (defaults to quiz topic)"),
		"num_questions": map[string]any{
			"type": "integer", "description": "Number of questions to add (1-5, default 1)", "minimum": 1, "maximum": 5,
		},
	}, "quiz_title")),
}
