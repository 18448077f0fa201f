package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mind-engage/quizbuilder/internal/analytics"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

// QuizStore is the part of the quiz repository the tools drive.
type QuizStore interface {
	Create(ctx context.Context, d quiz.Draft, instructorID string) (*quiz.Quiz, error)
	List(ctx context.Context, f quiz.Filter, instructorID string) (quiz.Page, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]quiz.Quiz, error)
	Update(ctx context.Context, id string, p quiz.Patch, instructorID string) (*quiz.Quiz, error)
	Delete(ctx context.Context, id, instructorID string) error
	UpdateQuestion(ctx context.Context, quizID string, number int, instructorID string, p quiz.QuestionPatch) (*quiz.Question, error)
	AddQuestions(ctx context.Context, quizID, instructorID string, drafts []quiz.QuestionDraft) ([]quiz.Question, error)
}

type StatsSource interface {
	QuizAnalytics(ctx context.Context, quizID string) (*analytics.QuizStats, error)
}

type QuestionSource interface {
	Generate(ctx context.Context, topic string, n int) ([]quiz.QuestionDraft, error)
}

const dateLayout = "January 02, 2006"

type toolset struct {
	quizzes QuizStore
	stats   StatsSource
	gen     QuestionSource
}

// ---- payloads ----

type outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type notFound struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	AvailableQuizzes []string `json:"available_quizzes"`
}

type errorResult struct {
	Error string `json:"error"`
}

type generatedQuiz struct {
	Success       bool   `json:"success"`
	Title         string `json:"title"`
	Topic         string `json:"topic"`
	QuestionCount int    `json:"question_count"`
	Message       string `json:"message"`
}

type quizSummary struct {
	Title         string   `json:"title"`
	Topic         string   `json:"topic"`
	Tags          []string `json:"tags"`
	QuestionCount int      `json:"question_count"`
	Created       string   `json:"created"`
}

type quizList struct {
	Message string        `json:"message,omitempty"`
	Quizzes []quizSummary `json:"quizzes"`
	Total   int           `json:"total"`
}

type numberedQuestion struct {
	Number        int               `json:"number"`
	QuestionText  string            `json:"question_text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
}

type quizDetails struct {
	Title         string             `json:"title"`
	Description   *string            `json:"description"`
	Topic         string             `json:"topic"`
	Tags          []string           `json:"tags"`
	QuestionCount int                `json:"question_count"`
	Questions     []numberedQuestion `json:"questions"`
	CreatedAt     string             `json:"created_at"`
}

type questionPerformance struct {
	QuestionNumber  int    `json:"question_number"`
	QuestionPreview string `json:"question_preview"`
	Accuracy        string `json:"accuracy"`
}

type topStudent struct {
	Name      string `json:"name"`
	BestScore string `json:"best_score"`
	Attempts  int    `json:"attempts"`
}

type quizAnalytics struct {
	QuizTitle           string                `json:"quiz_title"`
	Message             string                `json:"message,omitempty"`
	TotalAttempts       int                   `json:"total_attempts"`
	UniqueStudents      int                   `json:"unique_students"`
	AverageScore        string                `json:"average_score,omitempty"`
	ScoreDistribution   map[int]int           `json:"score_distribution,omitempty"`
	QuestionPerformance []questionPerformance `json:"question_performance,omitempty"`
	TopStudents         []topStudent          `json:"top_students,omitempty"`
}

type editedQuestion struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	Changes         []string         `json:"changes"`
	UpdatedQuestion numberedQuestion `json:"updated_question"`
}

type addedQuestion struct {
	Number       int    `json:"number"`
	QuestionText string `json:"question_text"`
}

type addedQuestions struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	QuestionsAdded int             `json:"questions_added"`
	TotalQuestions int             `json:"total_questions"`
	NewQuestions   []addedQuestion `json:"new_questions"`
}

// succeeded reports whether a payload describes a completed action.
func succeeded(payload any) bool {
	switch p := payload.(type) {
	case outcome:
		return p.Success
	case notFound, errorResult:
		return false
	}
	return true
}

// ---- dispatch ----

// execute runs one tool on behalf of userID. userID never comes from the
// model.
func (t *toolset) execute(ctx context.Context, userID string, name ToolName, rawArgs string) (any, error) {
	switch name {
	case ToolGenerateQuiz:
		var a generateQuizArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.generateQuiz(ctx, userID, a)
	case ToolEditQuiz:
		var a editQuizArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.editQuiz(ctx, userID, a)
	case ToolDeleteQuiz:
		var a quizTitleArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.deleteQuiz(ctx, userID, a)
	case ToolListQuizzes:
		var a listQuizzesArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.listQuizzes(ctx, userID, a)
	case ToolGetQuizDetails:
		var a quizTitleArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.quizDetails(ctx, userID, a)
	case ToolGetQuizAnalytics:
		var a quizTitleArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.quizAnalytics(ctx, userID, a)
	case ToolEditQuestion:
		var a editQuestionArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.editQuestion(ctx, userID, a)
	case ToolAddQuestions:
		var a addQuestionsArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return t.addQuestions(ctx, userID, a)
	}
	return errorResult{Error: "Unknown tool: " + string(name)}, nil
}

func missing(title string, available []string) notFound {
	if available == nil {
		available = []string{}
	}
	return notFound{Message: fmt.Sprintf("Could not find quiz '%s'", title), AvailableQuizzes: available}
}

// ---- handlers ----

func (t *toolset) generateQuiz(ctx context.Context, userID string, a generateQuizArgs) (any, error) {
	n := clampQuestions(a.NumQuestions, 5)
	title := a.Title
	if strings.TrimSpace(title) == "" {
		title = "Quiz: " + a.Topic
	}
	drafts, err := t.gen.Generate(ctx, a.Topic, n)
	if err != nil {
		return nil, err
	}
	desc := "A quiz about " + a.Topic
	q, err := t.quizzes.Create(ctx, quiz.Draft{
		Title:       title,
		Description: &desc,
		Topic:       a.Topic,
		Tags:        a.Tags,
		Questions:   drafts,
	}, userID)
	if err != nil {
		return nil, err
	}
	return generatedQuiz{
		Success:       true,
		Title:         q.Title,
		Topic:         q.Topic,
		QuestionCount: len(drafts),
		Message:       fmt.Sprintf("Created quiz '%s' with %d questions", q.Title, len(drafts)),
	}, nil
}

func (t *toolset) editQuiz(ctx context.Context, userID string, a editQuizArgs) (any, error) {
	q, available, err := t.resolveQuiz(ctx, userID, a.QuizTitle)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return missing(a.QuizTitle, available), nil
	}
	updated, err := t.quizzes.Update(ctx, q.ID, quiz.Patch{
		Title:       a.NewTitle,
		Description: a.Description,
		Tags:        a.Tags,
	}, userID)
	if errors.Is(err, quiz.ErrNotFound) {
		return outcome{Message: "Failed to update quiz"}, nil
	}
	if err != nil {
		return nil, err
	}
	return outcome{Success: true, Message: fmt.Sprintf("Updated quiz '%s'", updated.Title)}, nil
}

func (t *toolset) deleteQuiz(ctx context.Context, userID string, a quizTitleArgs) (any, error) {
	q, available, err := t.resolveQuiz(ctx, userID, a.QuizTitle)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return missing(a.QuizTitle, available), nil
	}
	if err := t.quizzes.Delete(ctx, q.ID, userID); err != nil {
		if errors.Is(err, quiz.ErrNotFound) {
			return outcome{Message: "Failed to delete quiz"}, nil
		}
		return nil, err
	}
	return outcome{Success: true, Message: fmt.Sprintf("Deleted quiz '%s'", q.Title)}, nil
}

func (t *toolset) listQuizzes(ctx context.Context, userID string, a listQuizzesArgs) (any, error) {
	page, err := t.quizzes.List(ctx, quiz.Filter{Search: a.Search, PageSize: quiz.MaxPageSize}, userID)
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return quizList{Message: "You haven't created any quizzes yet.", Quizzes: []quizSummary{}}, nil
	}
	return quizList{
		Quizzes: lo.Map(page.Items, func(q quiz.Quiz, _ int) quizSummary {
			return quizSummary{
				Title:         q.Title,
				Topic:         q.Topic,
				Tags:          q.Tags,
				QuestionCount: q.QuestionCount,
				Created:       q.CreatedAt.Format(dateLayout),
			}
		}),
		Total: page.Total,
	}, nil
}

func numbered(n int, q quiz.Question) numberedQuestion {
	return numberedQuestion{
		Number:        n,
		QuestionText:  q.QuestionText,
		Options:       map[string]string{"A": q.OptionA, "B": q.OptionB, "C": q.OptionC, "D": q.OptionD},
		CorrectAnswer: q.CorrectAnswer,
	}
}

func (t *toolset) quizDetails(ctx context.Context, userID string, a quizTitleArgs) (any, error) {
	q, available, err := t.resolveQuiz(ctx, userID, a.QuizTitle)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return missing(a.QuizTitle, available), nil
	}
	return quizDetails{
		Title:         q.Title,
		Description:   q.Description,
		Topic:         q.Topic,
		Tags:          lo.Ternary(q.Tags == nil, []string{}, q.Tags),
		QuestionCount: len(q.Questions),
		Questions:     lo.Map(q.Questions, func(qu quiz.Question, i int) numberedQuestion { return numbered(i+1, qu) }),
		CreatedAt:     q.CreatedAt.Format(dateLayout),
	}, nil
}

func (t *toolset) quizAnalytics(ctx context.Context, userID string, a quizTitleArgs) (any, error) {
	q, available, err := t.resolveQuiz(ctx, userID, a.QuizTitle)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return missing(a.QuizTitle, available), nil
	}
	st, err := t.stats.QuizAnalytics(ctx, q.ID)
	if errors.Is(err, quiz.ErrNotFound) {
		return quizAnalytics{QuizTitle: q.Title, Message: "No students have taken this quiz yet"}, nil
	}
	if err != nil {
		return nil, err
	}

	total := st.TotalQuestions
	pct := 0
	if total > 0 {
		pct = int(st.AverageScore / float64(total) * 100)
	}
	out := quizAnalytics{
		QuizTitle:         st.QuizTitle,
		TotalAttempts:     st.TotalAttempts,
		UniqueStudents:    st.UniqueStudents,
		AverageScore:      fmt.Sprintf("%s/%d (%d%%)", strconv.FormatFloat(st.AverageScore, 'f', -1, 64), total, pct),
		ScoreDistribution: st.ScoreDistribution,
		QuestionPerformance: lo.Map(st.QuestionAnalysis, func(qs analytics.QuestionStats, i int) questionPerformance {
			return questionPerformance{
				QuestionNumber:  i + 1,
				QuestionPreview: preview(qs.QuestionText, 50) + "...",
				Accuracy:        fmt.Sprintf("%.0f%%", qs.AccuracyRate),
			}
		}),
		TopStudents: lo.Map(lo.Slice(st.StudentScores, 0, 5), func(s analytics.StudentScore, _ int) topStudent {
			name := s.Email
			if s.DisplayName != nil && *s.DisplayName != "" {
				name = *s.DisplayName
			}
			return topStudent{Name: name, BestScore: fmt.Sprintf("%d/%d", s.BestScore, total), Attempts: s.AttemptsCount}
		}),
	}
	return out, nil
}

func (t *toolset) editQuestion(ctx context.Context, userID string, a editQuestionArgs) (any, error) {
	q, available, err := t.resolveQuiz(ctx, userID, a.QuizTitle)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return missing(a.QuizTitle, available), nil
	}
	if a.QuestionNumber > len(q.Questions) {
		return outcome{Message: fmt.Sprintf("Question %d not found. Quiz has %d questions.", a.QuestionNumber, len(q.Questions))}, nil
	}

	p := quiz.QuestionPatch{
		QuestionText:  nonEmpty(a.QuestionText),
		OptionA:       nonEmpty(a.OptionA),
		OptionB:       nonEmpty(a.OptionB),
		OptionC:       nonEmpty(a.OptionC),
		OptionD:       nonEmpty(a.OptionD),
		CorrectAnswer: nonEmpty(a.CorrectAnswer),
		Explanation:   nonEmpty(a.Explanation),
	}
	updated, err := t.quizzes.UpdateQuestion(ctx, q.ID, a.QuestionNumber, userID, p)
	if errors.Is(err, quiz.ErrNotFound) || errors.Is(err, quiz.ErrQuestionNotFound) {
		return outcome{Message: "Failed to update question"}, nil
	}
	if err != nil {
		return nil, err
	}

	var changes []string
	for _, f := range []struct {
		label string
		v     *string
	}{
		{"question text", p.QuestionText},
		{"option a", p.OptionA},
		{"option b", p.OptionB},
		{"option c", p.OptionC},
		{"option d", p.OptionD},
		{"explanation", p.Explanation},
	} {
		if f.v != nil {
			changes = append(changes, f.label)
		}
	}
	if p.CorrectAnswer != nil {
		changes = append(changes, fmt.Sprintf("correct answer (now %s)", quiz.NormalizeAnswer(*p.CorrectAnswer)))
	}
	return editedQuestion{
		Success:         true,
		Message:         fmt.Sprintf("Updated Question %d in '%s'", a.QuestionNumber, q.Title),
		Changes:         lo.Ternary(changes == nil, []string{}, changes),
		UpdatedQuestion: numbered(a.QuestionNumber, *updated),
	}, nil
}

func (t *toolset) addQuestions(ctx context.Context, userID string, a addQuestionsArgs) (any, error) {
	q, available, err := t.resolveQuiz(ctx, userID, a.QuizTitle)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return missing(a.QuizTitle, available), nil
	}
	topic := a.Topic
	if strings.TrimSpace(topic) == "" {
		topic = q.Topic
	}
	drafts, err := t.gen.Generate(ctx, topic, clampQuestions(a.NumQuestions, 1))
	if err != nil {
		return nil, err
	}
	added, err := t.quizzes.AddQuestions(ctx, q.ID, userID, drafts)
	if errors.Is(err, quiz.ErrNotFound) {
		return outcome{Message: "Failed to add questions"}, nil
	}
	if err != nil {
		return nil, err
	}
	before := len(q.Questions)
	return addedQuestions{
		Success:        true,
		Message:        fmt.Sprintf("Added %d question(s) to '%s'", len(added), q.Title),
		QuestionsAdded: len(added),
		TotalQuestions: before + len(added),
		NewQuestions: lo.Map(added, func(qu quiz.Question, i int) addedQuestion {
			text := qu.QuestionText
			if len([]rune(text)) > 100 {
				text = preview(text, 100) + "..."
			}
			return addedQuestion{Number: before + i + 1, QuestionText: text}
		}),
	}, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nonEmpty(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}
