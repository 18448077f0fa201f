// Package analytics derives read-only statistics from completed attempts.
// An instructor's own attempts on their quizzes are never counted.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mind-engage/quizbuilder/internal/db"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

type QuestionStats struct {
	QuestionID     string  `json:"question_id"`
	QuestionText   string  `json:"question_text"`
	OrderIndex     int     `json:"order_index"`
	CorrectCount   int     `json:"correct_count"`
	IncorrectCount int     `json:"incorrect_count"`
	AccuracyRate   float64 `json:"accuracy_rate"`
}

type StudentScore struct {
	UserID        string  `json:"user_id"`
	DisplayName   *string `json:"display_name"`
	Email         string  `json:"email"`
	BestScore     int     `json:"best_score"`
	AttemptsCount int     `json:"attempts_count"`
}

type QuizStats struct {
	QuizID            string          `json:"quiz_id"`
	QuizTitle         string          `json:"quiz_title"`
	TotalQuestions    int             `json:"total_questions"`
	TotalAttempts     int             `json:"total_attempts"`
	UniqueStudents    int             `json:"unique_students"`
	AverageScore      float64         `json:"average_score"`
	ScoreDistribution map[int]int     `json:"score_distribution"`
	QuestionAnalysis  []QuestionStats `json:"question_analysis"`
	StudentScores     []StudentScore  `json:"student_scores"`
}

type Dashboard struct {
	TotalQuizzes      int     `json:"total_quizzes"`
	TotalStudents     int     `json:"total_students"`
	TotalAttempts     int     `json:"total_attempts"`
	AveragePercentage float64 `json:"average_percentage"`
}

type Service struct{ db *sql.DB }

func NewService(h *sql.DB) *Service { return &Service{db: h} }

type attemptRow struct {
	userID      string
	displayName *string
	email       string
	score       int
}

// QuizAnalytics returns quiz.ErrNotFound when the quiz does not exist.
func (s *Service) QuizAnalytics(ctx context.Context, quizID string) (*QuizStats, error) {
	var title, owner string
	err := s.db.QueryRowContext(ctx, `SELECT title, instructor_id FROM quizzes WHERE id = $1`, quizID).Scan(&title, &owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, quiz.ErrNotFound
		}
		return nil, err
	}
	questions, err := quiz.LoadQuestions(ctx, s.db, quizID)
	if err != nil {
		return nil, err
	}
	attempts, err := completedAttempts(ctx, s.db, quizID, owner)
	if err != nil {
		return nil, err
	}

	st := &QuizStats{
		QuizID:            quizID,
		QuizTitle:         title,
		TotalQuestions:    len(questions),
		TotalAttempts:     len(attempts),
		ScoreDistribution: make(map[int]int, len(questions)+1),
		QuestionAnalysis:  make([]QuestionStats, 0, len(questions)),
		StudentScores:     []StudentScore{},
	}
	for i := 0; i <= len(questions); i++ {
		st.ScoreDistribution[i] = 0
	}

	scores := lo.Map(attempts, func(a attemptRow, _ int) int { return a.score })
	for _, sc := range scores {
		st.ScoreDistribution[sc]++
	}
	if len(scores) > 0 {
		st.AverageScore = round(float64(lo.Sum(scores))/float64(len(scores)), 2)
	}

	// best score per student, first-seen order, then a stable sort
	byUser := map[string]int{}
	for _, a := range attempts {
		if i, ok := byUser[a.userID]; ok {
			st.StudentScores[i].AttemptsCount++
			st.StudentScores[i].BestScore = max(st.StudentScores[i].BestScore, a.score)
			continue
		}
		st.StudentScores = append(st.StudentScores, StudentScore{
			UserID:        a.userID,
			DisplayName:   a.displayName,
			Email:         a.email,
			BestScore:     a.score,
			AttemptsCount: 1,
		})
		byUser[a.userID] = len(st.StudentScores) - 1
	}
	st.UniqueStudents = len(st.StudentScores)
	sort.SliceStable(st.StudentScores, func(i, j int) bool {
		return st.StudentScores[i].BestScore > st.StudentScores[j].BestScore
	})

	tallies, err := answerTallies(ctx, s.db, quizID, owner)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		t := tallies[q.ID]
		qs := QuestionStats{
			QuestionID:     q.ID,
			QuestionText:   q.QuestionText,
			OrderIndex:     q.OrderIndex,
			CorrectCount:   t[0],
			IncorrectCount: t[1],
		}
		if n := t[0] + t[1]; n > 0 {
			qs.AccuracyRate = round(float64(t[0])/float64(n)*100, 2)
		}
		st.QuestionAnalysis = append(st.QuestionAnalysis, qs)
	}
	return st, nil
}

// DashboardStats aggregates over every quiz the instructor owns.
func (s *Service) DashboardStats(ctx context.Context, instructorID string) (*Dashboard, error) {
	out := &Dashboard{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes WHERE instructor_id = $1`, instructorID).
		Scan(&out.TotalQuizzes); err != nil {
		return nil, fmt.Errorf("count quizzes: %w", err)
	}
	if out.TotalQuizzes == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT a.user_id, a.score,
		(SELECT COUNT(*) FROM questions qq WHERE qq.quiz_id = a.quiz_id)
		FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id
		WHERE q.instructor_id = $1 AND a.status = 'completed' AND a.user_id <> $1`, instructorID)
	if err != nil {
		return nil, fmt.Errorf("dashboard attempts: %w", err)
	}
	defer rows.Close()

	students := map[string]struct{}{}
	var pcts []float64
	for rows.Next() {
		var (
			user  string
			score sql.NullInt64
			total int
		)
		if err := rows.Scan(&user, &score, &total); err != nil {
			return nil, err
		}
		out.TotalAttempts++
		students[user] = struct{}{}
		if score.Valid && total > 0 {
			pcts = append(pcts, float64(score.Int64)/float64(total)*100)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out.TotalStudents = len(students)
	if len(pcts) > 0 {
		out.AveragePercentage = round(lo.Sum(pcts)/float64(len(pcts)), 1)
	}
	return out, nil
}

func completedAttempts(ctx context.Context, q db.Querier, quizID, owner string) ([]attemptRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT a.user_id, u.display_name, u.email, COALESCE(a.score, 0)
		FROM quiz_attempts a JOIN users u ON u.id = a.user_id
		WHERE a.quiz_id = $1 AND a.status = 'completed' AND a.user_id <> $2
		ORDER BY a.started_at, a.id`, quizID, owner)
	if err != nil {
		return nil, fmt.Errorf("completed attempts: %w", err)
	}
	defer rows.Close()
	var out []attemptRow
	for rows.Next() {
		var (
			r    attemptRow
			name sql.NullString
		)
		if err := rows.Scan(&r.userID, &name, &r.email, &r.score); err != nil {
			return nil, err
		}
		if name.Valid {
			r.displayName = &name.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// answerTallies maps question id to [correct, incorrect]. Ungraded slots count
// as incorrect.
func answerTallies(ctx context.Context, q db.Querier, quizID, owner string) (map[string][2]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT aa.question_id, aa.is_correct
		FROM attempt_answers aa JOIN quiz_attempts a ON a.id = aa.attempt_id
		WHERE a.quiz_id = $1 AND a.status = 'completed' AND a.user_id <> $2`, quizID, owner)
	if err != nil {
		return nil, fmt.Errorf("answer tallies: %w", err)
	}
	defer rows.Close()
	out := map[string][2]int{}
	for rows.Next() {
		var (
			qid string
			ok  sql.NullBool
		)
		if err := rows.Scan(&qid, &ok); err != nil {
			return nil, err
		}
		t := out[qid]
		if ok.Valid && ok.Bool {
			t[0]++
		} else {
			t[1]++
		}
		out[qid] = t
	}
	return out, rows.Err()
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
