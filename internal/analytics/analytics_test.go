package analytics_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizbuilder/internal/analytics"
	"github.com/mind-engage/quizbuilder/internal/attempt"
	"github.com/mind-engage/quizbuilder/internal/db/dbtest"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

type env struct {
	h       *sql.DB
	quizzes *quiz.SQLStore
	att     *attempt.Manager
	svc     *analytics.Service
	inst    string
}

func setup(t *testing.T) env {
	h := dbtest.Open(t)
	clock := dbtest.NewClock()
	return env{
		h:       h,
		quizzes: quiz.NewSQLStore(h, quiz.WithClock(clock.Now)),
		att:     attempt.NewManager(h, attempt.WithClock(clock.Now)),
		svc:     analytics.NewService(h),
		inst:    dbtest.SeedUser(t, h, "instructor", "Prof"),
	}
}

// all answers are "A"
func (e env) quizOf(t *testing.T, n int) *quiz.Quiz {
	d := quiz.Draft{Title: fmt.Sprintf("Quiz with %d", n), Topic: "t"}
	for i := 0; i < n; i++ {
		d.Questions = append(d.Questions, quiz.QuestionDraft{
			QuestionText:  fmt.Sprintf("Q%d", i+1),
			OptionA:       "a",
			OptionB:       "b",
			OptionC:       "c",
			OptionD:       "d",
			CorrectAnswer: "A",
		})
	}
	q, err := e.quizzes.Create(context.Background(), d, e.inst)
	require.NoError(t, err)
	return q
}

// take completes an attempt answering the first `correct` questions right and
// the rest wrong.
func (e env) take(t *testing.T, q *quiz.Quiz, user string, correct int) {
	ctx := context.Background()
	a, err := e.att.Start(ctx, q.ID, user)
	require.NoError(t, err)
	var answers []attempt.Answer
	for i, qu := range q.Questions {
		s := "B"
		if i < correct {
			s = "A"
		}
		answers = append(answers, attempt.Answer{QuestionID: qu.ID, SelectedAnswer: &s})
	}
	res, err := e.att.Submit(ctx, a.ID, user, answers)
	require.NoError(t, err)
	require.Equal(t, correct, *res.Score)
}

func TestQuizAnalytics(t *testing.T) {
	e := setup(t)
	q := e.quizOf(t, 5)
	alice := dbtest.SeedUser(t, e.h, "student", "Alice")
	bob := dbtest.SeedUser(t, e.h, "student", "Bob")
	carol := dbtest.SeedUser(t, e.h, "student", "Carol")

	e.take(t, q, alice, 2)
	e.take(t, q, alice, 4)
	e.take(t, q, alice, 3)
	e.take(t, q, bob, 1)
	e.take(t, q, carol, 4)
	e.take(t, q, e.inst, 5)

	// in-progress attempts are ignored
	_, err := e.att.Start(context.Background(), q.ID, bob)
	require.NoError(t, err)

	st, err := e.svc.QuizAnalytics(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalQuestions)
	assert.Equal(t, 5, st.TotalAttempts)
	assert.Equal(t, 3, st.UniqueStudents)
	assert.Equal(t, 2.8, st.AverageScore)

	require.Len(t, st.ScoreDistribution, 6)
	assert.Equal(t, map[int]int{0: 0, 1: 1, 2: 1, 3: 1, 4: 2, 5: 0}, st.ScoreDistribution)

	require.Len(t, st.StudentScores, 3)
	assert.Equal(t, alice, st.StudentScores[0].UserID)
	assert.Equal(t, 4, st.StudentScores[0].BestScore)
	assert.Equal(t, 3, st.StudentScores[0].AttemptsCount)
	assert.Equal(t, carol, st.StudentScores[1].UserID, "ties keep encounter order")
	assert.Equal(t, bob, st.StudentScores[2].UserID)
	assert.Equal(t, "Alice", *st.StudentScores[0].DisplayName)

	require.Len(t, st.QuestionAnalysis, 5)
	first := st.QuestionAnalysis[0]
	assert.Equal(t, "Q1", first.QuestionText)
	assert.Equal(t, 5, first.CorrectCount)
	assert.Equal(t, 0, first.IncorrectCount)
	assert.Equal(t, 100.0, first.AccuracyRate)
	last := st.QuestionAnalysis[4]
	assert.Equal(t, 0, last.CorrectCount)
	assert.Equal(t, 5, last.IncorrectCount)
	third := st.QuestionAnalysis[2]
	assert.Equal(t, 3, third.CorrectCount)
	assert.Equal(t, 60.0, third.AccuracyRate)
}

func TestQuizAnalyticsEmptyAndMissing(t *testing.T) {
	e := setup(t)
	q := e.quizOf(t, 3)

	st, err := e.svc.QuizAnalytics(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Zero(t, st.TotalAttempts)
	assert.Zero(t, st.AverageScore)
	assert.Equal(t, map[int]int{0: 0, 1: 0, 2: 0, 3: 0}, st.ScoreDistribution)
	assert.Zero(t, st.QuestionAnalysis[0].AccuracyRate)
	assert.Empty(t, st.StudentScores)

	_, err = e.svc.QuizAnalytics(context.Background(), "missing")
	assert.ErrorIs(t, err, quiz.ErrNotFound)
}

func TestInstructorExclusion(t *testing.T) {
	e := setup(t)
	q := e.quizOf(t, 2)
	e.take(t, q, e.inst, 2)

	st, err := e.svc.QuizAnalytics(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Zero(t, st.TotalAttempts)
	assert.Empty(t, st.StudentScores)

	d, err := e.svc.DashboardStats(context.Background(), e.inst)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalQuizzes)
	assert.Zero(t, d.TotalAttempts)
	assert.Zero(t, d.TotalStudents)
}

func TestDashboardStats(t *testing.T) {
	e := setup(t)
	q3 := e.quizOf(t, 3)
	q4 := e.quizOf(t, 4)
	s1 := dbtest.SeedUser(t, e.h, "student", "")
	s2 := dbtest.SeedUser(t, e.h, "student", "")

	e.take(t, q3, s1, 1) // 33.33
	e.take(t, q4, s1, 4) // 100
	e.take(t, q4, s2, 2) // 50

	d, err := e.svc.DashboardStats(context.Background(), e.inst)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalQuizzes)
	assert.Equal(t, 2, d.TotalStudents)
	assert.Equal(t, 3, d.TotalAttempts)
	assert.Equal(t, 61.1, d.AveragePercentage)

	none, err := e.svc.DashboardStats(context.Background(), s1)
	require.NoError(t, err)
	assert.Equal(t, analytics.Dashboard{}, *none)
}
