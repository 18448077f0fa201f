package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizbuilder/internal/db"
	"github.com/mind-engage/quizbuilder/internal/events"
	"github.com/mind-engage/quizbuilder/internal/grading"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

// Manager drives absent -> in_progress -> completed for each (quiz, user).
type Manager struct {
	db     *sql.DB
	grader grading.Grader
	events *events.Repo
	now    func() time.Time
	log    *slog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(m *Manager) { m.log = l } }

func NewManager(h *sql.DB, opts ...Option) *Manager {
	m := &Manager{
		db:     h,
		grader: grading.NewDefaultGrader(),
		events: events.NewRepo(h),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start resumes the newest in-progress attempt or opens a new one with one
// empty slot per current question.
func (m *Manager) Start(ctx context.Context, quizID, userID string) (*Attempt, error) {
	var id string
	err := db.InTx(ctx, m.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT id FROM quiz_attempts
			WHERE quiz_id = $1 AND user_id = $2 AND status = 'in_progress'
			ORDER BY started_at DESC, id DESC LIMIT 1`, quizID, userID).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id = $1`, quizID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return quiz.ErrNotFound
			}
			return err
		}
		qs, err := quiz.LoadQuestions(ctx, tx, quizID)
		if err != nil {
			return err
		}

		id = uuid.NewString()
		if _, err := tx.ExecContext(ctx, `INSERT INTO quiz_attempts (id,quiz_id,user_id,status,started_at)
			VALUES ($1,$2,$3,'in_progress',$4)`, id, quizID, userID, m.now().UnixNano()); err != nil {
			return err
		}
		for _, q := range qs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO attempt_answers (id,attempt_id,question_id) VALUES ($1,$2,$3)`,
				uuid.NewString(), id, q.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.loadAttempt(ctx, m.db, id)
}

// SaveProgress overwrites selections without grading. Unknown question ids
// are ignored.
func (m *Manager) SaveProgress(ctx context.Context, attemptID, userID string, answers []Answer) (*Attempt, error) {
	if err := checkAnswers(answers); err != nil {
		return nil, err
	}
	err := db.InTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := ownedInProgress(ctx, tx, attemptID, userID); err != nil {
			return err
		}
		return applyAnswers(ctx, tx, attemptID, answers)
	})
	if err != nil {
		return nil, err
	}
	return m.loadAttempt(ctx, m.db, attemptID)
}

// Submit applies the final answers, grades every slot against the live
// questions and completes the attempt. A completed attempt cannot be
// submitted again.
func (m *Manager) Submit(ctx context.Context, attemptID, userID string, answers []Answer) (*Result, error) {
	if err := checkAnswers(answers); err != nil {
		return nil, err
	}
	var score, answered, total int
	err := db.InTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := ownedInProgress(ctx, tx, attemptID, userID); err != nil {
			return err
		}
		if err := applyAnswers(ctx, tx, attemptID, answers); err != nil {
			return err
		}

		type slot struct {
			id       string
			selected sql.NullString
			key      string
		}
		rows, err := tx.QueryContext(ctx, `SELECT aa.id, aa.selected_answer, q.correct_answer
			FROM attempt_answers aa JOIN questions q ON q.id = aa.question_id
			WHERE aa.attempt_id = $1`, attemptID)
		if err != nil {
			return err
		}
		var slots []slot
		for rows.Next() {
			var s slot
			if err := rows.Scan(&s.id, &s.selected, &s.key); err != nil {
				rows.Close()
				return err
			}
			slots = append(slots, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, s := range slots {
			var sel *string
			if s.selected.Valid {
				sel = &s.selected.String
			}
			res, err := m.grader.Grade(ctx, grading.Q{Type: grading.TypeSingleChoice, AnswerKey: s.key}, sel)
			if err != nil {
				return fmt.Errorf("grade slot %s: %w", s.id, err)
			}
			if res.Answered {
				answered++
			}
			if res.Correct {
				score++
			}
			if _, err := tx.ExecContext(ctx, `UPDATE attempt_answers SET is_correct = $1 WHERE id = $2`, res.Correct, s.id); err != nil {
				return err
			}
		}
		total = len(slots)

		res, err := tx.ExecContext(ctx, `UPDATE quiz_attempts SET status = 'completed', score = $1, completed_at = $2
			WHERE id = $3 AND status = 'in_progress'`, score, m.now().UnixNano(), attemptID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		return m.events.With(tx).Append(ctx, events.TypeAttemptSubmitted, attemptID, map[string]any{
			"user_id":  userID,
			"score":    score,
			"answered": answered,
			"slots":    total,
		})
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("attempt submitted", "attempt_id", attemptID, "score", score, "answered", answered, "slots", total)
	return m.Get(ctx, attemptID, userID)
}

// Get projects an attempt of the given user.
func (m *Manager) Get(ctx context.Context, attemptID, userID string) (*Result, error) {
	a, err := m.loadAttempt(ctx, m.db, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotFound
	}
	var title string
	if err := m.db.QueryRowContext(ctx, `SELECT title FROM quizzes WHERE id = $1`, a.QuizID).Scan(&title); err != nil {
		return nil, fmt.Errorf("load quiz title: %w", err)
	}
	qs, err := quiz.LoadQuestions(ctx, m.db, a.QuizID)
	if err != nil {
		return nil, err
	}

	bySlot := make(map[string]Slot, len(a.Answers))
	for _, s := range a.Answers {
		bySlot[s.QuestionID] = s
	}
	out := &Result{
		ID:             a.ID,
		QuizID:         a.QuizID,
		QuizTitle:      title,
		Status:         a.Status,
		Score:          a.Score,
		TotalQuestions: len(qs),
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
		Questions:      make([]QuestionResult, 0, len(qs)),
	}
	for _, q := range qs {
		qr := QuestionResult{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			OptionA:      q.OptionA,
			OptionB:      q.OptionB,
			OptionC:      q.OptionC,
			OptionD:      q.OptionD,
		}
		if a.Status == StatusCompleted {
			qr.CorrectAnswer = q.CorrectAnswer
			qr.Explanation = q.Explanation
		}
		if s, ok := bySlot[q.ID]; ok {
			qr.SelectedAnswer = s.SelectedAnswer
			qr.IsCorrect = s.IsCorrect
		}
		out.Questions = append(out.Questions, qr)
	}
	return out, nil
}

// ListForUser returns a user's attempts, newest first, each with its quiz's
// current question count.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT a.id, a.quiz_id, q.title, a.status, a.score, a.started_at, a.completed_at,
		(SELECT COUNT(*) FROM questions qq WHERE qq.quiz_id = a.quiz_id)
		FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id
		WHERE a.user_id = $1 ORDER BY a.started_at DESC, a.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var (
			s         Summary
			score     sql.NullInt64
			started   int64
			completed sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.QuizID, &s.QuizTitle, &s.Status, &score, &started, &completed, &s.TotalQuestions); err != nil {
			return nil, err
		}
		s.Score = intPtr(score)
		s.StartedAt = time.Unix(0, started).UTC()
		s.CompletedAt = timePtr(completed)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (m *Manager) loadAttempt(ctx context.Context, q db.Querier, id string) (*Attempt, error) {
	var (
		a         Attempt
		score     sql.NullInt64
		started   int64
		completed sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT id, quiz_id, user_id, status, score, started_at, completed_at
		FROM quiz_attempts WHERE id = $1`, id).Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &score, &started, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Score = intPtr(score)
	a.StartedAt = time.Unix(0, started).UTC()
	a.CompletedAt = timePtr(completed)

	rows, err := q.QueryContext(ctx, `SELECT aa.question_id, aa.selected_answer, aa.is_correct
		FROM attempt_answers aa JOIN questions qu ON qu.id = aa.question_id
		WHERE aa.attempt_id = $1 ORDER BY qu.order_index, qu.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	a.Answers = []Slot{}
	for rows.Next() {
		var (
			s   Slot
			sel sql.NullString
			ok  sql.NullBool
		)
		if err := rows.Scan(&s.QuestionID, &sel, &ok); err != nil {
			return nil, err
		}
		if sel.Valid {
			s.SelectedAnswer = &sel.String
		}
		if ok.Valid {
			s.IsCorrect = &ok.Bool
		}
		a.Answers = append(a.Answers, s)
	}
	return &a, rows.Err()
}

func ownedInProgress(ctx context.Context, tx *sql.Tx, attemptID, userID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM quiz_attempts WHERE id = $1 AND user_id = $2 AND status = 'in_progress'`,
		attemptID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func applyAnswers(ctx context.Context, tx *sql.Tx, attemptID string, answers []Answer) error {
	for _, a := range answers {
		var sel any
		if a.SelectedAnswer != nil {
			sel = quiz.NormalizeAnswer(*a.SelectedAnswer)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE attempt_answers SET selected_answer = $1
			WHERE attempt_id = $2 AND question_id = $3`, sel, attemptID, a.QuestionID); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
	}
	return nil
}

func checkAnswers(answers []Answer) error {
	for _, a := range answers {
		if a.SelectedAnswer == nil {
			continue
		}
		switch quiz.NormalizeAnswer(*a.SelectedAnswer) {
		case "A", "B", "C", "D":
		default:
			return ErrInvalidAnswer
		}
	}
	return nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
