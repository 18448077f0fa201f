package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mind-engage/quizbuilder/internal/db"
)

// SQLStore is the quiz repository. Every mutating call is owner-scoped.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*SQLStore)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *SQLStore) { s.now = now } }

func NewSQLStore(h *sql.DB, opts ...Option) *SQLStore {
	s := &SQLStore{db: h, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SQLStore) Create(ctx context.Context, d Draft, instructorID string) (*Quiz, error) {
	normalizeQuestions(d.Questions)
	d.Tags = normalizeTags(d.Tags)
	if err := Struct(d); err != nil {
		return nil, err
	}
	published := true
	if d.IsPublished != nil {
		published = *d.IsPublished
	}

	id := uuid.NewString()
	now := s.now().UnixNano()
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO quizzes (id,title,description,topic,instructor_id,is_published,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			id, d.Title, nullString(d.Description), d.Topic, instructorID, published, now, now); err != nil {
			return err
		}
		if err := insertTags(ctx, tx, id, d.Tags); err != nil {
			return err
		}
		_, err := insertQuestions(ctx, tx, id, 0, d.Questions, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Quiz, error) {
	return loadQuiz(ctx, s.db, id)
}

// List returns published quizzes, or all of one instructor's quizzes when
// instructorID is set.
func (s *SQLStore) List(ctx context.Context, f Filter, instructorID string) (Page, error) {
	if err := f.normalize(); err != nil {
		return Page{}, err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if instructorID != "" {
		where = append(where, "q.instructor_id = "+arg(instructorID))
	} else {
		where = append(where, "q.is_published = "+arg(true))
	}
	if f.Search != "" {
		p := arg(likePattern(f.Search))
		where = append(where, fmt.Sprintf(`(LOWER(q.title) LIKE %[1]s ESCAPE '\' OR LOWER(COALESCE(q.description,'')) LIKE %[1]s ESCAPE '\' OR LOWER(q.topic) LIKE %[1]s ESCAPE '\')`, p))
	}
	if tags := normalizeTags(f.Tags); len(tags) > 0 {
		ph := lo.Map(tags, func(t string, _ int) string { return arg(t) })
		where = append(where, "q.id IN (SELECT quiz_id FROM quiz_tags WHERE tag IN ("+strings.Join(ph, ",")+"))")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes q WHERE `+cond, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count quizzes: %w", err)
	}

	join, order := "", "q.created_at DESC"
	switch f.Sort {
	case SortOldest:
		order = "q.created_at ASC"
	case SortAlphabetical:
		order = "q.title ASC"
	case SortPopular:
		join = ` LEFT JOIN (SELECT quiz_id, COUNT(*) AS attempt_count FROM quiz_attempts GROUP BY quiz_id) ac ON ac.quiz_id = q.id`
		order = "COALESCE(ac.attempt_count, 0) DESC, q.created_at DESC"
	}
	limit := arg(f.PageSize)
	offset := arg((f.Page - 1) * f.PageSize)

	items, err := queryQuizzes(ctx, s.db, quizSelect+join+` WHERE `+cond+` ORDER BY `+order+`, q.id LIMIT `+limit+` OFFSET `+offset, args...)
	if err != nil {
		return Page{}, err
	}
	if err := attachTags(ctx, s.db, items); err != nil {
		return Page{}, err
	}
	return Page{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: (total + f.PageSize - 1) / f.PageSize,
	}, nil
}

// ListByInstructor returns every quiz the instructor owns, newest first,
// with questions and tags loaded.
func (s *SQLStore) ListByInstructor(ctx context.Context, instructorID string) ([]Quiz, error) {
	items, err := queryQuizzes(ctx, s.db, quizSelect+` WHERE q.instructor_id = $1 ORDER BY q.created_at DESC, q.id`, instructorID)
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, s.db, items); err != nil {
		return nil, err
	}
	for i := range items {
		qs, err := loadQuestions(ctx, s.db, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Questions = qs
	}
	return items, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch, instructorID string) (*Quiz, error) {
	normalizeQuestions(p.Questions)
	p.Tags = normalizeTags(p.Tags)
	if err := Struct(p); err != nil {
		return nil, err
	}

	now := s.now().UnixNano()
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, id, instructorID); err != nil {
			return err
		}

		sets := []string{"updated_at = $1"}
		args := []any{now}
		set := func(col string, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
		if p.Title != nil {
			set("title", *p.Title)
		}
		if p.Description != nil {
			set("description", nullString(p.Description))
		}
		if p.Topic != nil {
			set("topic", *p.Topic)
		}
		if p.IsPublished != nil {
			set("is_published", *p.IsPublished)
		}
		args = append(args, id)
		q := fmt.Sprintf("UPDATE quizzes SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}

		if p.Tags != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_tags WHERE quiz_id = $1`, id); err != nil {
				return err
			}
			if err := insertTags(ctx, tx, id, p.Tags); err != nil {
				return err
			}
		}
		if p.Questions != nil {
			var attempts int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1`, id).Scan(&attempts); err != nil {
				return err
			}
			if attempts > 0 {
				return ErrQuestionsLocked
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id = $1`, id); err != nil {
				return err
			}
			if _, err := insertQuestions(ctx, tx, id, 0, p.Questions, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id, instructorID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1 AND instructor_id = $2`, id, instructorID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateQuestion patches the number-th question (1-based, by order index).
func (s *SQLStore) UpdateQuestion(ctx context.Context, quizID string, number int, instructorID string, p QuestionPatch) (*Question, error) {
	if p.CorrectAnswer != nil {
		a := NormalizeAnswer(*p.CorrectAnswer)
		p.CorrectAnswer = &a
	}
	if err := Struct(p); err != nil {
		return nil, err
	}

	var out Question
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, quizID, instructorID); err != nil {
			return err
		}
		qs, err := loadQuestions(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if number < 1 || number > len(qs) {
			return ErrQuestionNotFound
		}
		q := qs[number-1]
		applyQuestionPatch(&q, p)
		if !OptionsDistinct(q.Options()) {
			return &ValidationError{Field: "options", Msg: duplicateOptionsMsg}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET question_text=$1, option_a=$2, option_b=$3, option_c=$4, option_d=$5,
			correct_answer=$6, explanation=$7 WHERE id=$8`,
			q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, nullString(q.Explanation), q.ID); err != nil {
			return err
		}
		if err := touch(ctx, tx, quizID, s.now().UnixNano()); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddQuestions appends after the current highest order index.
func (s *SQLStore) AddQuestions(ctx context.Context, quizID, instructorID string, drafts []QuestionDraft) ([]Question, error) {
	normalizeQuestions(drafts)
	if len(drafts) == 0 {
		return nil, &ValidationError{Field: "questions", Msg: "must contain at least 1 item(s)"}
	}
	for _, d := range drafts {
		if err := Struct(d); err != nil {
			return nil, err
		}
	}

	var out []Question
	now := s.now().UnixNano()
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, quizID, instructorID); err != nil {
			return err
		}
		var maxIdx sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(order_index) FROM questions WHERE quiz_id = $1`, quizID).Scan(&maxIdx); err != nil {
			return err
		}
		start := 0
		if maxIdx.Valid {
			start = int(maxIdx.Int64) + 1
		}
		qs, err := insertQuestions(ctx, tx, quizID, start, drafts, now)
		if err != nil {
			return err
		}
		out = qs
		return touch(ctx, tx, quizID, now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---- helpers ----

const quizSelect = `SELECT q.id, q.title, q.description, q.topic, q.instructor_id, q.is_published, q.created_at, q.updated_at,
	u.display_name, u.email,
	(SELECT COUNT(*) FROM questions qq WHERE qq.quiz_id = q.id) AS question_count
	FROM quizzes q JOIN users u ON u.id = q.instructor_id`

func scanQuiz(sc interface{ Scan(...any) error }) (Quiz, error) {
	var (
		q                Quiz
		desc, name       sql.NullString
		email            string
		created, updated int64
	)
	if err := sc.Scan(&q.ID, &q.Title, &desc, &q.Topic, &q.InstructorID, &q.IsPublished, &created, &updated,
		&name, &email, &q.QuestionCount); err != nil {
		return Quiz{}, err
	}
	q.Description = stringPtr(desc)
	q.CreatedAt = time.Unix(0, created).UTC()
	q.UpdatedAt = time.Unix(0, updated).UTC()
	q.Instructor = &Instructor{ID: q.InstructorID, DisplayName: stringPtr(name), Email: email}
	q.Tags = []string{}
	return q, nil
}

func queryQuizzes(ctx context.Context, q db.Querier, query string, args ...any) ([]Quiz, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()
	out := []Quiz{}
	for rows.Next() {
		qz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qz)
	}
	return out, rows.Err()
}

func loadQuiz(ctx context.Context, q db.Querier, id string) (*Quiz, error) {
	qz, err := scanQuiz(q.QueryRowContext(ctx, quizSelect+` WHERE q.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items := []Quiz{qz}
	if err := attachTags(ctx, q, items); err != nil {
		return nil, err
	}
	qz = items[0]
	if qz.Questions, err = loadQuestions(ctx, q, id); err != nil {
		return nil, err
	}
	return &qz, nil
}

// LoadQuestions returns a quiz's questions in order-index order.
func LoadQuestions(ctx context.Context, q db.Querier, quizID string) ([]Question, error) {
	return loadQuestions(ctx, q, quizID)
}

func loadQuestions(ctx context.Context, q db.Querier, quizID string) ([]Question, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, quiz_id, question_text, option_a, option_b, option_c, option_d,
		correct_answer, explanation, order_index, created_at
		FROM questions WHERE quiz_id = $1 ORDER BY order_index, created_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var (
			qu      Question
			expl    sql.NullString
			created int64
		)
		if err := rows.Scan(&qu.ID, &qu.QuizID, &qu.QuestionText, &qu.OptionA, &qu.OptionB, &qu.OptionC, &qu.OptionD,
			&qu.CorrectAnswer, &expl, &qu.OrderIndex, &created); err != nil {
			return nil, err
		}
		qu.Explanation = stringPtr(expl)
		qu.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, qu)
	}
	return out, rows.Err()
}

func attachTags(ctx context.Context, q db.Querier, items []Quiz) error {
	if len(items) == 0 {
		return nil
	}
	ids := lo.Map(items, func(qz Quiz, _ int) any { return qz.ID })
	rows, err := q.QueryContext(ctx, `SELECT quiz_id, tag FROM quiz_tags WHERE quiz_id IN (`+db.Placeholders(1, len(ids))+`) ORDER BY tag`, ids...)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	byQuiz := map[string][]string{}
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		byQuiz[id] = append(byQuiz[id], tag)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range items {
		if tags, ok := byQuiz[items[i].ID]; ok {
			items[i].Tags = tags
		}
	}
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, quizID string, tags []string) error {
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO quiz_tags (quiz_id, tag) VALUES ($1,$2)`, quizID, t); err != nil {
			return fmt.Errorf("insert tag %q: %w", t, err)
		}
	}
	return nil
}

func insertQuestions(ctx context.Context, tx *sql.Tx, quizID string, start int, drafts []QuestionDraft, now int64) ([]Question, error) {
	out := make([]Question, 0, len(drafts))
	for i, d := range drafts {
		q := Question{
			ID:            uuid.NewString(),
			QuizID:        quizID,
			QuestionText:  d.QuestionText,
			OptionA:       d.OptionA,
			OptionB:       d.OptionB,
			OptionC:       d.OptionC,
			OptionD:       d.OptionD,
			CorrectAnswer: d.CorrectAnswer,
			Explanation:   d.Explanation,
			OrderIndex:    start + i,
			CreatedAt:     time.Unix(0, now).UTC(),
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id,quiz_id,question_text,option_a,option_b,option_c,option_d,
			correct_answer,explanation,order_index,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			q.ID, quizID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
			q.CorrectAnswer, nullString(q.Explanation), q.OrderIndex, now); err != nil {
			return nil, fmt.Errorf("insert question %d: %w", i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func checkOwner(ctx context.Context, q db.Querier, quizID, instructorID string) error {
	var owner string
	err := q.QueryRowContext(ctx, `SELECT instructor_id FROM quizzes WHERE id = $1`, quizID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != instructorID) {
		return ErrNotFound
	}
	return err
}

func touch(ctx context.Context, tx *sql.Tx, quizID string, now int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE quizzes SET updated_at = $1 WHERE id = $2`, now, quizID)
	return err
}

func applyQuestionPatch(q *Question, p QuestionPatch) {
	if p.QuestionText != nil {
		q.QuestionText = *p.QuestionText
	}
	if p.OptionA != nil {
		q.OptionA = *p.OptionA
	}
	if p.OptionB != nil {
		q.OptionB = *p.OptionB
	}
	if p.OptionC != nil {
		q.OptionC = *p.OptionC
	}
	if p.OptionD != nil {
		q.OptionD = *p.OptionD
	}
	if p.CorrectAnswer != nil {
		q.CorrectAnswer = *p.CorrectAnswer
	}
	if p.Explanation != nil {
		q.Explanation = p.Explanation
	}
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

func nullString(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
