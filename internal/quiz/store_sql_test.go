package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizbuilder/internal/db/dbtest"
)

func newStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	h := dbtest.Open(t)
	return NewSQLStore(h, WithClock(dbtest.NewClock().Now)), h
}

func sampleDraft(title string, tags ...string) Draft {
	q2 := validQuestion()
	q2.QuestionText = "2 + 2?"
	q2.OptionA, q2.OptionB, q2.OptionC, q2.OptionD = "3", "4", "5", "22"
	q2.CorrectAnswer = "b"
	expl := "basic arithmetic"
	q2.Explanation = &expl
	return Draft{
		Title:     title,
		Topic:     "general knowledge",
		Tags:      tags,
		Questions: []QuestionDraft{validQuestion(), q2},
	}
}

func insertAttempt(t *testing.T, h *sql.DB, quizID, userID string) {
	t.Helper()
	_, err := h.Exec(`INSERT INTO quiz_attempts (id,quiz_id,user_id,status,started_at) VALUES ($1,$2,$3,'in_progress',1)`,
		uuid.NewString(), quizID, userID)
	require.NoError(t, err)
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "Prof")

	created, err := s.Create(ctx, sampleDraft("Sample Test Quiz", "test", "general", "test"), inst)
	require.NoError(t, err)
	assert.True(t, created.IsPublished)
	assert.Equal(t, []string{"general", "test"}, created.Tags)
	require.NotNil(t, created.Instructor)
	assert.Equal(t, "Prof", *created.Instructor.DisplayName)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, 2, got.QuestionCount)
	assert.Equal(t, "Capital of France?", got.Questions[0].QuestionText)
	assert.Equal(t, 0, got.Questions[0].OrderIndex)
	assert.Equal(t, "2 + 2?", got.Questions[1].QuestionText)
	assert.Equal(t, "B", got.Questions[1].CorrectAnswer)
	assert.Equal(t, "basic arithmetic", *got.Questions[1].Explanation)
	assert.Equal(t, 1, got.Questions[1].OrderIndex)
	assert.Nil(t, got.Questions[0].Explanation)
}

func TestCreateRejectsDuplicateOptions(t *testing.T) {
	s, h := newStore(t)
	inst := dbtest.SeedUser(t, h, "instructor", "")

	d := sampleDraft("Dupes")
	d.Questions[0].OptionB = " paris"
	_, err := s.Create(context.Background(), d, inst)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, duplicateOptionsMsg, ve.Msg)

	page, err := s.List(context.Background(), Filter{}, "")
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestGetNotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPagination(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	for i := 0; i < 12; i++ {
		_, err := s.Create(ctx, sampleDraft(fmt.Sprintf("Quiz %02d", i)), inst)
		require.NoError(t, err)
	}

	page, err := s.List(ctx, Filter{Page: 1, PageSize: 5}, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, "Quiz 11", page.Items[0].Title)

	page, err = s.List(ctx, Filter{Page: 3, PageSize: 5, Sort: SortOldest}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Quiz 11", page.Items[1].Title)
}

func TestListSearchAndTags(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	_, err := s.Create(ctx, sampleDraft("Sample Test Quiz", "test", "general", "knowledge"), inst)
	require.NoError(t, err)
	other := sampleDraft("Other Quiz", "misc")
	other.Topic = "trivia"
	_, err = s.Create(ctx, other, inst)
	require.NoError(t, err)

	page, err := s.List(ctx, Filter{Search: "sample"}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Sample Test Quiz", page.Items[0].Title)
	assert.Equal(t, []string{"general", "knowledge", "test"}, page.Items[0].Tags)
	assert.Equal(t, 2, page.Items[0].QuestionCount)

	page, err = s.List(ctx, Filter{Tags: []string{"test"}}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Sample Test Quiz", page.Items[0].Title)

	page, err = s.List(ctx, Filter{Search: "TRIV"}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Other Quiz", page.Items[0].Title)

	page, err = s.List(ctx, Filter{Search: "100%"}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestListSearchFoldsNonASCII(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	d := sampleDraft("Écoles de Genève")
	d.Topic = "Ärzte"
	_, err := s.Create(ctx, d, inst)
	require.NoError(t, err)

	for _, term := range []string{"école", "ÉCOLES", "genÈve", "ärzte"} {
		page, err := s.List(ctx, Filter{Search: term}, "")
		require.NoError(t, err)
		assert.Len(t, page.Items, 1, term)
	}
}

func TestListPublishedAndScope(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	other := dbtest.SeedUser(t, h, "instructor", "")

	hidden := sampleDraft("Draft quiz")
	no := false
	hidden.IsPublished = &no
	_, err := s.Create(ctx, hidden, inst)
	require.NoError(t, err)
	_, err = s.Create(ctx, sampleDraft("Public quiz"), other)
	require.NoError(t, err)

	page, err := s.List(ctx, Filter{}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Public quiz", page.Items[0].Title)

	page, err = s.List(ctx, Filter{}, inst)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Draft quiz", page.Items[0].Title)
}

func TestListSortPopularAndAlphabetical(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	student := dbtest.SeedUser(t, h, "student", "")

	a, err := s.Create(ctx, sampleDraft("Bravo"), inst)
	require.NoError(t, err)
	b, err := s.Create(ctx, sampleDraft("alpha"), inst)
	require.NoError(t, err)
	_, err = s.Create(ctx, sampleDraft("Charlie"), inst)
	require.NoError(t, err)
	insertAttempt(t, h, a.ID, student)
	insertAttempt(t, h, a.ID, student)
	insertAttempt(t, h, b.ID, student)

	page, err := s.List(ctx, Filter{Sort: SortPopular}, "")
	require.NoError(t, err)
	titles := []string{}
	for _, it := range page.Items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"Bravo", "alpha", "Charlie"}, titles)

	page, err = s.List(ctx, Filter{Sort: SortAlphabetical}, "")
	require.NoError(t, err)
	assert.Equal(t, "Bravo", page.Items[0].Title)
	assert.Equal(t, "alpha", page.Items[2].Title)
}

func TestUpdateOwnerOnly(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	intruder := dbtest.SeedUser(t, h, "instructor", "")
	q, err := s.Create(ctx, sampleDraft("Original", "a"), inst)
	require.NoError(t, err)

	title := "Hijacked"
	_, err = s.Update(ctx, q.ID, Patch{Title: &title, Tags: []string{}}, intruder)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, q.ID, intruder), ErrNotFound)
	_, err = s.UpdateQuestion(ctx, q.ID, 1, intruder, QuestionPatch{QuestionText: &title})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddQuestions(ctx, q.ID, intruder, []QuestionDraft{validQuestion()})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, []string{"a"}, got.Tags)
	assert.Len(t, got.Questions, 2)
	assert.Equal(t, "Capital of France?", got.Questions[0].QuestionText)
}

func TestUpdatePartialAndReplace(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	q, err := s.Create(ctx, sampleDraft("Original", "a", "b"), inst)
	require.NoError(t, err)

	desc := "now described"
	got, err := s.Update(ctx, q.ID, Patch{Description: &desc}, inst)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, "now described", *got.Description)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.True(t, got.UpdatedAt.After(q.UpdatedAt))

	nq := validQuestion()
	nq.QuestionText = "Only question"
	got, err = s.Update(ctx, q.ID, Patch{Tags: []string{"c"}, Questions: []QuestionDraft{nq}}, inst)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Tags)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "Only question", got.Questions[0].QuestionText)
	assert.Equal(t, 0, got.Questions[0].OrderIndex)
}

func TestUpdateQuestionsLockedByAttempts(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	student := dbtest.SeedUser(t, h, "student", "")
	q, err := s.Create(ctx, sampleDraft("Taken"), inst)
	require.NoError(t, err)
	insertAttempt(t, h, q.ID, student)

	_, err = s.Update(ctx, q.ID, Patch{Questions: []QuestionDraft{validQuestion()}}, inst)
	assert.ErrorIs(t, err, ErrQuestionsLocked)

	got, err := s.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 2)
}

func TestUpdateQuestionByNumber(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	q, err := s.Create(ctx, sampleDraft("Numbered"), inst)
	require.NoError(t, err)

	text := "Two plus two?"
	ans := "c"
	qu, err := s.UpdateQuestion(ctx, q.ID, 2, inst, QuestionPatch{QuestionText: &text, CorrectAnswer: &ans})
	require.NoError(t, err)
	assert.Equal(t, "Two plus two?", qu.QuestionText)
	assert.Equal(t, "C", qu.CorrectAnswer)
	assert.Equal(t, "4", qu.OptionB)

	_, err = s.UpdateQuestion(ctx, q.ID, 3, inst, QuestionPatch{QuestionText: &text})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	_, err = s.UpdateQuestion(ctx, q.ID, 0, inst, QuestionPatch{QuestionText: &text})
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	dup := "london"
	_, err = s.UpdateQuestion(ctx, q.ID, 1, inst, QuestionPatch{OptionA: &dup})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestAddQuestionsContinuesFromMaxIndex(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	q, err := s.Create(ctx, sampleDraft("Gappy"), inst)
	require.NoError(t, err)
	_, err = h.Exec(`UPDATE questions SET order_index = 7 WHERE id = $1`, q.Questions[1].ID)
	require.NoError(t, err)

	added, err := s.AddQuestions(ctx, q.ID, inst, []QuestionDraft{validQuestion(), validQuestion()})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, 8, added[0].OrderIndex)
	assert.Equal(t, 9, added[1].OrderIndex)

	got, err := s.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 4)
}

func TestDeleteCascades(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	student := dbtest.SeedUser(t, h, "student", "")
	q, err := s.Create(ctx, sampleDraft("Doomed", "x"), inst)
	require.NoError(t, err)
	insertAttempt(t, h, q.ID, student)

	require.NoError(t, s.Delete(ctx, q.ID, inst))
	assert.ErrorIs(t, s.Delete(ctx, q.ID, inst), ErrNotFound)

	for _, table := range []string{"questions", "quiz_tags", "quiz_attempts"} {
		var n int
		require.NoError(t, h.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE quiz_id = $1`, q.ID).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestListByInstructorAndStudentView(t *testing.T) {
	s, h := newStore(t)
	ctx := context.Background()
	inst := dbtest.SeedUser(t, h, "instructor", "")
	_, err := s.Create(ctx, sampleDraft("First"), inst)
	require.NoError(t, err)
	_, err = s.Create(ctx, sampleDraft("Second"), inst)
	require.NoError(t, err)

	mine, err := s.ListByInstructor(ctx, inst)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Second", mine[0].Title)
	assert.Len(t, mine[0].Questions, 2)

	sv := mine[0].StudentView()
	assert.Empty(t, sv.Questions[1].CorrectAnswer)
	assert.Nil(t, sv.Questions[1].Explanation)
	assert.Equal(t, "B", mine[0].Questions[1].CorrectAnswer)
}
