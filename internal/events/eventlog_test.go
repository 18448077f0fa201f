package events

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizbuilder/internal/db"
	"github.com/mind-engage/quizbuilder/internal/db/dbtest"
)

func TestAppendAndList(t *testing.T) {
	h := dbtest.Open(t)
	ctx := context.Background()
	r := NewRepo(h)

	require.NoError(t, r.Append(ctx, TypeAssistantTool, "u1", map[string]any{"tool": "list_quizzes"}))
	require.NoError(t, db.InTx(ctx, h, func(tx *sql.Tx) error {
		return r.With(tx).Append(ctx, TypeAssistantTool, "u1", map[string]any{"tool": "delete_quiz"})
	}))
	require.NoError(t, r.Append(ctx, TypeAssistantTool, "u2", map[string]any{"tool": "x"}))

	evs, err := r.List(ctx, TypeAssistantTool, "u1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.JSONEq(t, `{"tool":"list_quizzes"}`, string(evs[0].Data))
	assert.JSONEq(t, `{"tool":"delete_quiz"}`, string(evs[1].Data))
}

func TestAppendRolledBack(t *testing.T) {
	h := dbtest.Open(t)
	ctx := context.Background()
	r := NewRepo(h)

	err := db.InTx(ctx, h, func(tx *sql.Tx) error {
		if err := r.With(tx).Append(ctx, TypeAttemptSubmitted, "a1", nil); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	require.Error(t, err)

	evs, err := r.List(ctx, TypeAttemptSubmitted, "a1")
	require.NoError(t, err)
	assert.Empty(t, evs)
}
