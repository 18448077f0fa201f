// Package events is an append-only audit trail of domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/quizbuilder/internal/db"
)

const (
	TypeAttemptSubmitted = "attempt.submitted"
	TypeAssistantTool    = "assistant.tool"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repo appends through whatever Querier it is handed, so events can join a
// caller's transaction.
type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

// With returns a Repo writing through q.
func (r *Repo) With(q db.Querier) *Repo { return &Repo{q: q} }

func (r *Repo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().UnixNano())
	return err
}

// List returns events of one type for a key, oldest first.
func (r *Repo) List(ctx context.Context, typ, key string) ([]Event, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT seq, typ, key, data, created_at FROM event_log WHERE typ = $1 AND key = $2 ORDER BY seq`, typ, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e       Event
			data    string
			created int64
		)
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &data, &created); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
