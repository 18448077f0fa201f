// Package dbtest opens throwaway sqlite databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizbuilder/internal/db"
)

// Open returns an isolated in-memory database with the schema applied.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// SeedUser inserts a user with an unusable password hash and returns its id.
func SeedUser(t testing.TB, h *sql.DB, role, displayName string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UnixNano()
	_, err := h.Exec(`INSERT INTO users (id,email,password_hash,role,display_name,theme_preference,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,'byu',$6,$7)`,
		id, id+"@example.test", "x", role, displayName, now, now)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// Clock is a deterministic, strictly increasing time source.
type Clock struct{ t time.Time }

func NewClock() *Clock { return &Clock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)} }

func (c *Clock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}
