package session_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/session"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		username TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);`

	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func TestMySQLStore_SaveAndGet(t *testing.T) {
	store := session.NewMySQLStore(setupTestDB(t))
	ctx := context.Background()

	s := newSession("session_1_abc", time.Hour)
	s.Role = claims.RoleAdmin
	require.NoError(t, store.Save(ctx, s))

	assert.Error(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Token, got.Token)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, claims.RoleAdmin, got.Role)
	assert.Equal(t, s.ExpiresAt.Unix(), got.ExpiresAt.Unix())

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMySQLStore_Expired(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO sessions (id, token, username, role, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		"old", "t", "u", "user", past-10, past,
	)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, newSession("live", time.Hour)))

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, session.ErrNotFound)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestMySQLStore_BrokenSchema(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := session.NewMySQLStore(db)

	_, err = store.Get(context.Background(), "any")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNotFound)
}
