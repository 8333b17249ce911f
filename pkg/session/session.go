package session

import (
	"context"
	"errors"
	"time"

	"foresttracker/pkg/claims"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
	ErrExpired  = errors.New("session already expired")
)

// Session binds an opaque id handed to the browser to the upstream token issued at login.
// Records are never mutated after creation.
type Session struct {
	ID        string
	Token     string
	User      string
	Role      claims.Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is a session backend. Get returns ErrNotFound for absent and expired records alike.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// record is the serialized form shared by the file and redis backends.
type record struct {
	Token     string      `json:"token"`
	User      string      `json:"user"`
	Role      claims.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func newRecord(s *Session) record {
	return record{
		Token:     s.Token,
		User:      s.User,
		Role:      s.Role,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

func (r record) session(id string) *Session {
	return &Session{
		ID:        id,
		Token:     r.Token,
		User:      r.User,
		Role:      r.Role,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}
