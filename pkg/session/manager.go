package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/generator"
)

const DefaultTTL = 8 * time.Hour

// Manager issues and resolves sessions on top of a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Create(ctx context.Context, token, user string, role claims.Role) (*Session, error) {
	now := m.now().UTC()

	id, err := generator.SessionID(now)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		Token:     token,
		User:      user,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.logger.Info("session created", "user", user, "role", role)
	return s, nil
}

// Lookup reports whether id names a live session. Backend failures count as absent.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Error("session lookup", "error", err)
		}
		return nil, false
	}
	if s.Expired(m.now()) {
		return nil, false
	}
	return s, true
}

func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
