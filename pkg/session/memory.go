package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps sessions in process memory; everything is lost on restart.
// With a non-zero capacity the least recently used session is evicted first.
type MemoryStore struct {
	cache *ttlcache.Cache[string, *Session]
}

func NewMemoryStore(capacity uint64) *MemoryStore {
	opts := []ttlcache.Option[string, *Session]{
		ttlcache.WithDisableTouchOnHit[string, *Session](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *Session](capacity))
	}

	cache := ttlcache.New(opts...)
	go cache.Start()

	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	ttl := ttlcache.NoTTL
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return ErrExpired
		}
	}

	if s.cache.Has(sess.ID) {
		return ErrExists
	}

	cp := *sess
	s.cache.Set(sess.ID, &cp, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}

	cp := *item.Value()
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close stops the expiry goroutine.
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}

func (s *MemoryStore) snapshot() []*Session {
	items := s.cache.Items()
	out := make([]*Session, 0, len(items))
	for _, item := range items {
		if item.IsExpired() {
			continue
		}
		cp := *item.Value()
		out = append(out, &cp)
	}
	return out
}
