package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is a MemoryStore whose full contents are rewritten to a JSON file
// after every mutation and read back at startup. Persistence is best effort:
// write failures are logged and the in-memory state keeps serving.
type FileStore struct {
	mu     sync.Mutex
	mem    *MemoryStore
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, capacity uint64, defaultTTL time.Duration, logger *slog.Logger) *FileStore {
	s := &FileStore{
		mem:    NewMemoryStore(capacity),
		path:   path,
		logger: logger,
	}
	s.load(defaultTTL)
	return s
}

func (s *FileStore) load(defaultTTL time.Duration) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Error("load sessions", "path", s.path, "error", err)
		return
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("parse sessions", "path", s.path, "error", err)
		return
	}

	now := time.Now().UTC()
	loaded := 0
	for id, rec := range records {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if rec.ExpiresAt.IsZero() {
			rec.ExpiresAt = now.Add(defaultTTL)
		}
		if !now.Before(rec.ExpiresAt) {
			continue
		}
		if err := s.mem.Save(context.Background(), rec.session(id)); err != nil {
			s.logger.Error("restore session", "error", err)
			continue
		}
		loaded++
	}
	s.logger.Info("sessions loaded", "path", s.path, "count", loaded)
}

func (s *FileStore) Save(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Save(ctx, sess); err != nil {
		return err
	}
	s.persist()
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	return s.mem.Get(ctx, id)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Delete(ctx, id); err != nil {
		return err
	}
	s.persist()
	return nil
}

func (s *FileStore) Close() error {
	return s.mem.Close()
}

// persist must be called with s.mu held.
func (s *FileStore) persist() {
	records := make(map[string]record)
	for _, sess := range s.mem.snapshot() {
		records[sess.ID] = newRecord(sess)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		s.logger.Error("encode sessions", "error", err)
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sessions-*")
	if err != nil {
		s.logger.Error("save sessions", "path", s.path, "error", err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.logger.Error("save sessions", "path", s.path, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Error("save sessions", "path", s.path, "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		s.logger.Error("save sessions", "path", s.path, "error", err)
	}
}
