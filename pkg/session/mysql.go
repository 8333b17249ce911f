package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"foresttracker/pkg/claims"
)

// MySQLStore keeps sessions in the sessions table. Times are stored as unix seconds.
type MySQLStore struct {
	DB *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{DB: db}
}

func (r *MySQLStore) Save(ctx context.Context, s *Session) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, token, username, role, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.Token, s.User, string(s.Role), s.CreatedAt.Unix(), s.ExpiresAt.Unix())

	return err
}

func (r *MySQLStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		s                    = &Session{ID: id}
		role                 string
		createdAt, expiresAt int64
	)

	err := r.DB.QueryRowContext(ctx, `
		SELECT token, username, role, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`, id, time.Now().Unix()).Scan(&s.Token, &s.User, &role, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Role = claims.Role(role)
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return s, nil
}

func (r *MySQLStore) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *MySQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
