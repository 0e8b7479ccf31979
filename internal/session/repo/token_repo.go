package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/session/entity"
)

// ErrNotFound is returned by every token backend when the token is absent.
var ErrNotFound = errors.New("token not found")

// TokenRepo stores access tokens in the access_tokens table.
type TokenRepo struct {
	db *sqlx.DB
}

func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// EnsureTable creates the access_tokens table if not exists (idempotent).
func (r *TokenRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS access_tokens (
  token TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL,
  expires TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_tokens_expires ON access_tokens(expires);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *TokenRepo) Save(ctx context.Context, t *entity.AccessToken) error {
	const q = `INSERT INTO access_tokens (token, user_id, expires) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, q, t.Token, t.UserID, t.Expires); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *TokenRepo) Get(ctx context.Context, token string) (*entity.AccessToken, error) {
	const q = `SELECT token, user_id, expires FROM access_tokens WHERE token = $1`
	var t entity.AccessToken
	if err := r.db.GetContext(ctx, &t, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// Delete removes the token and reports whether a row existed.
func (r *TokenRepo) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired removes every token that expired before the given instant.
func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}
