package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/session/repo"
)

// TokenLifetime is how long an issued token stays valid. It is not configurable per call.
const TokenLifetime = 7 * 24 * time.Hour

// tokenBytes of crypto/rand output back every token (1024 bits).
const tokenBytes = 128

// Repository is the key-value backing store for tokens.
type Repository interface {
	Save(ctx context.Context, t *entity.AccessToken) error
	Get(ctx context.Context, token string) (*entity.AccessToken, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Store issues, resolves and revokes opaque session tokens.
type Store struct {
	repo  Repository
	clock clockwork.Clock
}

// NewStore returns a Store; a nil clock means the real clock.
func NewStore(r Repository, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{repo: r, clock: clock}
}

// CreateToken issues a new token for userID and persists it.
func (s *Store) CreateToken(ctx context.Context, userID int64) (*entity.AccessToken, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	t := &entity.AccessToken{
		Token:   hex.EncodeToString(buf),
		UserID:  userID,
		Expires: s.clock.Now().Add(TokenLifetime),
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetUserID resolves a token to its owner. ok is false when the token is
// unknown or expired; an expired token is deleted on the way out.
func (s *Store) GetUserID(ctx context.Context, token string) (userID int64, ok bool, err error) {
	t, err := s.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if t.Expired(s.clock.Now()) {
		if _, err := s.repo.Delete(ctx, token); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return t.UserID, true, nil
}

// RevokeToken deletes the token. It reports false when there was nothing to
// delete, which covers never-issued, already-revoked and already-swept tokens alike.
func (s *Store) RevokeToken(ctx context.Context, token string) (bool, error) {
	return s.repo.Delete(ctx, token)
}

// SweepExpired purges tokens that expired but were never read again.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
