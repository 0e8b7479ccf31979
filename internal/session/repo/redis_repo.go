package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/session/entity"
)

const redisKeyPrefix = "session:token:"

// RedisTokenRepo keeps tokens as JSON values whose key TTL ends at the token's
// expiry, so Redis drops expired tokens by itself.
type RedisTokenRepo struct {
	rc    *redis.Client
	clock clockwork.Clock
}

// NewRedisTokenRepo should get the same clock as the session.Store using it,
// so key TTLs line up with token expiry. A nil clock means the real clock.
func NewRedisTokenRepo(rc *redis.Client, clock clockwork.Clock) *RedisTokenRepo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisTokenRepo{rc: rc, clock: clock}
}

func redisKey(token string) string { return redisKeyPrefix + token }

func (r *RedisTokenRepo) Save(ctx context.Context, t *entity.AccessToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	// a non-positive TTL would store the key forever; the on-read check still rejects it
	ttl := t.Expires.Sub(r.clock.Now())
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rc.Set(ctx, redisKey(t.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *RedisTokenRepo) Get(ctx context.Context, token string) (*entity.AccessToken, error) {
	raw, err := r.rc.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	var t entity.AccessToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &t, nil
}

func (r *RedisTokenRepo) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.rc.Del(ctx, redisKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op: key TTLs already evict expired tokens.
func (r *RedisTokenRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
