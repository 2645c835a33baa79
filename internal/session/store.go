package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ricemart/ricemart-auth/internal/identity"
)

// Store persists the session for one device. It is a dumb persistence
// surface: no validation, no network logic. Atomicity of the triple is the
// caller's discipline; Save and Clear always touch all three keys.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

const (
	accessSuffix  = ":access"
	refreshSuffix = ":refresh"
	userSuffix    = ":user"
)

// RedisStore keeps the session under three independent keys in the device's
// namespace, mirroring the three slots of the storefront's durable storage.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a session store scoped to the given device identifier.
func NewRedisStore(client *redis.Client, deviceID string) *RedisStore {
	return &RedisStore{client: client, prefix: "sess:v1:" + deviceID}
}

// Load reads the stored session. Missing keys or a corrupted user snapshot
// yield an empty session rather than an error detail the caller could act on.
func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	vals, err := r.client.MGet(ctx, r.prefix+accessSuffix, r.prefix+refreshSuffix, r.prefix+userSuffix).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	s := Session{
		AccessToken:  asString(vals[0]),
		RefreshToken: asString(vals[1]),
	}
	if raw := asString(vals[2]); raw != "" {
		var user identity.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return Session{}, nil
		}
		s.User = user
	}
	return s, nil
}

// Save writes the triple in a single pipeline so no reader observes a
// half-written session.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	snapshot, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode user snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefix+accessSuffix, s.AccessToken, 0)
	pipe.Set(ctx, r.prefix+refreshSuffix, s.RefreshToken, 0)
	pipe.Set(ctx, r.prefix+userSuffix, snapshot, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes all three keys.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.prefix+accessSuffix, r.prefix+refreshSuffix, r.prefix+userSuffix).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
