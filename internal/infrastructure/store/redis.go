package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

const (
	defaultRedisURL       = "redis://localhost:6379"
	defaultRedisOpTimeout = 2 * time.Second
	sessionKeyPrefix      = "configurator:session:"
)

// Redis stores snapshots as JSON with a TTL refreshed on every save.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis connects to a redis:// URL and pings it.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	if url == "" {
		url = defaultRedisURL
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), defaultRedisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (s *Redis) Save(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	cctx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Set(cctx, SessionKey(snap.SessionID), data, s.ttl).Err()
}

func (s *Redis) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	cctx, cancel := opContext(ctx)
	defer cancel()
	data, err := s.client.Get(cctx, SessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, notFound(sessionID)
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

func (s *Redis) Delete(ctx context.Context, sessionID string) error {
	cctx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Del(cctx, SessionKey(sessionID)).Err()
}

// Close closes the underlying Redis client.
func (s *Redis) Close() error {
	return s.client.Close()
}

// SessionKey is the Redis key holding a session snapshot.
func SessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), defaultRedisOpTimeout)
}

func notFound(sessionID string) error {
	return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
}

// cloneSnapshot deep-copies through JSON so callers never share slices or
// maps with the store.
func cloneSnapshot(snap domain.Snapshot) (domain.Snapshot, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	var out domain.Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}
