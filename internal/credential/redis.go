package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tuankiet2640/mai-client/internal/domain"
	"github.com/tuankiet2640/mai-client/internal/reliability/retry"
)

const (
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
	keyUser         = "user"
)

// RedisStore persists the credential record in Redis so that every process
// of the same deployment sees one record. Each writer publishes on a change
// channel after mutating, which Watch subscribes to; polling by the session
// manager covers missed publishes.
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	channel string
	logger  *slog.Logger
}

// NewRedisStore connects to Redis and returns a store rooted at the given
// key prefix. The initial ping is retried with backoff because the store is
// typically brought up alongside its Redis.
func NewRedisStore(ctx context.Context, url, prefix string, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "mai:session:"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	_, err = retry.Do(ctx, retry.DefaultConfig(), logger, "redis connect", func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		rdb:     rdb,
		prefix:  prefix,
		channel: prefix + "changed",
		logger:  logger,
	}, nil
}

// NewRedisStoreWithClient wraps an existing Redis client. Used by tests.
func NewRedisStoreWithClient(rdb *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "mai:session:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, channel: prefix + "changed", logger: logger}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Load reads all three entries. A missing entry is not an error; it simply
// leaves its field zero.
func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	vals, err := s.rdb.MGet(ctx, s.key(keyAccessToken), s.key(keyRefreshToken), s.key(keyUser)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("load credentials: %w", err)
	}

	var rec Record
	if v, ok := vals[0].(string); ok {
		rec.AccessToken = v
	}
	if v, ok := vals[1].(string); ok {
		rec.RefreshToken = v
	}
	if v, ok := vals[2].(string); ok && v != "" {
		var u domain.UserProfile
		if err := json.Unmarshal([]byte(v), &u); err != nil {
			// A corrupt profile entry must not wedge the session; treat it
			// as absent so the manager re-fetches.
			s.logger.Warn("discarding unreadable user entry", slog.String("error", err.Error()))
		} else {
			rec.User = &u
		}
	}
	return rec, nil
}

// SaveTokens stores both token entries, then signals the change.
func (s *RedisStore) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.rdb.MSet(ctx,
		s.key(keyAccessToken), accessToken,
		s.key(keyRefreshToken), refreshToken,
	).Err(); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	s.publish(ctx)
	return nil
}

// SaveUser stores the profile entry as JSON, then signals the change.
func (s *RedisStore) SaveUser(ctx context.Context, user *domain.UserProfile) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(keyUser), data, 0).Err(); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	s.publish(ctx)
	return nil
}

// Clear removes all three entries, tokens first so no reader can observe a
// token surviving the teardown of the rest. Deleting absent keys is a no-op,
// which makes Clear idempotent.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key(keyAccessToken), s.key(keyRefreshToken)).Err(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	if err := s.rdb.Del(ctx, s.key(keyUser)).Err(); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	s.publish(ctx)
	return nil
}

// Watch subscribes to the change channel until ctx is cancelled. Receivers
// must re-read the store on each signal.
func (s *RedisStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := s.rdb.Subscribe(ctx, s.channel)
	// Force the subscription to be established before returning so callers
	// never miss a publish that happens right after Watch.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// publish is best-effort: a lost signal only delays convergence until the
// next reconciliation poll.
func (s *RedisStore) publish(ctx context.Context) {
	if err := s.rdb.Publish(ctx, s.channel, "changed").Err(); err != nil {
		s.logger.Warn("failed to publish credential change", slog.String("error", err.Error()))
	}
}
