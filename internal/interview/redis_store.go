package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "screener:session:"

// RedisStore persists sessions as JSON blobs in Redis, allowing the
// interview engine to survive process restarts and scale across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	// TTL bounds how long finished and abandoned sessions are kept.
	// Zero means no expiry.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	return &session, nil
}

func (s *RedisStore) Put(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Session, error) {
	var sessions []*Session

	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", iter.Val(), err)
		}

		sessions = append(sessions, &session)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	if deleted == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Client exposes the underlying Redis client so sibling stores can share
// the connection.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
