package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const evaluationKeyPrefix = "screener:evaluation:"

// Store persists evaluation results keyed by session id. Put must fail with
// ErrAlreadyEvaluated when a result already exists.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Result, error)
	Put(ctx context.Context, result *Result) error
	List(ctx context.Context) ([]*Result, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]*Result)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[sessionID]
	if !ok {
		return nil, ErrNoEvaluation
	}

	cp := *result
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[result.SessionID]; ok {
		return ErrAlreadyEvaluated
	}

	cp := *result
	s.results[result.SessionID] = &cp
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Result, 0, len(s.results))
	for _, r := range s.results {
		cp := *r
		results = append(results, &cp)
	}
	return results, nil
}

// RedisStore keeps evaluation results in Redis next to the session records.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Result, error) {
	data, err := s.client.Get(ctx, evaluationKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoEvaluation
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation %s: %w", sessionID, err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode evaluation %s: %w", sessionID, err)
	}

	return &result, nil
}

func (s *RedisStore) Put(ctx context.Context, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode evaluation %s: %w", result.SessionID, err)
	}

	// SetNX preserves the first result; a second evaluation never wins.
	ok, err := s.client.SetNX(ctx, evaluationKeyPrefix+result.SessionID, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("put evaluation %s: %w", result.SessionID, err)
	}
	if !ok {
		return ErrAlreadyEvaluated
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Result, error) {
	var results []*Result

	iter := s.client.Scan(ctx, 0, evaluationKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list evaluations: %w", err)
		}

		var result Result
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("decode evaluation %s: %w", iter.Val(), err)
		}

		results = append(results, &result)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	return results, nil
}
