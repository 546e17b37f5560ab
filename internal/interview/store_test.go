package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := &Session{
		ID:            "s1",
		Phase:         PhaseIntroduction,
		AskedPerSkill: map[string]int{"go": 1},
		Version:       1,
		StartedAt:     time.Now().UTC(),
	}

	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	session.Phase = PhaseComplete
	session.AskedPerSkill["go"] = 99

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Phase != PhaseIntroduction {
		t.Fatalf("store leaked a mutation: phase %q", got.Phase)
	}
	if got.AskedPerSkill["go"] != 1 {
		t.Fatalf("store leaked a map mutation: %d", got.AskedPerSkill["go"])
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if err := store.Delete(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on delete, got %v", err)
	}
}

func TestMemoryStoreListOrdersByStart(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"later", "earlier"} {
		offset := time.Duration(1-i) * time.Hour
		if err := store.Put(ctx, &Session{ID: id, StartedAt: base.Add(offset)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sessions) != 2 || sessions[0].ID != "earlier" || sessions[1].ID != "later" {
		t.Fatalf("unexpected order: %v, %v", sessions[0].ID, sessions[1].ID)
	}
}

func newRedisTestStore(t *testing.T, ttl time.Duration) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreWithClient(client, ttl)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisTestStore(t, 0)
	ctx := context.Background()

	completed := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		ID:    "s1",
		Phase: PhaseComplete,
		Profile: Profile{
			Name:         "Jordan",
			Email:        "not-an-email",
			EmailFlagged: true,
		},
		Transcript: []Entry{
			{SkillID: "go", Question: "Q?", Answer: "A.", AskedAt: completed},
		},
		AskedPerSkill: map[string]int{"go": 2},
		Version:       7,
		StartedAt:     completed.Add(-10 * time.Minute),
		CompletedAt:   &completed,
	}

	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Version != 7 || !got.Profile.EmailFlagged || got.AskedPerSkill["go"] != 2 {
		t.Fatalf("round trip lost state: %+v", got)
	}
	if len(got.Transcript) != 1 || got.Transcript[0].SkillID != "go" {
		t.Fatalf("round trip lost the transcript: %+v", got.Transcript)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("round trip lost the completion time: %v", got.CompletedAt)
	}
}

func TestRedisStoreNotFound(t *testing.T) {
	store := newRedisTestStore(t, 0)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreListAndDelete(t *testing.T) {
	store := newRedisTestStore(t, 0)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Put(ctx, &Session{ID: id, Version: 1}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on the second delete, got %v", err)
	}
}

func TestRedisStoreHonorsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStoreWithClient(client, time.Hour)
	ctx := context.Background()

	if err := store.Put(ctx, &Session{ID: "s1", Version: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected the session to expire, got %v", err)
	}
}
