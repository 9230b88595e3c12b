package cache

import (
	"context"
	"testing"
	"time"
)

type memoryStore struct {
	keys map[string]bool
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func TestIdempotencyGuardDetectsReplay(t *testing.T) {
	store := &memoryStore{keys: map[string]bool{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("new guard failed: %v", err)
	}
	ctx := context.Background()

	dup, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || dup {
		t.Fatalf("first delivery should not be duplicate, dup=%v err=%v", dup, err)
	}
	dup, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil || !dup {
		t.Fatalf("replay should be duplicate, dup=%v err=%v", dup, err)
	}
	if err := guard.Release(ctx, "evt_1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	dup, _ = guard.CheckAndMark(ctx, "evt_1")
	if dup {
		t.Fatalf("released event should be processable again")
	}
	if _, ok := store.keys["idempotency:stripe:evt_1"]; !ok {
		t.Fatalf("unexpected key layout: %+v", store.keys)
	}
}

func TestNewIdempotencyGuardValidates(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "stripe"); err == nil {
		t.Fatalf("nil store should fail")
	}
	if _, err := NewIdempotencyGuard(&memoryStore{}, time.Hour, " "); err == nil {
		t.Fatalf("empty scope should fail")
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient(nil)
	if c.Enabled() {
		t.Fatalf("nil config should disable client")
	}
	set, err := c.SetNX(context.Background(), "k", "1", time.Minute)
	if err != nil || !set {
		t.Fatalf("disabled SetNX should report set, got %v %v", set, err)
	}
	found, err := c.GetJSON(context.Background(), "k", &struct{}{})
	if err != nil || found {
		t.Fatalf("disabled GetJSON should miss")
	}
}
