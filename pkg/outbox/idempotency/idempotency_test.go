package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	marked      map[string]bool
	setNXError  error
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{marked: map[string]bool{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.setNXError != nil {
		return false, f.setNXError
	}
	f.lastTTL = ttl
	if f.marked[key] {
		return false, nil
	}
	f.marked[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "ss:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.marked, key)
		f.lastDeleted = key
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "fulfillment", "evt-1")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatal("expected first delivery to be new")
	}
	if !store.marked["ss:idempotency:evt:processed:fulfillment:evt-1"] {
		t.Fatalf("unexpected keys %v", store.marked)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}

	already, err = manager.CheckAndMarkProcessed(context.Background(), "fulfillment", "evt-1")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatal("expected second delivery to be a duplicate")
	}

	already, err = manager.CheckAndMarkProcessed(context.Background(), "analytics", "evt-1")
	if err != nil || already {
		t.Fatalf("expected consumers to be isolated, already=%v err=%v", already, err)
	}
}

func TestCheckAndMarkProcessedValidation(t *testing.T) {
	manager, _ := NewManager(newFakeStore(), time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", "evt"); err == nil {
		t.Fatal("expected consumer error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "c", " "); err == nil {
		t.Fatal("expected event id error")
	}

	store := newFakeStore()
	store.setNXError = errors.New("boom")
	manager, _ = NewManager(store, time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "c", "evt"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestRunSkipsDuplicates(t *testing.T) {
	manager, _ := NewManager(newFakeStore(), time.Hour)
	calls := 0
	handler := func(context.Context) error {
		calls++
		return nil
	}

	dup, err := manager.Run(context.Background(), "email", "evt-9", handler)
	if err != nil || dup {
		t.Fatalf("first run dup=%v err=%v", dup, err)
	}
	dup, err = manager.Run(context.Background(), "email", "evt-9", handler)
	if err != nil || !dup {
		t.Fatalf("second run dup=%v err=%v", dup, err)
	}
	if calls != 1 {
		t.Fatalf("expected handler once, got %d", calls)
	}
}

func TestRunReleasesMarkerOnFailure(t *testing.T) {
	store := newFakeStore()
	manager, _ := NewManager(store, time.Hour)

	_, err := manager.Run(context.Background(), "email", "evt-2", func(context.Context) error {
		return errors.New("smtp down")
	})
	if err == nil {
		t.Fatal("expected handler error")
	}
	if store.lastDeleted != "ss:idempotency:evt:processed:email:evt-2" {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}

	calls := 0
	dup, err := manager.Run(context.Background(), "email", "evt-2", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || dup || calls != 1 {
		t.Fatalf("expected retry to run handler, dup=%v err=%v calls=%d", dup, err, calls)
	}
}
