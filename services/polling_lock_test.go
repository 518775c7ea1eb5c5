package services

import (
	"context"
	"testing"
	"time"
)

func TestPollingLockSingleHolder(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	first := NewPollingLock(store)
	second := NewPollingLock(store)

	if err := first.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := second.Acquire(ctx); err != ErrLockContention {
		t.Fatalf("second acquire = %v, want ErrLockContention", err)
	}
	// Re-acquiring on the holding instance is also contention.
	if err := first.Acquire(ctx); err != ErrLockContention {
		t.Fatalf("re-acquire on holder = %v, want ErrLockContention", err)
	}

	first.Release(ctx)
	if exists, _ := store.Exists(ctx, pollingLockKey); exists {
		t.Fatalf("lease key survived release")
	}

	if err := second.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	second.Release(ctx)
}

func TestPollingLockExpiredLeaseCanBeTaken(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// A crashed holder left its lease behind.
	if _, err := store.Set(ctx, pollingLockKey, []byte("stale-token"), SetOptions{TTL: defaultLockTTL, NX: true}); err != nil {
		t.Fatalf("seed stale lease: %v", err)
	}

	lock := NewPollingLock(store)
	if err := lock.Acquire(ctx); err != ErrLockContention {
		t.Fatalf("acquire against live lease = %v, want ErrLockContention", err)
	}

	store.now = func() time.Time { return time.Now().Add(defaultLockTTL + time.Second) }
	if err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire after lease expiry: %v", err)
	}
	lock.Release(ctx)
}

func TestPollingLockReleaseKeepsForeignLease(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	lock := NewPollingLock(store)
	if err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Another process took over the key, e.g. after a partition.
	if _, err := store.Set(ctx, pollingLockKey, []byte("foreign-token"), SetOptions{TTL: defaultLockTTL}); err != nil {
		t.Fatalf("overwrite lease: %v", err)
	}

	lock.Release(ctx)
	value, err := store.Get(ctx, pollingLockKey)
	if err != nil {
		t.Fatalf("foreign lease was deleted: %v", err)
	}
	if string(value) != "foreign-token" {
		t.Fatalf("lease value = %q, want foreign-token", value)
	}
}

func TestPollingLockReleaseWithoutAcquire(t *testing.T) {
	lock := NewPollingLock(newMemStore())
	// Must be a no-op rather than a panic.
	lock.Release(context.Background())
}
