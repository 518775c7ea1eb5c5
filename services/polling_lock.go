package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
)

const (
	pollingLockKey       = "lock:polling"
	defaultLockTTL       = 30 * time.Second
	lockRefreshFraction  = 0.5
	minimumRefreshPeriod = time.Second
)

// PollingLock is a lease-based mutex over the store guaranteeing a single
// active long-poll consumer. The holder refreshes the lease at half the
// TTL; a crashed holder's lease expires on its own within one TTL.
type PollingLock struct {
	Store Store
	Key   string
	TTL   time.Duration

	mu     sync.Mutex
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPollingLock(store Store) *PollingLock {
	return &PollingLock{
		Store: store,
		Key:   pollingLockKey,
		TTL:   defaultLockTTL,
	}
}

func (l *PollingLock) refreshPeriod() time.Duration {
	period := time.Duration(float64(l.TTL) * lockRefreshFraction)
	if period < minimumRefreshPeriod {
		period = minimumRefreshPeriod
	}
	return period
}

// Acquire takes the lease with an atomic set-if-absent and starts the
// background refresh loop. ErrLockContention means another process holds
// it and this one must not start consuming events.
func (l *PollingLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return ErrLockContention
	}

	token := uuid.NewString()
	acquired, err := l.Store.Set(ctx, l.Key, []byte(token), SetOptions{TTL: l.TTL, NX: true})
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockContention
	}

	l.token = token
	refreshCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.refreshLoop(refreshCtx, token)
	return nil
}

func (l *PollingLock) refreshLoop(ctx context.Context, token string) {
	defer close(l.done)
	ticker := time.NewTicker(l.refreshPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := l.Store.Get(ctx, l.Key)
			if err == ErrNotFound || (err == nil && string(current) != token) {
				// Lease lost or taken over; stop refreshing, the consumer
				// keeps running until operators intervene.
				logger.Warn("polling lock token changed unexpectedly, stopping refresh loop",
					zap.String("key", l.Key))
				return
			}
			if err != nil {
				logger.Error("failed to read polling lock during refresh", zap.Error(err))
				continue
			}
			if err := l.Store.Expire(ctx, l.Key, l.TTL); err != nil {
				logger.Error("failed to extend polling lock lease", zap.Error(err))
			}
		}
	}
}

// Release stops the refresh loop and deletes the key only while it still
// holds our token. Never blocks the caller on failure.
func (l *PollingLock) Release(ctx context.Context) {
	l.mu.Lock()
	token := l.token
	cancel := l.cancel
	done := l.done
	l.token = ""
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if token == "" {
		return
	}
	if cancel != nil {
		cancel()
		<-done
	}

	deleted, err := l.Store.CompareAndDelete(ctx, l.Key, []byte(token))
	if err != nil {
		logger.Error("failed to release polling lock", zap.Error(err))
		return
	}
	if !deleted {
		logger.Warn("polling lock was no longer ours at release", zap.String("key", l.Key))
	}
}
