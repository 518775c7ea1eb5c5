package services

import (
	"context"
	"path"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the service tests. TTLs are
// honored against an overridable clock so lease expiry can be simulated
// without sleeping.
type memStore struct {
	mu   sync.Mutex
	now  func() time.Time
	data map[string]memEntry
	sets map[string]map[string]struct{}
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		now:  time.Now,
		data: make(map[string]memEntry),
		sets: make(map[string]map[string]struct{}),
	}
}

func (s *memStore) expired(entry memEntry) bool {
	return !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)
}

func (s *memStore) get(key string) (memEntry, bool) {
	entry, ok := s.data[key]
	if !ok {
		return memEntry{}, false
	}
	if s.expired(entry) {
		delete(s.data, key)
		return memEntry{}, false
	}
	return entry, true
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte, opts SetOptions) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.NX {
		if _, exists := s.get(key); exists {
			return false, nil
		}
	}
	entry := memEntry{value: append([]byte(nil), value...)}
	if opts.TTL > 0 {
		entry.expiresAt = s.now().Add(opts.TTL)
	}
	s.data[key] = entry
	return true, nil
}

func (s *memStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([][]byte, len(keys))
	for i, key := range keys {
		if entry, ok := s.get(key); ok {
			result[i] = append([]byte(nil), entry.value...)
		}
	}
	return result, nil
}

func (s *memStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key, entry := range s.data {
		if s.expired(entry) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *memStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.get(key)
	return ok, nil
}

func (s *memStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.get(key)
	if !ok {
		return nil
	}
	entry.expiresAt = s.now().Add(ttl)
	s.data[key] = entry
	return nil
}

func (s *memStore) SAdd(ctx context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (s *memStore) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []string
	for member := range s.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (s *memStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.get(key)
	if !ok || string(entry.value) != string(expected) {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}
