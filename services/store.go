package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Store.Get for absent keys.
var ErrNotFound = errors.New("store: key not found")

// SetOptions mirrors the conditional/expiring SET semantics the ledger
// relies on. TTL of zero means no expiry; NX makes the write conditional on
// the key being absent.
type SetOptions struct {
	TTL time.Duration
	NX  bool
}

// Store is the single source of truth shared by every component. All
// operations are single-key; the ledger never needs cross-key transactions.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value. With NX it reports false when the key already
	// existed and the write was skipped.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) (bool, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	SAdd(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	// CompareAndDelete removes the key only while it still holds expected.
	// Reports whether the delete happened.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
}

// compareAndDeleteScript is the classic check-then-delete used for lease
// release; atomic because Redis runs the script single-threaded.
const compareAndDeleteScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// RedisStore implements Store on a shared Redis instance.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a
// bounded ping before returning.
func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{Client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, opts SetOptions) (bool, error) {
	if opts.NX {
		ok, err := s.Client.SetNX(ctx, key, value, opts.TTL).Result()
		if err != nil {
			return false, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		return ok, nil
	}
	if err := s.Client.Set(ctx, key, value, opts.TTL).Err(); err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	result := make([][]byte, len(values))
	for i, value := range values {
		switch v := value.(type) {
		case string:
			result[i] = []byte(v)
		case nil:
			result[i] = nil
		default:
			result[i] = []byte(fmt.Sprint(v))
		}
	}
	return result, nil
}

func (s *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.Client.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.Client.PExpire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis pexpire %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SAdd(ctx context.Context, key string, member string) error {
	if err := s.Client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.Client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}
	return members, nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	deleted, err := s.Client.Eval(ctx, compareAndDeleteScript, []string{key}, string(expected)).Int64()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-delete %s: %w", key, err)
	}
	return deleted == 1, nil
}
