package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedis struct {
	mu     sync.Mutex
	lookup map[string][]byte
	// Calls counts commands per name.
	calls map[string]int
}

// NewMockClient returns an in-memory Client for tests.
func NewMockClient() Client {
	return newMockRedis()
}

func newMockRedis() *mockRedis {
	return &mockRedis{
		lookup: make(map[string][]byte),
		calls:  make(map[string]int),
	}
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get"]++
	ba, ok := m.lookup[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(ba), nil)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["set"]++
	switch v := value.(type) {
	case []byte:
		m.lookup[key] = append([]byte(nil), v...)
	case string:
		m.lookup[key] = []byte(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["del"]++
	var n int64
	for _, k := range keys {
		if _, ok := m.lookup[k]; ok {
			delete(m.lookup, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}
