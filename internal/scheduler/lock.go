// Package scheduler drives the daily scheduled-payment job and guards it with
// a lock so only one worker replica processes a given day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finpanel/internal/uuid"

	"github.com/redis/rueidis"
)

// ErrNotHeld is returned when releasing a lock this holder no longer owns.
var ErrNotHeld = errors.New("scheduler: lock not held")

// Lock is a lease-based mutual exclusion primitive.
type Lock interface {
	// TryAcquire takes key for ttl. It reports false without error when
	// another holder owns the key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// Lease releases an acquired lock.
type Lease interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only when it still carries our token.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements Lock with SET NX PX on a shared Redis.
type RedisLock struct {
	client rueidis.Client
	prefix string
}

// NewRedisLock connects to the Redis server at addr.
func NewRedisLock(addr string) (*RedisLock, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return &RedisLock{client: client, prefix: "finpanel:lock:"}, nil
}

func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	fullKey := l.prefix + key
	token := uuid.New()

	cmd := l.client.B().Set().Key(fullKey).Value(token).Nx().Px(ttl).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return &redisLease{lock: l, key: fullKey, token: token}, true, nil
}

// ConnectRedisLock creates a RedisLock and pings the server, so a bad address
// or unreachable server fails at start-up instead of at the first run.
func ConnectRedisLock(ctx context.Context, addr string) (*RedisLock, error) {
	l, err := NewRedisLock(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := l.Ping(ctx); err != nil {
		l.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return l, nil
}

// Ping checks connectivity.
func (l *RedisLock) Ping(ctx context.Context) error {
	return l.client.Do(ctx, l.client.B().Ping().Build()).Error()
}

// Close closes the Redis client.
func (l *RedisLock) Close() {
	l.client.Close()
}

type redisLease struct {
	lock  *RedisLock
	key   string
	token string
}

func (r *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Exec(ctx, r.lock.client, []string{r.key}, []string{r.token}).AsInt64()
	if err != nil {
		return fmt.Errorf("release %s: %w", r.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// MemoryLock implements Lock within a single process.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemoryLock returns an in-process lock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[string]memoryEntry), clock: time.Now}
}

func (l *MemoryLock) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, false, nil
	}
	token := uuid.New()
	l.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLease{lock: l, key: key, token: token}, true, nil
}

type memoryLease struct {
	lock  *MemoryLock
	key   string
	token string
}

func (m *memoryLease) Release(context.Context) error {
	m.lock.mu.Lock()
	defer m.lock.mu.Unlock()

	if e, ok := m.lock.held[m.key]; !ok || e.token != m.token {
		return ErrNotHeld
	}
	delete(m.lock.held, m.key)
	return nil
}

var (
	_ Lock = (*RedisLock)(nil)
	_ Lock = (*MemoryLock)(nil)
)
