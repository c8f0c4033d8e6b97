package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("00:05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Hour != 0 || c.Minute != 5 {
		t.Errorf("unexpected clock %+v", c)
	}

	if _, err := ParseClock("25:00"); err == nil {
		t.Error("expected error for invalid hour")
	}
}

func TestClock_NextRun(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	c := Clock{Hour: 0, Minute: 5}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before_today", time.Date(2026, 3, 1, 0, 1, 0, 0, loc), time.Date(2026, 3, 1, 0, 5, 0, 0, loc)},
		{"exactly_at", time.Date(2026, 3, 1, 0, 5, 0, 0, loc), time.Date(2026, 3, 1, 0, 5, 0, 0, loc)},
		{"after_today", time.Date(2026, 3, 1, 13, 0, 0, 0, loc), time.Date(2026, 3, 2, 0, 5, 0, 0, loc)},
		{"month_rollover", time.Date(2026, 1, 31, 23, 0, 0, 0, loc), time.Date(2026, 2, 1, 0, 5, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.NextRun(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()

	t.Run("exclusive_until_release", func(t *testing.T) {
		lock := NewMemoryLock()
		lease, ok, err := lock.TryAcquire(ctx, "day", time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
		}
		if _, ok, _ := lock.TryAcquire(ctx, "day", time.Minute); ok {
			t.Fatal("second acquire should fail while held")
		}
		if err := lease.Release(ctx); err != nil {
			t.Fatalf("release: %v", err)
		}
		if _, ok, _ := lock.TryAcquire(ctx, "day", time.Minute); !ok {
			t.Fatal("acquire after release should succeed")
		}
	})

	t.Run("expires_after_ttl", func(t *testing.T) {
		lock := NewMemoryLock()
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		lock.clock = func() time.Time { return now }

		stale, _, _ := lock.TryAcquire(ctx, "day", time.Minute)
		now = now.Add(2 * time.Minute)
		if _, ok, _ := lock.TryAcquire(ctx, "day", time.Minute); !ok {
			t.Fatal("expired lease should not block")
		}
		if err := stale.Release(ctx); !errors.Is(err, ErrNotHeld) {
			t.Errorf("stale release should report ErrNotHeld, got %v", err)
		}
	})
}

func TestExclusive(t *testing.T) {
	ctx := context.Background()
	lock := NewMemoryLock()
	now := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)

	t.Run("runs_when_free", func(t *testing.T) {
		calls := 0
		job := Exclusive(lock, time.Minute, func(context.Context, time.Time) error {
			calls++
			return nil
		})
		if err := job(ctx, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("skips_when_held", func(t *testing.T) {
		lease, _, _ := lock.TryAcquire(ctx, "scheduled-run:2026-03-01", time.Minute)
		defer lease.Release(ctx)

		calls := 0
		job := Exclusive(lock, time.Minute, func(context.Context, time.Time) error {
			calls++
			return nil
		})
		if err := job(ctx, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 0 {
			t.Errorf("expected job to be skipped, got %d calls", calls)
		}
	})

	t.Run("propagates_job_error_and_releases", func(t *testing.T) {
		boom := errors.New("boom")
		job := Exclusive(lock, time.Minute, func(context.Context, time.Time) error { return boom })
		later := now.AddDate(0, 0, 1)
		if err := job(ctx, later); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, ok, _ := lock.TryAcquire(ctx, "scheduled-run:2026-03-02", time.Minute); !ok {
			t.Error("lock should be released after the job returns")
		}
	})
}

func TestConnectRedisLock_FailsFast(t *testing.T) {
	if _, err := ConnectRedisLock(context.Background(), ""); err == nil {
		t.Error("expected an error without an address")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if lock, err := ConnectRedisLock(ctx, "127.0.0.1:1"); err == nil {
		lock.Close()
		t.Error("expected an error for an unreachable server")
	}
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	lock, err := ConnectRedisLock(ctx, addr)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer lock.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	lease, ok, err := lock.TryAcquire(ctx, key, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected acquire, ok=%v err=%v", ok, err)
	}
	if _, ok, err := lock.TryAcquire(ctx, key, 5*time.Second); err != nil || ok {
		t.Fatalf("expected contended acquire to fail cleanly, ok=%v err=%v", ok, err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := lease.Release(ctx); !errors.Is(err, ErrNotHeld) {
		t.Errorf("double release should report ErrNotHeld, got %v", err)
	}
}
