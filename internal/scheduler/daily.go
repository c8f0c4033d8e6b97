package scheduler

import (
	"context"
	"fmt"
	"time"

	"finpanel/internal/logger"
)

// Job is invoked once per scheduled day with the time it fired.
type Job func(ctx context.Context, now time.Time) error

// Clock is a time of day in hours and minutes.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// NextRun returns the first instant at or after now, in now's location,
// whose wall clock reads c. An instant exactly at c counts as after.
func (c Clock) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Daily runs job once at start-up and then every day at the given clock time
// until ctx is cancelled. Job errors are logged; the loop keeps going.
func Daily(ctx context.Context, at Clock, job Job) error {
	log := logger.Named("scheduler")

	run := func(now time.Time) {
		if err := job(ctx, now); err != nil {
			log.Errorw("scheduled job failed", "error", err, "fired_at", now)
		}
	}

	run(time.Now())

	for {
		next := at.NextRun(time.Now())
		log.Infow("next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case fired := <-timer.C:
			run(fired)
		}
	}
}

// Exclusive wraps job so that it only runs while holding the lock for the
// fired day. When another holder has the day the run is skipped.
func Exclusive(lock Lock, ttl time.Duration, job Job) Job {
	return func(ctx context.Context, now time.Time) error {
		key := "scheduled-run:" + now.Format("2006-01-02")
		lease, ok, err := lock.TryAcquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if !ok {
			logger.Named("scheduler").Infow("scheduled run already in progress elsewhere, skipping", "key", key)
			return nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Named("scheduler").Warnw("failed to release scheduler lock", "key", key, "error", err)
			}
		}()
		return job(ctx, now)
	}
}
