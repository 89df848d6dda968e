package db

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 10 * time.Second
)

// Backoff returns the delay before the given retry.
// attempt=0 => 500ms, attempt=1 => 1s, attempt=2 => 2s, capped at 10s.
func Backoff(attempt int) time.Duration {
	delay := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt)))
	if delay > backoffCap {
		delay = backoffCap
	}

	// jitter so replicas booting together don't hit the database in lockstep
	delay += time.Duration(rand.Intn(100)) * time.Millisecond
	return delay
}

var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Connect calls open until it succeeds, attempts run out, or ctx ends.
// The store container usually starts alongside the API, so the first dial often fails.
func Connect[T any](ctx context.Context, log *slog.Logger, attempts int, open func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		conn T
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		conn, err = open()
		if err == nil {
			return conn, nil
		}
		if attempt == attempts-1 {
			break
		}

		delay := Backoff(attempt)
		log.Warn("database connect failed, retrying", "attempt", attempt+1, "delay", delay, "err", err)

		if serr := sleep(ctx, delay); serr != nil {
			return conn, err
		}
	}

	return conn, err
}
