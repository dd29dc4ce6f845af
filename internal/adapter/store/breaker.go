package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit guarding a backend.
type BreakerSettings struct {
	// ConsecutiveFailures trips the circuit.
	ConsecutiveFailures uint32
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// MaxRequests allowed while half-open.
	MaxRequests uint32
}

// Interface guard
var _ Backend = (*breakerBackend)(nil)

// breakerBackend implements [DECORATOR_PATTERN] over any Backend: once the
// storage keeps failing, calls fail fast with ErrUnavailable instead of
// stalling every session event behind a dead disk.
type breakerBackend struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next with a circuit breaker.
func WithBreaker(next Backend, s BreakerSettings, logger *slog.Logger) Backend {
	failures := s.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "session-store",
		MaxRequests: s.MaxRequests,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[STORE] circuit state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &breakerBackend{next: next, cb: cb}
}

func (b *breakerBackend) Scope(sessionID string) Store {
	return &breakerStore{next: b.next.Scope(sessionID), cb: b.cb}
}

func (b *breakerBackend) DueAlarms(ctx context.Context, now time.Time) ([]Alarm, error) {
	return execute(b.cb, func() ([]Alarm, error) { return b.next.DueAlarms(ctx, now) })
}

func (b *breakerBackend) ClaimAlarm(ctx context.Context, a Alarm) (bool, error) {
	return execute(b.cb, func() (bool, error) { return b.next.ClaimAlarm(ctx, a) })
}

func (b *breakerBackend) Close() error { return b.next.Close() }

type breakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

type lookup struct {
	value string
	ok    bool
}

func (s *breakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := execute(s.cb, func() (lookup, error) {
		v, ok, err := s.next.Get(ctx, key)
		return lookup{value: v, ok: ok}, err
	})
	return res.value, res.ok, err
}

func (s *breakerStore) Put(ctx context.Context, key, value string) error {
	_, err := execute(s.cb, func() (struct{}, error) { return struct{}{}, s.next.Put(ctx, key, value) })
	return err
}

func (s *breakerStore) Delete(ctx context.Context, keys ...string) error {
	_, err := execute(s.cb, func() (struct{}, error) { return struct{}{}, s.next.Delete(ctx, keys...) })
	return err
}

func (s *breakerStore) ScheduleAlarm(ctx context.Context, at time.Time) error {
	_, err := execute(s.cb, func() (struct{}, error) { return struct{}{}, s.next.ScheduleAlarm(ctx, at) })
	return err
}

func (s *breakerStore) CancelAlarm(ctx context.Context) error {
	_, err := execute(s.cb, func() (struct{}, error) { return struct{}{}, s.next.CancelAlarm(ctx) })
	return err
}

func (s *breakerStore) Alarm(ctx context.Context) (time.Time, bool, error) {
	type armed struct {
		at time.Time
		ok bool
	}
	res, err := execute(s.cb, func() (armed, error) {
		at, ok, err := s.next.Alarm(ctx)
		return armed{at: at, ok: ok}, err
	})
	return res.at, res.ok, err
}

// execute runs fn through the breaker and maps rejections to ErrUnavailable.
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}
