package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/im-relay-service/internal/adapter/store"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = time.Second
	defaultConcurrency  = 16
)

// Scheduler implements the durable alarm primitive: it polls the backend for
// due alarms, claims each one and fires it through the relay. A claim removes
// the entry, so every schedule fires at most once even if the tick overlaps a
// reschedule made by the alarm handler itself.
type Scheduler struct {
	backend store.Backend
	relay   Relayer
	logger  *slog.Logger

	interval    time.Duration
	concurrency int
	now         func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// SchedulerOption defines a functional configuration type for the Scheduler.
type SchedulerOption func(*Scheduler)

func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(backend store.Backend, relay Relayer, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		backend:     backend,
		relay:       relay,
		logger:      logger.With(slog.String("component", "scheduler")),
		interval:    defaultPollInterval,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the polling loop. It returns immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()

	s.logger.Info("[SCHEDULER] started",
		slog.Duration("interval", s.interval),
		slog.Int("concurrency", s.concurrency),
	)
}

// Stop halts polling and waits for in-flight alarms, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.once.Do(s.cancel)

	select {
	case <-s.done:
		s.logger.Info("[SCHEDULER] stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick fires every alarm due at the current time and returns how many fired.
func (s *Scheduler) Tick(ctx context.Context) int {
	due, err := s.backend.DueAlarms(ctx, s.now())
	if err != nil {
		s.logger.Error("[SCHEDULER] listing due alarms failed", slog.Any("err", err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	var (
		mu    sync.Mutex
		fired int
	)

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, a := range due {
		g.Go(func() error {
			claimed, err := s.backend.ClaimAlarm(ctx, a)
			if err != nil {
				s.logger.Warn("[SCHEDULER] claim failed",
					slog.String("session_id", a.SessionID),
					slog.Any("err", err),
				)
				return nil
			}
			if !claimed {
				return nil
			}

			s.relay.Alarm(ctx, a.SessionID)

			mu.Lock()
			fired++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("[SCHEDULER] tick", slog.Int("due", len(due)), slog.Int("fired", fired))
	return fired
}
