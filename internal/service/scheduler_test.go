package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-relay-service/internal/adapter/store"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/registry"
)

// alarmRecorder is a Relayer that only records fired alarms.
type alarmRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *alarmRecorder) CreateSession(context.Context) (*model.SessionGrant, error) { return nil, nil }
func (r *alarmRecorder) Fetch(context.Context, string, *http.Request, registry.Upgrade) registry.Response {
	return registry.Response{}
}
func (r *alarmRecorder) Message(context.Context, string, registry.Socket, []byte)          {}
func (r *alarmRecorder) Closed(context.Context, string, registry.Socket, registry.Closure) {}
func (r *alarmRecorder) Terminate(context.Context, string, string) error                   { return nil }
func (r *alarmRecorder) Stats() model.HubStats                                             { return model.HubStats{} }

func (r *alarmRecorder) Alarm(_ context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, sessionID)
}

func (r *alarmRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestScheduler_FiresDueAlarmsOnly(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, backend.Scope(id).ScheduleAlarm(ctx, now.Add(time.Duration(i-1)*time.Minute)))
	}

	rec := &alarmRecorder{}
	s := NewScheduler(backend, rec, discard,
		WithConcurrency(2),
		WithSchedulerClock(func() time.Time { return now }),
	)

	assert.Equal(t, 2, s.Tick(ctx))
	assert.ElementsMatch(t, []string{"a", "b"}, rec.fired)

	_, armed, err := backend.Scope("c").Alarm(ctx)
	require.NoError(t, err)
	assert.True(t, armed)
}

// staleBackend lists an alarm that was rescheduled after the listing.
type staleBackend struct {
	*store.MemoryBackend
	at time.Time
}

func (b *staleBackend) DueAlarms(context.Context, time.Time) ([]store.Alarm, error) {
	return []store.Alarm{{SessionID: "s1", At: b.at}}, nil
}

func TestScheduler_SkipsRescheduledAlarm(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := &staleBackend{MemoryBackend: store.NewMemoryBackend(), at: now.Add(-time.Second)}
	require.NoError(t, b.Scope("s1").ScheduleAlarm(ctx, now.Add(time.Minute)))

	rec := &alarmRecorder{}
	s := NewScheduler(b, rec, discard, WithSchedulerClock(func() time.Time { return now }))

	assert.Zero(t, s.Tick(ctx))
	assert.Zero(t, rec.count())
}

func TestScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	require.NoError(t, backend.Scope("s1").ScheduleAlarm(ctx, time.Now().Add(-time.Second)))

	rec := &alarmRecorder{}
	s := NewScheduler(backend, rec, discard, WithPollInterval(5*time.Millisecond))
	s.Start()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
}
