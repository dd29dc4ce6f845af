package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Interface guard
var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend is a thread-safe in-process backend. State survives actor
// hibernation but not a process restart.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]map[string]string
	alarms map[string]time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string]map[string]string),
		alarms: make(map[string]time.Time),
	}
}

func (b *MemoryBackend) Scope(sessionID string) Store {
	return &memoryStore{backend: b, sessionID: sessionID}
}

func (b *MemoryBackend) DueAlarms(_ context.Context, now time.Time) ([]Alarm, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	due := make([]Alarm, 0)
	for id, at := range b.alarms {
		if !at.After(now) {
			due = append(due, Alarm{SessionID: id, At: at})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })
	return due, nil
}

func (b *MemoryBackend) ClaimAlarm(_ context.Context, a Alarm) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at, ok := b.alarms[a.SessionID]
	if !ok || !at.Equal(a.At) {
		return false, nil
	}
	delete(b.alarms, a.SessionID)
	return true, nil
}

func (b *MemoryBackend) Close() error { return nil }

type memoryStore struct {
	backend   *MemoryBackend
	sessionID string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	v, ok := s.backend.values[s.sessionID][key]
	return v, ok, nil
}

func (s *memoryStore) Put(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	kv, ok := s.backend.values[s.sessionID]
	if !ok {
		kv = make(map[string]string)
		s.backend.values[s.sessionID] = kv
	}
	kv[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	kv, ok := s.backend.values[s.sessionID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(kv, k)
	}
	if len(kv) == 0 {
		delete(s.backend.values, s.sessionID)
	}
	return nil
}

func (s *memoryStore) ScheduleAlarm(_ context.Context, at time.Time) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.alarms[s.sessionID] = at
	return nil
}

func (s *memoryStore) CancelAlarm(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.alarms, s.sessionID)
	return nil
}

func (s *memoryStore) Alarm(_ context.Context) (time.Time, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	at, ok := s.backend.alarms[s.sessionID]
	return at, ok, nil
}
