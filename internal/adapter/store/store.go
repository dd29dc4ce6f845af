// Package store is the durable key-value store of session actors.
//
// Every session gets its own key space and at most one alarm. A Backend is
// process wide; a Store is the scope of a single session.
package store

import (
	"context"
	"errors"
	"time"
)

// Keys persisted by the session actor.
const (
	KeyControllerToken = "controllerToken"
	KeySatelliteToken  = "satelliteToken"
	KeyNextSatelliteID = "nextSatelliteId"
)

// ErrUnavailable is returned when the backend refuses work (open circuit).
var ErrUnavailable = errors.New("store: unavailable")

// Store is the per-session durable storage seen by an actor.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error

	// ScheduleAlarm arms the single alarm of the session, replacing any
	// previously armed one.
	ScheduleAlarm(ctx context.Context, at time.Time) error
	CancelAlarm(ctx context.Context) error
	Alarm(ctx context.Context) (time.Time, bool, error)
}

// Alarm is a durable timer entry.
type Alarm struct {
	SessionID string
	At        time.Time
}

// Backend owns the storage of every session.
type Backend interface {
	Scope(sessionID string) Store

	// DueAlarms lists alarms whose time is at or before now.
	DueAlarms(ctx context.Context, now time.Time) ([]Alarm, error)

	// ClaimAlarm removes a due alarm if it is still the armed one.
	// It reports false when the alarm was cancelled or rescheduled meanwhile,
	// which guarantees each schedule fires at most once.
	ClaimAlarm(ctx context.Context, a Alarm) (bool, error)

	Close() error
}
