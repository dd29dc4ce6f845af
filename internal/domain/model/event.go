package model

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleKind names a session lifecycle transition published on the bus.
type LifecycleKind string

const (
	SessionInitialized  LifecycleKind = "initialized"
	ControllerConnected LifecycleKind = "controller.connected"
	SatelliteJoined     LifecycleKind = "satellite.joined"
	SessionClosed       LifecycleKind = "closed"
	SessionExpired      LifecycleKind = "expired"
)

// LifecycleEvent is the envelope exported to external consumers.
// It never carries tokens.
type LifecycleEvent struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Kind       LifecycleKind `json:"kind"`
	Peer       *Participant  `json:"peer,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt int64         `json:"occurred_at"`
}

// RoutingKey is used for topic exchange binding.
func (e *LifecycleEvent) RoutingKey() string {
	return "relay.session." + string(e.Kind)
}

// NewLifecycleEvent is the factory for every exported transition.
func NewLifecycleEvent(sessionID string, kind LifecycleKind, peer *Participant, reason string) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Kind:       kind,
		Peer:       peer,
		Reason:     reason,
		OccurredAt: time.Now().UnixMilli(),
	}
}

// ControlCommand is consumed from the control topic.
type ControlCommand struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command"`
	Reason    string `json:"reason,omitempty"`
}
