package model

import "encoding/json"

const (
	TypePing             = "ping"
	TypePong             = "pong"
	TypeSystem           = "system"
	TypeParticipantsList = "participants_list"
	TypeSatelliteJoined  = "satellite_connected"

	CommandClose           = "close"
	CommandGetParticipants = "get_participants"
)

// Target addresses a relay message. ID present means private delivery.
type Target struct {
	Role Role `json:"role"`
	ID   *int `json:"id,omitempty"`
}

// Private reports whether the target names a single connection.
func (t *Target) Private() bool { return t != nil && t.ID != nil }

// Inbound is the superset of every client frame shape.
// Payload stays raw so that relay messages are forwarded untouched.
type Inbound struct {
	Type    string          `json:"type,omitempty"`
	To      *Target         `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command extracts payload.command, empty when absent or not an object.
func (m *Inbound) Command() string {
	if len(m.Payload) == 0 {
		return ""
	}
	var cmd struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(m.Payload, &cmd); err != nil {
		return ""
	}
	return cmd.Command
}

// Pong is the reply to a ping frame.
type Pong struct {
	Type string `json:"type"`
}

// ParticipantsList answers get_participants.
type ParticipantsList struct {
	Type         string        `json:"type"`
	Participants []Participant `json:"participants"`
}
