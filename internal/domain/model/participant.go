package model

import (
	"fmt"
	"strconv"
)

// Participant identifies a connection by role and (optional) id.
// Controller and satellite id spaces overlap, so the pair is the identity.
type Participant struct {
	Role Role `json:"role"`
	ID   *int `json:"id,omitempty"`
}

// NewParticipant builds a participant with an id.
func NewParticipant(role Role, id int) Participant {
	return Participant{Role: role, ID: &id}
}

// Is reports whether both role and id match.
func (p Participant) Is(other Participant) bool {
	if p.Role != other.Role {
		return false
	}
	if p.ID == nil || other.ID == nil {
		return p.ID == nil && other.ID == nil
	}
	return *p.ID == *other.ID
}

// IDString renders the id for log lines and close reasons.
func (p Participant) IDString() string {
	if p.ID == nil {
		return "none"
	}
	return strconv.Itoa(*p.ID)
}

func (p Participant) String() string {
	return fmt.Sprintf("%s (id: %s)", p.Role, p.IDString())
}
