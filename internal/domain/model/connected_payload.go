package model

// WelcomeFrame is sent to a peer right after its socket is accepted.
type WelcomeFrame struct {
	Role    Role   `json:"role"`
	ID      *int   `json:"id,omitempty"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewWelcomeFrame builds the handshake greeting for p.
func NewWelcomeFrame(p Participant) *WelcomeFrame {
	return &WelcomeFrame{
		Role:    p.Role,
		ID:      p.ID,
		Type:    TypeSystem,
		Message: "connection established",
	}
}

// SatelliteConnected notifies controllers about a join.
// NewToken is the rotated satellite token; the consumed one is dead.
type SatelliteConnected struct {
	Type     string `json:"type"`
	ID       int    `json:"id"`
	NewToken string `json:"newToken"`
}
