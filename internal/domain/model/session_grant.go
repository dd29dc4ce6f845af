package model

// SessionGrant is handed to the creator of a session. It is the only place
// the initial tokens ever leave the service.
type SessionGrant struct {
	SessionID       string `json:"sessionId"`
	ControllerToken string `json:"controllerToken"`
	SatelliteToken  string `json:"satelliteToken"`
}
