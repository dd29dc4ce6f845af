package model

import "time"

type HubStats struct {
	ActiveSessions   int            `json:"active_sessions"`
	TotalConnections int            `json:"total_connections"`
	ResidentActors   int            `json:"resident_actors"`
	Uptime           time.Duration  `json:"uptime"`
	Sessions         []SessionStats `json:"sessions,omitempty"`
}

type SessionStats struct {
	SessionID   string `json:"session_id"`
	Controllers int    `json:"controllers"`
	Satellites  int    `json:"satellites"`
	Unknown     int    `json:"unknown"`
}
