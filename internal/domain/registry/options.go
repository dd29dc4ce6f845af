package registry

import (
	"log/slog"
	"time"
)

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMaxResident bounds how many actors stay awake at once.
// Least recently used actors hibernate first.
func WithMaxResident(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.config.maxResident = n
		}
	}
}

// WithIdleTTL defines the [QUIET_PERIOD] after which an untouched actor
// hibernates.
func WithIdleTTL(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.idleTTL = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l.With(slog.String("component", "hub"))
		}
	}
}
