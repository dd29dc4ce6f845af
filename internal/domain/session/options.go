package session

import (
	"log/slog"
	"time"

	"github.com/webitel/im-relay-service/internal/domain/token"
	"go.opentelemetry.io/otel/trace"
)

// Option defines a functional configuration type for the Actor.
type Option func(*Actor)

// WithExpiryTTL sets how long an initialized session waits for its first satellite.
func WithExpiryTTL(d time.Duration) Option {
	return func(a *Actor) {
		if d > 0 {
			a.expiryTTL = d
		}
	}
}

// WithKeepAlive sets the alarm interval while connections remain.
func WithKeepAlive(d time.Duration) Option {
	return func(a *Actor) {
		if d > 0 {
			a.keepAlive = d
		}
	}
}

func WithTokens(g token.Generator) Option {
	return func(a *Actor) {
		if g != nil {
			a.tokens = g
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(a *Actor) {
		if n != nil {
			a.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Actor) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Actor) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Actor) {
		if t != nil {
			a.tracer = t
		}
	}
}
