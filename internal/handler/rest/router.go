package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the public surface of the relay.
func NewRouter(h *SessionHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(logger),
		middleware.Recoverer,
	)

	r.Post("/session", h.Create)
	r.HandleFunc("/session/{sessionID}", h.Forward)
	r.HandleFunc("/session/{sessionID}/*", h.Forward)

	r.Get("/stats", h.Stats)
	r.Get("/healthz", h.Healthz)
	return r
}

// RequestLogger logs one line per request. WebSocket requests are logged
// when the connection ends.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Hijacked by the WebSocket upgrade.
				status = http.StatusSwitchingProtocols
			}
			logger.Debug("[HTTP] request handled",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
