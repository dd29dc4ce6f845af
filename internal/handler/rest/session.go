package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-relay-service/config"
	"github.com/webitel/im-relay-service/internal/handler/ws"
	"github.com/webitel/im-relay-service/internal/service"
)

// createResponse extends the grant with ready-to-dial URLs.
type createResponse struct {
	SessionID       string `json:"sessionId"`
	ControllerToken string `json:"controllerToken"`
	SatelliteToken  string `json:"satelliteToken"`
	ConnectURL      string `json:"connectUrl"`
	JoinURL         string `json:"joinUrl"`
}

type SessionHandler struct {
	relay     service.Relayer
	ws        *ws.WSHandler
	publicURL string
	logger    *slog.Logger
}

func NewSessionHandler(cfg *config.Config, relay service.Relayer, wsHandler *ws.WSHandler, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		relay:     relay,
		ws:        wsHandler,
		publicURL: strings.TrimRight(cfg.HTTP.PublicURL, "/"),
		logger:    logger,
	}
}

// Create allocates a session and returns its tokens.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	grant, err := h.relay.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("[REST] create session failed", slog.Any("err", err))
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		SessionID:       grant.SessionID,
		ControllerToken: grant.ControllerToken,
		SatelliteToken:  grant.SatelliteToken,
		ConnectURL:      h.sessionURL(grant.SessionID, "connect", grant.ControllerToken),
		JoinURL:         h.sessionURL(grant.SessionID, "join", grant.SatelliteToken),
	})
}

// Forward hands the request to the session actor untouched.
func (h *SessionHandler) Forward(w http.ResponseWriter, r *http.Request) {
	h.ws.Serve(w, r, chi.URLParam(r, "sessionID"))
}

func (h *SessionHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.relay.Stats())
}

func (h *SessionHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *SessionHandler) sessionURL(sessionID, segment, tok string) string {
	return h.publicURL + "/session/" + url.PathEscape(sessionID) + "/" + segment + "?token=" + url.QueryEscape(tok)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
