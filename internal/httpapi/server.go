package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/config"
	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/persona"
	"github.com/ent0n29/voicedirect/internal/session"
	"github.com/ent0n29/voicedirect/internal/voice"
)

// ConversationFactory builds the turn engine behind one session.
type ConversationFactory interface {
	NewConversation(personaID string, capture voice.CaptureDevice, player voice.Player, logger zerolog.Logger) (*voice.Orchestrator, error)
	Labels() voice.ProviderLabels
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	factory  ConversationFactory
	metrics  *observability.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	// baseCtx outlives requests; turns started over HTTP keep running if the caller goes away.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu            sync.Mutex
	conversations map[string]*conversation
}

func New(cfg config.Config, sessions *session.Manager, factory ConversationFactory, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Server{
		cfg:           cfg,
		sessions:      sessions,
		factory:       factory,
		metrics:       metrics,
		logger:        observability.Component(logger, "httpapi"),
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
		conversations: make(map[string]*conversation),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a session's microphone.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/personas", s.handleListPersonas)

	r.Post("/v1/voice/session", s.handleCreateSession)
	r.Get("/v1/voice/session/ws", s.handleSessionWS)
	r.Route("/v1/voice/session/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/end", s.handleEndSession)
		r.Put("/persona", s.handleSelectPersona)
		for _, action := range []string{actionPress, actionRelease, actionCancel, actionReset} {
			r.Post("/"+action, s.handleAction(action))
		}
	})

	return r
}

// CloseConversation tears down the live conversation of a session, if any.
func (s *Server) CloseConversation(sessionID string) {
	s.mu.Lock()
	c, ok := s.conversations[sessionID]
	delete(s.conversations, sessionID)
	s.mu.Unlock()
	if ok {
		c.close()
	}
}

// CloseAll ends every live conversation and cancels turns still in flight.
func (s *Server) CloseAll() {
	s.mu.Lock()
	all := s.conversations
	s.conversations = make(map[string]*conversation)
	s.mu.Unlock()
	for _, c := range all {
		c.close()
	}
	s.baseCancel()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.factory == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	labels := s.factory.Labels()
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"stt":    labels.STT,
		"brain":  labels.Brain,
		"tts":    labels.TTS,
	})
}

// handlePerfLatency serves the rolling per-stage latency window of recent turns.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	var snap observability.TurnStageSnapshot
	if s.metrics != nil {
		snap = s.metrics.SnapshotTurnStages()
	}
	if snap.Stages == nil {
		snap.Stages = []observability.TurnStageStats{}
	}
	respondJSON(w, http.StatusOK, snap)
}

type sessionView struct {
	Session  *session.Session `json:"session"`
	Snapshot voice.Snapshot   `json:"snapshot"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.factory == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "voice pipeline not configured")
		return
	}
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	personaID := strings.TrimSpace(req.PersonaID)
	if personaID == "" {
		personaID = s.cfg.DefaultPersona
	}
	if _, err := persona.Lookup(personaID); err != nil {
		respondError(w, http.StatusBadRequest, "persona_not_found", err.Error())
		return
	}

	sess := s.sessions.Create(personaID)
	c, err := s.newConversation(sess.ID, personaID)
	if err != nil {
		_, _ = s.sessions.End(sess.ID)
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("create conversation")
		respondError(w, http.StatusInternalServerError, "conversation_init_failed", err.Error())
		return
	}
	s.mu.Lock()
	s.conversations[sess.ID] = c
	s.mu.Unlock()

	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		Status:          sess.Status,
		PersonaID:       sess.PersonaID,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionView{Session: sess, Snapshot: c.orch.Snapshot()})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.End(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.CloseConversation(id)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

type selectPersonaRequest struct {
	PersonaID string `json:"persona_id"`
}

func (s *Server) handleSelectPersona(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req selectPersonaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be {\"persona_id\": ...}")
		return
	}
	if err := c.selectPersona(req.PersonaID); err != nil {
		respondError(w, http.StatusBadRequest, "persona_not_found", err.Error())
		return
	}
	s.respondSnapshot(w, c)
}

func (s *Server) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, c, ok := s.lookup(w, r)
		if !ok {
			return
		}
		if err := c.dispatch(action); err != nil && !errors.Is(err, voice.ErrEmptyCapture) {
			// The snapshot already carries the user-visible message.
			s.logger.Debug().Err(err).Str("session_id", c.id).Str("action", action).Msg("action failed")
		}
		s.respondSnapshot(w, c)
	}
}

func (s *Server) respondSnapshot(w http.ResponseWriter, c *conversation) {
	sess, err := s.sessions.Get(c.id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionView{Session: sess, Snapshot: c.orch.Snapshot()})
}

// lookup resolves {id} to an active session and its conversation and records activity.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, *conversation, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return nil, nil, false
	}
	if err := s.sessions.Touch(id); err != nil {
		respondSessionError(w, err)
		return nil, nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondSessionError(w, err)
		return nil, nil, false
	}
	c := s.conversation(id)
	if c == nil {
		respondError(w, http.StatusGone, "session_ended", "session has no live conversation")
		return nil, nil, false
	}
	return sess, c, true
}

func (s *Server) conversation(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusGone, "session_ended", err.Error())
	default:
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	}
}
