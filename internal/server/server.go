// Package server hosts the one-shot JSON RPCs: voice and model discovery,
// system-prompt and configuration CRUD, per-session cost and metrics reads,
// and feedback. The realtime session stream lives in internal/app; this
// package only mounts its upgrade handler.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaani-ai/vaani/internal/app"
	"github.com/vaani-ai/vaani/internal/cost"
	"github.com/vaani-ai/vaani/internal/observe"
	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
	"github.com/vaani-ai/vaani/pkg/voices"
)

// voiceListTTL is how long /tts/voices responses are served from cache.
const voiceListTTL = time.Hour

// Config wires the Server's collaborators.
type Config struct {
	Store store.Store
	Costs *cost.Recorder

	Voices *voices.Registry

	// Preview synthesizes voice samples for POST /tts/voices/preview. Nil
	// disables the endpoint.
	Preview tts.Provider

	// TTSProviders are the configured synthesis backends, reported by
	// GET /tts/providers.
	TTSProviders []tts.Provider

	// LLMProviders are the configured generation backend names, reported by
	// GET /llm/providers.
	LLMProviders []string

	// WS, when set, is mounted at /ws with the WebSocket rate budget.
	WS http.HandlerFunc

	// APIKey guards every endpoint except /healthz and /metrics. Empty
	// disables auth.
	APIKey string

	Limiter *app.Limiter
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server is the HTTP API. Construct with New and mount Handler.
type Server struct {
	cfg Config

	voiceMu      sync.Mutex
	voiceCache   []voices.Voice
	voiceExpires time.Time
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Voices == nil {
		cfg.Voices = voices.New()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = app.NewLimiter(app.DefaultBudgets())
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}
}

// Handler assembles the full route table with auth, rate limiting, and HTTP
// telemetry applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /tts/providers", s.handleTTSProviders)
	mux.HandleFunc("GET /tts/voices", s.handleTTSVoices)
	mux.HandleFunc("POST /tts/voices/preview", s.handleVoicePreview)

	mux.HandleFunc("GET /llm/providers", s.handleLLMProviders)
	mux.HandleFunc("GET /llm/models", s.handleLLMModels)

	mux.HandleFunc("GET /system-prompts", s.handlePromptList)
	mux.HandleFunc("POST /system-prompts", s.handlePromptCreate)
	mux.HandleFunc("GET /system-prompts/{id}", s.handlePromptGet)
	mux.HandleFunc("PUT /system-prompts/{id}", s.handlePromptUpdate)
	mux.HandleFunc("DELETE /system-prompts/{id}", s.handlePromptDelete)

	mux.HandleFunc("GET /config/sessions", s.handleConfigList)
	mux.HandleFunc("POST /config/sessions", s.handleConfigSave)
	mux.HandleFunc("GET /config/sessions/default", s.handleConfigDefault)
	mux.HandleFunc("GET /config/sessions/{id}", s.handleConfigGet)
	mux.HandleFunc("PUT /config/sessions/{id}", s.handleConfigUpdate)
	mux.HandleFunc("DELETE /config/sessions/{id}", s.handleConfigDelete)

	mux.HandleFunc("GET /sessions/{id}/costs", s.handleSessionCosts)
	mux.HandleFunc("GET /sessions/{id}/metrics", s.handleSessionMetrics)

	mux.HandleFunc("POST /feedback", s.handleFeedback)

	authed := app.RequireAPIKey(s.cfg.APIKey,
		s.cfg.Limiter.Middleware(app.ClassRegular, mux))

	root := http.NewServeMux()
	root.Handle("/", authed)
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("GET /metrics", promhttp.Handler())
	if s.cfg.WS != nil {
		root.Handle("/ws", app.RequireAPIKey(s.cfg.APIKey,
			s.cfg.Limiter.Middleware(app.ClassWebSocket, s.cfg.WS)))
	}

	return observe.Middleware(s.cfg.Metrics)(root)
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON plumbing
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.cfg.Logger.Debug("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
