package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/pkg/provider/llm"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
	"github.com/vaani-ai/vaani/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// voice discovery
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleTTSProviders(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.cfg.TTSProviders))
	for _, p := range s.cfg.TTSProviders {
		names = append(names, p.Name())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": names})
}

func (s *Server) handleTTSVoices(w http.ResponseWriter, r *http.Request) {
	s.voiceMu.Lock()
	if time.Now().Before(s.voiceExpires) && s.voiceCache != nil {
		list := s.voiceCache
		s.voiceMu.Unlock()
		s.writeJSON(w, http.StatusOK, map[string]any{"voices": list})
		return
	}
	s.voiceMu.Unlock()

	list := s.cfg.Voices.List(r.Context())

	s.voiceMu.Lock()
	s.voiceCache = list
	s.voiceExpires = time.Now().Add(voiceListTTL)
	s.voiceMu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{"voices": list})
}

type previewRequest struct {
	Text     string          `json:"text"`
	Provider string          `json:"provider"`
	VoiceID  string          `json:"voice_id"`
	Language string          `json:"language"`
	Tuning   types.TTSTuning `json:"tuning"`
}

func (s *Server) handleVoicePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Preview == nil {
		s.writeError(w, http.StatusNotImplemented, "voice preview is not configured")
		return
	}
	var req previewRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	res := s.cfg.Voices.Resolve(req.Provider, req.Language, req.VoiceID)
	out, err := s.cfg.Preview.Synthesize(r.Context(), tts.Request{
		Text:     req.Text,
		VoiceID:  res.Voice.ID,
		Language: res.Voice.Language,
		Tuning:   req.Tuning,
	})
	if err != nil {
		s.cfg.Logger.Warn("voice preview failed",
			"provider", res.Voice.Provider, "voice", res.Voice.ID, "error", err)
		s.writeError(w, http.StatusBadGateway, "synthesis failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"audio":       base64.StdEncoding.EncodeToString(out.Audio),
		"audio_codec": out.Codec,
		"voice":       res.Voice,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// model discovery
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleLLMProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": s.cfg.LLMProviders})
}

type modelResponse struct {
	ID                 string `json:"id"`
	Provider           string `json:"provider"`
	ContextWindow      int    `json:"context_window"`
	MaxOutput          int    `json:"max_output"`
	InputPricePerMTok  string `json:"input_price_per_mtok"`
	OutputPricePerMTok string `json:"output_price_per_mtok"`
	SupportsStreaming  bool   `json:"supports_streaming"`
}

func (s *Server) handleLLMModels(w http.ResponseWriter, r *http.Request) {
	models := make([]modelResponse, 0, len(llm.Catalog))
	for _, m := range llm.Catalog {
		models = append(models, modelResponse{
			ID: m.ID, Provider: m.Provider,
			ContextWindow: m.ContextWindow, MaxOutput: m.MaxOutput,
			InputPricePerMTok:  m.InputPricePerMTok,
			OutputPricePerMTok: m.OutputPricePerMTok,
			SupportsStreaming:  m.SupportsStreaming,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// ─────────────────────────────────────────────────────────────────────────────
// system prompts
// ─────────────────────────────────────────────────────────────────────────────

type promptRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type promptResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	BuiltIn   bool      `json:"built_in"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPromptResponse(p types.SystemPrompt) promptResponse {
	return promptResponse{
		ID: p.ID, Name: p.Name, Text: p.Text, BuiltIn: p.BuiltIn,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (s *Server) handlePromptList(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.Store.Prompts().List(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	out := make([]promptResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPromptResponse(p))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"prompts": out})
}

func (s *Server) handlePromptCreate(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "name and text are required")
		return
	}
	now := time.Now()
	p := types.SystemPrompt{
		ID: uuid.NewString(), Name: req.Name, Text: req.Text,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.cfg.Store.Prompts().Create(r.Context(), p); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPromptResponse(p))
}

func (s *Server) handlePromptGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.cfg.Store.Prompts().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPromptResponse(*p))
}

func (s *Server) handlePromptUpdate(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	existing, err := s.cfg.Store.Prompts().Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Text != "" {
		existing.Text = req.Text
	}
	existing.UpdatedAt = time.Now()
	if err := s.cfg.Store.Prompts().Update(r.Context(), *existing); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPromptResponse(*existing))
}

func (s *Server) handlePromptDelete(w http.ResponseWriter, r *http.Request) {
	err := s.cfg.Store.Prompts().Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────────────────────────────────────
// session configurations
// ─────────────────────────────────────────────────────────────────────────────

type configRequest struct {
	ID    string `json:"id,omitempty"`
	Owner string `json:"owner"`
	Name  string `json:"name"`

	LLMProvider string `json:"llm_provider,omitempty"`
	LLMModel    string `json:"llm_model,omitempty"`

	TTSProvider string          `json:"tts_provider,omitempty"`
	TTSVoiceID  string          `json:"tts_voice_id,omitempty"`
	TTSTuning   types.TTSTuning `json:"tts_tuning,omitempty"`

	OptimizationTier string `json:"optimization_level,omitempty"`
	TargetLanguage   string `json:"target_language,omitempty"`
	RAGEnabled       bool   `json:"rag_enabled,omitempty"`

	SystemPromptID   string `json:"system_prompt_id,omitempty"`
	SystemPromptText string `json:"system_prompt_text,omitempty"`

	Default bool `json:"is_default,omitempty"`
}

func (req *configRequest) toConfig() (types.SessionConfiguration, error) {
	if req.Owner == "" || req.Name == "" {
		return types.SessionConfiguration{}, errors.New("owner and name are required")
	}
	tier := types.OptimizationTier(req.OptimizationTier)
	if req.OptimizationTier != "" && !tier.IsValid() {
		return types.SessionConfiguration{}, errors.New("unknown optimization level " + req.OptimizationTier)
	}
	return types.SessionConfiguration{
		ID: req.ID, Owner: req.Owner, Name: req.Name,
		LLMProvider: req.LLMProvider, LLMModel: req.LLMModel,
		TTSProvider: req.TTSProvider, TTSVoiceID: req.TTSVoiceID, TTSTuning: req.TTSTuning,
		OptimizationTier: tier, TargetLanguage: req.TargetLanguage, RAGEnabled: req.RAGEnabled,
		SystemPromptID: req.SystemPromptID, SystemPromptText: req.SystemPromptText,
		Default: req.Default,
	}, nil
}

func (s *Server) handleConfigList(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	list, err := s.cfg.Store.Configs().List(r.Context(), owner)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"configurations": list})
}

func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	c, err := req.toConfig()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.cfg.Store.Configs().Save(r.Context(), c); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.cfg.Store.Configs().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	req.ID = r.PathValue("id")
	c, err := req.toConfig()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := s.cfg.Store.Configs().Get(r.Context(), c.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	if err := s.cfg.Store.Configs().Save(r.Context(), c); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConfigDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.Configs().Delete(r.Context(), r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigDefault(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	c, err := s.cfg.Store.Configs().GetDefault(r.Context(), owner)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// ─────────────────────────────────────────────────────────────────────────────
// session reads
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleSessionCosts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sum := s.cfg.Costs.Summarize(id)

	byService := map[string]string{}
	for k, v := range sum.ByService {
		byService[k] = v.StringFixed(6)
	}
	byProvider := map[string]string{}
	for k, v := range sum.ByProvider {
		byProvider[k] = v.StringFixed(6)
	}

	tier := ""
	if s.cfg.Store != nil {
		if sess, err := s.cfg.Store.Sessions().Get(r.Context(), id); err == nil {
			tier = string(sess.OptimizationTier)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_cost_usd":        sum.TotalUSD.StringFixed(6),
		"breakdown_by_service":  byService,
		"breakdown_by_provider": byProvider,
		"total_entries":         len(sum.Entries),
		"cache_savings_usd":     sum.CacheSavingsUSD.StringFixed(6),
		"optimization_level":    tier,
	})
}

func (s *Server) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.cfg.Store.Metrics().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":        m.SessionID,
		"total_turns":       m.TotalTurns,
		"successful_turns":  m.SuccessfulTurns,
		"failed_turns":      m.FailedTurns,
		"interrupted_turns": m.InterruptedTurns,
		"mean_asr_ms":       m.MeanASRMS,
		"mean_llm_ms":       m.MeanLLMMS,
		"mean_translate_ms": m.MeanTranslateMS,
		"mean_tts_ms":       m.MeanTTSMS,
		"mean_total_ms":     m.MeanTotalMS,
		"llm_exact_hits":    m.LLMExactHits,
		"llm_semantic_hits": m.LLMSemanticHits,
		"tts_hits":          m.TTSHits,
		"guardrail_blocks":  m.GuardrailBlocks,
		"total_cost_usd":    m.TotalCostUSD.StringFixed(6),
		"mean_asr_confid":   m.MeanASRConfid,
		"updated_at":        m.UpdatedAt,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// feedback
// ─────────────────────────────────────────────────────────────────────────────

type feedbackRequest struct {
	SessionID  string `json:"session_id"`
	TurnID     string `json:"turn_id,omitempty"`
	Rating     int    `json:"rating"`
	RatingType string `json:"rating_type"`
	Comment    string `json:"comment,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	rt := types.RatingType(req.RatingType)
	if !types.ValidRating(rt, req.Rating) {
		s.writeError(w, http.StatusBadRequest, "invalid rating for type "+req.RatingType)
		return
	}
	f := types.Feedback{
		ID: uuid.NewString(), SessionID: req.SessionID, TurnID: req.TurnID,
		Rating: req.Rating, RatingType: rt, Comment: req.Comment,
		CreatedAt: time.Now(),
	}
	if err := s.cfg.Store.Feedback().Add(r.Context(), f); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": f.ID})
}

// storeError maps repository errors onto HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrBuiltIn):
		s.writeError(w, http.StatusBadRequest, "built-in templates cannot be deleted")
	default:
		s.cfg.Logger.Error("store operation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
