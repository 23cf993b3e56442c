// Package turn runs the per-utterance pipeline: transcription, guardrails,
// optional retrieval, generation, optional translation, and synthesis. The
// orchestrator owns the ordering and failure policy; every external call goes
// through a provider adapter, every cancellation through the interrupt
// fabric, and every dollar through the cost recorder.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vaani-ai/vaani/internal/cache"
	"github.com/vaani-ai/vaani/internal/cost"
	"github.com/vaani-ai/vaani/internal/guardrail"
	"github.com/vaani-ai/vaani/internal/interrupt"
	"github.com/vaani-ai/vaani/internal/observe"
	"github.com/vaani-ai/vaani/internal/policy"
	"github.com/vaani-ai/vaani/internal/rag"
	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/internal/transcript"
	"github.com/vaani-ai/vaani/pkg/provider/asr"
	"github.com/vaani-ai/vaani/pkg/provider/llm"
	"github.com/vaani-ai/vaani/pkg/provider/translate"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
	"github.com/vaani-ai/vaani/pkg/types"
	"github.com/vaani-ai/vaani/pkg/voices"
)

const (
	// generatedLanguage is the language the LLM responds in. Translation runs
	// only when the session's target differs.
	generatedLanguage = "en-IN"

	// lowConfidenceFloor is the ASR confidence below which the turn
	// short-circuits to a clarification instead of guessing.
	lowConfidenceFloor = 0.4

	clarificationText  = "Sorry, I didn't quite catch that. Could you please say it again?"
	llmUnavailableText = "I'm having trouble answering right now. Could we try that again in a moment?"

	defaultCodec      = "wav"
	defaultSampleRate = 22050
)

// Synthesizer is the synthesis surface the orchestrator drives. It reports
// which backend served each request so fallbacks can be counted and billed
// correctly. *resilience.TTSFallback implements it.
type Synthesizer interface {
	SynthesizeWith(ctx context.Context, req tts.Request) (*tts.Result, string, error)
	SupportsLanguage(lang string) bool
	Name() string
}

// Request is one turn's input: audio (transcribed first) or text (ASR stage
// skipped). Exactly one of Audio and Text should be set; Text wins when both
// are.
type Request struct {
	SessionID string

	Audio        []byte
	Format       string
	LanguageHint string

	Text string

	Tier           types.OptimizationTier
	TargetLanguage string
	Translation    translate.Config

	// System is the raw system prompt; layer-2 augmentation is applied here.
	System string

	TTSProvider string
	VoiceID     string
	Tuning      types.TTSTuning
}

// Result is the complete user-visible outcome of a turn. Callers switch on
// Status: successful turns carry a response (audio may be nil), interrupted
// turns carry the reason, failed turns carry only the error surfaced to the
// session layer.
type Result struct {
	TurnID string

	Transcript     string
	ResponseText   string
	TranslatedText string

	Audio     []byte
	AudioMIME string
	AudioRef  string

	Latency       types.StageLatencies
	GuardrailSafe bool

	Status          types.TurnStatus
	InterruptReason types.InterruptReason
}

// Config wires the orchestrator's collaborators. ASR, LLM, and Synth may be
// nil when the deployment disables the corresponding input or output mode;
// Store is required.
type Config struct {
	ASR        asr.Provider
	LLM        llm.Provider
	Translator translate.Provider
	Synth      Synthesizer

	Voices    *voices.Registry
	Guardrail *guardrail.Engine
	LLMCache  *cache.LLMCache
	TTSCache  *cache.TTSCache
	Costs     *cost.Recorder
	Store     store.Store
	Fabric    *interrupt.Fabric
	Retriever *rag.Retriever
	Corrector *transcript.Corrector

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Orchestrator executes turns. Safe for concurrent use across sessions; the
// session layer serializes turns within a session.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator, filling in default collaborators for the
// optional fields.
func New(cfg Config) *Orchestrator {
	if cfg.Guardrail == nil {
		cfg.Guardrail = guardrail.New()
	}
	if cfg.LLMCache == nil {
		cfg.LLMCache = cache.NewLLMCache()
	}
	if cfg.TTSCache == nil {
		cfg.TTSCache = cache.NewTTSCache()
	}
	if cfg.Costs == nil {
		cfg.Costs = cost.New()
	}
	if cfg.Fabric == nil {
		cfg.Fabric = interrupt.New()
	}
	if cfg.Voices == nil {
		cfg.Voices = voices.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg}
}

// Run executes one turn end to end. The returned Result is always complete
// and consistent; the error is non-nil only for failed turns.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	prof := policy.For(req.Tier)
	turnID := uuid.NewString()
	start := time.Now()

	res := &Result{
		TurnID:        turnID,
		GuardrailSafe: true,
		Status:        types.TurnActive,
	}

	ctx, cancel := context.WithTimeout(ctx, prof.TurnDeadline)
	defer cancel()

	tok := o.cfg.Fabric.StartTurn(ctx, req.SessionID, turnID)
	// Deadline expiry and upstream disconnects must surface as interrupts so
	// the turn records the right terminal status.
	stopWatch := context.AfterFunc(ctx, func() {
		reason := types.InterruptError
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = types.InterruptTimeout
		}
		o.cfg.Fabric.Cancel(req.SessionID, turnID, reason)
	})
	defer stopWatch()

	o.cfg.Metrics.ActiveTurns.Add(ctx, 1)
	defer o.cfg.Metrics.ActiveTurns.Add(ctx, -1)

	o.createTurnRecord(ctx, req.SessionID, turnID, start)

	rollup := store.TurnRollup{ASRConfidence: -1}

	// ── stage: ASR ──
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Audio) > 0 {
		if o.cfg.ASR == nil {
			return o.finishFailed(ctx, tok, req, res, &rollup, start,
				fmt.Errorf("turn: no transcription provider configured"))
		}
		if tok.Cancelled() {
			return o.finishInterrupted(ctx, tok, req, res, &rollup, start), nil
		}

		asrStart := time.Now()
		actx, acancel := context.WithTimeout(tok.Context(), prof.ASRTimeout)
		tok.OnCleanup(acancel)
		ar, err := o.cfg.ASR.Transcribe(actx, asr.Request{
			Audio:        req.Audio,
			Format:       req.Format,
			LanguageHint: req.LanguageHint,
			SessionID:    req.SessionID,
			TurnID:       turnID,
		})
		res.Latency.ASRMS = sinceMS(asrStart)
		o.cfg.Metrics.ASRDuration.Record(ctx, time.Since(asrStart).Seconds())

		if err != nil {
			if tok.Cancelled() {
				return o.finishInterrupted(ctx, tok, req, res, &rollup, start), nil
			}
			return o.finishFailed(ctx, tok, req, res, &rollup, start,
				fmt.Errorf("turn: transcription: %w", err))
		}

		o.record(ctx, req, turnID, &rollup, types.CostEntry{
			Service: types.ServiceASR, Provider: o.cfg.ASR.Name(), Operation: "transcribe",
		}, cost.ASRCost(o.cfg.ASR.Name(), ar.DurationMS), ar.DurationMS, 0, 0, 0, false)

		text = strings.TrimSpace(ar.Text)
		if ar.Confidence > 0 {
			rollup.ASRConfidence = ar.Confidence
		}
		res.Transcript = text

		if ar.Confidence > 0 && ar.Confidence < lowConfidenceFloor {
			res.ResponseText = clarificationText
			o.synthesize(ctx, tok, prof, req, res, &rollup)
			return o.finishSuccessful(ctx, tok, req, res, &rollup, start), nil
		}
	}
	if text == "" {
		return o.finishFailed(ctx, tok, req, res, &rollup, start,
			fmt.Errorf("turn: empty utterance"))
	}

	// ── stage: domain-term correction ──
	if o.cfg.Corrector != nil {
		corr := o.cfg.Corrector
		if len(req.Translation.PreserveDomains) > 0 {
			corr = corr.WithTerms(translate.Glossary(req.Translation.PreserveDomains))
		}
		corrected, fixes := corr.Correct(text)
		if len(fixes) > 0 {
			o.cfg.Logger.Debug("transcript corrected",
				"session_id", req.SessionID, "turn_id", turnID, "corrections", len(fixes))
		}
		text = corrected
	}
	res.Transcript = text

	// ── stage: guardrail layer 1 ──
	in := o.cfg.Guardrail.CheckInput(req.SessionID, turnID, text)
	o.persistViolations(ctx, in.Violations)
	if in.Blocked {
		o.cfg.Metrics.RecordGuardrailBlock(ctx, 1, string(worstSeverity(in.Violations)))
		rollup.GuardrailBlocked = true
		res.GuardrailSafe = false
		res.ResponseText = in.SafeResponse
		o.synthesize(ctx, tok, prof, req, res, &rollup)
		return o.finishSuccessful(ctx, tok, req, res, &rollup, start), nil
	}

	// ── stage: LLM (exact hit, semantic hit, or provider call) ──
	response, generated, interrupted := o.generate(ctx, tok, prof, req, res, &rollup, text)
	if interrupted {
		return o.finishInterrupted(ctx, tok, req, res, &rollup, start), nil
	}

	// ── stage: guardrail layer 3 ──
	cacheable := generated
	if generated {
		out := o.cfg.Guardrail.CheckOutput(req.SessionID, turnID, response)
		o.persistViolations(ctx, out.Violations)
		if out.Blocked {
			o.cfg.Metrics.RecordGuardrailBlock(ctx, 3, string(worstSeverity(out.Violations)))
			rollup.GuardrailBlocked = true
			res.GuardrailSafe = false
			response = out.SafeResponse
			cacheable = false
		}
	}
	if cacheable {
		o.cfg.LLMCache.Put(text, prof.Tier, response, prof.CacheTTL)
	}

	res.ResponseText = truncateWords(response, prof.ResponseWordCap)

	// ── stage: translate ──
	o.translate(ctx, tok, prof, req, res, &rollup)

	// ── stage: voice resolution + TTS ──
	if tok.Cancelled() {
		return o.finishInterrupted(ctx, tok, req, res, &rollup, start), nil
	}
	o.synthesize(ctx, tok, prof, req, res, &rollup)
	if tok.Cancelled() {
		return o.finishInterrupted(ctx, tok, req, res, &rollup, start), nil
	}

	return o.finishSuccessful(ctx, tok, req, res, &rollup, start), nil
}

// generate satisfies the LLM stage with exactly one of exact hit, semantic
// hit, or provider call. It returns the response text, whether it was newly
// generated, and whether the turn was interrupted mid-stage.
func (o *Orchestrator) generate(ctx context.Context, tok *interrupt.Token, prof policy.Profile,
	req Request, res *Result, rollup *store.TurnRollup, text string) (string, bool, bool) {

	turnID := res.TurnID

	if hit, ok := o.cfg.LLMCache.GetExact(text, prof.Tier); ok {
		o.cfg.Metrics.RecordCacheLookup(ctx, "llm", "exact")
		rollup.ExactHit = true
		o.recordCachedLLM(ctx, req, turnID, rollup, text, hit.Response)
		return hit.Response, false, false
	}
	if prof.SemanticCacheEnabled {
		if hit, ok := o.cfg.LLMCache.GetSemantic(text, prof.Tier, prof.SemanticThreshold); ok {
			o.cfg.Metrics.RecordCacheLookup(ctx, "llm", "semantic")
			rollup.SemanticHit = true
			o.recordCachedLLM(ctx, req, turnID, rollup, text, hit.Response)
			return hit.Response, false, false
		}
	}
	o.cfg.Metrics.RecordCacheLookup(ctx, "llm", "miss")

	if o.cfg.LLM == nil {
		return llmUnavailableText, false, false
	}

	// Retrieval may overlap prompt assembly on parallel tiers; the generate
	// call itself always waits for both.
	var ragContext string
	retrieve := func(rctx context.Context) {
		chunks, err := o.cfg.Retriever.TopK(rctx, text, prof.RAGDepth)
		if err != nil {
			o.cfg.Logger.Warn("retrieval failed, continuing without context",
				"session_id", req.SessionID, "turn_id", turnID, "error", err)
			return
		}
		ragContext = rag.PromptContext(chunks)
	}

	var system string
	if prof.RAGDepth > 0 && o.cfg.Retriever != nil && prof.Parallel {
		g, gctx := errgroup.WithContext(tok.Context())
		g.Go(func() error { retrieve(gctx); return nil })
		system = o.cfg.Guardrail.AugmentPrompt(req.System)
		_ = g.Wait()
	} else {
		if prof.RAGDepth > 0 && o.cfg.Retriever != nil {
			retrieve(tok.Context())
		}
		system = o.cfg.Guardrail.AugmentPrompt(req.System)
	}
	if ragContext != "" {
		system += "\n\n" + ragContext
	}

	if tok.Cancelled() {
		return "", false, true
	}

	// Concurrent misses on the same key collapse into one provider call; the
	// flight winner records the cost, every caller gets the shared response.
	llmStart := time.Now()
	lctx, lcancel := context.WithTimeout(tok.Context(), prof.LLMTimeout)
	tok.OnCleanup(lcancel)
	response, err := o.cfg.LLMCache.Generate(cache.LLMKey(text, prof.Tier), func() (string, error) {
		gen, err := o.cfg.LLM.Generate(lctx, llm.GenerateRequest{
			System:      system,
			Messages:    []types.Message{{Role: "user", Content: text}},
			Temperature: prof.LLMTemperature,
			MaxTokens:   prof.LLMMaxTokens,
			SessionID:   req.SessionID,
			TurnID:      turnID,
		})
		if err != nil {
			return "", err
		}
		info := o.cfg.LLM.ModelInfo()
		o.record(ctx, req, turnID, rollup, types.CostEntry{
			Service: types.ServiceLLM, Provider: o.cfg.LLM.Name(), Operation: info.ID,
		}, cost.LLMCost(info.ID, int64(gen.InputTokens), int64(gen.OutputTokens)),
			0, 0, int64(gen.InputTokens), int64(gen.OutputTokens), false)
		return gen.Text, nil
	})
	res.Latency.LLMMS = sinceMS(llmStart)
	o.cfg.Metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())

	if tok.Cancelled() {
		return "", false, true
	}
	if err != nil {
		o.cfg.Logger.Warn("generation failed, serving generic response",
			"session_id", req.SessionID, "turn_id", turnID, "error", err)
		o.cfg.Metrics.RecordProviderError(ctx, o.cfg.LLM.Name(), "llm")
		return llmUnavailableText, false, false
	}

	return response, true, false
}

// translate converts the response to the session's target language. Failures
// degrade to the untranslated response.
func (o *Orchestrator) translate(ctx context.Context, tok *interrupt.Token, prof policy.Profile,
	req Request, res *Result, rollup *store.TurnRollup) {

	turnID := res.TurnID
	if o.cfg.Translator == nil || req.TargetLanguage == "" || req.TargetLanguage == generatedLanguage {
		return
	}
	if tok.Cancelled() {
		return
	}

	ex := translate.ExtractTerms(res.ResponseText, req.Translation.PreserveDomains)

	trStart := time.Now()
	tctx, tcancel := context.WithTimeout(tok.Context(), prof.TranslateTimeout)
	tok.OnCleanup(tcancel)
	tr, err := o.cfg.Translator.Translate(tctx, translate.Request{
		Text:       ex.Text,
		SourceLang: generatedLanguage,
		TargetLang: req.TargetLanguage,
		Config:     req.Translation,
		SessionID:  req.SessionID,
		TurnID:     turnID,
	})
	res.Latency.TranslateMS = sinceMS(trStart)
	o.cfg.Metrics.TranslateDuration.Record(ctx, time.Since(trStart).Seconds())

	if err != nil {
		o.cfg.Logger.Warn("translation failed, serving untranslated response",
			"session_id", req.SessionID, "turn_id", turnID,
			"target_language", req.TargetLanguage, "error", err)
		return
	}

	res.TranslatedText = ex.Restore(tr.Text)
	o.record(ctx, req, turnID, rollup, types.CostEntry{
		Service: types.ServiceTranslate, Provider: o.cfg.Translator.Name(), Operation: "translate",
	}, cost.TranslateCost(o.cfg.Translator.Name(), int64(tr.CharCount)),
		0, int64(tr.CharCount), 0, 0, false)
}

// synthesize resolves the voice and produces audio for the spoken text.
// Synthesis failure leaves Audio nil; the turn still succeeds.
func (o *Orchestrator) synthesize(ctx context.Context, tok *interrupt.Token, prof policy.Profile,
	req Request, res *Result, rollup *store.TurnRollup) {

	if o.cfg.Synth == nil {
		return
	}

	speak := res.ResponseText
	lang := generatedLanguage
	if res.TranslatedText != "" {
		speak = res.TranslatedText
		lang = req.TargetLanguage
	}
	if speak == "" {
		return
	}

	resolution := o.cfg.Voices.Resolve(req.TTSProvider, lang, req.VoiceID)
	voice := resolution.Voice

	key := cache.TTSKey(speak, voice.ID, voice.Provider, defaultCodec, defaultSampleRate, req.Tuning)
	chars := int64(len([]rune(speak)))

	if audio, ok := o.cfg.TTSCache.Get(key); ok {
		o.cfg.Metrics.RecordCacheLookup(ctx, "tts", "hit")
		rollup.TTSHit = true
		res.Audio = audio.Data
		res.AudioMIME = audioMIME(audio.Codec)
		res.AudioRef = key
		o.record(ctx, req, res.TurnID, rollup, types.CostEntry{
			Service: types.ServiceTTS, Provider: voice.Provider, Operation: "synthesize",
		}, cost.TTSCost(voice.Provider, chars), 0, chars, 0, 0, true)
		return
	}
	o.cfg.Metrics.RecordCacheLookup(ctx, "tts", "miss")

	if tok.Cancelled() {
		return
	}

	ttsStart := time.Now()
	sctx, scancel := context.WithTimeout(tok.Context(), prof.TTSTimeout)
	tok.OnCleanup(scancel)
	var served string
	audio, err := o.cfg.TTSCache.Synthesize(key, func() (*cache.Audio, error) {
		out, by, err := o.cfg.Synth.SynthesizeWith(sctx, tts.Request{
			Text:       speak,
			VoiceID:    voice.ID,
			Language:   voice.Language,
			Codec:      defaultCodec,
			SampleRate: defaultSampleRate,
			Tuning:     req.Tuning,
			SessionID:  req.SessionID,
			TurnID:     res.TurnID,
		})
		if err != nil {
			return nil, err
		}
		served = by
		a := &cache.Audio{Data: out.Audio, Codec: out.Codec, SampleRate: out.SampleRate}
		o.cfg.TTSCache.Put(key, *a, prof.CacheTTL)
		return a, nil
	})
	res.Latency.TTSMS = sinceMS(ttsStart)
	o.cfg.Metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())

	if err != nil {
		o.cfg.Logger.Warn("synthesis failed, returning text-only response",
			"session_id", req.SessionID, "turn_id", res.TurnID, "error", err)
		return
	}

	if served != "" && served != o.cfg.Synth.Name() {
		o.cfg.Metrics.RecordTTSFallback(ctx, served)
	}
	provider := served
	if provider == "" {
		provider = voice.Provider
	}
	res.Audio = audio.Data
	res.AudioMIME = audioMIME(audio.Codec)
	res.AudioRef = key
	o.record(ctx, req, res.TurnID, rollup, types.CostEntry{
		Service: types.ServiceTTS, Provider: provider, Operation: "synthesize",
	}, cost.TTSCost(provider, chars), 0, chars, 0, 0, false)
}

// ─────────────────────────────────────────────────────────────────────────────
// finalization
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) finishSuccessful(ctx context.Context, tok *interrupt.Token,
	req Request, res *Result, rollup *store.TurnRollup, start time.Time) *Result {

	res.Status = types.TurnSuccessful
	o.finalize(ctx, tok, req, res, rollup, start)
	return res
}

func (o *Orchestrator) finishInterrupted(ctx context.Context, tok *interrupt.Token,
	req Request, res *Result, rollup *store.TurnRollup, start time.Time) *Result {

	res.Status = types.TurnInterrupted
	res.InterruptReason = tok.Reason()
	if res.InterruptReason == "" {
		res.InterruptReason = types.InterruptManual
	}
	o.cfg.Metrics.RecordInterrupt(ctx, string(res.InterruptReason))
	o.finalize(ctx, tok, req, res, rollup, start)
	return res
}

func (o *Orchestrator) finishFailed(ctx context.Context, tok *interrupt.Token,
	req Request, res *Result, rollup *store.TurnRollup, start time.Time, err error) (*Result, error) {

	res.Status = types.TurnFailed
	o.cfg.Logger.Error("turn failed",
		"session_id", req.SessionID, "turn_id", res.TurnID, "error", err)
	o.finalize(ctx, tok, req, res, rollup, start)
	return res, err
}

// finalize stamps the total latency, persists the terminal turn record, and
// folds the turn into the session rollup. Store failures degrade to logs.
func (o *Orchestrator) finalize(ctx context.Context, tok *interrupt.Token,
	req Request, res *Result, rollup *store.TurnRollup, start time.Time) {

	res.Latency.TotalMS = sinceMS(start)
	o.cfg.Metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	o.cfg.Fabric.FinishTurn(tok)

	rollup.Status = res.Status
	rollup.Latency = res.Latency

	if o.cfg.Store == nil {
		return
	}
	err := o.cfg.Store.Turns().Finish(ctx, types.Turn{
		ID:              res.TurnID,
		SessionID:       req.SessionID,
		FinishedAt:      time.Now(),
		Status:          res.Status,
		InterruptReason: res.InterruptReason,
		Transcript:      res.Transcript,
		ResponseText:    res.ResponseText,
		TranslatedText:  res.TranslatedText,
		AudioRef:        res.AudioRef,
		Latency:         res.Latency,
		GuardrailSafe:   res.GuardrailSafe,
	})
	if err != nil {
		o.cfg.Logger.Warn("turn record persistence failed",
			"session_id", req.SessionID, "turn_id", res.TurnID, "error", err)
	}
	if err := o.cfg.Store.Metrics().Apply(ctx, req.SessionID, *rollup); err != nil {
		o.cfg.Logger.Warn("session rollup update failed",
			"session_id", req.SessionID, "error", err)
	}
	o.persistMessages(ctx, req.SessionID, res)
}

// persistMessages appends the user utterance and agent response to the
// conversation history.
func (o *Orchestrator) persistMessages(ctx context.Context, sessionID string, res *Result) {
	msgs := o.cfg.Store.Messages()
	if res.Transcript != "" {
		err := msgs.Append(ctx, types.StoredMessage{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			TurnID:    res.TurnID,
			Role:      "user",
			Content:   res.Transcript,
		})
		if err != nil {
			o.cfg.Logger.Warn("message persistence failed",
				"session_id", sessionID, "turn_id", res.TurnID, "error", err)
		}
	}
	if res.ResponseText != "" {
		err := msgs.Append(ctx, types.StoredMessage{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			TurnID:    res.TurnID,
			Role:      "assistant",
			Content:   res.ResponseText,
		})
		if err != nil {
			o.cfg.Logger.Warn("message persistence failed",
				"session_id", sessionID, "turn_id", res.TurnID, "error", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) createTurnRecord(ctx context.Context, sessionID, turnID string, start time.Time) {
	if o.cfg.Store == nil {
		return
	}
	err := o.cfg.Store.Turns().Create(ctx, types.Turn{
		ID:        turnID,
		SessionID: sessionID,
		StartedAt: start,
		Status:    types.TurnActive,
	})
	if err != nil {
		o.cfg.Logger.Warn("turn record creation failed",
			"session_id", sessionID, "turn_id", turnID, "error", err)
	}
	if err := o.cfg.Store.Sessions().SetLastTurn(ctx, sessionID, turnID); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		o.cfg.Logger.Warn("session last-turn update failed",
			"session_id", sessionID, "error", err)
	}
}

// record builds and stores one cost entry, folding the charged amount into
// the turn rollup. Exactly one of the unit arguments is meaningful per
// service; the rest are zero.
func (o *Orchestrator) record(ctx context.Context, req Request, turnID string, rollup *store.TurnRollup,
	entry types.CostEntry, raw decimal.Decimal, durationMS, chars, inTokens, outTokens int64, cached bool) {

	units, unitType := cost.Units(entry.Service, durationMS, chars, inTokens, outTokens)
	entry.SessionID = req.SessionID
	entry.TurnID = turnID
	entry.Units = units
	entry.UnitType = unitType
	entry.Cached = cached
	entry.OptimizationTier = req.Tier
	stored := o.cfg.Costs.Record(ctx, entry, raw)
	rollup.CostUSD = rollup.CostUSD.Add(stored.Cost)
}

// recordCachedLLM writes the zero-cost entry for a cache hit. The
// counterfactual is estimated from text lengths because no tokens were
// actually consumed.
func (o *Orchestrator) recordCachedLLM(ctx context.Context, req Request, turnID string,
	rollup *store.TurnRollup, prompt, response string) {

	if o.cfg.LLM == nil {
		return
	}
	info := o.cfg.LLM.ModelInfo()
	in, out := approxTokens(prompt), approxTokens(response)
	o.record(ctx, req, turnID, rollup, types.CostEntry{
		Service: types.ServiceLLM, Provider: o.cfg.LLM.Name(), Operation: info.ID,
	}, cost.LLMCost(info.ID, in, out), 0, 0, in, out, true)
}

// approxTokens estimates a token count at four characters per token.
func approxTokens(s string) int64 {
	return int64(len(s)/4) + 1
}

func truncateWords(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ")
}

func worstSeverity(vs []types.GuardrailViolation) types.Severity {
	worst := types.SeverityLow
	for _, v := range vs {
		if v.Severity.AtLeast(worst) {
			worst = v.Severity
		}
	}
	return worst
}

func audioMIME(codec string) string {
	switch strings.ToLower(codec) {
	case "wav", "pcm":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

func sinceMS(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}

func (o *Orchestrator) persistViolations(ctx context.Context, vs []types.GuardrailViolation) {
	if o.cfg.Store == nil {
		return
	}
	for _, v := range vs {
		if err := o.cfg.Store.Violations().Append(ctx, v); err != nil {
			o.cfg.Logger.Warn("violation persistence failed",
				"session_id", v.SessionID, "turn_id", v.TurnID, "rule", v.RuleID, "error", err)
		}
	}
}
