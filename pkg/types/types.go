// Package types defines the shared types used across all Vaani packages.
//
// These types form the lingua franca between the provider adapters, the caches,
// the guardrail engine, the cost recorder, and the turn orchestrator. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptimizationTier names a point on the quality-versus-latency curve. Each
// tier fixes a bundle of pipeline knobs; see the policy package for the
// concrete values.
type OptimizationTier string

const (
	TierQuality         OptimizationTier = "quality"
	TierBalancedQuality OptimizationTier = "balanced_quality"
	TierBalanced        OptimizationTier = "balanced"
	TierBalancedSpeed   OptimizationTier = "balanced_speed"
	TierSpeed           OptimizationTier = "speed"
)

// IsValid reports whether t is a recognised optimization tier.
func (t OptimizationTier) IsValid() bool {
	switch t {
	case TierQuality, TierBalancedQuality, TierBalanced, TierBalancedSpeed, TierSpeed:
		return true
	}
	return false
}

// Tiers lists all tiers ordered from quality-leaning to speed-leaning.
func Tiers() []OptimizationTier {
	return []OptimizationTier{
		TierQuality, TierBalancedQuality, TierBalanced, TierBalancedSpeed, TierSpeed,
	}
}

// Message is a single entry in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the plain-text body of the message.
	Content string
}

// StoredMessage is a persisted conversation message, one per utterance or
// agent response within a turn.
type StoredMessage struct {
	ID        string
	SessionID string
	TurnID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// TurnStatus is the terminal status of a turn. Exactly one status is set when
// a turn leaves the active state.
type TurnStatus string

const (
	TurnActive      TurnStatus = "active"
	TurnSuccessful  TurnStatus = "successful"
	TurnFailed      TurnStatus = "failed"
	TurnInterrupted TurnStatus = "interrupted"
)

// InterruptReason records why an interrupted turn was cancelled.
type InterruptReason string

const (
	InterruptUserBargeIn InterruptReason = "user_barge_in"
	InterruptTimeout     InterruptReason = "timeout"
	InterruptError       InterruptReason = "error"
	InterruptManual      InterruptReason = "manual"
	InterruptReplaced    InterruptReason = "replaced"
)

// StageLatencies holds per-stage wall-time measurements for one turn, in
// milliseconds. Zero means the stage did not run.
type StageLatencies struct {
	ASRMS       int64
	LLMMS       int64
	TranslateMS int64
	TTSMS       int64
	TotalMS     int64
}

// Session is the durable record of one conversation.
type Session struct {
	// ID is the stable opaque session identifier chosen at start.
	ID string

	// OptimizationTier is the client-chosen tier applied to new turns unless a
	// turn overrides it.
	OptimizationTier OptimizationTier

	// TargetLanguage is the BCP-47 language the client wants responses in
	// (e.g., "hi-IN"). Empty means respond in the generated language.
	TargetLanguage string

	// ConfigID is the bound named configuration, if any.
	ConfigID string

	CreatedAt  time.Time
	LastTurnID string
}

// Turn is the durable record of one user-utterance / agent-response exchange.
type Turn struct {
	// ID is unique within the parent session.
	ID        string
	SessionID string

	StartedAt  time.Time
	FinishedAt time.Time

	Status          TurnStatus
	InterruptReason InterruptReason

	Transcript     string
	ResponseText   string
	TranslatedText string

	// AudioRef identifies the synthesized audio for this turn (cache key or
	// object reference). Empty when synthesis failed or was skipped.
	AudioRef string

	Latency       StageLatencies
	GuardrailSafe bool
}

// Severity grades a guardrail violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for gate comparisons.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// GuardrailViolation is an append-only record of a tripped guardrail rule.
type GuardrailViolation struct {
	SessionID string
	TurnID    string

	// Layer is 1 (pre-input), 2 (in-prompt), or 3 (post-output).
	Layer int

	RuleID   string
	Severity Severity

	// InputSample and OutputSample are redacted excerpts, never full payloads.
	InputSample  string
	OutputSample string

	// SafeResponse is the fallback text served in place of the blocked content.
	SafeResponse string

	Metadata  map[string]string
	CreatedAt time.Time
}

// ServiceKind names the external service a cost entry is attributed to.
type ServiceKind string

const (
	ServiceASR       ServiceKind = "asr"
	ServiceLLM       ServiceKind = "llm"
	ServiceTranslate ServiceKind = "translate"
	ServiceTTS       ServiceKind = "tts"
)

// UnitType names the billing unit of a cost entry.
type UnitType string

const (
	UnitTokens     UnitType = "tokens"
	UnitCharacters UnitType = "characters"
	UnitAudioMS    UnitType = "audio_ms"
)

// CostEntry attributes the cost of one external call (or cache hit) to a
// session and turn. Entries are append-only. Invariant: Cached implies a zero
// Cost; the avoided spend lives in Metadata["counterfactual_cost_usd"].
type CostEntry struct {
	SessionID string
	TurnID    string

	Service   ServiceKind
	Provider  string
	Operation string

	Units    int64
	UnitType UnitType

	// Cost is the USD cost with six decimal places. Never a float.
	Cost decimal.Decimal

	Cached           bool
	OptimizationTier OptimizationTier
	Metadata         map[string]string
	CreatedAt        time.Time
}

// SessionMetrics is the per-session rollup. Running means use the Welford
// recurrence mean' = mean + (x-mean)/n so they tolerate out-of-order and
// incremental updates. Invariant: TotalTurns = Successful + Failed +
// Interrupted.
type SessionMetrics struct {
	SessionID string

	TotalTurns       int64
	SuccessfulTurns  int64
	FailedTurns      int64
	InterruptedTurns int64

	MeanASRMS       float64
	MeanLLMMS       float64
	MeanTranslateMS float64
	MeanTTSMS       float64
	MeanTotalMS     float64

	LLMExactHits    int64
	LLMSemanticHits int64
	TTSHits         int64

	GuardrailBlocks int64

	TotalCostUSD  decimal.Decimal
	MeanASRConfid float64

	UpdatedAt time.Time
}

// SystemPrompt is a stored system-prompt template. Built-in templates cannot
// be deleted through the API.
type SystemPrompt struct {
	ID        string
	Name      string
	Text      string
	BuiltIn   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TTSTuning holds the per-request synthesis knobs. Ranges: Pitch in
// [-0.75, 0.75], Pace in [0.3, 3.0], Loudness in [0, 3.0].
type TTSTuning struct {
	Pitch    float64
	Pace     float64
	Loudness float64
}

// SessionConfiguration is a named, persisted bundle of user-chosen settings.
// At most one configuration per owner may have Default set; the store
// enforces this on write.
type SessionConfiguration struct {
	ID    string
	Owner string
	Name  string

	LLMProvider string
	LLMModel    string

	TTSProvider string
	TTSVoiceID  string
	TTSTuning   TTSTuning

	OptimizationTier OptimizationTier
	TargetLanguage   string
	RAGEnabled       bool

	// SystemPromptID references a stored prompt; SystemPromptText is raw text
	// used when the ID is empty.
	SystemPromptID   string
	SystemPromptText string

	Default   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingType distinguishes the two feedback scales.
type RatingType string

const (
	RatingThumbs RatingType = "thumbs"
	RatingStars  RatingType = "stars"
)

// Feedback is a user rating for a session. Thumbs ratings are -1 or +1;
// star ratings are 1 through 5.
type Feedback struct {
	ID         string
	SessionID  string
	TurnID     string
	Rating     int
	RatingType RatingType
	Comment    string
	CreatedAt  time.Time
}

// ValidRating reports whether rating is legal for the given type.
func ValidRating(rt RatingType, rating int) bool {
	switch rt {
	case RatingThumbs:
		return rating == -1 || rating == 1
	case RatingStars:
		return rating >= 1 && rating <= 5
	}
	return false
}
