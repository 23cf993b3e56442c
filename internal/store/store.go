// Package store defines the persistence surface: repositories for sessions,
// turns, messages, guardrail violations, cost entries, per-session metric rollups,
// feedback, system prompts, and named session configurations. The postgres
// subpackage is the production implementation; memstore backs tests and
// store-less deployments.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/vaani-ai/vaani/pkg/types"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrBuiltIn is returned when a delete targets a built-in system prompt.
var ErrBuiltIn = errors.New("store: built-in records cannot be deleted")

// Store aggregates every repository behind one handle.
type Store interface {
	Sessions() SessionRepository
	Turns() TurnRepository
	Messages() MessageRepository
	Violations() ViolationRepository
	Costs() CostRepository
	Metrics() MetricsRepository
	Feedback() FeedbackRepository
	Prompts() PromptRepository
	Configs() ConfigRepository
}

// SessionRepository stores conversation sessions.
type SessionRepository interface {
	Create(ctx context.Context, s types.Session) error
	Get(ctx context.Context, id string) (*types.Session, error)
	SetLastTurn(ctx context.Context, sessionID, turnID string) error
}

// TurnRepository stores turn records. Create inserts the active turn; Finish
// writes its terminal state.
type TurnRepository interface {
	Create(ctx context.Context, t types.Turn) error
	Finish(ctx context.Context, t types.Turn) error
	Get(ctx context.Context, sessionID, turnID string) (*types.Turn, error)
	List(ctx context.Context, sessionID string) ([]types.Turn, error)
}

// MessageRepository stores conversation messages, append-only.
type MessageRepository interface {
	Append(ctx context.Context, m types.StoredMessage) error
	List(ctx context.Context, sessionID string) ([]types.StoredMessage, error)
}

// ViolationRepository stores guardrail violations, append-only.
type ViolationRepository interface {
	Append(ctx context.Context, v types.GuardrailViolation) error
}

// CostRepository stores cost entries, append-only.
type CostRepository interface {
	AppendCostEntry(ctx context.Context, e types.CostEntry) error
	List(ctx context.Context, sessionID string) ([]types.CostEntry, error)
}

// MetricsRepository maintains the per-session rollup. Apply folds one
// finished turn into the rollup atomically.
type MetricsRepository interface {
	Apply(ctx context.Context, sessionID string, r TurnRollup) error
	Get(ctx context.Context, sessionID string) (*types.SessionMetrics, error)
}

// FeedbackRepository stores user ratings.
type FeedbackRepository interface {
	Add(ctx context.Context, f types.Feedback) error
	List(ctx context.Context, sessionID string) ([]types.Feedback, error)
}

// PromptRepository stores system-prompt templates. Built-in prompts refuse
// deletion with ErrBuiltIn.
type PromptRepository interface {
	Create(ctx context.Context, p types.SystemPrompt) error
	Get(ctx context.Context, id string) (*types.SystemPrompt, error)
	List(ctx context.Context) ([]types.SystemPrompt, error)
	Update(ctx context.Context, p types.SystemPrompt) error
	Delete(ctx context.Context, id string) error
}

// ConfigRepository stores named session configurations. Saving a
// configuration with Default set clears the flag on the owner's previous
// default.
type ConfigRepository interface {
	Save(ctx context.Context, c types.SessionConfiguration) error
	Get(ctx context.Context, id string) (*types.SessionConfiguration, error)
	List(ctx context.Context, owner string) ([]types.SessionConfiguration, error)
	GetDefault(ctx context.Context, owner string) (*types.SessionConfiguration, error)
	Delete(ctx context.Context, id string) error
}

// TurnRollup is the metric contribution of one finished turn.
type TurnRollup struct {
	Status  types.TurnStatus
	Latency types.StageLatencies

	ExactHit    bool
	SemanticHit bool
	TTSHit      bool

	GuardrailBlocked bool

	// ASRConfidence below zero means the turn had no audio input.
	ASRConfidence float64

	CostUSD decimal.Decimal
}

// ApplyRollup folds one turn into a metrics record using the Welford
// recurrence mean' = mean + (x - mean)/n. Shared by every MetricsRepository
// implementation so rollups agree across backends.
func ApplyRollup(m *types.SessionMetrics, r TurnRollup) {
	m.TotalTurns++
	switch r.Status {
	case types.TurnSuccessful:
		m.SuccessfulTurns++
	case types.TurnFailed:
		m.FailedTurns++
	case types.TurnInterrupted:
		m.InterruptedTurns++
	}

	n := float64(m.TotalTurns)
	m.MeanASRMS += (float64(r.Latency.ASRMS) - m.MeanASRMS) / n
	m.MeanLLMMS += (float64(r.Latency.LLMMS) - m.MeanLLMMS) / n
	m.MeanTranslateMS += (float64(r.Latency.TranslateMS) - m.MeanTranslateMS) / n
	m.MeanTTSMS += (float64(r.Latency.TTSMS) - m.MeanTTSMS) / n
	m.MeanTotalMS += (float64(r.Latency.TotalMS) - m.MeanTotalMS) / n

	if r.ExactHit {
		m.LLMExactHits++
	}
	if r.SemanticHit {
		m.LLMSemanticHits++
	}
	if r.TTSHit {
		m.TTSHits++
	}
	if r.GuardrailBlocked {
		m.GuardrailBlocks++
	}
	if r.ASRConfidence >= 0 {
		m.MeanASRConfid += (r.ASRConfidence - m.MeanASRConfid) / n
	}

	m.TotalCostUSD = m.TotalCostUSD.Add(r.CostUSD)
}
