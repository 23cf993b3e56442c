package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// sessions
// ─────────────────────────────────────────────────────────────────────────────

type sessionRepo struct {
	pool *pgxpool.Pool
}

func (r *sessionRepo) Create(ctx context.Context, s types.Session) error {
	const q = `
		INSERT INTO sessions (id, optimization_tier, target_language, config_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, q, s.ID, string(s.OptimizationTier), s.TargetLanguage, s.ConfigID, createdAt)
	if err != nil {
		return fmt.Errorf("sessions: create: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*types.Session, error) {
	const q = `
		SELECT id, optimization_tier, target_language, config_id, last_turn_id, created_at
		FROM   sessions WHERE id = $1`
	var s types.Session
	var tier string
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &tier, &s.TargetLanguage, &s.ConfigID, &s.LastTurnID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: get: %w", err)
	}
	s.OptimizationTier = types.OptimizationTier(tier)
	return &s, nil
}

func (r *sessionRepo) SetLastTurn(ctx context.Context, sessionID, turnID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET last_turn_id = $2 WHERE id = $1`, sessionID, turnID)
	if err != nil {
		return fmt.Errorf("sessions: set last turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// turns
// ─────────────────────────────────────────────────────────────────────────────

type turnRepo struct {
	pool *pgxpool.Pool
}

func (r *turnRepo) Create(ctx context.Context, t types.Turn) error {
	const q = `
		INSERT INTO turns (id, session_id, started_at, status, transcript)
		VALUES ($1, $2, $3, $4, $5)`
	startedAt := t.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, q, t.ID, t.SessionID, startedAt, string(t.Status), t.Transcript)
	if err != nil {
		return fmt.Errorf("turns: create: %w", err)
	}
	return nil
}

func (r *turnRepo) Finish(ctx context.Context, t types.Turn) error {
	const q = `
		UPDATE turns SET
		    finished_at      = $3,
		    status           = $4,
		    interrupt_reason = $5,
		    transcript       = $6,
		    response_text    = $7,
		    translated_text  = $8,
		    audio_ref        = $9,
		    asr_ms           = $10,
		    llm_ms           = $11,
		    translate_ms     = $12,
		    tts_ms           = $13,
		    total_ms         = $14,
		    guardrail_safe   = $15
		WHERE session_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q,
		t.SessionID, t.ID, t.FinishedAt, string(t.Status), string(t.InterruptReason),
		t.Transcript, t.ResponseText, t.TranslatedText, t.AudioRef,
		t.Latency.ASRMS, t.Latency.LLMMS, t.Latency.TranslateMS, t.Latency.TTSMS,
		t.Latency.TotalMS, t.GuardrailSafe)
	if err != nil {
		return fmt.Errorf("turns: finish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const turnColumns = `
	id, session_id, started_at, COALESCE(finished_at, 'epoch'::timestamptz),
	status, interrupt_reason, transcript, response_text, translated_text,
	audio_ref, asr_ms, llm_ms, translate_ms, tts_ms, total_ms, guardrail_safe`

func scanTurn(row pgx.CollectableRow) (types.Turn, error) {
	var t types.Turn
	var status, reason string
	err := row.Scan(
		&t.ID, &t.SessionID, &t.StartedAt, &t.FinishedAt,
		&status, &reason, &t.Transcript, &t.ResponseText, &t.TranslatedText,
		&t.AudioRef, &t.Latency.ASRMS, &t.Latency.LLMMS, &t.Latency.TranslateMS,
		&t.Latency.TTSMS, &t.Latency.TotalMS, &t.GuardrailSafe)
	t.Status = types.TurnStatus(status)
	t.InterruptReason = types.InterruptReason(reason)
	return t, err
}

func (r *turnRepo) Get(ctx context.Context, sessionID, turnID string) (*types.Turn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE session_id = $1 AND id = $2`, sessionID, turnID)
	if err != nil {
		return nil, fmt.Errorf("turns: get: %w", err)
	}
	t, err := pgx.CollectOneRow(rows, scanTurn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("turns: get: %w", err)
	}
	return &t, nil
}

func (r *turnRepo) List(ctx context.Context, sessionID string) ([]types.Turn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE session_id = $1 ORDER BY started_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("turns: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanTurn)
	if err != nil {
		return nil, fmt.Errorf("turns: list: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// messages
// ─────────────────────────────────────────────────────────────────────────────

type messageRepo struct {
	pool *pgxpool.Pool
}

func (r *messageRepo) Append(ctx context.Context, m types.StoredMessage) error {
	const q = `
		INSERT INTO messages (id, session_id, turn_id, role, content)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, m.ID, m.SessionID, m.TurnID, m.Role, m.Content)
	if err != nil {
		return fmt.Errorf("messages: append: %w", err)
	}
	return nil
}

func (r *messageRepo) List(ctx context.Context, sessionID string) ([]types.StoredMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, turn_id, role, content, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("messages: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.StoredMessage, error) {
		var m types.StoredMessage
		err := row.Scan(&m.ID, &m.SessionID, &m.TurnID, &m.Role, &m.Content, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("messages: list: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// guardrail violations
// ─────────────────────────────────────────────────────────────────────────────

type violationRepo struct {
	pool *pgxpool.Pool
}

func (r *violationRepo) Append(ctx context.Context, v types.GuardrailViolation) error {
	const q = `
		INSERT INTO guardrail_violations
		    (session_id, turn_id, layer, rule_id, severity, input_sample,
		     output_sample, safe_response, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	meta := v.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, q,
		v.SessionID, v.TurnID, v.Layer, v.RuleID, string(v.Severity),
		v.InputSample, v.OutputSample, v.SafeResponse, meta)
	if err != nil {
		return fmt.Errorf("violations: append: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// cost entries
// ─────────────────────────────────────────────────────────────────────────────

type costRepo struct {
	pool *pgxpool.Pool
}

func (r *costRepo) AppendCostEntry(ctx context.Context, e types.CostEntry) error {
	const q = `
		INSERT INTO cost_entries
		    (session_id, turn_id, service, provider, operation, units, unit_type,
		     cost, cached, optimization_tier, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)`
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, q,
		e.SessionID, e.TurnID, string(e.Service), e.Provider, e.Operation,
		e.Units, string(e.UnitType), e.Cost.StringFixed(6), e.Cached,
		string(e.OptimizationTier), meta)
	if err != nil {
		return fmt.Errorf("costs: append: %w", err)
	}
	return nil
}

func (r *costRepo) List(ctx context.Context, sessionID string) ([]types.CostEntry, error) {
	const q = `
		SELECT session_id, turn_id, service, provider, operation, units, unit_type,
		       cost::text, cached, optimization_tier, metadata, created_at
		FROM   cost_entries
		WHERE  session_id = $1
		ORDER  BY created_at`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("costs: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.CostEntry, error) {
		var e types.CostEntry
		var service, unitType, tier, costStr string
		if err := row.Scan(
			&e.SessionID, &e.TurnID, &service, &e.Provider, &e.Operation,
			&e.Units, &unitType, &costStr, &e.Cached, &tier, &e.Metadata,
			&e.CreatedAt); err != nil {
			return e, err
		}
		e.Service = types.ServiceKind(service)
		e.UnitType = types.UnitType(unitType)
		e.OptimizationTier = types.OptimizationTier(tier)
		cost, err := decimal.NewFromString(costStr)
		if err != nil {
			return e, fmt.Errorf("parse cost %q: %w", costStr, err)
		}
		e.Cost = cost
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("costs: list: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// session metrics
// ─────────────────────────────────────────────────────────────────────────────

type metricsRepo struct {
	pool *pgxpool.Pool
}

// Apply folds one turn into the rollup inside a transaction. The row is
// locked, updated in Go via store.ApplyRollup, and written back, so
// concurrent turns never lose updates.
func (r *metricsRepo) Apply(ctx context.Context, sessionID string, roll store.TurnRollup) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("metrics: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := getMetrics(ctx, tx, sessionID, true)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if m == nil {
		m = &types.SessionMetrics{SessionID: sessionID}
	}
	store.ApplyRollup(m, roll)

	const q = `
		INSERT INTO session_metrics
		    (session_id, total_turns, successful_turns, failed_turns, interrupted_turns,
		     mean_asr_ms, mean_llm_ms, mean_translate_ms, mean_tts_ms, mean_total_ms,
		     llm_exact_hits, llm_semantic_hits, tts_hits, guardrail_blocks,
		     total_cost_usd, mean_asr_confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::numeric, $16, now())
		ON CONFLICT (session_id) DO UPDATE SET
		    total_turns         = EXCLUDED.total_turns,
		    successful_turns    = EXCLUDED.successful_turns,
		    failed_turns        = EXCLUDED.failed_turns,
		    interrupted_turns   = EXCLUDED.interrupted_turns,
		    mean_asr_ms         = EXCLUDED.mean_asr_ms,
		    mean_llm_ms         = EXCLUDED.mean_llm_ms,
		    mean_translate_ms   = EXCLUDED.mean_translate_ms,
		    mean_tts_ms         = EXCLUDED.mean_tts_ms,
		    mean_total_ms       = EXCLUDED.mean_total_ms,
		    llm_exact_hits      = EXCLUDED.llm_exact_hits,
		    llm_semantic_hits   = EXCLUDED.llm_semantic_hits,
		    tts_hits            = EXCLUDED.tts_hits,
		    guardrail_blocks    = EXCLUDED.guardrail_blocks,
		    total_cost_usd      = EXCLUDED.total_cost_usd,
		    mean_asr_confidence = EXCLUDED.mean_asr_confidence,
		    updated_at          = now()`
	_, err = tx.Exec(ctx, q,
		m.SessionID, m.TotalTurns, m.SuccessfulTurns, m.FailedTurns, m.InterruptedTurns,
		m.MeanASRMS, m.MeanLLMMS, m.MeanTranslateMS, m.MeanTTSMS, m.MeanTotalMS,
		m.LLMExactHits, m.LLMSemanticHits, m.TTSHits, m.GuardrailBlocks,
		m.TotalCostUSD.StringFixed(6), m.MeanASRConfid)
	if err != nil {
		return fmt.Errorf("metrics: upsert: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *metricsRepo) Get(ctx context.Context, sessionID string) (*types.SessionMetrics, error) {
	return getMetrics(ctx, r.pool, sessionID, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getMetrics(ctx context.Context, q querier, sessionID string, forUpdate bool) (*types.SessionMetrics, error) {
	sql := `
		SELECT session_id, total_turns, successful_turns, failed_turns, interrupted_turns,
		       mean_asr_ms, mean_llm_ms, mean_translate_ms, mean_tts_ms, mean_total_ms,
		       llm_exact_hits, llm_semantic_hits, tts_hits, guardrail_blocks,
		       total_cost_usd::text, mean_asr_confidence, updated_at
		FROM   session_metrics WHERE session_id = $1`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var m types.SessionMetrics
	var costStr string
	err := q.QueryRow(ctx, sql, sessionID).Scan(
		&m.SessionID, &m.TotalTurns, &m.SuccessfulTurns, &m.FailedTurns, &m.InterruptedTurns,
		&m.MeanASRMS, &m.MeanLLMMS, &m.MeanTranslateMS, &m.MeanTTSMS, &m.MeanTotalMS,
		&m.LLMExactHits, &m.LLMSemanticHits, &m.TTSHits, &m.GuardrailBlocks,
		&costStr, &m.MeanASRConfid, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: get: %w", err)
	}
	cost, err := decimal.NewFromString(costStr)
	if err != nil {
		return nil, fmt.Errorf("metrics: parse cost %q: %w", costStr, err)
	}
	m.TotalCostUSD = cost
	return &m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// feedback
// ─────────────────────────────────────────────────────────────────────────────

type feedbackRepo struct {
	pool *pgxpool.Pool
}

func (r *feedbackRepo) Add(ctx context.Context, f types.Feedback) error {
	const q = `
		INSERT INTO user_feedback (id, session_id, turn_id, rating, rating_type, comment)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, f.ID, f.SessionID, f.TurnID, f.Rating, string(f.RatingType), f.Comment)
	if err != nil {
		return fmt.Errorf("feedback: add: %w", err)
	}
	return nil
}

func (r *feedbackRepo) List(ctx context.Context, sessionID string) ([]types.Feedback, error) {
	const q = `
		SELECT id, session_id, turn_id, rating, rating_type, comment, created_at
		FROM   user_feedback WHERE session_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("feedback: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Feedback, error) {
		var f types.Feedback
		var rt string
		err := row.Scan(&f.ID, &f.SessionID, &f.TurnID, &f.Rating, &rt, &f.Comment, &f.CreatedAt)
		f.RatingType = types.RatingType(rt)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("feedback: list: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// system prompts
// ─────────────────────────────────────────────────────────────────────────────

type promptRepo struct {
	pool *pgxpool.Pool
}

func (r *promptRepo) Create(ctx context.Context, p types.SystemPrompt) error {
	const q = `
		INSERT INTO system_prompts (id, name, text, built_in)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, p.ID, p.Name, p.Text, p.BuiltIn)
	if err != nil {
		return fmt.Errorf("prompts: create: %w", err)
	}
	return nil
}

func (r *promptRepo) Get(ctx context.Context, id string) (*types.SystemPrompt, error) {
	const q = `
		SELECT id, name, text, built_in, created_at, updated_at
		FROM   system_prompts WHERE id = $1`
	var p types.SystemPrompt
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Text, &p.BuiltIn, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("prompts: get: %w", err)
	}
	return &p, nil
}

func (r *promptRepo) List(ctx context.Context) ([]types.SystemPrompt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, text, built_in, created_at, updated_at FROM system_prompts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("prompts: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.SystemPrompt, error) {
		var p types.SystemPrompt
		err := row.Scan(&p.ID, &p.Name, &p.Text, &p.BuiltIn, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("prompts: list: %w", err)
	}
	return out, nil
}

func (r *promptRepo) Update(ctx context.Context, p types.SystemPrompt) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE system_prompts SET name = $2, text = $3, updated_at = now() WHERE id = $1`,
		p.ID, p.Name, p.Text)
	if err != nil {
		return fmt.Errorf("prompts: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *promptRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM system_prompts WHERE id = $1 AND NOT built_in`, id)
	if err != nil {
		return fmt.Errorf("prompts: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing prompt from a protected one.
		var builtIn bool
		err := r.pool.QueryRow(ctx,
			`SELECT built_in FROM system_prompts WHERE id = $1`, id).Scan(&builtIn)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("prompts: delete: %w", err)
		}
		return store.ErrBuiltIn
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// session configurations
// ─────────────────────────────────────────────────────────────────────────────

type configRepo struct {
	pool *pgxpool.Pool
}

func (r *configRepo) Save(ctx context.Context, c types.SessionConfiguration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("configs: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if c.Default {
		_, err = tx.Exec(ctx,
			`UPDATE session_configurations SET is_default = false WHERE owner_id = $1 AND id <> $2`,
			c.Owner, c.ID)
		if err != nil {
			return fmt.Errorf("configs: clear default: %w", err)
		}
	}

	const q = `
		INSERT INTO session_configurations
		    (id, owner_id, name, llm_provider, llm_model, tts_provider, tts_voice_id,
		     tts_pitch, tts_pace, tts_loudness, optimization_tier, target_language,
		     rag_enabled, system_prompt_id, system_prompt_text, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
		    name               = EXCLUDED.name,
		    llm_provider       = EXCLUDED.llm_provider,
		    llm_model          = EXCLUDED.llm_model,
		    tts_provider       = EXCLUDED.tts_provider,
		    tts_voice_id       = EXCLUDED.tts_voice_id,
		    tts_pitch          = EXCLUDED.tts_pitch,
		    tts_pace           = EXCLUDED.tts_pace,
		    tts_loudness       = EXCLUDED.tts_loudness,
		    optimization_tier  = EXCLUDED.optimization_tier,
		    target_language    = EXCLUDED.target_language,
		    rag_enabled        = EXCLUDED.rag_enabled,
		    system_prompt_id   = EXCLUDED.system_prompt_id,
		    system_prompt_text = EXCLUDED.system_prompt_text,
		    is_default         = EXCLUDED.is_default,
		    updated_at         = now()`
	_, err = tx.Exec(ctx, q,
		c.ID, c.Owner, c.Name, c.LLMProvider, c.LLMModel, c.TTSProvider, c.TTSVoiceID,
		c.TTSTuning.Pitch, c.TTSTuning.Pace, c.TTSTuning.Loudness,
		string(c.OptimizationTier), c.TargetLanguage, c.RAGEnabled,
		c.SystemPromptID, c.SystemPromptText, c.Default)
	if err != nil {
		return fmt.Errorf("configs: save: %w", err)
	}
	return tx.Commit(ctx)
}

const configColumns = `
	id, owner_id, name, llm_provider, llm_model, tts_provider, tts_voice_id,
	tts_pitch, tts_pace, tts_loudness, optimization_tier, target_language,
	rag_enabled, system_prompt_id, system_prompt_text, is_default, created_at, updated_at`

func scanConfig(row pgx.CollectableRow) (types.SessionConfiguration, error) {
	var c types.SessionConfiguration
	var tier string
	err := row.Scan(
		&c.ID, &c.Owner, &c.Name, &c.LLMProvider, &c.LLMModel, &c.TTSProvider, &c.TTSVoiceID,
		&c.TTSTuning.Pitch, &c.TTSTuning.Pace, &c.TTSTuning.Loudness, &tier, &c.TargetLanguage,
		&c.RAGEnabled, &c.SystemPromptID, &c.SystemPromptText, &c.Default, &c.CreatedAt, &c.UpdatedAt)
	c.OptimizationTier = types.OptimizationTier(tier)
	return c, err
}

func (r *configRepo) Get(ctx context.Context, id string) (*types.SessionConfiguration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+configColumns+` FROM session_configurations WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("configs: get: %w", err)
	}
	c, err := pgx.CollectOneRow(rows, scanConfig)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("configs: get: %w", err)
	}
	return &c, nil
}

func (r *configRepo) List(ctx context.Context, owner string) ([]types.SessionConfiguration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+configColumns+` FROM session_configurations WHERE owner_id = $1 ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("configs: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanConfig)
	if err != nil {
		return nil, fmt.Errorf("configs: list: %w", err)
	}
	return out, nil
}

func (r *configRepo) GetDefault(ctx context.Context, owner string) (*types.SessionConfiguration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+configColumns+` FROM session_configurations WHERE owner_id = $1 AND is_default`, owner)
	if err != nil {
		return nil, fmt.Errorf("configs: get default: %w", err)
	}
	c, err := pgx.CollectOneRow(rows, scanConfig)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("configs: get default: %w", err)
	}
	return &c, nil
}

func (r *configRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM session_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("configs: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
