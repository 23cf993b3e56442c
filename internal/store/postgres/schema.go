// Package postgres is the PostgreSQL-backed store.Store implementation. All
// repositories share a single pgxpool.Pool; Migrate installs the schema via
// CREATE TABLE IF NOT EXISTS so a fresh database is usable without separate
// tooling.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// conversation DDL — sessions, turns
// ─────────────────────────────────────────────────────────────────────────────

const ddlConversations = `
CREATE TABLE IF NOT EXISTS sessions (
    id                TEXT         PRIMARY KEY,
    optimization_tier TEXT         NOT NULL DEFAULT 'balanced',
    target_language   TEXT         NOT NULL DEFAULT '',
    config_id         TEXT         NOT NULL DEFAULT '',
    last_turn_id      TEXT         NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS turns (
    id               TEXT         NOT NULL,
    session_id       TEXT         NOT NULL,
    started_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    finished_at      TIMESTAMPTZ,
    status           TEXT         NOT NULL DEFAULT 'active',
    interrupt_reason TEXT         NOT NULL DEFAULT '',
    transcript       TEXT         NOT NULL DEFAULT '',
    response_text    TEXT         NOT NULL DEFAULT '',
    translated_text  TEXT         NOT NULL DEFAULT '',
    audio_ref        TEXT         NOT NULL DEFAULT '',
    asr_ms           BIGINT       NOT NULL DEFAULT 0,
    llm_ms           BIGINT       NOT NULL DEFAULT 0,
    translate_ms     BIGINT       NOT NULL DEFAULT 0,
    tts_ms           BIGINT       NOT NULL DEFAULT 0,
    total_ms         BIGINT       NOT NULL DEFAULT 0,
    guardrail_safe   BOOLEAN      NOT NULL DEFAULT true,
    PRIMARY KEY (session_id, id)
);

CREATE INDEX IF NOT EXISTS idx_turns_session_started
    ON turns (session_id, started_at);

CREATE INDEX IF NOT EXISTS idx_turns_status
    ON turns (status);

CREATE TABLE IF NOT EXISTS messages (
    id         TEXT         PRIMARY KEY,
    session_id TEXT         NOT NULL,
    turn_id    TEXT         NOT NULL DEFAULT '',
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON messages (session_id, created_at);
`

// ─────────────────────────────────────────────────────────────────────────────
// observability DDL — violations, costs, metrics, feedback
// ─────────────────────────────────────────────────────────────────────────────

const ddlObservability = `
CREATE TABLE IF NOT EXISTS guardrail_violations (
    id            BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL,
    turn_id       TEXT         NOT NULL DEFAULT '',
    layer         INT          NOT NULL,
    rule_id       TEXT         NOT NULL,
    severity      TEXT         NOT NULL,
    input_sample  TEXT         NOT NULL DEFAULT '',
    output_sample TEXT         NOT NULL DEFAULT '',
    safe_response TEXT         NOT NULL DEFAULT '',
    metadata      JSONB        NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_violations_session_created
    ON guardrail_violations (session_id, created_at);

CREATE INDEX IF NOT EXISTS idx_violations_severity
    ON guardrail_violations (severity);

CREATE TABLE IF NOT EXISTS cost_entries (
    id                BIGSERIAL     PRIMARY KEY,
    session_id        TEXT          NOT NULL,
    turn_id           TEXT          NOT NULL DEFAULT '',
    service           TEXT          NOT NULL,
    provider          TEXT          NOT NULL,
    operation         TEXT          NOT NULL DEFAULT '',
    units             BIGINT        NOT NULL DEFAULT 0,
    unit_type         TEXT          NOT NULL DEFAULT '',
    cost              NUMERIC(12,6) NOT NULL DEFAULT 0,
    cached            BOOLEAN       NOT NULL DEFAULT false,
    optimization_tier TEXT          NOT NULL DEFAULT '',
    metadata          JSONB         NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ   NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_costs_session_created
    ON cost_entries (session_id, created_at);

CREATE INDEX IF NOT EXISTS idx_costs_service
    ON cost_entries (service);

CREATE INDEX IF NOT EXISTS idx_costs_provider
    ON cost_entries (provider);

CREATE TABLE IF NOT EXISTS session_metrics (
    session_id          TEXT          PRIMARY KEY,
    total_turns         BIGINT        NOT NULL DEFAULT 0,
    successful_turns    BIGINT        NOT NULL DEFAULT 0,
    failed_turns        BIGINT        NOT NULL DEFAULT 0,
    interrupted_turns   BIGINT        NOT NULL DEFAULT 0,
    mean_asr_ms         DOUBLE PRECISION NOT NULL DEFAULT 0,
    mean_llm_ms         DOUBLE PRECISION NOT NULL DEFAULT 0,
    mean_translate_ms   DOUBLE PRECISION NOT NULL DEFAULT 0,
    mean_tts_ms         DOUBLE PRECISION NOT NULL DEFAULT 0,
    mean_total_ms       DOUBLE PRECISION NOT NULL DEFAULT 0,
    llm_exact_hits      BIGINT        NOT NULL DEFAULT 0,
    llm_semantic_hits   BIGINT        NOT NULL DEFAULT 0,
    tts_hits            BIGINT        NOT NULL DEFAULT 0,
    guardrail_blocks    BIGINT        NOT NULL DEFAULT 0,
    total_cost_usd      NUMERIC(12,6) NOT NULL DEFAULT 0,
    mean_asr_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at          TIMESTAMPTZ   NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_feedback (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    turn_id     TEXT         NOT NULL DEFAULT '',
    rating      INT          NOT NULL,
    rating_type TEXT         NOT NULL,
    comment     TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_session
    ON user_feedback (session_id);
`

// ─────────────────────────────────────────────────────────────────────────────
// configuration DDL — prompts, named configurations
// ─────────────────────────────────────────────────────────────────────────────

const ddlConfiguration = `
CREATE TABLE IF NOT EXISTS system_prompts (
    id         TEXT         PRIMARY KEY,
    name       TEXT         NOT NULL,
    text       TEXT         NOT NULL,
    built_in   BOOLEAN      NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_configurations (
    id                 TEXT         PRIMARY KEY,
    owner_id           TEXT         NOT NULL,
    name               TEXT         NOT NULL,
    llm_provider       TEXT         NOT NULL DEFAULT '',
    llm_model          TEXT         NOT NULL DEFAULT '',
    tts_provider       TEXT         NOT NULL DEFAULT '',
    tts_voice_id       TEXT         NOT NULL DEFAULT '',
    tts_pitch          DOUBLE PRECISION NOT NULL DEFAULT 0,
    tts_pace           DOUBLE PRECISION NOT NULL DEFAULT 0,
    tts_loudness       DOUBLE PRECISION NOT NULL DEFAULT 0,
    optimization_tier  TEXT         NOT NULL DEFAULT '',
    target_language    TEXT         NOT NULL DEFAULT '',
    rag_enabled        BOOLEAN      NOT NULL DEFAULT false,
    system_prompt_id   TEXT         NOT NULL DEFAULT '',
    system_prompt_text TEXT         NOT NULL DEFAULT '',
    is_default         BOOLEAN      NOT NULL DEFAULT false,
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_configs_owner
    ON session_configurations (owner_id);

CREATE UNIQUE INDEX IF NOT EXISTS idx_configs_one_default_per_owner
    ON session_configurations (owner_id) WHERE is_default;
`

// ddlRAG returns the retrieval DDL with the embedding dimension baked into
// the vector column type.
func ddlRAG(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS knowledge_chunks (
    id         TEXT         PRIMARY KEY,
    content    TEXT         NOT NULL,
    source     TEXT         NOT NULL DEFAULT '',
    embedding  vector(%d),
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_embedding_hnsw
    ON knowledge_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates every table and index the store needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	for _, ddl := range []string{
		ddlConversations,
		ddlObservability,
		ddlConfiguration,
		ddlRAG(embeddingDimensions),
	} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}
