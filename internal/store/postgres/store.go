package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/vaani-ai/vaani/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed store. All repositories share one
// connection pool and are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, registers pgvector types on every
// connection, and runs Migrate. embeddingDimensions must match the embedding
// model feeding the knowledge_chunks table.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for components that query directly, such
// as the retrieval layer.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases every connection held by the pool.
func (s *Store) Close() { s.pool.Close() }

// Sessions implements store.Store.
func (s *Store) Sessions() store.SessionRepository { return &sessionRepo{pool: s.pool} }

// Turns implements store.Store.
func (s *Store) Turns() store.TurnRepository { return &turnRepo{pool: s.pool} }

// Messages implements store.Store.
func (s *Store) Messages() store.MessageRepository { return &messageRepo{pool: s.pool} }

// Violations implements store.Store.
func (s *Store) Violations() store.ViolationRepository { return &violationRepo{pool: s.pool} }

// Costs implements store.Store.
func (s *Store) Costs() store.CostRepository { return &costRepo{pool: s.pool} }

// Metrics implements store.Store.
func (s *Store) Metrics() store.MetricsRepository { return &metricsRepo{pool: s.pool} }

// Feedback implements store.Store.
func (s *Store) Feedback() store.FeedbackRepository { return &feedbackRepo{pool: s.pool} }

// Prompts implements store.Store.
func (s *Store) Prompts() store.PromptRepository { return &promptRepo{pool: s.pool} }

// Configs implements store.Store.
func (s *Store) Configs() store.ConfigRepository { return &configRepo{pool: s.pool} }
