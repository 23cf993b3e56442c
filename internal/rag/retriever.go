// Package rag retrieves knowledge chunks relevant to a user utterance and
// folds them into the LLM prompt. Retrieval is cosine-nearest-neighbour over
// pgvector embeddings; a nil *Retriever disables the stage entirely.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vaani-ai/vaani/pkg/provider/embeddings"
)

// Chunk is one retrieved knowledge fragment.
type Chunk struct {
	ID      string
	Content string
	Source  string

	// Score is cosine similarity in [-1, 1]; higher is closer.
	Score float64
}

// Index stores and searches embedded chunks. PgIndex is the production
// implementation.
type Index interface {
	Insert(ctx context.Context, c Chunk, embedding []float32) error
	Search(ctx context.Context, embedding []float32, topK int) ([]Chunk, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// pgvector-backed index
// ─────────────────────────────────────────────────────────────────────────────

var _ Index = (*PgIndex)(nil)

// PgIndex is the pgvector-backed Index over the knowledge_chunks table.
type PgIndex struct {
	pool *pgxpool.Pool
}

// NewPgIndex wraps an existing pool. The schema is installed by the postgres
// store's Migrate.
func NewPgIndex(pool *pgxpool.Pool) *PgIndex {
	return &PgIndex{pool: pool}
}

func (x *PgIndex) Insert(ctx context.Context, c Chunk, embedding []float32) error {
	const q = `
		INSERT INTO knowledge_chunks (id, content, source, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
		    content   = EXCLUDED.content,
		    source    = EXCLUDED.source,
		    embedding = EXCLUDED.embedding`
	_, err := x.pool.Exec(ctx, q, c.ID, c.Content, c.Source, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("rag: insert chunk: %w", err)
	}
	return nil
}

func (x *PgIndex) Search(ctx context.Context, embedding []float32, topK int) ([]Chunk, error) {
	const q = `
		SELECT id, content, source,
		       embedding <=> $1 AS distance
		FROM   knowledge_chunks
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`
	rows, err := x.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Chunk, error) {
		var c Chunk
		var distance float64
		err := row.Scan(&c.ID, &c.Content, &c.Source, &distance)
		c.Score = 1 - distance
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// retriever
// ─────────────────────────────────────────────────────────────────────────────

const (
	defaultTopK     = 4
	defaultMinScore = 0.2
)

// Retriever embeds queries and pulls the closest chunks from an Index.
type Retriever struct {
	index    Index
	embedder embeddings.Provider
	topK     int
	minScore float64
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK sets how many chunks a retrieval returns at most.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinScore drops chunks whose cosine similarity is below min.
func WithMinScore(min float64) Option {
	return func(r *Retriever) { r.minScore = min }
}

// New builds a Retriever over the given index and embedding provider.
func New(index Index, embedder embeddings.Provider, opts ...Option) *Retriever {
	r := &Retriever{
		index:    index,
		embedder: embedder,
		topK:     defaultTopK,
		minScore: defaultMinScore,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the chunks closest to query, best first, using the
// configured depth.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Chunk, error) {
	if r == nil {
		return nil, nil
	}
	return r.TopK(ctx, query, r.topK)
}

// TopK is Retrieve with an explicit depth. A nil receiver, a blank query, or
// k <= 0 retrieves nothing.
func (r *Retriever) TopK(ctx context.Context, query string, k int) ([]Chunk, error) {
	if r == nil || k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	chunks, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	kept := chunks[:0]
	for _, c := range chunks {
		if c.Score >= r.minScore {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// Ingest embeds and stores one document fragment. The returned ID addresses
// the chunk for later replacement.
func (r *Retriever) Ingest(ctx context.Context, content, source string) (string, error) {
	vec, err := r.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("rag: embed chunk: %w", err)
	}
	c := Chunk{ID: uuid.NewString(), Content: content, Source: source}
	if err := r.index.Insert(ctx, c, vec); err != nil {
		return "", err
	}
	return c.ID, nil
}

// PromptContext renders retrieved chunks as a block the orchestrator appends
// to the system prompt. Empty input renders nothing.
func PromptContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Reference material, use only when relevant:\n")
	for i, c := range chunks {
		b.WriteString(fmt.Sprintf("\n[%d] ", i+1))
		if c.Source != "" {
			b.WriteString("(" + c.Source + ") ")
		}
		b.WriteString(c.Content)
	}
	return b.String()
}
