// Package embeddings defines the Provider interface for vector embedding
// backends. The retrieval layer uses these vectors to search the knowledge
// base for context relevant to a caller's utterance.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Vectors from different providers
// or models must never be mixed in one similarity computation.
type Provider interface {
	// Embed computes the embedding vector for one text. The returned slice
	// has length Dimensions().
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for all texts in a single provider call.
	// The i-th result corresponds to texts[i]. On error no partial results
	// are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length for this provider's model.
	Dimensions() int

	// ModelID returns the model identifier, for logging and for verifying
	// that stored vectors match the active model.
	ModelID() string
}
