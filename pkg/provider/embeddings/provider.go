// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// The engine embeds each session's raw transcript so it can recall the most
// similar past practice session for a user (pgvector cosine search in the
// session store). The feature is optional: when no embeddings provider is
// configured, sessions are stored without vectors and similarity recall is
// silently absent.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (Dimensions). Vectors from different models must never be
// mixed in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns
	// a float32 slice of length Dimensions() or an error if the request
	// fails or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, for logging
	// and for ensuring consistent model usage across stored vectors.
	ModelID() string
}
