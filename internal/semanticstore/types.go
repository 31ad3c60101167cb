// Package semanticstore turns committed chunks into embeddings and serves
// nearest-neighbor search over them (§4.5). It owns the Embedder abstraction,
// the pluggable VectorStore adapter (local HNSW or external ANN service), and
// the bookkeeping that keeps vector-store points in sync with symbolstore's
// chunk rows.
package semanticstore

import (
	"context"
	"fmt"
)

// Embedder generates vector embeddings for text. Implementations may be
// remote (an HTTP embedding service) or local and dependency-free (the
// hash-based fallback used when no provider is reachable).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string  // point id: "<file_id>:<chunk_id>:<content_hash>" (see PointID)
	Distance float32 // lower is more similar
	Score    float32 // normalized similarity, 0-1
}

// VectorStoreConfig configures a VectorStore instance.
type VectorStoreConfig struct {
	// Dimensions is the vector width. Must match the embedder that produced
	// the points, or Add/Search return ErrDimensionMismatch.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is the HNSW max connections per layer (local engine only).
	M int

	// EfConstruction is the HNSW build-time search width (local engine only).
	EfConstruction int

	// EfSearch is the HNSW query-time search width (local engine only).
	EfSearch int

	// CollectionName names the collection/index on a remote ANN service.
	// Ignored by the local engine.
	CollectionName string
}

// DefaultVectorStoreConfig returns sensible defaults for a vector store of
// the given dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
		CollectionName: "chunks",
	}
}

// VectorStore provides nearest-neighbor search over embedded chunks (§4.5).
// Two implementations exist: HNSWStore (local, coder/hnsw) and QdrantStore
// (external). Repository always opens an HNSWStore; no configuration option
// selects QdrantStore. Callers depend on this interface, never on
// a concrete engine, so the backend can be swapped without touching C4/C6/C7.
type VectorStore interface {
	// Add inserts vectors keyed by id. Re-adding an existing id replaces it.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes points by id. Deleting a nonexistent id is a no-op.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns every point id currently stored, for orphan sweeps.
	AllIDs() []string

	// Contains reports whether id currently has a point.
	Contains(id string) bool

	// Count returns the number of live points.
	Count() int

	Close() error
}

// ErrDimensionMismatch is returned when a vector's width doesn't match the
// store's configured Dimensions.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("semanticstore: dimension mismatch: expected %d, got %d (reindex with the current embedder)", e.Expected, e.Got)
}

// PointID derives the vector store's point id for a chunk. Deterministic
// over (file_id, chunk_id, content_hash) so re-embedding an unchanged chunk
// is idempotent and a changed chunk gets a fresh id rather than silently
// overwriting stale vector data under the old one (§4.5).
func PointID(fileID, chunkID, contentHash string) string {
	return fmt.Sprintf("%s:%s:%s", fileID, chunkID, contentHash)
}
