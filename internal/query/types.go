// Package query is the C7 router: it classifies a query, runs lexical
// content search against symbolstore and semantic nearest-neighbor search
// against semanticstore, fuses the two with Reciprocal Rank Fusion, and
// caches the result behind a three-tier cache with singleflight
// coalescing so concurrent identical requests pay for one fan-out.
package query

import (
	"context"
	"time"
)

// QueryType classifies a query's lexical/semantic character so the router
// can pick fusion weights without a human specifying them per request.
type QueryType string

const (
	// QueryTypeLexical needs exact/keyword matching: error codes,
	// identifiers, quoted phrases, file paths.
	QueryTypeLexical QueryType = "LEXICAL"
	// QueryTypeSemantic is natural language seeking meaning: questions,
	// conceptual queries, explanations.
	QueryTypeSemantic QueryType = "SEMANTIC"
	// QueryTypeMixed benefits from both: short technical terms, or
	// anything ambiguous. The default.
	QueryTypeMixed QueryType = "MIXED"
)

// Weights configures the relative importance of lexical vs semantic search
// in RRF fusion.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights favors semantic slightly, the sensible prior for a query
// whose character is unknown.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.35, Semantic: 0.65}
}

// WeightsForQueryType returns the predefined weights for a classified query.
func WeightsForQueryType(qt QueryType) Weights {
	switch qt {
	case QueryTypeLexical:
		return Weights{Lexical: 0.85, Semantic: 0.15}
	case QueryTypeSemantic:
		return Weights{Lexical: 0.20, Semantic: 0.80}
	default:
		return DefaultWeights()
	}
}

// Classifier determines a query's type and the fusion weights it implies.
// Implementations never return an error for an unclassifiable query; they
// fall back to QueryTypeMixed instead, since a failed classification is not
// a failed search.
type Classifier interface {
	Classify(ctx context.Context, query string) (QueryType, Weights, error)
}

// Options configures a content_search/semantic_search request (§6).
type Options struct {
	// Limit caps the number of fused results returned.
	Limit int

	// LexicalOnly skips the vector leg entirely — used when the caller
	// wants exact-match behavior or the embedder is known to be down.
	LexicalOnly bool

	// Weights overrides the classifier's weights when non-nil.
	Weights *Weights
}

// DefaultLimit is used when Options.Limit is unset or not positive; a
// Limit above MaxLimit is capped to MaxLimit.
const DefaultLimit = 10

// MaxLimit bounds how many fused results a single request can request.
const MaxLimit = 100

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	if o.Limit > MaxLimit {
		return MaxLimit
	}
	return o.Limit
}

// Result is one fused search hit: symbolstore's chunk plus the scores and
// ranks that produced it.
type Result struct {
	ChunkID         string
	FileID          string
	Line            int
	Snippet         string
	EnclosingSymbol string

	Score        float64 // fused, normalized 0-1
	LexicalScore float64
	LexicalRank  int // 1-indexed, 0 if absent from the lexical leg
	VectorScore  float64
	VectorRank   int // 1-indexed, 0 if absent from the vector leg
	InBothLists  bool

	// FallbackUsed is true when Search returned a lexical-only result
	// because the embedding provider was unavailable (§7). SemanticSearch
	// never sets it.
	FallbackUsed bool
}

// SearchStats reports the shape of a fused search, for explain/debug use.
type SearchStats struct {
	LexicalHits  int
	VectorHits   int
	QueryType    QueryType
	Weights      Weights
	FetchedAt    time.Time
	FallbackUsed bool
}
