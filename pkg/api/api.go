// Package api defines the transport-agnostic request surface (§6): the nine
// operations a siftd deployment exposes, as a single Go interface so any
// wire encoding (JSON/stdio, gRPC, HTTP) can be bolted on without the core
// knowing about it. This package is the seam, not the transport — it has no
// opinion on how a caller reaches these methods, only on what they mean.
package api

import (
	"context"
	"time"

	"github.com/siftd/siftd/internal/coordinator"
	"github.com/siftd/siftd/internal/engineerr"
	"github.com/siftd/siftd/internal/query"
	"github.com/siftd/siftd/internal/symbolstore"
	"github.com/siftd/siftd/internal/telemetry"
)

// API is the nine operations of §6, each taking the field names the spec
// lists. Optional fields are plain zero values (empty string, zero int)
// rather than pointers, since every one of them has a well-defined "unset"
// meaning here.
type API interface {
	// IndexRepository registers root_path as a repository and starts
	// indexing it, returning its repo_id.
	IndexRepository(ctx context.Context, rootPath string) (repoID string, err error)

	// DeregisterRepository removes repo_id's rows and stops its workers.
	DeregisterRepository(ctx context.Context, repoID string) error

	// SymbolLookup finds symbols by exact/prefix name, optionally filtered
	// by kind and scoped to repo.
	SymbolLookup(ctx context.Context, repo, name string, kind symbolstore.SymbolKind, limit int) ([]*symbolstore.Symbol, error)

	// ContentSearch runs a hybrid lexical+semantic search over file
	// content (pattern), fused per options.
	ContentSearch(ctx context.Context, repo, pattern string, options query.Options) ([]*query.Result, error)

	// FuzzySymbol is a trigram-prefilter + edit-distance symbol search.
	FuzzySymbol(ctx context.Context, repo, queryText string, limit int) ([]*symbolstore.Symbol, error)

	// SemanticSearch runs a pure nearest-neighbor search over query_text's
	// embedding, optionally filtered (filter is reserved; unused today).
	SemanticSearch(ctx context.Context, repo, queryText string, k int, filter string) ([]*query.Result, error)

	// References finds every call/read/write/import site of
	// qualified_name within repo.
	References(ctx context.Context, repo, qualifiedName string) ([]*symbolstore.Reference, error)

	// GetStatus reports one repository's indexing progress, or the sole
	// registered repository's if repo_id is empty.
	GetStatus(ctx context.Context, repoID string) (*coordinator.Status, error)

	// Reindex re-queues path (or every file, if path is empty) within
	// repo_id at interactive priority.
	Reindex(ctx context.Context, repoID, path string) error
}

// service implements API over a coordinator.Coordinator, recording query
// telemetry (§4.7's query-pattern metrics) around every read operation.
type service struct {
	coord *coordinator.Coordinator
}

// New wraps coord as an API implementation.
func New(coord *coordinator.Coordinator) API {
	return &service{coord: coord}
}

func (s *service) IndexRepository(ctx context.Context, rootPath string) (string, error) {
	return s.coord.IndexRepository(ctx, rootPath)
}

func (s *service) DeregisterRepository(ctx context.Context, repoID string) error {
	return s.coord.DeregisterRepository(ctx, repoID)
}

func (s *service) SymbolLookup(ctx context.Context, repo, name string, kind symbolstore.SymbolKind, limit int) ([]*symbolstore.Symbol, error) {
	engine, ok := s.coord.Engine(repo)
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "SymbolLookup", "repository "+repo+" not registered")
	}
	symbols, err := engine.SymbolLookup(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return symbols, nil
	}
	filtered := symbols[:0]
	for _, sym := range symbols {
		if sym.Kind == kind {
			filtered = append(filtered, sym)
		}
	}
	return filtered, nil
}

func (s *service) ContentSearch(ctx context.Context, repo, pattern string, options query.Options) ([]*query.Result, error) {
	engine, ok := s.coord.Engine(repo)
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "ContentSearch", "repository "+repo+" not registered")
	}

	start := time.Now()
	results, stats, err := engine.Search(ctx, repo, pattern, options)
	s.recordQuery(pattern, stats.QueryType, len(results), time.Since(start))
	return results, err
}

func (s *service) FuzzySymbol(ctx context.Context, repo, queryText string, limit int) ([]*symbolstore.Symbol, error) {
	engine, ok := s.coord.Engine(repo)
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "FuzzySymbol", "repository "+repo+" not registered")
	}
	return engine.FuzzySymbolSearch(ctx, queryText, limit)
}

func (s *service) SemanticSearch(ctx context.Context, repo, queryText string, k int, filter string) ([]*query.Result, error) {
	engine, ok := s.coord.Engine(repo)
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "SemanticSearch", "repository "+repo+" not registered")
	}

	start := time.Now()
	results, err := engine.SemanticSearch(ctx, repo, queryText, k)
	s.recordQuery(queryText, query.QueryTypeSemantic, len(results), time.Since(start))
	return results, err
}

func (s *service) References(ctx context.Context, repo, qualifiedName string) ([]*symbolstore.Reference, error) {
	engine, ok := s.coord.Engine(repo)
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "References", "repository "+repo+" not registered")
	}
	return engine.References(ctx, repo, qualifiedName)
}

func (s *service) GetStatus(ctx context.Context, repoID string) (*coordinator.Status, error) {
	return s.coord.GetStatus(ctx, repoID)
}

func (s *service) Reindex(ctx context.Context, repoID, path string) error {
	return s.coord.Reindex(ctx, repoID, path)
}

func (s *service) recordQuery(queryText string, qt query.QueryType, resultCount int, latency time.Duration) {
	metrics := s.coord.Metrics()
	if metrics == nil {
		return
	}
	metrics.Record(telemetry.QueryEvent{
		Query:       queryText,
		QueryType:   telemetry.QueryType(normalizeQueryType(qt)),
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

func normalizeQueryType(qt query.QueryType) string {
	switch qt {
	case query.QueryTypeLexical:
		return string(telemetry.QueryTypeLexical)
	case query.QueryTypeSemantic:
		return string(telemetry.QueryTypeSemantic)
	default:
		return string(telemetry.QueryTypeMixed)
	}
}
