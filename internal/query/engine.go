package query

import (
	"context"

	"github.com/siftd/siftd/internal/engineerr"
	"github.com/siftd/siftd/internal/semanticstore"
	"github.com/siftd/siftd/internal/symbolstore"
)

// snippetLen bounds how much chunk content backs a vector-only result's
// Snippet field (content search already truncates its own snippets; a
// vector hit has to borrow the chunk body instead).
const snippetLen = 240

// Engine is the C7 query router: it classifies a query, fans out to
// symbolstore's FTS leg and semanticstore's vector leg, fuses the two with
// RRF, and serves the result through Cache.
type Engine struct {
	Store    symbolstore.Store
	Vector   semanticstore.VectorStore
	Embedder semanticstore.Embedder

	classifier Classifier
	cache      *Cache
	breaker    *engineerr.CircuitBreaker
	rrf        *rrfFusion
}

// NewEngine wires a router over the given stores. cache and breaker may be
// nil: a nil cache disables caching, a nil breaker disables circuit
// protection around the embedder (tests commonly want both off).
func NewEngine(store symbolstore.Store, vector semanticstore.VectorStore, embedder semanticstore.Embedder, classifier Classifier, cache *Cache, breaker *engineerr.CircuitBreaker) *Engine {
	if classifier == nil {
		classifier = NewPatternClassifier()
	}
	return &Engine{
		Store:      store,
		Vector:     vector,
		Embedder:   embedder,
		classifier: classifier,
		cache:      cache,
		breaker:    breaker,
		rrf:        newRRFFusion(),
	}
}

// Search runs content_search (§6): a hybrid lexical+semantic query, fused
// and ranked. When the embedding provider is unavailable, it degrades to a
// lexical-only result set with FallbackUsed set on every Result rather than
// failing the request outright — only SemanticSearch (a pure semantic
// request with no lexical fallback available) surfaces ProviderUnavailable.
func (e *Engine) Search(ctx context.Context, repoID, q string, opts Options) ([]*Result, SearchStats, error) {
	if q == "" {
		return nil, SearchStats{}, engineerr.New(engineerr.InvalidQuery, "content_search", "empty query")
	}

	weights := DefaultWeights()
	qt := QueryTypeMixed
	if opts.Weights != nil {
		weights = *opts.Weights
	} else {
		var err error
		qt, weights, err = e.classifier.Classify(ctx, q)
		if err != nil {
			return nil, SearchStats{}, engineerr.Wrap(engineerr.Internal, "content_search", err)
		}
	}

	generation := e.generation(ctx, repoID)
	key := Key(repoID, "content_search", q, weights)

	compute := func() ([]*Result, error) {
		return e.search(ctx, repoID, q, opts, weights)
	}

	var results []*Result
	var err error
	if e.cache != nil {
		results, err = e.cache.Do(ctx, key, generation, compute)
	} else {
		results, err = compute()
	}
	if err != nil {
		return nil, SearchStats{}, err
	}

	stats := SearchStats{QueryType: qt, Weights: weights, FallbackUsed: len(results) > 0 && results[0].FallbackUsed}
	return results, stats, nil
}

func (e *Engine) search(ctx context.Context, repoID, q string, opts Options, weights Weights) ([]*Result, error) {
	limit := opts.limit()

	lexResults, err := e.Store.ContentSearch(ctx, q, limit*3)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.Storage, "content_search", err)
	}
	lex := make([]lexicalHit, 0, len(lexResults))
	for _, r := range lexResults {
		hit, ok := e.resolveLexicalHit(ctx, r)
		if ok {
			lex = append(lex, hit)
		}
	}

	var vec []vectorHit
	fallback := false
	if !opts.LexicalOnly && e.Embedder != nil && e.Vector != nil {
		vec, err = e.vectorSearch(ctx, q, limit*3)
		if err != nil {
			if engineerr.IsKind(err, engineerr.ProviderUnavailable) {
				fallback = true
			} else {
				return nil, err
			}
		}
	}

	fused := e.rrf.fuse(lex, vec, weights)
	if err := e.enrichVectorOnly(ctx, fused); err != nil {
		return nil, err
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}
	if fallback {
		for _, r := range fused {
			r.FallbackUsed = true
		}
	}
	return fused, nil
}

// SemanticSearch runs the pure-vector leg of §6's semantic_search. Unlike
// Search, a provider outage is not papered over: the caller explicitly
// asked for semantic ranking, so a degraded result would misrepresent what
// was actually searched.
func (e *Engine) SemanticSearch(ctx context.Context, repoID, q string, limit int) ([]*Result, error) {
	if e.Embedder == nil || e.Vector == nil {
		return nil, engineerr.New(engineerr.ProviderUnavailable, "semantic_search", "no embedding provider configured")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := e.vectorSearch(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	fused := e.rrf.fuse(nil, vec, Weights{Lexical: 0, Semantic: 1})
	if err := e.enrichVectorOnly(ctx, fused); err != nil {
		return nil, err
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

func (e *Engine) vectorSearch(ctx context.Context, q string, k int) ([]vectorHit, error) {
	var results []*semanticstore.VectorResult
	run := func() error {
		vector, err := e.Embedder.Embed(ctx, q)
		if err != nil {
			return err
		}
		results, err = e.Vector.Search(ctx, vector, k)
		return err
	}

	var err error
	if e.breaker != nil {
		err = e.breaker.Execute("semantic_search", run)
	} else {
		err = run()
	}
	if err != nil {
		if engineerr.IsKind(err, engineerr.ProviderUnavailable) {
			return nil, err
		}
		return nil, engineerr.Wrap(engineerr.ProviderUnavailable, "semantic_search", err)
	}

	hits := make([]vectorHit, 0, len(results))
	for _, r := range results {
		fileID, chunkID, _, ok := semanticstore.ParsePointID(r.ID)
		if !ok {
			continue
		}
		hits = append(hits, vectorHit{chunkID: chunkID, fileID: fileID, score: float64(r.Score)})
	}
	return hits, nil
}

// resolveLexicalHit maps a file+line content-search hit to its enclosing
// chunk by finding the chunk with the greatest StartLine not after the hit
// line (chunks are committed in file order, so a linear scan is fine at the
// per-file chunk counts §4 expects).
func (e *Engine) resolveLexicalHit(ctx context.Context, r *symbolstore.ContentResult) (lexicalHit, bool) {
	chunks, err := e.Store.GetChunksByFile(ctx, r.FileID)
	if err != nil || len(chunks) == 0 {
		return lexicalHit{}, false
	}

	best := chunks[0]
	for _, c := range chunks {
		if c.StartLine <= r.Line && c.StartLine > best.StartLine {
			best = c
		}
	}

	return lexicalHit{
		chunkID:         best.ID,
		fileID:          r.FileID,
		line:            r.Line,
		snippet:         r.Snippet,
		enclosingSymbol: r.EnclosingSymbol,
		score:           r.Score,
	}, true
}

// enrichVectorOnly fills Snippet for results whose only leg was the vector
// search, by fetching the chunk body directly.
func (e *Engine) enrichVectorOnly(ctx context.Context, results []*Result) error {
	for _, r := range results {
		if r.Snippet != "" {
			continue
		}
		chunk, err := e.Store.GetChunk(ctx, r.ChunkID)
		if err != nil {
			continue // best-effort; a missing chunk shouldn't fail the whole search
		}
		r.Snippet = truncate(chunk.Content, snippetLen)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (e *Engine) generation(ctx context.Context, repoID string) int64 {
	stats, err := e.Store.RepositoryStats(ctx, repoID)
	if err != nil {
		return 0
	}
	return stats.Generation
}

// SymbolLookup runs §6's symbol_lookup.
func (e *Engine) SymbolLookup(ctx context.Context, name string, limit int) ([]*symbolstore.Symbol, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	symbols, err := e.Store.SymbolLookup(ctx, name, limit)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.Storage, "symbol_lookup", err)
	}
	if len(symbols) == 0 {
		return nil, engineerr.New(engineerr.NotFound, "symbol_lookup", "no symbol named "+name)
	}
	return symbols, nil
}

// FuzzySymbolSearch runs §6's fuzzy_symbol.
func (e *Engine) FuzzySymbolSearch(ctx context.Context, q string, limit int) ([]*symbolstore.Symbol, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	symbols, err := e.Store.FuzzySymbolSearch(ctx, q, limit)
	if err != nil {
		var budgetErr symbolstore.ErrFuzzyBudgetExceeded
		if ok := asBudgetExceeded(err, &budgetErr); ok {
			return nil, engineerr.Wrap(engineerr.InvalidQuery, "fuzzy_symbol", err)
		}
		return nil, engineerr.Wrap(engineerr.Storage, "fuzzy_symbol", err)
	}
	return symbols, nil
}

func asBudgetExceeded(err error, target *symbolstore.ErrFuzzyBudgetExceeded) bool {
	e, ok := err.(symbolstore.ErrFuzzyBudgetExceeded)
	if ok {
		*target = e
	}
	return ok
}

// References runs §6's references(qualified_name) over symbolstore's
// reference table, resolved to the owning repository.
func (e *Engine) References(ctx context.Context, repoID, qualifiedName string) ([]*symbolstore.Reference, error) {
	refs, err := e.Store.References(ctx, repoID, qualifiedName)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.Storage, "references", err)
	}
	if len(refs) == 0 {
		return nil, engineerr.New(engineerr.NotFound, "references", "no references to "+qualifiedName)
	}
	return refs, nil
}
