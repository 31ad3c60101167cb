// Package coordinator is C8: it owns configuration, the repository
// registry, and the worker-pool/watcher/sweeper lifecycle for every
// registered repository, enforcing the cross-cutting invariants the rest
// of the system depends on (one store per repository, one generation
// counter, one in-flight sweep at a time).
//
// Adapted from the teacher's internal/config (three-tier precedence),
// internal/lifecycle (startup/shutdown ordering), and internal/index's
// Coordinator (file-event handling), merged into a single top-level type
// that drives internal/pipeline instead of indexing inline.
package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/siftd/siftd/internal/engineerr"
	"github.com/siftd/siftd/internal/pipeline"
	"github.com/siftd/siftd/internal/plugin"
	"github.com/siftd/siftd/internal/preflight"
	"github.com/siftd/siftd/internal/query"
	"github.com/siftd/siftd/internal/semanticstore"
	"github.com/siftd/siftd/internal/symbolstore"
	"github.com/siftd/siftd/internal/telemetry"
)

// sweepInterval is how often ReconcileOnStartup's periodic counterpart
// re-runs per repository in steady state.
const sweepInterval = 10 * time.Minute

// repoHandle bundles one repository's entire running stack: store, vector
// index, worker pool, watcher, and query engine all scoped to this one
// repo_id, consistent with §4.4's "single writer per repository database".
type repoHandle struct {
	repo *symbolstore.Repository

	store  symbolstore.Store
	vector semanticstore.VectorStore

	pool     *pipeline.WorkerPool
	progress *pipeline.Progress
	indexer  *pipeline.Indexer
	sweeper  *pipeline.Sweeper
	watcher  *pipeline.HybridWatcher
	pipeline *pipeline.Coordinator
	engine   *query.Engine

	vectorPath string
	cancel     context.CancelFunc
	sweepStop  chan struct{}
}

// Coordinator is the C8 entrypoint: one per running siftd process, holding
// every registered repository's handle plus the shared infrastructure
// (plugin registry, embedder, metrics) they all use.
type Coordinator struct {
	cfg      *Config
	registry *plugin.Registry
	embedder semanticstore.Embedder
	metrics  *telemetry.QueryMetrics
	metaDB   *sql.DB

	mu    sync.RWMutex
	repos map[string]*repoHandle
}

// New builds a Coordinator from cfg but does not yet open or start
// anything repository-specific; call Start to bring up shared
// infrastructure, then IndexRepository per repository.
func New(cfg *Config) (*Coordinator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:      cfg,
		registry: plugin.NewRegistry(),
		repos:    make(map[string]*repoHandle),
	}, nil
}

// Start brings up infrastructure shared across every repository: the
// embedder (if semantic search is enabled) and the local telemetry store.
// Per spec.md §4.8's startup sequence, this runs once; IndexRepository then
// opens per-repository stores and starts their workers/watchers.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.IndexRoot, 0o755); err != nil {
		return fmt.Errorf("coordinator: create index root: %w", err)
	}

	if c.cfg.SemanticEnabled {
		embedder, deferred, err := semanticstore.NewEmbedder(ctx, semanticstore.ParseProviderKind(c.cfg.EmbeddingModelID), c.cfg.EmbeddingModelID)
		if err != nil {
			return engineerr.Wrap(engineerr.ProviderUnavailable, "coordinator.Start", err)
		}
		if deferred {
			slog.Warn("coordinator: embedding provider unreachable at startup, running embed-deferred")
		}
		c.embedder = embedder
	}

	metaPath := filepath.Join(c.cfg.IndexRoot, "telemetry.db")
	db, err := sql.Open("sqlite", metaPath+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("coordinator: open telemetry db: %w", err)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		db.Close()
		return fmt.Errorf("coordinator: init telemetry schema: %w", err)
	}
	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		db.Close()
		return err
	}
	c.metaDB = db
	c.metrics = telemetry.NewQueryMetrics(store)

	return nil
}

// Metrics exposes the shared query-telemetry collector for pkg/api to
// record against.
func (c *Coordinator) Metrics() *telemetry.QueryMetrics { return c.metrics }

// Preflight runs the startup readiness checks (§4.8's "load configuration,
// open stores...") against rootPath before it is indexed, surfacing
// anything that would make indexing fail outright (no write permission, no
// disk space) before the work is queued.
func (c *Coordinator) Preflight(ctx context.Context, rootPath string) []preflight.CheckResult {
	checker := preflight.New()
	return checker.RunAll(ctx, rootPath)
}

// Shutdown stops every repository's watcher and worker pool, flushes
// in-progress vector stores to disk, and closes every store. Stopping a
// pool cancels its workers: items still in the queue are dropped, neither
// drained nor checkpointed.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	handles := make([]*repoHandle, 0, len(c.repos))
	for _, h := range c.repos {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if err := c.stopHandle(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.metrics != nil {
		if err := c.metrics.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.metaDB != nil {
		if err := c.metaDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Coordinator) stopHandle(h *repoHandle) error {
	if h.watcher != nil {
		_ = h.watcher.Stop()
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.sweepStop != nil {
		close(h.sweepStop)
	}
	if h.pool != nil {
		if err := h.pool.Stop(); err != nil {
			slog.Warn("coordinator: worker pool stop error", slog.String("repo_id", h.repo.ID), slog.String("error", err.Error()))
		}
	}
	if hnsw, ok := h.vector.(*semanticstore.HNSWStore); ok && h.vectorPath != "" {
		if err := hnsw.Save(h.vectorPath); err != nil {
			slog.Warn("coordinator: save vector store failed", slog.String("repo_id", h.repo.ID), slog.String("error", err.Error()))
		}
	}
	var firstErr error
	if h.vector != nil {
		if err := h.vector.Close(); err != nil {
			firstErr = err
		}
	}
	if err := h.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Engine returns the query engine for repoID, for pkg/api to serve reads
// through.
func (c *Coordinator) Engine(repoID string) (*query.Engine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.repos[repoID]
	if !ok {
		return nil, false
	}
	return h.engine, true
}

// Status reports one repository's indexing progress and store stats for
// get_status.
type Status struct {
	RepoID   string
	RootPath string
	Progress pipeline.ProgressSnapshot
	Stats    symbolstore.RepositoryStats
}
