package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/siftd/siftd/internal/engineerr"
	"github.com/siftd/siftd/internal/pipeline"
	"github.com/siftd/siftd/internal/query"
	"github.com/siftd/siftd/internal/scanner"
	"github.com/siftd/siftd/internal/semanticstore"
	"github.com/siftd/siftd/internal/symbolstore"
)

// repoID derives a stable id for a repository root, so re-indexing the same
// path twice (e.g. across a coordinator restart) yields the same id.
func repoID(rootPath string) string {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		abs = rootPath
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *Coordinator) repoDir(id string) string {
	return filepath.Join(c.cfg.IndexRoot, id)
}

// IndexRepository registers rootPath as a repository, opens its store and
// vector index, performs an initial background scan, and starts its
// worker pool and file watcher (§6 index_repository).
func (c *Coordinator) IndexRepository(ctx context.Context, rootPath string) (string, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return "", engineerr.Wrap(engineerr.InvalidQuery, "IndexRepository", err)
	}

	id := repoID(abs)

	c.mu.RLock()
	_, exists := c.repos[id]
	c.mu.RUnlock()
	if exists {
		return id, nil
	}

	dir := c.repoDir(id)
	store, err := symbolstore.NewSQLiteStore(filepath.Join(dir, "index.db"))
	if err != nil {
		return "", engineerr.Wrap(engineerr.Storage, "IndexRepository", err)
	}

	repo := &symbolstore.Repository{ID: id, RootPath: abs, CreatedAt: time.Now()}
	if err := store.SaveRepository(ctx, repo); err != nil {
		store.Close()
		return "", engineerr.Wrap(engineerr.Storage, "IndexRepository", err)
	}

	var vector semanticstore.VectorStore
	vectorPath := filepath.Join(dir, "vectors.hnsw")
	if c.cfg.SemanticEnabled && c.embedder != nil {
		hnsw, err := semanticstore.NewHNSWStore(semanticstore.DefaultVectorStoreConfig(c.embedder.Dimensions()))
		if err != nil {
			store.Close()
			return "", engineerr.Wrap(engineerr.Storage, "IndexRepository", err)
		}
		if err := hnsw.Load(vectorPath); err != nil {
			slog.Debug("coordinator: no existing vector store to load", slog.String("repo_id", id))
		}
		vector = hnsw
	}

	indexer := &pipeline.Indexer{
		Registry: c.registry,
		Store:    store,
		Vector:   vector,
		Embedder: c.embedder,
	}

	queue := pipeline.NewPriorityQueue(c.cfg.QueueCapacity)
	progress := pipeline.NewProgress()
	pool := pipeline.NewWorkerPool(queue, c.cfg.WorkerCount, indexer.Handle, progress)

	var sweeper *pipeline.Sweeper
	if vector != nil {
		sweeper = pipeline.NewSweeper(store, vector)
	}

	pc := &pipeline.Coordinator{
		RepoID: id,
		Pool:   pool,
		Sweep:  sweeper,
		Remove: indexer.Remove,
	}

	watchOpts := pipeline.DefaultOptions().WithDefaults()
	watchOpts.DebounceWindow = time.Duration(c.cfg.DebounceMS) * time.Millisecond
	watchOpts.IgnorePatterns = c.cfg.IgnoreGlobs
	watcher, err := pipeline.NewHybridWatcher(watchOpts)
	if err != nil {
		store.Close()
		return "", engineerr.Wrap(engineerr.Internal, "IndexRepository", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &repoHandle{
		repo:       repo,
		store:      store,
		vector:     vector,
		pool:       pool,
		progress:   progress,
		indexer:    indexer,
		sweeper:    sweeper,
		watcher:    watcher,
		pipeline:   pc,
		vectorPath: vectorPath,
		cancel:     cancel,
		sweepStop:  make(chan struct{}),
		engine:     query.NewEngine(store, vector, c.embedder, query.NewHybridClassifier(nil), query.NewCache(c.cfg.CacheSizes.L1), engineerr.NewCircuitBreaker("embedder:"+id, 3, time.Minute)),
	}

	c.mu.Lock()
	c.repos[id] = handle
	c.mu.Unlock()

	if err := pc.ReconcileOnStartup(runCtx); err != nil {
		slog.Warn("coordinator: startup reconciliation failed", slog.String("repo_id", id), slog.String("error", err.Error()))
	}

	pool.Start(runCtx)

	if err := c.scanAndEnqueue(runCtx, handle); err != nil {
		slog.Warn("coordinator: initial scan failed", slog.String("repo_id", id), slog.String("error", err.Error()))
	}

	// watcher.Start blocks until the watcher is stopped or runCtx ends.
	go func() {
		if err := watcher.Start(runCtx, abs); err != nil && runCtx.Err() == nil {
			slog.Warn("coordinator: watcher failed to start, falling back to scan-only mode",
				slog.String("repo_id", id), slog.String("error", err.Error()))
		}
	}()
	go c.watchLoop(runCtx, handle)

	if handle.sweeper != nil {
		go c.sweepLoop(runCtx, handle)
	}

	return id, nil
}

func (c *Coordinator) scanAndEnqueue(ctx context.Context, h *repoHandle) error {
	s, err := scanner.New()
	if err != nil {
		return err
	}
	h.progress.SetStage(pipeline.StageScanning)

	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          h.repo.RootPath,
		ExcludePatterns:  c.cfg.IgnoreGlobs,
		RespectGitignore: true,
	})
	if err != nil {
		return err
	}

	var paths []string
	for r := range results {
		if r.Error != nil || r.File == nil {
			continue
		}
		paths = append(paths, r.File.Path)
	}
	h.progress.SetFilesTotal(len(paths))
	h.progress.SetStage(pipeline.StageChunking)
	h.pipeline.EnqueueBackground(paths)
	return nil
}

func (c *Coordinator) watchLoop(ctx context.Context, h *repoHandle) {
	for {
		select {
		case events, ok := <-h.watcher.Events():
			if !ok {
				return
			}
			h.pipeline.HandleEvents(ctx, events)
		case err, ok := <-h.watcher.Errors():
			if !ok {
				continue
			}
			slog.Warn("coordinator: watcher error", slog.String("repo_id", h.repo.ID), slog.String("error", err.Error()))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) sweepLoop(ctx context.Context, h *repoHandle) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			result, err := h.sweeper.Sweep(ctx, h.repo.ID)
			if err != nil {
				slog.Warn("coordinator: sweep failed", slog.String("repo_id", h.repo.ID), slog.String("error", err.Error()))
				continue
			}
			if len(result.Orphans) > 0 {
				_ = h.sweeper.Repair(ctx, result.Orphans)
			}
		case <-h.sweepStop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// DeregisterRepository stops a repository's workers/watcher and deletes
// its rows (§6 deregister_repository). The on-disk database file itself is
// left for the operator to remove, mirroring §4.4's cascade-on-deregister
// semantics applied to rows, not files.
func (c *Coordinator) DeregisterRepository(ctx context.Context, id string) error {
	c.mu.Lock()
	h, ok := c.repos[id]
	if ok {
		delete(c.repos, id)
	}
	c.mu.Unlock()

	if !ok {
		return engineerr.New(engineerr.NotFound, "DeregisterRepository", fmt.Sprintf("repository %s not registered", id))
	}

	if err := c.stopHandle(h); err != nil {
		slog.Warn("coordinator: error stopping repository", slog.String("repo_id", id), slog.String("error", err.Error()))
	}

	store, err := symbolstore.NewSQLiteStore(filepath.Join(c.repoDir(id), "index.db"))
	if err != nil {
		return engineerr.Wrap(engineerr.Storage, "DeregisterRepository", err)
	}
	defer store.Close()
	return store.DeleteRepository(ctx, id)
}

// Reindex re-enqueues path at interactive priority (§6 reindex). With an
// empty path it rescans the repository and enqueues every file at
// background priority, the same way the initial scan does.
func (c *Coordinator) Reindex(ctx context.Context, id, path string) error {
	c.mu.RLock()
	h, ok := c.repos[id]
	c.mu.RUnlock()
	if !ok {
		return engineerr.New(engineerr.NotFound, "Reindex", fmt.Sprintf("repository %s not registered", id))
	}

	if path != "" {
		if err := h.pool.Enqueue(&pipeline.WorkItem{RepoID: id, Path: path, Priority: pipeline.PriorityInteractive}); err != nil {
			return engineerr.Wrap(engineerr.Busy, "Reindex", err)
		}
		return nil
	}

	return c.scanAndEnqueue(ctx, h)
}

// GetStatus reports one repository's progress and store stats (§6
// get_status). If id is empty and exactly one repository is registered,
// that repository's status is returned.
func (c *Coordinator) GetStatus(ctx context.Context, id string) (*Status, error) {
	c.mu.RLock()
	if id == "" {
		if len(c.repos) == 1 {
			for k := range c.repos {
				id = k
			}
		}
	}
	h, ok := c.repos[id]
	c.mu.RUnlock()
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "GetStatus", fmt.Sprintf("repository %s not registered", id))
	}

	stats, err := h.store.RepositoryStats(ctx, id)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.Storage, "GetStatus", err)
	}

	return &Status{
		RepoID:   id,
		RootPath: h.repo.RootPath,
		Progress: h.progress.Snapshot(),
		Stats:    *stats,
	}, nil
}

// ListRepositories returns every currently registered repository id.
func (c *Coordinator) ListRepositories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.repos))
	for id := range c.repos {
		ids = append(ids, id)
	}
	return ids
}
