package pipeline

import (
	"context"
	"log/slog"
)

// Coordinator translates watcher FileEvents and initial scan results into
// prioritized WorkerPool items, and runs periodic reconciliation sweeps.
// Adapted from the teacher's internal/index.Coordinator.HandleEvents, now
// fanning into a worker pool instead of indexing inline on the watcher's
// goroutine.
type Coordinator struct {
	RepoID string
	Pool   *WorkerPool
	Sweep  *Sweeper
	Remove func(ctx context.Context, repoID, path string) error
}

// HandleEvents enqueues one watched-priority WorkItem per non-directory
// create/modify event, and removes tombstoned rows for deletes. A rename
// arrives as RENAME for the old path, removed here like a delete, plus
// CREATE for the new path. Gitignore/config change events are skipped, and
// no rescan follows them.
func (c *Coordinator) HandleEvents(ctx context.Context, events []FileEvent) {
	for _, event := range events {
		if event.IsDir {
			continue
		}

		switch event.Operation {
		case OpCreate, OpModify:
			if err := c.Pool.Enqueue(&WorkItem{
				RepoID:   c.RepoID,
				Path:     event.Path,
				Priority: PriorityWatched,
			}); err != nil {
				slog.Warn("pipeline: drop watched event, queue saturated",
					slog.String("path", event.Path), slog.String("error", err.Error()))
			}
		case OpDelete, OpRename:
			if c.Remove == nil {
				continue
			}
			if err := c.Remove(ctx, c.RepoID, event.Path); err != nil {
				slog.Warn("pipeline: failed to remove deleted file",
					slog.String("path", event.Path), slog.String("error", err.Error()))
			}
		}
	}
}

// EnqueueBackground enqueues a full set of paths at background priority,
// for the initial repository scan.
func (c *Coordinator) EnqueueBackground(paths []string) {
	for _, path := range paths {
		if err := c.Pool.Enqueue(&WorkItem{
			RepoID:   c.RepoID,
			Path:     path,
			Priority: PriorityBackground,
		}); err != nil {
			slog.Warn("pipeline: drop background path, queue saturated",
				slog.String("path", path), slog.String("error", err.Error()))
			return
		}
	}
}

// ReconcileOnStartup runs a sweep immediately, deleting any orphaned vector
// points left behind by a crash between an embedding write and its
// symbolstore commit (§4.6).
func (c *Coordinator) ReconcileOnStartup(ctx context.Context) error {
	if c.Sweep == nil {
		return nil
	}
	result, err := c.Sweep.Sweep(ctx, c.RepoID)
	if err != nil {
		return err
	}
	if len(result.Orphans) == 0 {
		return nil
	}
	slog.Info("pipeline: startup reconciliation found orphan points",
		slog.Int("count", len(result.Orphans)))
	return c.Sweep.Repair(ctx, result.Orphans)
}
