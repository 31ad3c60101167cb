package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Handler processes one queued WorkItem, returning the number of chunks it
// committed so the pool can roll that count into Progress.
type Handler func(ctx context.Context, item *WorkItem) (chunksIndexed int, err error)

// ErrBusy is returned by WorkerPool.Enqueue when the queue is saturated
// (§4.6 Busy backpressure) and the caller should retry later rather than
// block indefinitely.
type ErrBusy struct {
	QueueDepth int
}

func (e ErrBusy) Error() string {
	return "pipeline: worker pool busy, queue saturated"
}

// WorkerPool runs P workers pulling WorkItems off a PriorityQueue and
// running them through Handler, generalizing the single background
// goroutine indexer into a bounded concurrent pool.
type WorkerPool struct {
	queue    *PriorityQueue
	handler  Handler
	progress *Progress
	workers  int

	wake   chan struct{}
	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	done   atomic.Bool
}

// NewWorkerPool creates a pool of `workers` goroutines draining queue through
// handler, reporting counts into progress.
func NewWorkerPool(queue *PriorityQueue, workers int, handler Handler, progress *Progress) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if progress == nil {
		progress = NewProgress()
	}
	return &WorkerPool{
		queue:    queue,
		handler:  handler,
		progress: progress,
		workers:  workers,
		wake:     make(chan struct{}, workers),
	}
}

// Enqueue pushes an item onto the underlying queue and wakes an idle worker.
// Returns ErrBusy if the queue is at capacity.
func (p *WorkerPool) Enqueue(item *WorkItem) error {
	if err := p.queue.Push(item); err != nil {
		return ErrBusy{QueueDepth: p.queue.Len()}
	}
	p.progress.SetQueueDepth(p.queue.Len())
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start launches the worker goroutines. It returns immediately; call Wait to
// block until all workers exit after Stop or cancellation of ctx. A handler
// error does not stop a worker: it is logged and recorded in Progress.
func (p *WorkerPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.group = group
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		group.Go(func() error {
			p.runWorker(gctx)
			return nil
		})
	}
}

func (p *WorkerPool) runWorker(ctx context.Context) {
	for {
		item := p.queue.Pop()
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}

		p.progress.SetQueueDepth(p.queue.Len())

		chunks, err := p.handler(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("pipeline: work item failed",
				slog.String("repo_id", item.RepoID),
				slog.String("path", item.Path),
				slog.String("error", err.Error()))
			p.progress.SetError(err.Error())
			continue
		}

		p.progress.IncFilesProcessed()
		p.progress.AddChunksIndexed(chunks)
	}
}

// Stop cancels all workers and blocks until they exit.
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	group := p.group
	p.mu.Unlock()

	if cancel == nil || group == nil {
		return nil
	}
	cancel()
	return group.Wait()
}

// Wait blocks until the pool's context is cancelled (via Stop or its parent)
// and every worker has exited. Workers never return an error, so Wait
// returns nil. Safe to call from multiple goroutines.
func (p *WorkerPool) Wait() error {
	p.mu.Lock()
	group := p.group
	p.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// QueueDepth reports the current backlog size for get_status reporting.
func (p *WorkerPool) QueueDepth() int {
	return p.queue.Len()
}
