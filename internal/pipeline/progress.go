package pipeline

import (
	"sync"
	"time"
)

// Stage is the current phase of a repository's indexing run.
type Stage string

const (
	StageScanning  Stage = "scanning"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageCommit    Stage = "committing"
	StageReady     Stage = "ready"
)

// ProgressSnapshot is an immutable copy of a Progress tracker's state, for
// the get_status operation.
type ProgressSnapshot struct {
	Stage          string  `json:"stage"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	ChunksIndexed  int     `json:"chunks_indexed"`
	QueueDepth     int     `json:"queue_depth"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress tracks one repository's indexing run across the worker pool.
// Adapted from the single-goroutine IndexProgress tracker to accumulate
// counts concurrently written by many workers.
type Progress struct {
	mu sync.RWMutex

	stage          Stage
	filesTotal     int
	filesProcessed int
	chunksIndexed  int
	queueDepth     int
	startTime      time.Time
	errorMessage   string
}

// NewProgress creates a tracker starting in the scanning stage.
func NewProgress() *Progress {
	return &Progress{stage: StageScanning, startTime: time.Now()}
}

func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

func (p *Progress) SetFilesTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesTotal = total
}

func (p *Progress) IncFilesProcessed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesProcessed++
}

func (p *Progress) AddChunksIndexed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunksIndexed += n
}

func (p *Progress) SetQueueDepth(depth int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueDepth = depth
}

func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorMessage = message
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.filesTotal > 0 {
		pct = float64(p.filesProcessed) / float64(p.filesTotal) * 100.0
	}

	return ProgressSnapshot{
		Stage:          string(p.stage),
		FilesTotal:     p.filesTotal,
		FilesProcessed: p.filesProcessed,
		ChunksIndexed:  p.chunksIndexed,
		QueueDepth:     p.queueDepth,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
