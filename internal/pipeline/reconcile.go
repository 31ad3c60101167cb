package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/siftd/siftd/internal/semanticstore"
	"github.com/siftd/siftd/internal/symbolstore"
)

// OrphanType categorizes a detected cross-store inconsistency (§4.6).
type OrphanType int

const (
	// OrphanVectorPoint is a vector-store point with no matching chunk row.
	OrphanVectorPoint OrphanType = iota
	// OrphanMissingEmbedding is a chunk row with no vector-store point.
	OrphanMissingEmbedding
)

func (t OrphanType) String() string {
	switch t {
	case OrphanVectorPoint:
		return "orphan_vector_point"
	case OrphanMissingEmbedding:
		return "missing_embedding"
	default:
		return "unknown"
	}
}

// Orphan is one detected inconsistency between symbolstore and semanticstore.
type Orphan struct {
	Type    OrphanType
	PointID string
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	ChecksRun int
	Orphans   []Orphan
	Duration  time.Duration
}

// Sweeper reconciles the vector store's points against symbolstore's chunk
// rows (§3: "point rows without a matching chunk row are garbage"). It runs
// at startup (crash recovery) and periodically in steady state.
type Sweeper struct {
	store  symbolstore.Store
	vector semanticstore.VectorStore
}

// NewSweeper creates a Sweeper over the given stores.
func NewSweeper(store symbolstore.Store, vector semanticstore.VectorStore) *Sweeper {
	return &Sweeper{store: store, vector: vector}
}

// Sweep compares every chunk row with an EmbeddingModelID/PointID set in
// repoID against the vector store's point ids: points with no matching chunk
// are orphans (garbage, safe to delete); chunks with EmbeddingModelID unset
// are simply not yet embedded, not reported here.
func (s *Sweeper) Sweep(ctx context.Context, repoID string) (*SweepResult, error) {
	start := time.Now()

	files, err := s.store.ListFiles(ctx, repoID)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]bool)
	for _, f := range files {
		chunks, err := s.store.GetChunksByFile(ctx, f.ID)
		if err != nil {
			slog.Warn("sweep: list chunks failed", slog.String("file_id", f.ID), slog.String("error", err.Error()))
			continue
		}
		for _, c := range chunks {
			if c.PointID != "" {
				expected[c.PointID] = true
			}
		}
	}

	var orphans []Orphan
	for _, pointID := range s.vector.AllIDs() {
		if !expected[pointID] {
			orphans = append(orphans, Orphan{Type: OrphanVectorPoint, PointID: pointID})
		}
	}

	return &SweepResult{
		ChecksRun: len(expected),
		Orphans:   orphans,
		Duration:  time.Since(start),
	}, nil
}

// Repair deletes orphaned vector-store points found by a prior Sweep.
// Best-effort: logs and continues past individual delete failures rather
// than aborting the whole sweep.
func (s *Sweeper) Repair(ctx context.Context, orphans []Orphan) error {
	var ids []string
	for _, o := range orphans {
		if o.Type == OrphanVectorPoint {
			ids = append(ids, o.PointID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.vector.Delete(ctx, ids); err != nil {
		slog.Warn("sweep: delete orphan points failed", slog.Int("count", len(ids)), slog.String("error", err.Error()))
		return err
	}
	slog.Info("sweep: deleted orphan vector points", slog.Int("count", len(ids)))
	return nil
}
