package semanticstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements VectorStore against an external Qdrant instance.
// It is the external alternative to HNSWStore; both satisfy VectorStore.
// Nothing in the repository constructs one: Repository always opens an
// HNSWStore.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	config     VectorStoreConfig
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore connects to a Qdrant instance at host:port and ensures the
// configured collection exists with the right vector width and metric.
func NewQdrantStore(ctx context.Context, host string, port int, cfg VectorStoreConfig) (*QdrantStore, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "chunks"
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("semanticstore: connect to qdrant: %w", err)
	}

	s := &QdrantStore{client: client, collection: cfg.CollectionName, config: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("semanticstore: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}

	distance := qdrant.Distance_Cosine
	if s.config.Metric == "l2" {
		distance = qdrant.Distance_Euclid
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.config.Dimensions),
			Distance: distance,
		}),
	})
}

// Add upserts points keyed by opaque string id (§4.5 point ids are
// (file_id, chunk_id, content_hash) composites). Qdrant ids must be uint64
// or UUID, so each string id is hashed to a numeric point id (pointUint64)
// and also stored verbatim in the point_id payload field. Delete addresses
// points by the hashed id; Search, AllIDs and Contains read the payload.
func (s *QdrantStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("semanticstore: ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(vectors[i])}
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(pointUint64(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{"point_id": id}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semanticstore: qdrant upsert: %w", err)
	}
	return nil
}

// Search finds the k nearest neighbors to query.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("semanticstore: qdrant query: %w", err)
	}

	out := make([]*VectorResult, 0, len(results))
	for _, r := range results {
		id := r.Id.GetNum()
		pointID := fmt.Sprintf("%d", id)
		if payload, ok := r.Payload["point_id"]; ok {
			pointID = payload.GetStringValue()
		}
		out = append(out, &VectorResult{
			ID:       pointID,
			Distance: 1 - r.Score,
			Score:    r.Score,
		})
	}
	return out, nil
}

// Delete removes points by id.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	nums := make([]uint64, len(ids))
	for i, id := range ids {
		nums[i] = pointUint64(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(nums[0])),
	})
	// Qdrant's point selector takes one expression; delete the rest one at a time
	// to keep this adapter simple rather than building a compound Has-id filter.
	for _, n := range nums[1:] {
		if _, derr := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collection,
			Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(n)),
		}); derr != nil {
			err = derr
		}
	}
	if err != nil {
		return fmt.Errorf("semanticstore: qdrant delete: %w", err)
	}
	return nil
}

// AllIDs scrolls the full collection's payload-carried point ids. Used by
// the orphan-point sweeper (§4.6), which only runs during low-traffic
// reconciliation, so an unpaginated scroll is acceptable here.
func (s *QdrantStore) AllIDs() []string {
	ctx := context.Background()
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		WithPayload:    qdrant.NewWithPayload(true),
		Limit:          qdrant.PtrOf(uint32(1 << 20)),
	})
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if payload, ok := r.Payload["point_id"]; ok {
			ids = append(ids, payload.GetStringValue())
		}
	}
	return ids
}

// Contains reports whether id has a point. Implemented via AllIDs since the
// Qdrant API has no direct string-id existence check under our numeric
// point-id mapping; acceptable given Contains is only used by sweeps, not
// the query hot path.
func (s *QdrantStore) Contains(id string) bool {
	for _, existing := range s.AllIDs() {
		if existing == id {
			return true
		}
	}
	return false
}

// Count returns the collection's point count.
func (s *QdrantStore) Count() int {
	info, err := s.client.GetCollectionInfo(context.Background(), s.collection)
	if err != nil || info.PointsCount == nil {
		return 0
	}
	return int(*info.PointsCount)
}

// Close releases the client's connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointUint64 derives a stable uint64 Qdrant point id from an opaque string
// id using FNV-1a, since Qdrant requires numeric or UUID ids. Collisions are
// unlikely at this corpus's scale; if two ids did collide, they would share
// one Qdrant point, and the later upsert would replace the earlier id's
// vector and payload.
func pointUint64(id string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return h
}
