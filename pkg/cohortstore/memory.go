package cohortstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

// Memory is an in-memory Store used by tests and by local development
// without a running Qdrant instance. It performs brute-force cosine
// search rather than approximate nearest-neighbor search.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[int64]Point
	dims        map[string]int
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[int64]Point),
		dims:        make(map[string]int),
	}
}

func (m *Memory) EnsureCollection(ctx context.Context, collection string, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingDim, ok := m.dims[collection]; ok && existingDim != dim {
		delete(m.collections, collection)
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[int64]Point)
	}
	m.dims[collection] = dim
	return nil
}

func (m *Memory) TopK(ctx context.Context, collection string, query []float32, k int) ([][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	points := m.collections[collection]
	type scored struct {
		dist float32
		vec  []float32
	}
	scoredPoints := make([]scored, 0, len(points))
	for _, p := range points {
		scoredPoints = append(scoredPoints, scored{dist: cosineDistance(query, p.Vector), vec: p.Vector})
	}
	sort.Slice(scoredPoints, func(i, j int) bool { return scoredPoints[i].dist < scoredPoints[j].dist })

	if k > len(scoredPoints) {
		k = len(scoredPoints)
	}
	out := make([][]float32, k)
	for i := 0; i < k; i++ {
		out[i] = scoredPoints[i].vec
	}
	return out, nil
}

func (m *Memory) Upsert(ctx context.Context, collection string, id int64, vector []float32, payload map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	points, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("cohortstore: collection %q does not exist", collection)
	}
	if existing, found := points[id]; found && !payloadsAgree(existing.Payload, payload) {
		return verrors.Newf(verrors.Conflict, "cohortstore: point %d in collection %q already holds a different payload", id, collection)
	}

	points[id] = Point{ID: id, Vector: append([]float32(nil), vector...), Payload: payload}
	return nil
}

func (m *Memory) Retrieve(ctx context.Context, collection string, id int64) ([]float32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	points, ok := m.collections[collection]
	if !ok {
		return nil, false, nil
	}
	p, found := points[id]
	if !found {
		return nil, false, nil
	}
	return p.Vector, true, nil
}

func (m *Memory) Delete(ctx context.Context, collection string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if points, ok := m.collections[collection]; ok {
		delete(points, id)
	}
	return nil
}

// cosineDistance returns 1 - cosine_similarity(a, b), clamped to a maximum
// distance of 2 for mismatched lengths or zero-norm vectors.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(1 - sim)
}
