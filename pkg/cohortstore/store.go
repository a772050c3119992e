// Package cohortstore holds the background cohort embeddings and the
// enrolled-customer centroids in a cosine-distance vector index.
package cohortstore

import (
	"context"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

// Point is a single stored vector plus its payload.
type Point struct {
	ID      int64
	Vector  []float32
	Payload map[string]string
}

// Store is the vector-index contract the verifier orchestrator depends
// on. Both the enrolled-centroid collection and the background-cohort
// collection are accessed through the same interface, parameterized by
// collection name.
type Store interface {
	// TopK returns the k nearest neighbors of query by cosine similarity,
	// as the stored vectors themselves (not ids).
	TopK(ctx context.Context, collection string, query []float32, k int) ([][]float32, error)

	// Upsert creates or replaces the point at id. If a point already
	// exists at id with a payload that disagrees with payload, Upsert
	// returns a *verrors.Error with Code verrors.Conflict instead of
	// overwriting it silently.
	Upsert(ctx context.Context, collection string, id int64, vector []float32, payload map[string]string) error

	// Retrieve returns the vector stored at id, or (nil, false) if no
	// point exists there.
	Retrieve(ctx context.Context, collection string, id int64) ([]float32, bool, error)

	// Delete removes the point at id. Deleting a nonexistent point is not
	// an error.
	Delete(ctx context.Context, collection string, id int64) error

	// EnsureCollection verifies that collection exists with the given
	// vector dimension and cosine distance, dropping and recreating it if
	// the existing configuration disagrees. This is a startup-time
	// operation, never performed mid-request.
	EnsureCollection(ctx context.Context, collection string, dim int) error
}

// ErrCohortTooSmall is returned by callers (not this package) when a
// TopK query against the cohort collection returns no vectors; kept here because both the Qdrant and in-memory
// backends are expected to surface empty results the same way, via a
// plain empty slice, and it is the caller's job to treat that as fatal.
var ErrCohortTooSmall = verrors.New(verrors.CohortUnavailable, "cohort collection has too few vectors for AS-Norm")
