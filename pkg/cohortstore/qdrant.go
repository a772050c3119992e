package cohortstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

// Qdrant implements Store against a running Qdrant instance reached over
// its gRPC API.
type Qdrant struct {
	client *qdrant.Client
}

// NewQdrant dials a Qdrant instance at host:port.
func NewQdrant(host string, port int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("cohortstore: connect to qdrant at %s:%d: %w", host, port, err)
	}
	return &Qdrant{client: client}, nil
}

func (q *Qdrant) EnsureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("check collection %q", collection))
	}

	if exists {
		info, err := q.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("inspect collection %q", collection))
		}
		if collectionMatches(info, dim) {
			return nil
		}
		if err := q.client.DeleteCollection(ctx, collection); err != nil {
			return verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("drop mismatched collection %q", collection))
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("create collection %q", collection))
	}
	return nil
}

func collectionMatches(info *qdrant.CollectionInfo, dim int) bool {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return false
	}
	return params.GetSize() == uint64(dim) && params.GetDistance() == qdrant.Distance_Cosine
}

func (q *Qdrant) TopK(ctx context.Context, collection string, query []float32, k int) ([][]float32, error) {
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, verrors.Wrap(verrors.CohortUnavailable, err, fmt.Sprintf("query collection %q", collection))
	}

	out := make([][]float32, 0, len(resp))
	for _, point := range resp {
		if v := point.GetVectors().GetVector().GetData(); v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, id int64, vector []float32, payload map[string]string) error {
	existing, found, err := q.retrievePayload(ctx, collection, id)
	if err != nil {
		return err
	}
	if found && !payloadsAgree(existing, payload) {
		return verrors.Newf(verrors.Conflict,
			"point %d in collection %q already holds a different payload", id, collection)
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(id)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(stringMapToAny(payload)),
			},
		},
	})
	if err != nil {
		return verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("upsert point %d into %q", id, collection))
	}
	return nil
}

func (q *Qdrant) Retrieve(ctx context.Context, collection string, id int64) ([]float32, bool, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, false, verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("retrieve point %d from %q", id, collection))
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	return points[0].GetVectors().GetVector().GetData(), true, nil
}

func (q *Qdrant) Delete(ctx context.Context, collection string, id int64) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorIDs([]*qdrant.PointId{
			qdrant.NewIDNum(uint64(id)),
		}),
	})
	if err != nil {
		return verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("delete point %d from %q", id, collection))
	}
	return nil
}

func (q *Qdrant) retrievePayload(ctx context.Context, collection string, id int64) (map[string]string, bool, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, false, verrors.Wrap(verrors.StoreUnavailable, err, fmt.Sprintf("check existing point %d in %q", id, collection))
	}
	if len(points) == 0 {
		return nil, false, nil
	}

	payload := make(map[string]string, len(points[0].GetPayload()))
	for k, v := range points[0].GetPayload() {
		payload[k] = v.GetStringValue()
	}
	return payload, true, nil
}

// payloadsAgree is the hash-collision guard for Upsert: it only checks that
// the stored point's customer_id (the field DeriveID is derived from)
// matches the incoming one. Other payload fields, like num_samples, are
// expected to change across ordinary re-enrollments and must not trip a
// Conflict.
func payloadsAgree(existing, incoming map[string]string) bool {
	existingID, ok := existing["customer_id"]
	if !ok {
		return true
	}
	incomingID, ok := incoming["customer_id"]
	if !ok {
		return true
	}
	return existingID == incomingID
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Store = (*Qdrant)(nil)
