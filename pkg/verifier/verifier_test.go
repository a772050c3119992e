package verifier

import (
	"context"
	"testing"

	"github.com/arcvoice/voiceverify/pkg/cohortstore"
	"github.com/arcvoice/voiceverify/pkg/voiceprintstore"
)

// fakeDecode treats the single input byte as a speaker marker and returns
// it as a one-element sample slice; real decoding is exercised by
// pkg/audioload's own tests.
func fakeDecode(_ context.Context, data []byte, _ string) ([]float32, error) {
	return []float32{float32(data[0])}, nil
}

// fakeEmbedder maps a speaker marker to a fixed unit vector in 2-space:
// marker 1 -> (1,0) ("alice"), marker 2 -> (0,1) ("mallory").
type fakeEmbedder struct{}

func (fakeEmbedder) Extract(_ context.Context, samples []float32) ([]float32, error) {
	if samples[0] == 2 {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

// fakeScorer scores two embeddings by plain dot product, which for the
// unit vectors fakeEmbedder produces behaves like a PLDA score that's
// high for matching speakers and low for mismatched ones.
type fakeScorer struct{}

func (fakeScorer) Score(enroll, test []float32) (float64, error) {
	return dot(enroll, test) * 10, nil
}

func (fakeScorer) CohortScores(ref []float32, cohort [][]float32) ([]float64, error) {
	out := make([]float64, len(cohort))
	for i, c := range cohort {
		out[i] = dot(ref, c) * 10
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func newTestVerifier(t *testing.T) (*Verifier, *voiceprintstore.Store, cohortstore.Store) {
	t.Helper()

	records, err := voiceprintstore.Open(":memory:")
	if err != nil {
		t.Fatalf("voiceprintstore.Open() error = %v", err)
	}
	t.Cleanup(func() { records.Close() })

	cohort := cohortstore.NewMemory()
	ctx := context.Background()
	if err := cohort.EnsureCollection(ctx, "enrolled", 2); err != nil {
		t.Fatalf("EnsureCollection(enrolled) error = %v", err)
	}
	if err := cohort.EnsureCollection(ctx, "cohort", 2); err != nil {
		t.Fatalf("EnsureCollection(cohort) error = %v", err)
	}

	// background cohort clustered around both speaker directions so the
	// AS-Norm statistics are nondegenerate.
	seed := [][]float32{{0.8, 0.6}, {0.75, 0.66}, {0.6, 0.8}, {0.66, 0.75}, {0.7, 0.7}}
	for i, v := range seed {
		if err := cohort.Upsert(ctx, "cohort", int64(100+i), v, nil); err != nil {
			t.Fatalf("seed Upsert() error = %v", err)
		}
	}

	cfg := Config{
		EnrolledCollection:    "enrolled",
		CohortCollection:      "cohort",
		VerificationThreshold: 3.0,
		CohortTopK:            3,
		MinEnrollmentSamples:  3,
		MaxEnrollmentSamples:  10,
	}
	v := New(cfg, fakeDecode, fakeEmbedder{}, fakeScorer{}, cohort, records, nil)
	return v, records, cohort
}

func aliceClips(n int) ([][]byte, []string) {
	clips := make([][]byte, n)
	hints := make([]string, n)
	for i := range clips {
		clips[i] = []byte{1}
	}
	return clips, hints
}

func TestEnrollAndVerifySameVoice(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVerifier(t)

	clips, hints := aliceClips(3)
	enrollRes, err := v.Enroll(ctx, "alice", clips, hints)
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if enrollRes.NumSamples != 3 || enrollRes.CustomerID != "alice" {
		t.Fatalf("Enroll() = %+v", enrollRes)
	}

	verifyRes, err := v.Verify(ctx, "alice", []byte{1}, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !verifyRes.Verified {
		t.Fatalf("Verify() same speaker = %+v, want verified = true", verifyRes)
	}
	if verifyRes.Score <= 3.0 {
		t.Fatalf("Verify() score = %v, want > 3.0", verifyRes.Score)
	}

	history, err := v.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() returned %d entries, want 1", len(history))
	}
}

func TestVerifyImposterIsRejected(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVerifier(t)

	clips, hints := aliceClips(3)
	if _, err := v.Enroll(ctx, "alice", clips, hints); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	verifyRes, err := v.Verify(ctx, "alice", []byte{2}, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verifyRes.Verified {
		t.Fatalf("Verify() mismatched speaker = %+v, want verified = false", verifyRes)
	}

	history, err := v.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() returned %d entries, want 1", len(history))
	}
}

func TestVerifyUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVerifier(t)

	res, err := v.Verify(ctx, "bob", []byte{1}, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Verified {
		t.Fatal("Verify() for unknown customer: verified = true")
	}
	if res.Error != "Customer bob not found" {
		t.Fatalf("Verify() error message = %q, want %q", res.Error, "Customer bob not found")
	}

	history, err := v.History(ctx, "bob")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatal("History() for unknown customer is non-empty")
	}
}

func TestEnrollTooFewSamples(t *testing.T) {
	ctx := context.Background()
	v, _, cohort := newTestVerifier(t)

	clips, hints := aliceClips(2)
	if _, err := v.Enroll(ctx, "alice", clips, hints); err == nil {
		t.Fatal("Enroll() with 2 clips: want TooFewSamples error")
	}

	if _, found, _ := cohort.Retrieve(ctx, "enrolled", DeriveID("alice")); found {
		t.Fatal("Enroll() failure still upserted a centroid")
	}
}

func TestReEnrollReplacesCentroid(t *testing.T) {
	ctx := context.Background()
	v, _, cohort := newTestVerifier(t)

	clipsA, hintsA := aliceClips(3)
	first, err := v.Enroll(ctx, "alice", clipsA, hintsA)
	if err != nil {
		t.Fatalf("first Enroll() error = %v", err)
	}

	clipsB, hintsB := aliceClips(4)
	second, err := v.Enroll(ctx, "alice", clipsB, hintsB)
	if err != nil {
		t.Fatalf("second Enroll() error = %v", err)
	}
	if second.PointID != first.PointID {
		t.Fatalf("re-enroll point id changed: %d != %d", first.PointID, second.PointID)
	}

	vec, found, err := cohort.Retrieve(ctx, "enrolled", second.PointID)
	if err != nil || !found {
		t.Fatalf("Retrieve() after re-enroll = %v, %v, %v", vec, found, err)
	}
}

func TestVerifyEmptyCohortIsFatal(t *testing.T) {
	ctx := context.Background()
	records, err := voiceprintstore.Open(":memory:")
	if err != nil {
		t.Fatalf("voiceprintstore.Open() error = %v", err)
	}
	t.Cleanup(func() { records.Close() })

	cohort := cohortstore.NewMemory()
	cohort.EnsureCollection(ctx, "enrolled", 2)
	cohort.EnsureCollection(ctx, "cohort", 2) // left empty

	cfg := Config{
		EnrolledCollection:    "enrolled",
		CohortCollection:      "cohort",
		VerificationThreshold: 3.0,
		CohortTopK:            3,
		MinEnrollmentSamples:  3,
		MaxEnrollmentSamples:  10,
	}
	v := New(cfg, fakeDecode, fakeEmbedder{}, fakeScorer{}, cohort, records, nil)

	clips, hints := aliceClips(3)
	if _, err := v.Enroll(ctx, "alice", clips, hints); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	if _, err := v.Verify(ctx, "alice", []byte{1}, ""); err == nil {
		t.Fatal("Verify() with empty cohort: want CohortUnavailable error")
	}

	history, err := v.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatal("Verify() with empty cohort wrote an attempt row")
	}
}

func TestDeleteThenVerifyNotEnrolled(t *testing.T) {
	ctx := context.Background()
	v, _, cohort := newTestVerifier(t)

	clips, hints := aliceClips(3)
	enrollRes, err := v.Enroll(ctx, "alice", clips, hints)
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	delRes, err := v.Delete(ctx, "alice")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if delRes.Status != "success" {
		t.Fatalf("Delete() = %+v", delRes)
	}

	if _, found, _ := cohort.Retrieve(ctx, "enrolled", enrollRes.PointID); found {
		t.Fatal("Delete() left the centroid behind")
	}

	res, err := v.Verify(ctx, "alice", []byte{1}, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Verified || res.Error == "" {
		t.Fatalf("Verify() after Delete() = %+v, want NotEnrolled-shaped response", res)
	}
}

func TestDeleteMissingCustomerReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVerifier(t)

	res, err := v.Delete(ctx, "never-enrolled")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.Status != "not_found" {
		t.Fatalf("Delete() = %+v, want status not_found", res)
	}
}
