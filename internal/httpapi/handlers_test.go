package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcvoice/voiceverify/pkg/cohortstore"
	"github.com/arcvoice/voiceverify/pkg/verifier"
	"github.com/arcvoice/voiceverify/pkg/voiceprintstore"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Extract(_ context.Context, samples []float32) ([]float32, error) {
	if len(samples) > 0 && samples[0] == 2 {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

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

func fakeDecode(_ context.Context, data []byte, _ string) ([]float32, error) {
	if len(data) == 0 {
		return nil, errBadAudio
	}
	return []float32{float32(data[0])}, nil
}

var errBadAudio = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "empty payload" }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	records, err := voiceprintstore.Open(":memory:")
	if err != nil {
		t.Fatalf("voiceprintstore.Open() error = %v", err)
	}
	t.Cleanup(func() { records.Close() })

	cohort := cohortstore.NewMemory()
	ctx := context.Background()
	cohort.EnsureCollection(ctx, "enrolled", 2)
	cohort.EnsureCollection(ctx, "cohort", 2)
	seed := [][]float32{{0.8, 0.6}, {0.75, 0.66}, {0.6, 0.8}, {0.66, 0.75}, {0.7, 0.7}}
	for i, v := range seed {
		cohort.Upsert(ctx, "cohort", int64(100+i), v, nil)
	}

	cfg := verifier.Config{
		EnrolledCollection:    "enrolled",
		CohortCollection:      "cohort",
		VerificationThreshold: 3.0,
		CohortTopK:            3,
		MinEnrollmentSamples:  3,
		MaxEnrollmentSamples:  10,
	}
	v := verifier.New(cfg, fakeDecode, fakeEmbedder{}, fakeScorer{}, cohort, records, nil)
	return NewServer(v, cohort, "enrolled", "cohort", Options{Enabled: true})
}

func buildEnrollRequest(t *testing.T, customerID string, numClips int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("customer_id", customerID)
	for i := 0; i < numClips; i++ {
		part, err := w.CreateFormFile("files[]", "clip.raw")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write([]byte{1})
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/voiceprint/enroll", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandleEnrollAndVerify(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	enrollReq := buildEnrollRequest(t, "alice", 3)
	enrollRec := httptest.NewRecorder()
	handler.ServeHTTP(enrollRec, enrollReq)
	if enrollRec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d, body = %s", enrollRec.Code, enrollRec.Body.String())
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("customer_id", "alice")
	part, _ := mw.CreateFormFile("file", "clip.raw")
	part.Write([]byte{1})
	mw.Close()

	verifyReq := httptest.NewRequest(http.MethodPost, "/voiceprint/verify", &buf)
	verifyReq.Header.Set("Content-Type", mw.FormDataContentType())
	verifyRec := httptest.NewRecorder()
	handler.ServeHTTP(verifyRec, verifyReq)
	if verifyRec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body = %s", verifyRec.Code, verifyRec.Body.String())
	}

	var result map[string]any
	if err := json.Unmarshal(verifyRec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if result["verified"] != true {
		t.Fatalf("verify response = %v, want verified = true", result)
	}
}

func TestHandleEnrollTooFewSamples(t *testing.T) {
	s := newTestServer(t)
	req := buildEnrollRequest(t, "alice", 1)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleDeleteMissingCustomer(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/voiceprint/", bytes.NewBufferString(`{"customer_id":"nobody"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/voiceprint/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleDisabledServiceReturnsServiceUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.opts.Enabled = false

	req := httptest.NewRequest(http.MethodGet, "/voiceprint/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
