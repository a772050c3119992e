// Package verifier wires the audio loader, embedding extractor, PLDA
// scorer, cohort store, and voiceprint store into the request-level
// enroll/verify/delete/history operations.
package verifier

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arcvoice/voiceverify/internal/verrors"
	"github.com/arcvoice/voiceverify/internal/workerpool"
	"github.com/arcvoice/voiceverify/pkg/cohortstore"
	"github.com/arcvoice/voiceverify/pkg/voiceprintstore"
)

// Embedder turns decoded audio samples into a fixed-dimension embedding.
// Satisfied by *embedding.Extractor.
type Embedder interface {
	Extract(ctx context.Context, samples []float32) ([]float32, error)
}

// Scorer computes PLDA log-likelihood-ratio scores. Satisfied by
// *plda.Scorer.
type Scorer interface {
	Score(enroll, test []float32) (float64, error)
	CohortScores(ref []float32, cohort [][]float32) ([]float64, error)
}

// AudioDecoder decodes and resamples a raw audio payload to mono 16kHz
// float32 samples. Satisfied by audioload.Load.
type AudioDecoder func(ctx context.Context, data []byte, hint string) ([]float32, error)

// VoiceprintStore is the relational persistence contract the orchestrator
// depends on. Satisfied by *voiceprintstore.Store.
type VoiceprintStore interface {
	GetActive(ctx context.Context, customerID string) (*voiceprintstore.Record, error)
	Replace(ctx context.Context, customerID string, qdrantVectorID int64) (*voiceprintstore.Record, error)
	MarkVerified(ctx context.Context, voiceprintID string, at time.Time) error
	AppendAttempt(ctx context.Context, voiceprintID string, raw, normalized, threshold float64) error
	Delete(ctx context.Context, customerID string) (bool, error)
	History(ctx context.Context, customerID string) ([]voiceprintstore.Attempt, error)
}

// Config holds the subset of service configuration the orchestrator
// consults directly.
type Config struct {
	EnrolledCollection   string
	CohortCollection     string
	VerificationThreshold float64
	CohortTopK            int
	MinEnrollmentSamples  int
	MaxEnrollmentSamples  int
}

// Verifier is the C6 request-level orchestrator.
type Verifier struct {
	cfg      Config
	decode   AudioDecoder
	embed    Embedder
	score    Scorer
	cohort   cohortstore.Store
	records  VoiceprintStore
	pool     *workerpool.Pool
}

// New builds a Verifier from its dependencies. pool may be nil, in which
// case workerpool.New(workerpool.DefaultSize) is used.
func New(cfg Config, decode AudioDecoder, embed Embedder, score Scorer, cohort cohortstore.Store, records VoiceprintStore, pool *workerpool.Pool) *Verifier {
	if pool == nil {
		pool = workerpool.New(workerpool.DefaultSize)
	}
	return &Verifier{cfg: cfg, decode: decode, embed: embed, score: score, cohort: cohort, records: records, pool: pool}
}

// Enroll computes a centroid embedding from clips and replaces the
// customer's voiceprint, atomically from the caller's perspective.
func (v *Verifier) Enroll(ctx context.Context, customerID string, clips [][]byte, hints []string) (*EnrollResult, error) {
	n := len(clips)
	if n < v.cfg.MinEnrollmentSamples {
		return nil, verrors.Newf(verrors.TooFewSamples, "enroll requires at least %d clips, got %d", v.cfg.MinEnrollmentSamples, n)
	}
	if n > v.cfg.MaxEnrollmentSamples {
		return nil, verrors.Newf(verrors.TooManySamples, "enroll accepts at most %d clips, got %d", v.cfg.MaxEnrollmentSamples, n)
	}

	embeddings := make([][]float32, n)
	fns := make([]func(context.Context) error, n)
	for i := range clips {
		i := i
		fns[i] = func(ctx context.Context) error {
			samples, err := v.decode(ctx, clips[i], hints[i])
			if err != nil {
				return err
			}
			e, err := v.embed.Extract(ctx, samples)
			if err != nil {
				return err
			}
			embeddings[i] = e
			return nil
		}
	}
	if err := v.pool.Run(ctx, fns...); err != nil {
		return nil, err
	}

	centroid := centroidOf(embeddings)
	pointID := DeriveID(customerID)

	if err := v.cohort.Upsert(ctx, v.cfg.EnrolledCollection, pointID, centroid, map[string]string{
		"customer_id": customerID,
		"num_samples": fmt.Sprintf("%d", n),
	}); err != nil {
		return nil, err
	}

	if _, err := v.records.Replace(ctx, customerID, pointID); err != nil {
		// best-effort cleanup: remove the centroid we just wrote rather than
		// leave it orphaned with no matching relational row.
		_ = v.cohort.Delete(ctx, v.cfg.EnrolledCollection, pointID)
		return nil, err
	}

	return &EnrollResult{Status: "success", CustomerID: customerID, PointID: pointID, NumSamples: n}, nil
}

// centroidOf returns the L2-normalized mean of embeddings.
func centroidOf(embeddings [][]float32) []float32 {
	dim := len(embeddings[0])
	mean := make([]float64, dim)
	for _, e := range embeddings {
		for i, x := range e {
			mean[i] += float64(x)
		}
	}
	n := float64(len(embeddings))
	for i := range mean {
		mean[i] /= n
	}

	var norm float64
	for _, x := range mean {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm < 1e-12 {
		norm = 1e-12
	}

	out := make([]float32, dim)
	for i, x := range mean {
		out[i] = float32(x / norm)
	}
	return out
}

// Verify decodes a single clip and scores it against customerID's
// enrolled centroid using symmetric AS-Norm.
func (v *Verifier) Verify(ctx context.Context, customerID string, clip []byte, hint string) (*VerifyResult, error) {
	record, err := v.records.GetActive(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &VerifyResult{Verified: false, Error: fmt.Sprintf("Customer %s not found", customerID)}, nil
	}

	enrollVec, found, err := v.cohort.Retrieve(ctx, v.cfg.EnrolledCollection, record.QdrantVectorID)
	if err != nil {
		return nil, err
	}
	if !found {
		return &VerifyResult{Verified: false, Error: fmt.Sprintf("Customer %s not found", customerID)}, nil
	}

	var testVec []float32
	if err := v.pool.Run(ctx, func(ctx context.Context) error {
		samples, err := v.decode(ctx, clip, hint)
		if err != nil {
			return err
		}
		testVec, err = v.embed.Extract(ctx, samples)
		return err
	}); err != nil {
		return nil, err
	}

	var raw float64
	var cohortE, cohortT [][]float32
	err = v.pool.Run(ctx,
		func(ctx context.Context) error {
			var err error
			raw, err = v.score.Score(enrollVec, testVec)
			return err
		},
		func(ctx context.Context) error {
			var err error
			cohortE, err = v.cohort.TopK(ctx, v.cfg.CohortCollection, enrollVec, v.cfg.CohortTopK)
			return err
		},
		func(ctx context.Context) error {
			var err error
			cohortT, err = v.cohort.TopK(ctx, v.cfg.CohortCollection, testVec, v.cfg.CohortTopK)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	if len(cohortE) == 0 || len(cohortT) == 0 {
		return nil, cohortstore.ErrCohortTooSmall
	}

	sE, err := v.score.CohortScores(enrollVec, cohortT)
	if err != nil {
		return nil, err
	}
	sT, err := v.score.CohortScores(testVec, cohortE)
	if err != nil {
		return nil, err
	}

	muE, sigmaE := meanStd(sE)
	muT, sigmaT := meanStd(sT)
	sigmaE = math.Max(sigmaE, 1e-8)
	sigmaT = math.Max(sigmaT, 1e-8)

	z := 0.5 * ((raw-muE)/sigmaE + (raw-muT)/sigmaT)
	verified := z > v.cfg.VerificationThreshold

	if err := v.records.AppendAttempt(ctx, record.ID, raw, z, v.cfg.VerificationThreshold); err != nil {
		return nil, err
	}
	if verified {
		if err := v.records.MarkVerified(ctx, record.ID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	return &VerifyResult{
		Verified:  verified,
		Score:     z,
		RawScore:  raw,
		Threshold: v.cfg.VerificationThreshold,
		CohortStats: CohortStats{
			MeanEnroll: muE,
			StdEnroll:  sigmaE,
			MeanTest:   muT,
			StdTest:    sigmaT,
			CohortSize: v.cfg.CohortTopK,
		},
	}, nil
}

func meanStd(values []float64) (mean, std float64) {
	for _, x := range values {
		mean += x
	}
	mean /= float64(len(values))

	for _, x := range values {
		d := x - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}

// Delete removes customerID's voiceprint row and, if present, its
// centroid. Deleting an already-absent customer is not an error.
func (v *Verifier) Delete(ctx context.Context, customerID string) (*DeleteResult, error) {
	record, err := v.records.GetActive(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &DeleteResult{Status: "not_found"}, nil
	}

	removed, err := v.records.Delete(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if removed {
		if err := v.cohort.Delete(ctx, v.cfg.EnrolledCollection, record.QdrantVectorID); err != nil {
			return nil, err
		}
	}
	return &DeleteResult{Status: "success"}, nil
}

// History returns customerID's verification attempts, newest first.
func (v *Verifier) History(ctx context.Context, customerID string) ([]HistoryEntry, error) {
	attempts, err := v.records.History(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, len(attempts))
	for i, a := range attempts {
		out[i] = HistoryEntry{
			ID:           a.ID,
			RawPLDAScore: a.RawPLDAScore,
			ASNormScore:  a.ASNormScore,
			Threshold:    a.Threshold,
			CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		}
	}
	return out, nil
}
