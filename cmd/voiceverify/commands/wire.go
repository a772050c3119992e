package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arcvoice/voiceverify/internal/config"
	"github.com/arcvoice/voiceverify/pkg/audioload"
	"github.com/arcvoice/voiceverify/pkg/cohortstore"
	"github.com/arcvoice/voiceverify/pkg/embedding"
	"github.com/arcvoice/voiceverify/pkg/plda"
	"github.com/arcvoice/voiceverify/pkg/storage"
	"github.com/arcvoice/voiceverify/pkg/verifier"
	"github.com/arcvoice/voiceverify/pkg/voiceprintstore"
)

// deps bundles everything built from config, shared by serve, seed-cohort,
// and migrate.
type deps struct {
	cfg       config.Config
	cohort    cohortstore.Store
	extractor *embedding.Extractor
	scorer    *plda.Scorer
	records   *voiceprintstore.Store
}

// wire loads configuration and constructs every dependency the service
// needs. Callers are responsible for closing records and extractor.
func wire(ctx context.Context, dbPath string) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ecapaBytes, err := fetchCached(ctx, cfg.ECAPASource, cfg.ECAPASavedir, "ecapa.onnx")
	if err != nil {
		return nil, fmt.Errorf("fetch ECAPA model: %w", err)
	}
	extractor, err := embedding.New(ecapaBytes)
	if err != nil {
		return nil, fmt.Errorf("load ECAPA model: %w", err)
	}

	pldaBytes, err := storage.FetchArtifact(ctx, cfg.PLDAModelPath)
	if err != nil {
		return nil, fmt.Errorf("fetch PLDA model: %w", err)
	}
	pldaModel, err := plda.LoadModel(pldaBytes)
	if err != nil {
		return nil, fmt.Errorf("load PLDA model: %w", err)
	}
	scorer, err := plda.NewScorer(pldaModel)
	if err != nil {
		return nil, fmt.Errorf("build PLDA scorer: %w", err)
	}

	cohort, err := cohortstore.NewQdrant(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	records, err := voiceprintstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open voiceprint store: %w", err)
	}

	return &deps{cfg: cfg, cohort: cohort, extractor: extractor, scorer: scorer, records: records}, nil
}

// fetchCached resolves an artifact via storage.FetchArtifact, caching the
// result under savedir/name on disk when savedir is set — mirroring the
// reference implementation's "download once, reuse from a local cache
// directory" behavior for its ECAPA_SAVEDIR setting, without which the
// knob would go unused by this ONNX-based runtime.
func fetchCached(ctx context.Context, source, savedir, name string) ([]byte, error) {
	if savedir == "" {
		return storage.FetchArtifact(ctx, source)
	}

	cachePath := filepath.Join(savedir, name)
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	data, err := storage.FetchArtifact(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(savedir, 0o755); err == nil {
		_ = os.WriteFile(cachePath, data, 0o644)
	}
	return data, nil
}

func newVerifierConfig(cfg config.Config) verifier.Config {
	return verifier.Config{
		EnrolledCollection:    cfg.EnrolledCollection,
		CohortCollection:      cfg.CohortCollection,
		VerificationThreshold: cfg.VerificationThreshold,
		CohortTopK:            cfg.CohortTopK,
		MinEnrollmentSamples:  cfg.MinEnrollmentSamples,
		MaxEnrollmentSamples:  cfg.MaxEnrollmentSamples,
	}
}

var _ verifier.AudioDecoder = audioload.Load
