// Package config loads the service configuration from environment
// variables. There is no layered, multi-context config directory here —
// this is a long-running service with one fixed, enumerated set of knobs,
// not an interactive CLI tool with per-project profiles.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every environment-derived setting the service needs.
type Config struct {
	QdrantHost string
	QdrantPort int

	EnrolledCollection string
	CohortCollection   string

	PLDAModelPath string
	ECAPASource   string
	ECAPASavedir  string

	VerificationThreshold float64
	CohortTopK            int
	MinEnrollmentSamples  int
	MaxEnrollmentSamples  int
	TargetSampleRate      int

	VoiceprintEnabled bool
}

// Load reads Config from the process environment, applying defaults for
// anything unset, then validates the result.
func Load() (Config, error) {
	cfg := Config{
		QdrantHost: getenv("QDRANT_HOST", "localhost"),

		EnrolledCollection: getenv("ENROLLED_COLLECTION", "voiceprints"),
		CohortCollection:   getenv("COHORT_COLLECTION", "cohort"),

		PLDAModelPath: getenv("PLDA_MODEL_PATH", ""),
		ECAPASource:   getenv("ECAPA_SOURCE", ""),
		ECAPASavedir:  getenv("ECAPA_SAVEDIR", ""),
	}

	var err error
	if cfg.QdrantPort, err = getenvInt("QDRANT_PORT", 6333); err != nil {
		return Config{}, err
	}
	if cfg.VerificationThreshold, err = getenvFloat("VERIFICATION_THRESHOLD", 3.0); err != nil {
		return Config{}, err
	}
	if cfg.CohortTopK, err = getenvInt("COHORT_TOP_K", 30); err != nil {
		return Config{}, err
	}
	if cfg.MinEnrollmentSamples, err = getenvInt("MIN_ENROLLMENT_SAMPLES", 3); err != nil {
		return Config{}, err
	}
	if cfg.MaxEnrollmentSamples, err = getenvInt("MAX_ENROLLMENT_SAMPLES", 10); err != nil {
		return Config{}, err
	}
	if cfg.TargetSampleRate, err = getenvInt("TARGET_SAMPLE_RATE", 16000); err != nil {
		return Config{}, err
	}
	if cfg.VoiceprintEnabled, err = getenvBool("VOICEPRINT_ENABLED", true); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MinEnrollmentSamples <= 0 {
		return fmt.Errorf("config: MIN_ENROLLMENT_SAMPLES must be positive, got %d", c.MinEnrollmentSamples)
	}
	if c.MaxEnrollmentSamples < c.MinEnrollmentSamples {
		return fmt.Errorf("config: MAX_ENROLLMENT_SAMPLES (%d) must be >= MIN_ENROLLMENT_SAMPLES (%d)",
			c.MaxEnrollmentSamples, c.MinEnrollmentSamples)
	}
	if c.CohortTopK <= 0 {
		return fmt.Errorf("config: COHORT_TOP_K must be positive, got %d", c.CohortTopK)
	}
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("config: TARGET_SAMPLE_RATE must be positive, got %d", c.TargetSampleRate)
	}
	if c.QdrantPort <= 0 || c.QdrantPort > 65535 {
		return fmt.Errorf("config: QDRANT_PORT out of range: %d", c.QdrantPort)
	}
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid float %q: %w", key, v, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: invalid bool %q: %w", key, v, err)
	}
	return b, nil
}
