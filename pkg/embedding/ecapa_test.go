package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

func TestExtractRejectsShortClip(t *testing.T) {
	x := &Extractor{}
	_, err := x.Extract(context.Background(), make([]float32, 100))
	if verrors.CodeOf(err) != verrors.BadAudio {
		t.Fatalf("Extract(short clip) code = %v, want BadAudio", verrors.CodeOf(err))
	}
}

func TestExtractRejectsCancelledContext(t *testing.T) {
	x := &Extractor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := x.Extract(ctx, make([]float32, minSamples))
	if err == nil {
		t.Fatal("Extract() with cancelled context: want error, got nil")
	}
}

func TestNormalizeUnitNorm(t *testing.T) {
	v := []float32{3, 4, 0}
	normalize(v)

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1) > 1e-5 {
		t.Fatalf("normalize() produced norm^2 = %v, want 1", sumSq)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	normalize(v)
	for _, x := range v {
		if x != 0 {
			t.Fatalf("normalize(zero vector) changed value to %v", x)
		}
	}
}
