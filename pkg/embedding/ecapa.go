// Package embedding wraps an ECAPA-TDNN speaker encoder loaded as an ONNX
// Runtime session, producing L2-normalized 192-dimensional embeddings from
// 16 kHz mono audio.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/arcvoice/voiceverify/internal/verrors"
	"github.com/arcvoice/voiceverify/pkg/audio/fbank"
	"github.com/arcvoice/voiceverify/pkg/onnx"
)

// Dimension is the size of an ECAPA-TDNN embedding vector.
const Dimension = 192

// minSamples is the floor below which a clip is considered too short to
// produce a usable embedding (1 second at 16 kHz).
const minSamples = 16000

// Extractor runs the ECAPA-TDNN encoder. One Extractor is created at
// startup and shared across every request for the lifetime of the
// process; Session.Run is safe for concurrent use.
type Extractor struct {
	env     *onnx.Env
	session *onnx.Session
	fbank   *fbank.Extractor

	inputName  string
	outputName string
}

// New loads modelData as an ONNX Runtime session and returns an Extractor
// ready to serve concurrent Extract calls.
func New(modelData []byte) (*Extractor, error) {
	env, err := onnx.NewEnv("voiceverify")
	if err != nil {
		return nil, fmt.Errorf("embedding: create onnx environment: %w", err)
	}

	session, err := env.NewSession(modelData)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("embedding: load ECAPA-TDNN model: %w", err)
	}

	return &Extractor{
		env:     env,
		session: session,
		fbank:   fbank.New(fbank.DefaultConfig()),

		inputName:  "feats",
		outputName: "embs",
	}, nil
}

// Extract computes a 192-dimensional, L2-normalized embedding from 16 kHz
// mono float32 samples. Inference itself is synchronous and CPU-bound;
// callers dispatch it through a worker pool rather than calling it
// unbounded from request handlers.
func (x *Extractor) Extract(ctx context.Context, samples16k []float32) ([]float32, error) {
	if len(samples16k) < minSamples {
		return nil, verrors.Newf(verrors.BadAudio,
			"clip too short: %d samples, need >= %d", len(samples16k), minSamples)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feats := x.fbank.Extract(samples16k)
	if len(feats) == 0 {
		return nil, verrors.New(verrors.BadAudio, "no frames extracted from clip")
	}
	flat := fbank.Flatten(feats)
	numFrames := len(feats)
	numMels := len(feats[0])

	input, err := onnx.NewTensor([]int64{1, int64(numFrames), int64(numMels)}, flat)
	if err != nil {
		return nil, fmt.Errorf("embedding: build input tensor: %w", err)
	}
	defer input.Close()

	outputs, err := x.session.Run([]string{x.inputName}, []*onnx.Tensor{input}, []string{x.outputName})
	if err != nil {
		return nil, fmt.Errorf("embedding: run inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			o.Close()
		}
	}()

	raw, err := outputs[0].FloatData()
	if err != nil {
		return nil, fmt.Errorf("embedding: read output tensor: %w", err)
	}
	if len(raw) != Dimension {
		return nil, fmt.Errorf("embedding: unexpected output dimension: got %d, want %d", len(raw), Dimension)
	}

	// Copy so the returned slice doesn't alias ONNX Runtime's buffer, and
	// normalize defensively even though the model is expected to already
	// emit unit-norm vectors.
	out := make([]float32, Dimension)
	copy(out, raw)
	normalize(out)
	return out, nil
}

// Close releases the ONNX Runtime session and environment.
func (x *Extractor) Close() error {
	if x.session != nil {
		x.session.Close()
	}
	if x.env != nil {
		x.env.Close()
	}
	return nil
}

// normalize scales v in-place to unit L2 norm. A zero vector is left
// untouched rather than divided by zero.
func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-12 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
