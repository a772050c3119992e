package plda

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// Model is the trained two-covariance PLDA artifact: a mean vector, a
// speaker-subspace loading matrix F, the within-class covariance Sigma,
// and a scaling factor that tempers the between-class covariance's
// contribution to scoring. It is deserialized from a binary msgpack
// envelope rather than a text format, mirroring how the rest of the
// pipeline serializes its artifacts.
type Model struct {
	Mean          []float64   `msgpack:"mean"`
	F             [][]float64 `msgpack:"f"`
	Sigma         [][]float64 `msgpack:"sigma"`
	ScalingFactor *float64    `msgpack:"scaling_factor"`
}

// scalingFactor returns the model's scaling factor, defaulting to 1.0 when
// the field is absent from the msgpack envelope, matching the Python
// reference's plda.get("scaling_factor", 1.0) fallback.
func (m *Model) scalingFactor() float64 {
	if m.ScalingFactor == nil {
		return 1.0
	}
	return *m.ScalingFactor
}

// LoadModel deserializes a Model from its msgpack-encoded bytes.
func LoadModel(data []byte) (*Model, error) {
	var m Model
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plda: unmarshal model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	d := len(m.Mean)
	if d == 0 {
		return fmt.Errorf("plda: model has empty mean vector")
	}
	if len(m.Sigma) != d {
		return fmt.Errorf("plda: sigma has %d rows, want %d", len(m.Sigma), d)
	}
	for i, row := range m.Sigma {
		if len(row) != d {
			return fmt.Errorf("plda: sigma row %d has %d columns, want %d", i, len(row), d)
		}
	}
	if len(m.F) != d {
		return fmt.Errorf("plda: f has %d rows, want %d", len(m.F), d)
	}
	q := len(m.F[0])
	for i, row := range m.F {
		if len(row) != q {
			return fmt.Errorf("plda: f row %d has %d columns, want %d", i, len(row), q)
		}
	}
	return nil
}

// Dim returns the embedding dimensionality the model was trained for.
func (m *Model) Dim() int { return len(m.Mean) }

func denseFromRows(rows [][]float64) *mat.Dense {
	r := len(rows)
	c := len(rows[0])
	flat := make([]float64, 0, r*c)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return mat.NewDense(r, c, flat)
}
