package plda

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestLoadModelRoundTrip(t *testing.T) {
	want := identityModel(3)
	data, err := msgpack.Marshal(want)
	if err != nil {
		t.Fatalf("msgpack.Marshal() error = %v", err)
	}

	got, err := LoadModel(data)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if got.Dim() != 3 {
		t.Fatalf("Dim() = %d, want 3", got.Dim())
	}
}

func TestLoadModelRejectsMismatchedSigma(t *testing.T) {
	data, err := msgpack.Marshal(&Model{
		Mean:  []float64{0, 0},
		F:     [][]float64{{1, 0}, {0, 1}},
		Sigma: [][]float64{{1, 0, 0}, {0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("msgpack.Marshal() error = %v", err)
	}
	if _, err := LoadModel(data); err == nil {
		t.Fatal("LoadModel() with malformed sigma: want error, got nil")
	}
}
