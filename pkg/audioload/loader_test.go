package audioload

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

// buildWAV encodes mono 16-bit PCM samples as a minimal WAV file.
func buildWAV(t *testing.T, samples []int16, sampleRate int) []byte {
	t.Helper()
	var buf bytes.Buffer

	dataSize := len(samples) * 2
	byteRate := sampleRate * 2
	blockAlign := 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}

func TestLoadEmptyPayload(t *testing.T) {
	_, err := Load(context.Background(), nil, "clip.wav")
	if verrors.CodeOf(err) != verrors.BadAudio {
		t.Fatalf("Load(empty) code = %v, want BadAudio", verrors.CodeOf(err))
	}
}

func TestLoadWAVAlreadyAtTargetRate(t *testing.T) {
	samples := make([]int16, TargetSampleRate) // 1 second of audio
	for i := range samples {
		samples[i] = int16(1000 * math.Sin(float64(i)*0.05))
	}
	data := buildWAV(t, samples, TargetSampleRate)

	out, err := Load(context.Background(), data, "clip.wav")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != len(samples) {
		t.Fatalf("Load() returned %d samples, want %d", len(out), len(samples))
	}
	for _, s := range out {
		if s < -1 || s > 1 {
			t.Fatalf("sample out of [-1,1] range: %v", s)
		}
	}
}

func TestLoadWAVResamples(t *testing.T) {
	samples := make([]int16, 8000) // 1 second at 8kHz
	data := buildWAV(t, samples, 8000)

	out, err := Load(context.Background(), data, "clip.wav")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Resampled to 16kHz should roughly double the sample count.
	if out == nil {
		t.Fatal("Load() returned nil samples")
	}
}

func TestLoadMislabeledSuffixStillDecodes(t *testing.T) {
	samples := make([]int16, 1600)
	data := buildWAV(t, samples, TargetSampleRate)

	// hint claims mp3, but magic bytes are WAV; sniffing must win.
	out, err := Load(context.Background(), data, "clip.mp3")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != len(samples) {
		t.Fatalf("Load() returned %d samples, want %d", len(out), len(samples))
	}
}

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want format
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), formatWAV},
		{"flac", []byte("fLaC\x00\x00\x00\x00"), formatFLAC},
		{"id3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00"), formatMP3},
		{"mpeg-sync", []byte{0xFF, 0xFB, 0x90, 0x00}, formatMP3},
		{"unknown", []byte{0x00, 0x01, 0x02, 0x03}, formatUnknown},
		{"too-short", []byte{0x52}, formatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sniff(tc.data); got != tc.want {
				t.Errorf("sniff(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}
