// Package audioload decodes arbitrary audio payloads into 16 kHz mono
// float32 PCM, the input format every downstream stage of the
// verification pipeline (feature extraction, embedding) expects.
package audioload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/arcvoice/voiceverify/internal/verrors"
	"github.com/arcvoice/voiceverify/pkg/audio/resampler"
)

// TargetSampleRate is the sample rate every decoded clip is converted to.
const TargetSampleRate = 16000

// Load decodes data into mono float32 samples at TargetSampleRate.
//
// hint is a filename suffix or content-type used only for diagnostics; the
// actual format is always determined by sniffing the payload's magic
// bytes, since callers sometimes mislabel uploads. Unsupported containers
// (Opus/WebM/OGG, or anything sniff cannot classify) fall through to an
// ffmpeg subprocess transcode.
func Load(ctx context.Context, data []byte, hint string) ([]float32, error) {
	if len(data) == 0 {
		return nil, verrors.New(verrors.BadAudio, "empty audio payload")
	}

	mono, sampleRate, err := decode(data)
	if err != nil {
		mono, sampleRate, err = decodeViaFFmpeg(ctx, data)
		if err != nil {
			return nil, verrors.Wrap(verrors.BadAudio, err, fmt.Sprintf("decode audio (hint %q)", hint))
		}
	}

	if sampleRate == TargetSampleRate {
		return mono, nil
	}
	return resampleMono(mono, sampleRate, TargetSampleRate)
}

// decode tries the pure-Go decoders in turn, based on sniffed magic bytes.
// It never shells out; unsupported or unrecognized payloads return an
// error so the caller can fall back to ffmpeg.
func decode(data []byte) ([]float32, int, error) {
	switch sniff(data) {
	case formatWAV:
		return decodeWAV(data)
	case formatFLAC:
		return decodeFLAC(data)
	case formatMP3:
		return decodeMP3(data)
	default:
		if isEBML(data) {
			return nil, 0, fmt.Errorf("audioload: WebM/Matroska containers require ffmpeg")
		}
		return nil, 0, fmt.Errorf("audioload: unrecognized audio format")
	}
}

func decodeWAV(data []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("audioload: invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("audioload: read WAV PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, fmt.Errorf("audioload: WAV file has no channel format")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	maxVal := float32(int64(1) << uint(bitDepth-1))

	mono := downmixInt(buf.Data, buf.Format.NumChannels, maxVal)
	return mono, buf.Format.SampleRate, nil
}

func decodeFLAC(data []byte) ([]float32, int, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("audioload: open FLAC stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	numChans := int(info.NChannels)
	maxVal := float32(int64(1) << uint(info.BitsPerSample-1))

	var mono []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("audioload: parse FLAC frame: %w", err)
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum int64
			for _, sf := range frame.Subframes {
				sum += int64(sf.Samples[i])
			}
			avg := float32(sum/int64(numChans)) / maxVal
			mono = append(mono, avg)
		}
	}
	return mono, int(info.SampleRate), nil
}

func decodeMP3(data []byte) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("audioload: open MP3 stream: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("audioload: decode MP3 frames: %w", err)
	}
	// go-mp3 always produces signed 16-bit little-endian stereo, regardless
	// of the source channel count.
	numFrames := len(pcm) / 4
	mono := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		l := int16(pcm[i*4]) | int16(pcm[i*4+1])<<8
		r := int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8
		mono[i] = (float32(l) + float32(r)) / 2 / 32768.0
	}
	return mono, dec.SampleRate(), nil
}

// downmixInt averages numChans interleaved integer samples into mono
// float32 samples normalized to [-1, 1) by maxVal.
func downmixInt(data []int, numChans int, maxVal float32) []float32 {
	if numChans <= 0 {
		numChans = 1
	}
	n := len(data) / numChans
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum int64
		for c := 0; c < numChans; c++ {
			sum += int64(data[i*numChans+c])
		}
		mono[i] = float32(sum/int64(numChans)) / maxVal
	}
	return mono
}

// resampleMono converts mono float32 samples from srcRate to dstRate using
// the repository's resampler, round-tripping through signed 16-bit PCM
// bytes since that is the format the resampler operates on.
func resampleMono(samples []float32, srcRate, dstRate int) ([]float32, error) {
	in := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clampSample(s) * 32767)
		in[i*2] = byte(v)
		in[i*2+1] = byte(v >> 8)
	}

	r, err := resampler.New(bytes.NewReader(in),
		resampler.Format{SampleRate: srcRate, Stereo: false},
		resampler.Format{SampleRate: dstRate, Stereo: false},
	)
	if err != nil {
		return nil, fmt.Errorf("audioload: create resampler: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("audioload: resample: %w", err)
	}

	n := len(out) / 2
	result := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(out[i*2]) | int16(out[i*2+1])<<8
		result[i] = float32(v) / 32768.0
	}
	return result, nil
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// decodeViaFFmpeg invokes ffmpeg to transcode an arbitrary audio payload
// directly to 16 kHz mono signed-16 raw PCM. The input and output temp
// files are scoped to this call and removed on every exit path, including
// when ffmpeg fails or ctx is cancelled mid-transcode.
func decodeViaFFmpeg(ctx context.Context, data []byte) ([]float32, int, error) {
	dir, err := os.MkdirTemp("", "voiceverify-audioload-*")
	if err != nil {
		return nil, 0, fmt.Errorf("audioload: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "in.bin")
	outPath := filepath.Join(dir, "out.pcm")

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, 0, fmt.Errorf("audioload: write ffmpeg input: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", inPath,
		"-f", "s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", TargetSampleRate),
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, 0, fmt.Errorf("audioload: ffmpeg transcode failed: %w: %s", err, out)
	}

	pcm, err := os.ReadFile(outPath)
	if err != nil {
		return nil, 0, fmt.Errorf("audioload: read ffmpeg output: %w", err)
	}

	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return samples, TargetSampleRate, nil
}
