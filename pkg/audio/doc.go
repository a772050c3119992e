// Package audio provides audio processing building blocks shared by the
// decode and embedding pipelines.
//
// This package is an umbrella for audio-related sub-packages:
//
//   - resampler: sample-rate conversion and channel downmixing
//   - fbank: log mel filterbank feature extraction for speaker encoders
//
// Example usage:
//
//	import (
//	    "github.com/arcvoice/voiceverify/pkg/audio/fbank"
//	    "github.com/arcvoice/voiceverify/pkg/audio/resampler"
//	)
//
//	feats := fbank.New(fbank.DefaultConfig()).Extract(samples16k)
package audio
