package audioload

import "bytes"

// format identifies the decoder an audio payload should be routed to.
type format int

const (
	formatUnknown format = iota
	formatWAV
	formatFLAC
	formatMP3
)

// sniff inspects the first bytes of data and returns the format indicated
// by well-known magic bytes, ignoring whatever suffix/content-type hint the
// caller supplied. Declared suffixes are not trusted: callers sometimes
// mislabel files, so detection always goes by content.
func sniff(data []byte) format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return formatWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return formatFLAC
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return formatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync (11 set bits) with no ID3 header.
		return formatMP3
	default:
		return formatUnknown
	}
}

// isEBML reports whether data starts with the EBML magic number used by
// WebM/Matroska containers. These always fall through to the ffmpeg
// transcoder; this is only used to give a clearer error message.
func isEBML(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3
}
