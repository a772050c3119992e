package httpapi

import (
	"bytes"
	"testing"
)

func TestXorDecodeRoundTrip(t *testing.T) {
	key := []byte("k3y")
	plain := []byte("RIFF....WAVEfmt ")

	scrambled := xorDecode(plain, key)
	recovered := xorDecode(scrambled, key)

	if !bytes.Equal(recovered, plain) {
		t.Fatalf("xorDecode round trip = %q, want %q", recovered, plain)
	}
}

func TestXorDecodeNoKeyIsIdentity(t *testing.T) {
	plain := []byte("unobfuscated")
	if got := xorDecode(plain, nil); !bytes.Equal(got, plain) {
		t.Fatalf("xorDecode with no key = %q, want %q unchanged", got, plain)
	}
}
