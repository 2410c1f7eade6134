package imagestore

import (
	"encoding/base64"
	"strings"
)

// decodeLenient turns a text-encoded image into raw bytes without ever
// failing. Anything up to the first comma is treated as a metadata header
// (data:image/jpeg;base64,) and discarded. Standard and URL-safe alphabets
// are both accepted, other characters are skipped and decoding stops at the
// first padding character. A trailing group too short to carry a byte is
// dropped.
func decodeLenient(encoded string) []byte {
	if _, payload, found := strings.Cut(encoded, ","); found {
		encoded = payload
	}

	var b strings.Builder
	b.Grow(len(encoded))
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
			b.WriteByte(c)
		case c == '-':
			b.WriteByte('+')
		case c == '_':
			b.WriteByte('/')
		case c == '=':
			i = len(encoded)
		}
	}

	clean := b.String()
	if len(clean)%4 == 1 {
		clean = clean[:len(clean)-1]
	}

	// The filtered input is always well formed for the raw encoding.
	out, _ := base64.RawStdEncoding.DecodeString(clean)
	return out
}
