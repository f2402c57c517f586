// Package b32 decodes the 32-symbol secret alphabet (A-Z, 2-7) used by
// authenticator apps. It is deliberately more forgiving than RFC 4648:
// input is case-insensitive, embedded spaces and '=' padding are
// stripped, and an under-length symbol count is padded with the
// zero-valued symbol 'A' before packing. That padding changes the
// decoded byte count, so the standard library decoder is not a drop-in
// replacement.
package b32

import (
	"errors"
	"fmt"
	"strings"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// ErrInvalidSymbol is returned when the input contains a character
// outside the alphabet (after spaces and padding are stripped).
var ErrInvalidSymbol = errors.New("invalid symbol")

// Decode converts a secret in the 32-symbol alphabet to raw bytes.
// An empty input decodes to an empty byte sequence.
func Decode(s string) ([]byte, error) {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "=", "")

	vals := make([]byte, 0, len(s))
	for _, r := range s {
		i := strings.IndexRune(alphabet, r)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, r)
		}
		vals = append(vals, byte(i))
	}

	// Pad the symbol count to a multiple of 8 with the zero symbol.
	// 8 symbols carry exactly 5 bytes, so after padding every 5-bit
	// group lands on a byte boundary.
	if rem := len(vals) % 8; rem != 0 {
		vals = append(vals, make([]byte, 8-rem)...)
	}

	out := make([]byte, 0, len(vals)*5/8)
	var buf uint
	var bits uint
	for _, v := range vals {
		buf = buf<<5 | uint(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
			buf &= (1 << bits) - 1
		}
	}
	// A trailing group shorter than 8 bits is discarded; with the
	// padding above there never is one.
	return out, nil
}
