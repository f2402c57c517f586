// Package totp derives time-based one-time codes from shared secrets
// (RFC 6238 semantics over the lenient secret alphabet in package b32).
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/keyfob/keyfob/internal/b32"
)

const (
	// DefaultDigits is the code length used when the caller does not care.
	DefaultDigits = 6

	// DefaultPeriod is the validity window in seconds.
	DefaultPeriod = 30
)

var (
	// ErrInvalidSecret is returned when the secret does not decode.
	ErrInvalidSecret = errors.New("invalid secret format")

	// ErrInvalidDigits is returned for a code length outside [1, 10].
	ErrInvalidDigits = errors.New("digits out of range")

	// ErrInvalidPeriod is returned for a non-positive time step.
	ErrInvalidPeriod = errors.New("period must be positive")
)

// Generate returns the code for the secret at the current time using
// the default digits and period.
func Generate(secret string) (string, error) {
	return GenerateAt(secret, DefaultDigits, DefaultPeriod, time.Now())
}

// GenerateAt returns the code for the secret at the given instant.
// The code is a decimal string of exactly digits characters; on any
// failure the returned string is empty, never a placeholder.
func GenerateAt(secret string, digits, period int, at time.Time) (string, error) {
	if digits < 1 || digits > 10 {
		return "", fmt.Errorf("%w: %d", ErrInvalidDigits, digits)
	}
	if period < 1 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}

	key, err := b32.Decode(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}

	counter := uint64(at.Unix() / int64(period))
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil) // 20 bytes

	// Dynamic truncation: the low nibble of the last byte picks a
	// 4-byte window, its high bit is cleared to avoid sign trouble.
	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, uint64(bin)%mod), nil
}

// Verify reports whether code matches the secret at the given instant,
// accepting skew adjacent windows on either side. A decode failure is
// an error, not a mismatch.
func Verify(secret, code string, digits, period int, at time.Time, skew int) (bool, error) {
	if skew < 0 {
		skew = 0
	}
	for w := -skew; w <= skew; w++ {
		want, err := GenerateAt(secret, digits, period, at.Add(time.Duration(w*period)*time.Second))
		if err != nil {
			return false, err
		}
		if want == code {
			return true, nil
		}
	}
	return false, nil
}

// SecondsRemaining returns how many seconds of the current window are
// left at the given instant. The result is in [1, period]: exactly on
// a window boundary a full window remains.
func SecondsRemaining(period int, at time.Time) int {
	if period < 1 {
		period = DefaultPeriod
	}
	return period - int(at.Unix()%int64(period))
}
