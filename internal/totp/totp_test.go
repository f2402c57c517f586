package totp

import (
	"strings"
	"testing"
	"time"

	pqotp "github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret decodes to the ASCII bytes "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateAt_RFC6238Vectors(t *testing.T) {
	// Appendix B of RFC 6238, SHA-1 column.
	vectors := []struct {
		at   int64
		want string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, v := range vectors {
		got, err := GenerateAt(rfcSecret, 8, 30, time.Unix(v.at, 0))
		require.NoError(t, err, "GenerateAt(t=%d) failed", v.at)
		assert.Equal(t, v.want, got, "code mismatch at t=%d", v.at)
	}
}

func TestGenerateAt_Deterministic(t *testing.T) {
	at := time.Unix(1111111109, 0)
	first, err := GenerateAt(rfcSecret, 6, 30, at)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := GenerateAt(rfcSecret, 6, 30, at)
		require.NoError(t, err)
		assert.Equal(t, first, again, "same inputs must yield the same code")
	}
}

func TestGenerateAt_StableWithinWindow(t *testing.T) {
	base, err := GenerateAt(rfcSecret, 6, 30, time.Unix(30, 0))
	require.NoError(t, err)

	for at := int64(30); at < 60; at++ {
		got, err := GenerateAt(rfcSecret, 6, 30, time.Unix(at, 0))
		require.NoError(t, err)
		assert.Equal(t, base, got, "code changed inside the window at t=%d", at)
	}
}

func TestGenerateAt_ShapeAndDefaults(t *testing.T) {
	for _, digits := range []int{1, 4, 6, 8, 10} {
		got, err := GenerateAt("JBSWY3DPEHPK3PXP", digits, 30, time.Unix(1234567890, 0))
		require.NoError(t, err, "digits=%d", digits)
		assert.Len(t, got, digits, "code must be exactly digits long")
		assert.NotContains(t, got, " ")
		for _, r := range got {
			assert.True(t, r >= '0' && r <= '9', "non-decimal rune %q in code %q", r, got)
		}
	}

	code, err := Generate("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Len(t, code, DefaultDigits)
}

func TestGenerateAt_Errors(t *testing.T) {
	got, err := GenerateAt("NOT A VALID 1 SECRET", 6, 30, time.Unix(59, 0))
	assert.ErrorIs(t, err, ErrInvalidSecret, "undecodable secret must fail")
	assert.Empty(t, got, "failures must not produce a code-shaped string")

	_, err = GenerateAt(rfcSecret, 0, 30, time.Unix(59, 0))
	assert.ErrorIs(t, err, ErrInvalidDigits)
	_, err = GenerateAt(rfcSecret, 11, 30, time.Unix(59, 0))
	assert.ErrorIs(t, err, ErrInvalidDigits)
	_, err = GenerateAt(rfcSecret, 6, 0, time.Unix(59, 0))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestGenerateAt_AgreesWithReferenceImplementation(t *testing.T) {
	// For canonical full-block secrets the lenient decoder matches
	// RFC 4648, so our codes must agree with pquerna/otp everywhere.
	secrets := []string{rfcSecret, "JBSWY3DPEHPK3PXP", "MFRGGZDFMZTWQ2LK"}
	times := []int64{59, 1111111109, 1234567890, 1700000000, 2000000000}

	for _, s := range secrets {
		for _, at := range times {
			want, err := pqtotp.GenerateCodeCustom(s, time.Unix(at, 0), pqtotp.ValidateOpts{
				Period:    30,
				Digits:    pqotp.DigitsSix,
				Algorithm: pqotp.AlgorithmSHA1,
			})
			require.NoError(t, err, "reference implementation rejected %q", s)

			got, err := GenerateAt(s, 6, 30, time.Unix(at, 0))
			require.NoError(t, err)
			assert.Equal(t, want, got, "disagreement for %q at t=%d", s, at)
		}
	}
}

func TestVerify(t *testing.T) {
	at := time.Unix(1111111109, 0)
	code, err := GenerateAt(rfcSecret, 6, 30, at)
	require.NoError(t, err)

	ok, err := Verify(rfcSecret, code, 6, 30, at, 0)
	require.NoError(t, err)
	assert.True(t, ok, "current code must verify with zero skew")

	// One window later the code only passes with skew.
	later := at.Add(30 * time.Second)
	ok, err = Verify(rfcSecret, code, 6, 30, later, 0)
	require.NoError(t, err)
	assert.False(t, ok, "stale code must fail with zero skew")

	ok, err = Verify(rfcSecret, code, 6, 30, later, 1)
	require.NoError(t, err)
	assert.True(t, ok, "stale code must pass with one window of skew")

	ok, err = Verify(rfcSecret, strings.Repeat("0", 6), 6, 30, at, 1)
	require.NoError(t, err)
	assert.False(t, ok || code == "000000", "wrong code must not verify")

	_, err = Verify("B@D", code, 6, 30, at, 1)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestSecondsRemaining(t *testing.T) {
	assert.Equal(t, 30, SecondsRemaining(30, time.Unix(0, 0)), "full window on the boundary")
	assert.Equal(t, 30, SecondsRemaining(30, time.Unix(60, 0)))
	assert.Equal(t, 1, SecondsRemaining(30, time.Unix(59, 0)), "one second left just before the boundary")
	assert.Equal(t, 29, SecondsRemaining(30, time.Unix(31, 0)))

	prev := SecondsRemaining(30, time.Unix(30, 0))
	for at := int64(31); at < 60; at++ {
		cur := SecondsRemaining(30, time.Unix(at, 0))
		assert.GreaterOrEqual(t, cur, 1)
		assert.LessOrEqual(t, cur, 30)
		assert.Equal(t, prev-1, cur, "remaining must decrease by one each second")
		prev = cur
	}
}
