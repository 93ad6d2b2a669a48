package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress("0xABCDEF0123456789abcdef0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", addr)
	assert.Len(t, addr, AddressLength)

	for _, bad := range []string{
		"",
		"0x",
		"abcdef0123456789abcdef0123456789abcdef0101",
		"0xabcdef0123456789abcdef0123456789abcdef0",
		"0xabcdef0123456789abcdef0123456789abcdef012",
		"0xzzcdef0123456789abcdef0123456789abcdef01",
	} {
		_, err := NormalizeAddress(bad)
		assert.True(t, errors.Is(err, ErrMalformedInput), "address %q", bad)
	}
}

func TestValidateSignature(t *testing.T) {
	good := "0x" + strings.Repeat("ab", 65)
	assert.Len(t, good, SignatureLength)
	assert.NoError(t, ValidateSignature(good))

	assert.ErrorIs(t, ValidateSignature(good[:131]), ErrMalformedInput)
	assert.ErrorIs(t, ValidateSignature(strings.Repeat("ab", 66)), ErrMalformedInput)
	assert.ErrorIs(t, ValidateSignature("0x"+strings.Repeat("g", 130)), ErrMalformedInput)
}

func TestValidateNonce(t *testing.T) {
	assert.NoError(t, ValidateNonce(strings.Repeat("a", MinNonceLength)))
	assert.NoError(t, ValidateNonce(strings.Repeat("F", MaxNonceLength)))
	assert.ErrorIs(t, ValidateNonce(strings.Repeat("a", MinNonceLength-1)), ErrMalformedInput)
	assert.ErrorIs(t, ValidateNonce(strings.Repeat("a", MaxNonceLength+1)), ErrMalformedInput)
	assert.ErrorIs(t, ValidateNonce("nonce with spaces!!"), ErrMalformedInput)
}

func TestVerifyRequestValidate(t *testing.T) {
	req := VerifyRequest{
		Address:   "0xABCDEF0123456789abcdef0123456789ABCDEF01",
		Nonce:     strings.Repeat("0", 64),
		Signature: "0x" + strings.Repeat("1", 130),
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", req.Address)

	req.Signature = "0x1234"
	assert.ErrorIs(t, req.Validate(), ErrMalformedInput)
}

func TestChallengeMessage(t *testing.T) {
	msg := ChallengeMessage("Sign in to FarmGate", "0xABCDEF0123456789abcdef0123456789ABCDEF01", "n1")
	assert.Equal(t, "Sign in to FarmGate\n\nWallet: 0xabcdef0123456789abcdef0123456789abcdef01\nNonce: n1", msg)

	other := ChallengeMessage("Sign in to FarmGate", "0xabcdef0123456789abcdef0123456789abcdef01", "n2")
	assert.NotEqual(t, msg, other)
}

func TestRateLimitRecordWindow(t *testing.T) {
	rec := RateLimitRecord{WindowMs: 60_000}
	start := rec.FirstAttempt
	assert.False(t, rec.Elapsed(start))
	assert.False(t, rec.Elapsed(start.Add(59_999_000_000)))
	assert.False(t, rec.Elapsed(start.Add(-1)))
	assert.True(t, rec.Elapsed(rec.WindowEnd()))
	assert.True(t, rec.Elapsed(start.Add(61_000_000_000)))
}
