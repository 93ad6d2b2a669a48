package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/farmgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenizer(t *testing.T, audience string) *JWTTokenizer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewJWTTokenizer(key, audience, time.Hour)
}

func TestTokenRoundTrip(t *testing.T) {
	tok := newTestTokenizer(t, "")
	identity := &core.Identity{WalletAddress: "0xabcdef0123456789abcdef0123456789abcdef01", VerifiedAt: time.Now()}

	session, err := tok.IdentityToToken(identity)
	require.NoError(t, err)
	assert.Equal(t, identity.WalletAddress, session.Address)
	assert.Equal(t, time.Hour, session.ExpiresAt.Sub(session.IssuedAt))

	parsed, err := tok.TokenToSession(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, parsed.ID)
	assert.Equal(t, session.Address, parsed.Address)
	assert.Equal(t, session.ExpiresAt.Unix(), parsed.ExpiresAt.Unix())

	claims := &SessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(session.Token, claims)
	require.NoError(t, err)
	assert.Equal(t, jwt.ClaimStrings{DefaultAudience}, claims.Audience)
	assert.Equal(t, identity.VerifiedAt.Unix(), claims.VerifiedAt)
}

func TestTokenExpired(t *testing.T) {
	tok := newTestTokenizer(t, "farmgate:test")
	start := time.Now()
	tok.SetClock(func() time.Time { return start })

	session, err := tok.IdentityToToken(&core.Identity{WalletAddress: "0xabc", VerifiedAt: start})
	require.NoError(t, err)

	tok.SetClock(func() time.Time { return start.Add(2 * time.Hour) })
	_, err = tok.TokenToSession(session.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestTokenRejected(t *testing.T) {
	tok := newTestTokenizer(t, "farmgate:test")
	session, err := tok.IdentityToToken(&core.Identity{WalletAddress: "0xabc", VerifiedAt: time.Now()})
	require.NoError(t, err)

	other := newTestTokenizer(t, "farmgate:test")
	_, err = other.TokenToSession(session.Token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	wrongAudience := newTestTokenizer(t, "somebody-else")
	wrongAudience.signKey = tok.signKey
	_, err = wrongAudience.TokenToSession(session.Token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "0xabc"})
	signed, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tok.TokenToSession(signed)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tok.TokenToSession("garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestLoadSigningKey(t *testing.T) {
	key, ephemeral, err := LoadSigningKey("")
	require.NoError(t, err)
	assert.True(t, ephemeral)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	loaded, ephemeral, err := LoadSigningKey(string(pemKey))
	require.NoError(t, err)
	assert.False(t, ephemeral)
	assert.True(t, key.Equal(loaded))

	_, _, err = LoadSigningKey("not a pem")
	assert.Error(t, err)
}
