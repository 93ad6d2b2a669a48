package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/farmgate/core"
)

const DefaultAudience = "farmgate:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey  *ecdsa.PrivateKey
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, audience string, ttl time.Duration) *JWTTokenizer {
	if audience == "" {
		audience = DefaultAudience
	}
	return &JWTTokenizer{
		signKey:  signKey,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for issuing and validating tokens
func (j *JWTTokenizer) SetClock(now func() time.Time) {
	j.now = now
}

// LoadSigningKey parses a PEM encoded P-256 private key. An empty value
// generates an ephemeral key; tokens then do not survive a restart.
func LoadSigningKey(pemKey string) (*ecdsa.PrivateKey, bool, error) {
	if pemKey == "" {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate signing key: %w", err)
		}
		return key, true, nil
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, false, nil
}

// IdentityToToken issues a session token for a verified identity
func (j *JWTTokenizer) IdentityToToken(identity *core.Identity) (*core.Session, error) {
	now := j.now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   identity.WalletAddress,
		IssuedAt:  now,
		ExpiresAt: now.Add(j.ttl),
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{j.audience},
		},
		VerifiedAt: identity.VerifiedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	session.Token = signedToken
	return session, nil
}

// TokenToSession parses a session token and returns the associated session
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(j.audience), jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}

	// Validate token
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	// Extract claims
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("missing time claims: %w", core.ErrInvalidToken)
	}

	return &core.Session{
		ID:        claims.ID,
		Address:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Token:     tokenStr,
	}, nil
}
