package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with session-specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	VerifiedAt int64 `json:"vat"` // unix time the wallet signature was verified
}
