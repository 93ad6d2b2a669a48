package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned when an identifier exceeded its attempt budget
	ErrRateLimited = errors.New("too many attempts")

	// ErrInvalidNonce is returned when a nonce is missing, expired or reused
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrInvalidSignature is returned when a signature does not match the address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMalformedInput is returned when a request cannot be parsed at all
	ErrMalformedInput = errors.New("malformed input")

	// ErrStorageUnavailable is returned when the backing store failed or timed out
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrNonceNotFound = errors.New("nonce not found")
	ErrNonceExpired  = errors.New("nonce expired")
	ErrNonceUsed     = errors.New("nonce already used")

	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)

// RateLimitError is returned when a limiter scope blocked the request
type RateLimitError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s scope, retry after %s", ErrRateLimited, e.Scope, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
