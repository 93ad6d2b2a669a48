package core

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	AddressLength   = 42
	SignatureLength = 132
	MinNonceLength  = 16
	MaxNonceLength  = 64
)

var (
	addressPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	signaturePattern = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)
	noncePattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{16,64}$`)
)

// ChallengeRequest asks for a fresh nonce for Address
type ChallengeRequest struct {
	Address  string
	ClientIP string
}

// VerifyRequest submits a signed challenge
type VerifyRequest struct {
	Address   string
	Nonce     string
	Signature string
	ClientIP  string
}

// NormalizeAddress validates the shape of an address and lowercases it
func NormalizeAddress(address string) (string, error) {
	if !addressPattern.MatchString(address) {
		return "", fmt.Errorf("address must be 0x followed by 40 hex characters: %w", ErrMalformedInput)
	}
	return strings.ToLower(address), nil
}

// ValidateSignature checks the hex shape of a 65 byte signature
func ValidateSignature(signature string) error {
	if !signaturePattern.MatchString(signature) {
		return fmt.Errorf("signature must be 0x followed by 130 hex characters: %w", ErrMalformedInput)
	}
	return nil
}

// ValidateNonce checks the shape of an opaque nonce
func ValidateNonce(nonce string) error {
	if !noncePattern.MatchString(nonce) {
		return fmt.Errorf("nonce must be %d-%d url-safe characters: %w", MinNonceLength, MaxNonceLength, ErrMalformedInput)
	}
	return nil
}

// Validate normalizes the request in place
func (r *ChallengeRequest) Validate() error {
	address, err := NormalizeAddress(r.Address)
	if err != nil {
		return err
	}
	r.Address = address
	return nil
}

// Validate normalizes the request in place
func (r *VerifyRequest) Validate() error {
	address, err := NormalizeAddress(r.Address)
	if err != nil {
		return err
	}
	if err := ValidateNonce(r.Nonce); err != nil {
		return err
	}
	if err := ValidateSignature(r.Signature); err != nil {
		return err
	}
	r.Address = address
	return nil
}

// ChallengeMessage builds the exact text a wallet signs for a nonce.
// The statement separates these signatures from any other protocol.
func ChallengeMessage(statement, address, nonce string) string {
	var b strings.Builder
	b.WriteString(statement)
	b.WriteString("\n\nWallet: ")
	b.WriteString(strings.ToLower(address))
	b.WriteString("\nNonce: ")
	b.WriteString(nonce)
	return b.String()
}
