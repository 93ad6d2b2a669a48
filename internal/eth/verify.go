package eth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/farmgate/core"
)

// Verifier checks EIP-191 personal_sign signatures
type Verifier struct{}

// NewVerifier creates a new signature verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify reports whether signature over message was produced by address.
// Only a signature that is not hex at all is reported as an error.
func (v *Verifier) Verify(address, message, signature string) (bool, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", core.ErrMalformedInput)
	}
	if !common.IsHexAddress(address) {
		return false, nil
	}

	return VerifySignatureAgainstAddress([]byte(message), sig, common.HexToAddress(address))
}

// VerifySignatureAgainstAddress recovers the signer of message and compares it
// to expected. A malformed signature is reported as a mismatch.
func VerifySignatureAgainstAddress(message, sig []byte, expected common.Address) (bool, error) {
	pub, err := RecoverPublicKey(message, sig)
	if err != nil {
		return false, nil
	}
	return crypto.PubkeyToAddress(*pub) == expected, nil
}

// RecoverPublicKey returns the key that signed the EIP-191 hash of message
func RecoverPublicKey(message, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	// wallets emit v as 27/28, go-ethereum expects 0/1
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return nil, fmt.Errorf("invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to recover public key: %w", err)
	}
	return pub, nil
}
