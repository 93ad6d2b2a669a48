package ports

// SignatureVerifier checks that signature was produced by address over message
type SignatureVerifier interface {
	Verify(address, message, signature string) (bool, error)
}
