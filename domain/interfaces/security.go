package interfaces

// SecretVerifier checks the credential presented to the dispatch boundary
type SecretVerifier interface {
	Verify(secret string) bool
}
