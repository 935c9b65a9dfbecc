package security

import (
	"crypto/sha256"
	"crypto/subtle"

	"quizsolver/domain/interfaces"
)

// SecretVerifier compares presented secrets with the configured one in constant time
type SecretVerifier struct {
	digest [sha256.Size]byte
}

// NewSecretVerifier - creates verifier; an empty secret rejects everything.
// Rejections are not logged here; the caller reports them with request context.
func NewSecretVerifier(secret string) *SecretVerifier {
	v := &SecretVerifier{}
	if secret != "" {
		v.digest = sha256.Sum256([]byte(secret))
	}
	return v
}

// Verify - reports whether secret matches
func (v *SecretVerifier) Verify(secret string) bool {
	if secret == "" || v.digest == [sha256.Size]byte{} {
		return false
	}
	presented := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(presented[:], v.digest[:]) == 1
}

// Ensure SecretVerifier implements SecretVerifier interface
var _ interfaces.SecretVerifier = (*SecretVerifier)(nil)
