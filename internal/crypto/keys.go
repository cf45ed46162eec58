package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the snapshot encryption key from the
// user's backup password. The salt is generated fresh per encryption and
// travels inside the envelope, so repeated encryptions of identical input
// never share a key stream.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = 4

	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the per-envelope salt length in bytes.
	SaltSize = 16
)

// GenerateSalt returns a cryptographically random salt of SaltSize bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte encryption key from a password and salt using
// Argon2id.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, KeySize), nil
}
