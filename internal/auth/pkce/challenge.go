// Package pkce implements the native Authorization-Code + PKCE flow: a
// loopback redirect listener stands in for the platform deep link, the system
// browser carries the user through consent, and the code is exchanged
// together with the verifier at the token endpoint.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// verifierLength is the fixed code verifier length in characters.
const verifierLength = 64

// verifierCharset is the RFC 7636 unreserved character set.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// challenge is the ephemeral PKCE triple for a single authorization attempt.
// It is generated fresh per attempt, never persisted, and discarded when the
// attempt ends regardless of outcome.
type challenge struct {
	Verifier      string
	CodeChallenge string
	State         string
}

// newChallenge generates a verifier, its S256 challenge, and an unguessable
// state value from a cryptographically secure source.
func newChallenge() (*challenge, error) {
	verifier := make([]byte, verifierLength)
	max := big.NewInt(int64(len(verifierCharset)))
	for i := range verifier {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code verifier: %w", err)
		}
		verifier[i] = verifierCharset[n.Int64()]
	}

	sum := sha256.Sum256(verifier)

	state := make([]byte, 32)
	if _, err := rand.Read(state); err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	return &challenge{
		Verifier:      string(verifier),
		CodeChallenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		State:         base64.RawURLEncoding.EncodeToString(state),
	}, nil
}
