// Package crypto implements password-based symmetric encryption of snapshot
// payloads. The storage provider only ever sees the output of Encrypt.
//
// Envelope layout, base64 (standard) encoded:
//
//	salt (16 bytes) | nonce (12 bytes) | AES-256-GCM ciphertext + tag
//
// GCM is an authenticated mode, so a wrong password and corrupted ciphertext
// are both reported as ErrDecryptionFailed; callers treat the two uniformly.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// NonceSize is the AES-GCM nonce size in bytes.
const NonceSize = 12

// ErrDecryptionFailed indicates that the ciphertext could not be opened with
// the key derived from the supplied password. A wrong password and corrupted
// data are indistinguishable here.
var ErrDecryptionFailed = errors.New("decryption failed: wrong password or corrupted data")

// Encrypt encrypts plaintext with a key derived from password and returns an
// opaque base64 string. A fresh salt and nonce are generated per call, so the
// result is non-deterministic even for identical inputs.
func Encrypt(plaintext []byte, password string) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("plaintext cannot be empty")
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	key, err := DeriveKey(password, salt)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	envelope := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt reverses Encrypt. It returns ErrDecryptionFailed when the password
// is wrong or the envelope was tampered with past the header.
func Decrypt(encoded string, password string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if len(envelope) < SaltSize+NonceSize {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(envelope))
	}

	salt := envelope[:SaltSize]
	nonce := envelope[SaltSize : SaltSize+NonceSize]
	ciphertext := envelope[SaltSize+NonceSize:]

	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
