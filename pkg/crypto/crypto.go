// Package crypto provides the cryptographic primitives for pman vaults.
//
// Keys are derived from the master password with PBKDF2-HMAC-SHA256 and
// vault contents are sealed into Fernet tokens (AES-128-CBC with an
// HMAC-SHA256 tag over version, timestamp, IV and ciphertext).
//
// # Security Features
//
//   - PBKDF2-HMAC-SHA256 key derivation, 2,000,000 iterations by default
//   - 18-byte per-vault salt from crypto/rand
//   - Fresh random IV for every sealed token
//   - Encrypt-then-MAC with constant-time tag verification
//
// # Example Usage
//
//	salt, err := crypto.GenerateSalt()
//	key, err := crypto.DeriveKey([]byte("password"), salt, crypto.DefaultIterations)
//
//	token, err := crypto.Seal(key, plaintext)
//	plaintext, err := crypto.Open(key, token)
//
//	crypto.SecureWipe(key)
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters.
const (
	// SaltLength is the length of a vault salt in bytes.
	SaltLength = 18

	// KeyLength is the length of a derived key in bytes. The first half
	// signs tokens, the second half is the AES-128 encryption key.
	KeyLength = 32

	// DefaultIterations is the PBKDF2 iteration count used for new vaults.
	// Roughly 3x the OWASP 2023 floor for PBKDF2-HMAC-SHA256 and far above
	// the NIST SP 800-132 minimum of 1,000.
	DefaultIterations = 2_000_000

	// MinIterations is the lowest iteration count accepted from configuration.
	MinIterations = 600_000
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidSaltLength indicates the salt is not 18 bytes.
	ErrInvalidSaltLength = errors.New("crypto: invalid salt length, must be 18 bytes")

	// ErrInvalidIterations indicates a non-positive iteration count.
	ErrInvalidIterations = errors.New("crypto: iteration count must be positive")

	// ErrDecryptionFailed indicates the token could not be authenticated or decrypted.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, token authentication failed")
)

// GenerateSalt returns SaltLength bytes from a cryptographically secure source.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 256-bit key from a password using PBKDF2-HMAC-SHA256.
//
// The same password, salt and iteration count always produce the same key.
// The iteration count is not recorded in the vault, so it must not change
// for the lifetime of a vault.
func DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	if iterations < 1 {
		return nil, ErrInvalidIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeyLength, sha256.New), nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
