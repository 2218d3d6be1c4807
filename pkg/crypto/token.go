package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Token layout constants (Fernet, version 0x80).
const (
	// TokenVersion is the first byte of every token.
	TokenVersion byte = 0x80

	// IVLength is the length of the AES-CBC initialization vector.
	IVLength = aes.BlockSize

	// TagLength is the length of the HMAC-SHA256 tag.
	TagLength = sha256.Size

	timestampLength = 8
	headerLength    = 1 + timestampLength + IVLength

	// minTokenLength is a header, one cipher block and a tag.
	minTokenLength = headerLength + aes.BlockSize + TagLength
)

// tokenEncoding rejects non-zero padding bits so every encoded byte is significant.
var tokenEncoding = base64.URLEncoding.Strict()

// Seal encrypts plaintext into a base64url encoded Fernet token.
//
// The first 16 bytes of key sign the token and the last 16 bytes are the
// AES-128 key. A random IV is generated for every call.
func Seal(key, plaintext []byte) ([]byte, error) {
	return seal(key, plaintext, time.Now())
}

func seal(key, plaintext []byte, now time.Time) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	signingKey, encryptionKey := key[:KeyLength/2], key[KeyLength/2:]

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	padded := pad(plaintext)
	raw := make([]byte, headerLength+len(padded), headerLength+len(padded)+TagLength)
	raw[0] = TokenVersion
	binary.BigEndian.PutUint64(raw[1:1+timestampLength], uint64(now.Unix()))

	iv := raw[1+timestampLength : headerLength]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate IV: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(raw[headerLength:], padded)
	raw = append(raw, computeTag(signingKey, raw)...)

	token := make([]byte, tokenEncoding.EncodedLen(len(raw)))
	tokenEncoding.Encode(token, raw)
	return token, nil
}

// Open authenticates and decrypts a token produced by Seal.
//
// The tag is verified before any decryption takes place. Every failure,
// whether malformed input, a wrong key or tampering, returns ErrDecryptionFailed.
func Open(key, token []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	signingKey, encryptionKey := key[:KeyLength/2], key[KeyLength/2:]

	// the decoder skips newlines; a token containing one is not canonical
	if bytes.ContainsAny(token, "\r\n") {
		return nil, ErrDecryptionFailed
	}
	raw := make([]byte, tokenEncoding.DecodedLen(len(token)))
	n, err := tokenEncoding.Decode(raw, token)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	raw = raw[:n]

	if len(raw) < minTokenLength || raw[0] != TokenVersion {
		return nil, ErrDecryptionFailed
	}
	body, tag := raw[:len(raw)-TagLength], raw[len(raw)-TagLength:]
	if !hmac.Equal(computeTag(signingKey, body), tag) {
		return nil, ErrDecryptionFailed
	}

	ciphertext := body[headerLength:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, body[1+timestampLength:headerLength]).CryptBlocks(plaintext, ciphertext)

	plaintext, ok := unpad(plaintext)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func computeTag(signingKey, data []byte) []byte {
	h := hmac.New(sha256.New, signingKey)
	h.Write(data)
	return h.Sum(nil)
}

// pad applies PKCS#7 padding to a whole number of AES blocks.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(data []byte) ([]byte, bool) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
