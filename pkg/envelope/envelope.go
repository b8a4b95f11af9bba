// SPDX-License-Identifier: MPL-2.0

package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// NonceSize is the length of the random nonce that prefixes a sealed payload.
	NonceSize = 16
	// TagSize is the length of the authentication tag that follows the nonce.
	TagSize = 16
	// Overhead is the number of bytes Seal adds to a payload.
	Overhead = NonceSize + TagSize

	keySize  = 32
	hkdfInfo = "zimp envelope v1"
)

// ErrAuthentication is returned when a sealed payload does not verify
// against the supplied key. No plaintext is ever returned alongside it.
var ErrAuthentication = errors.New("envelope authentication failed")

// randReader is swapped by tests that need deterministic nonces.
var randReader io.Reader = rand.Reader

// Seal encrypts payload under key. An absent key returns payload unchanged.
func Seal(payload, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return payload, nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, Overhead+len(payload))
	if _, err := io.ReadFull(randReader, out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM appends the tag to the ciphertext; the envelope puts it first.
	sealed := aead.Seal(nil, out[:NonceSize], payload, nil)
	ciphertext, tag := sealed[:len(payload)], sealed[len(payload):]
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open decrypts a blob produced by Seal. An absent key returns blob
// unchanged. A short, corrupted or foreign blob fails with ErrAuthentication.
func Open(blob, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return blob, nil
	}
	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: payload is %d bytes, shorter than the %d byte envelope", ErrAuthentication, len(blob), Overhead)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := blob[:NonceSize]
	tag := blob[NonceSize:Overhead]
	ciphertext := blob[Overhead:]

	joined := make([]byte, 0, len(ciphertext)+TagSize)
	joined = append(joined, ciphertext...)
	joined = append(joined, tag...)

	// a non-nil destination keeps an empty payload empty rather than nil
	plaintext, err := aead.Open(make([]byte, 0, len(ciphertext)), nonce, joined, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// newAEAD derives the AES-256 key from the opaque key material so that key
// files of any length can be used.
func newAEAD(key []byte) (cipher.AEAD, error) {
	derived := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(hkdfInfo)), derived); err != nil {
		return nil, fmt.Errorf("failed to derive envelope key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	return aead, nil
}
