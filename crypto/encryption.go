// Package crypto implements the asymmetric message encryption scheme:
// anonymous sealed boxes over Curve25519. A message encrypted against a
// user's public key is recoverable only with that user's private key; the
// encryptor keeps no decryption capability.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// MaxPlaintextSize bounds a single message payload. Inputs beyond this
// limit are rejected before any key material is touched.
const MaxPlaintextSize = 64 * 1024

var (
	// ErrKeyGeneration indicates the underlying primitive failed to
	// produce a keypair.
	ErrKeyGeneration = errors.New("crypto: key generation failed")
	// ErrEncryption indicates a malformed public key or oversized input.
	ErrEncryption = errors.New("crypto: encryption failed")
	// ErrDecryption indicates the ciphertext was not produced for the
	// given key or is corrupted.
	ErrDecryption = errors.New("crypto: decryption failed")
)

// Encrypt seals plaintext against a base64 public key and returns the
// base64 ciphertext. Stateless: callers supply the key on every call.
func Encrypt(plaintext, publicKey string) (string, error) {
	if len(plaintext) > MaxPlaintextSize {
		return "", fmt.Errorf("%w: plaintext size %d exceeds limit %d", ErrEncryption, len(plaintext), MaxPlaintextSize)
	}

	pub, err := decodeKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("%w: public key: %v", ErrEncryption, err)
	}

	sealed, err := box.SealAnonymous(nil, []byte(plaintext), pub, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("%w: seal: %v", ErrEncryption, err)
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 ciphertext with a base64 private key. The public
// half is derived from the private key, so possession of the private key
// is the only requirement.
func Decrypt(ciphertext, privateKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", ErrDecryption, err)
	}
	if len(raw) < box.AnonymousOverhead {
		return "", fmt.Errorf("%w: ciphertext size %d below sealed-box overhead %d", ErrDecryption, len(raw), box.AnonymousOverhead)
	}

	priv, err := decodeKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: private key: %v", ErrDecryption, err)
	}

	derived, err := PublicKeyFromPrivate(privateKey)
	if err != nil {
		return "", err
	}
	pub, err := decodeKey(derived)
	if err != nil {
		return "", fmt.Errorf("%w: derived public key: %v", ErrDecryption, err)
	}

	plaintext, ok := box.OpenAnonymous(nil, raw, pub, priv)
	if !ok {
		return "", fmt.Errorf("%w: ciphertext does not match key", ErrDecryption)
	}

	return string(plaintext), nil
}
