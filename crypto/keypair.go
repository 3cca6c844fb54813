package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the byte length of both public and private keys.
const KeySize = 32

// KeyPair is a freshly generated sealed-box keypair, base64 encoded.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeyPair creates a new random keypair for the sealed-box scheme.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate keypair: %v", ErrKeyGeneration, err)
	}

	return &KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(publicKey[:]),
		PrivateKey: base64.StdEncoding.EncodeToString(privateKey[:]),
	}, nil
}

// PublicKeyFromPrivate derives the public half of a private key.
func PublicKeyFromPrivate(privateKey string) (string, error) {
	priv, err := decodeKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: private key: %v", ErrDecryption, err)
	}

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("%w: derive public key: %v", ErrDecryption, err)
	}

	return base64.StdEncoding.EncodeToString(pub), nil
}

func decodeKey(encoded string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %v", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("invalid key size %d, want %d", len(raw), KeySize)
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}
