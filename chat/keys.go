package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"cipherchat/crypto"
	"cipherchat/models"
	"cipherchat/storage"
)

// KeyService owns per-user keypairs. It is the sole source of key material:
// the crypto package never caches keys and nothing else reads the key rows.
type KeyService struct {
	store *storage.Store
}

// NewKeyService wires the key store.
func NewKeyService(store *storage.Store) *KeyService {
	return &KeyService{store: store}
}

// GenerateKeys creates a fresh keypair for a user, replacing any prior pair.
// The returned pair includes the private key: this is the one owner-scoped
// response allowed to carry it.
func (k *KeyService) GenerateKeys(ctx context.Context, userID int64) (*models.KeyPair, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	record := storage.KeyPair{
		UserID:     userID,
		PublicKey:  pair.PublicKey,
		PrivateKey: pair.PrivateKey,
	}
	if err := k.store.SaveKeyPair(record); err != nil {
		return nil, fmt.Errorf("persist keypair for user %d: %w", userID, err)
	}

	stored, err := k.store.GetKeyPair(userID)
	if err != nil {
		return nil, fmt.Errorf("reload keypair for user %d: %w", userID, err)
	}

	logrus.WithField("user_id", userID).Info("generated keypair")

	return &models.KeyPair{
		UserID:     stored.UserID,
		PublicKey:  stored.PublicKey,
		PrivateKey: stored.PrivateKey,
		CreatedAt:  stored.CreatedAt,
	}, nil
}

// GetPublicKey returns a user's public key, reporting absence without error.
func (k *KeyService) GetPublicKey(ctx context.Context, userID int64) (string, bool, error) {
	if userID <= 0 {
		return "", false, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}

	pair, err := k.store.GetKeyPair(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get public key for user %d: %w", userID, err)
	}

	return pair.PublicKey, true, nil
}

// GetPrivateKey returns a user's private key to that user only. The identity
// check lives here so the contract cannot be weakened by any caller.
func (k *KeyService) GetPrivateKey(ctx context.Context, requesterID, userID int64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("%w: user id must be positive", ErrValidation)
	}
	if requesterID != userID {
		return "", fmt.Errorf("%w: private key of user %d requested by user %d", ErrForbidden, userID, requesterID)
	}

	pair, err := k.store.GetKeyPair(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: no keypair for user %d", ErrKeyNotFound, userID)
		}
		return "", fmt.Errorf("get private key for user %d: %w", userID, err)
	}

	return pair.PrivateKey, nil
}
