package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveKeyPair inserts or replaces the keypair row for a user.
// Regeneration overwrites: exactly one active keypair per user.
func (s *Store) SaveKeyPair(pair KeyPair) error {
	if pair.UserID <= 0 {
		return errors.New("user_id is required")
	}
	if pair.PublicKey == "" {
		return errors.New("public_key is required")
	}
	if pair.PrivateKey == "" {
		return errors.New("private_key is required")
	}
	if pair.CreatedAt == 0 {
		pair.CreatedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO keypairs (user_id, public_key, private_key, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			public_key = excluded.public_key,
			private_key = excluded.private_key,
			created_at = excluded.created_at`,
		pair.UserID,
		pair.PublicKey,
		pair.PrivateKey,
		pair.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save keypair for user %d: %w", pair.UserID, err)
	}

	return nil
}

// GetKeyPair fetches the keypair row for a user.
func (s *Store) GetKeyPair(userID int64) (*KeyPair, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}

	row := s.db.QueryRow(
		`SELECT user_id, public_key, private_key, created_at
		FROM keypairs
		WHERE user_id = ?`,
		userID,
	)

	var pair KeyPair
	if err := row.Scan(&pair.UserID, &pair.PublicKey, &pair.PrivateKey, &pair.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get keypair for user %d: %w", userID, err)
	}

	return &pair, nil
}
