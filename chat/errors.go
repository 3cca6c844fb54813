package chat

import "errors"

// Caller-fixable and entity-absence failures. Cryptographic failures reuse
// the sentinels from the crypto package.
var (
	// ErrValidation marks input the caller can correct (blank message,
	// bad ids, unknown status value).
	ErrValidation = errors.New("chat: validation failed")
	// ErrUserNotFound marks a missing user or missing keypair for a user.
	ErrUserNotFound = errors.New("chat: user not found")
	// ErrMessageNotFound marks an unknown message id.
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrKeyNotFound marks a missing keypair on a key-scoped operation.
	ErrKeyNotFound = errors.New("chat: key not found")
	// ErrForbidden marks an operation on material the requester does not own.
	ErrForbidden = errors.New("chat: operation not permitted for requester")
)
