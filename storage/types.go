package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

const (
	messageTypeText = "TEXT"
	messageTypeFile = "FILE"
)

const (
	statusSent      = "SENT"
	statusDelivered = "DELIVERED"
	statusRead      = "READ"
)

// KeyPair is the SQLite representation of one user's keypair.
type KeyPair struct {
	UserID     int64
	PublicKey  string
	PrivateKey string
	CreatedAt  int64
}

// Message is the SQLite representation of a chat message. Seq is the
// insertion counter used as the stable tiebreak for equal sent timestamps.
type Message struct {
	Seq                   int64
	MessageID             string
	SenderID              int64
	ReceiverID            int64
	IsEncrypted           bool
	CiphertextForSender   string
	CiphertextForReceiver string
	MessageType           string
	AttachmentRef         string
	SentAt                int64
}

// DeliveryStatus is the SQLite representation of a message's lifecycle row.
type DeliveryStatus struct {
	MessageID   string
	UserID      int64
	ReceiverID  int64
	Status      string
	SentAt      int64
	DeliveredAt *int64
	ReadAt      *int64
}

// PeerActivity pairs a conversation peer with its latest message timestamp.
type PeerActivity struct {
	PeerID          int64
	LastMessageTime int64
}

func validateMessageType(messageType string) error {
	switch messageType {
	case messageTypeText, messageTypeFile:
		return nil
	default:
		return fmt.Errorf("invalid message type %q", messageType)
	}
}

func validateStatus(status string) error {
	switch status {
	case statusSent, statusDelivered, statusRead:
		return nil
	default:
		return fmt.Errorf("invalid delivery status %q", status)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func nullInt64(ptr *int64) sql.NullInt64 {
	if ptr == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ptr, Valid: true}
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	value := ni.Int64
	return &value
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
