package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveMessageWithStatus inserts a message row and its SENT status row in one
// transaction. Either both rows become visible or neither does. Returns the
// stored message with its assigned seq.
func (s *Store) SaveMessageWithStatus(message Message, status DeliveryStatus) (*Message, error) {
	if message.MessageID == "" {
		return nil, errors.New("message_id is required")
	}
	if message.SenderID <= 0 || message.ReceiverID <= 0 {
		return nil, errors.New("sender_id and receiver_id are required")
	}
	if message.SenderID == message.ReceiverID {
		return nil, errors.New("sender_id must differ from receiver_id")
	}
	if message.CiphertextForSender == "" || message.CiphertextForReceiver == "" {
		return nil, errors.New("both ciphertext copies are required")
	}
	if message.MessageType == "" {
		message.MessageType = messageTypeText
	}
	if err := validateMessageType(message.MessageType); err != nil {
		return nil, err
	}
	if message.SentAt == 0 {
		message.SentAt = nowUnixMilli()
	}
	if status.Status == "" {
		status.Status = statusSent
	}
	if err := validateStatus(status.Status); err != nil {
		return nil, err
	}
	if status.SentAt == 0 {
		status.SentAt = message.SentAt
	}

	isEncrypted := 0
	if message.IsEncrypted {
		isEncrypted = 1
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin message transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.Exec(
		`INSERT INTO messages (
			message_id,
			sender_id,
			receiver_id,
			is_encrypted,
			ciphertext_for_sender,
			ciphertext_for_receiver,
			message_type,
			attachment_ref,
			sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID,
		message.SenderID,
		message.ReceiverID,
		isEncrypted,
		message.CiphertextForSender,
		message.CiphertextForReceiver,
		message.MessageType,
		message.AttachmentRef,
		message.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message %q: %w", message.MessageID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read message seq for %q: %w", message.MessageID, err)
	}
	message.Seq = seq

	if _, err := tx.Exec(
		`INSERT INTO message_status (
			message_id,
			user_id,
			receiver_id,
			status,
			sent_at,
			delivered_at,
			read_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID,
		message.SenderID,
		message.ReceiverID,
		status.Status,
		status.SentAt,
		nullInt64(status.DeliveredAt),
		nullInt64(status.ReadAt),
	); err != nil {
		return nil, fmt.Errorf("insert status for message %q: %w", message.MessageID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message transaction: %w", err)
	}

	return &message, nil
}

// GetMessageByID fetches one message by message ID.
func (s *Store) GetMessageByID(messageID string) (*Message, error) {
	if messageID == "" {
		return nil, errors.New("message_id is required")
	}

	row := s.db.QueryRow(
		messageSelectColumns+`
		FROM messages
		WHERE message_id = ?`,
		messageID,
	)

	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message %q: %w", messageID, err)
	}
	return message, nil
}

// GetChatHistory returns all messages exchanged between two users in both
// directions, ordered by sent timestamp ascending with seq as the tiebreak.
func (s *Store) GetChatHistory(userID1, userID2 int64) ([]Message, error) {
	if userID1 <= 0 || userID2 <= 0 {
		return nil, errors.New("both user ids are required")
	}

	rows, err := s.db.Query(
		messageSelectColumns+`
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY sent_at ASC, seq ASC`,
		userID1, userID2,
		userID2, userID1,
	)
	if err != nil {
		return nil, fmt.Errorf("get chat history for users %d and %d: %w", userID1, userID2, err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return messages, nil
}

// GetLatestMessage returns the most recent message between two users, or
// ErrNotFound when they never exchanged one.
func (s *Store) GetLatestMessage(userID1, userID2 int64) (*Message, error) {
	if userID1 <= 0 || userID2 <= 0 {
		return nil, errors.New("both user ids are required")
	}

	row := s.db.QueryRow(
		messageSelectColumns+`
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY sent_at DESC, seq DESC
		LIMIT 1`,
		userID1, userID2,
		userID2, userID1,
	)

	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest message for users %d and %d: %w", userID1, userID2, err)
	}
	return message, nil
}

const messageSelectColumns = `SELECT
			seq,
			message_id,
			sender_id,
			receiver_id,
			is_encrypted,
			ciphertext_for_sender,
			ciphertext_for_receiver,
			message_type,
			attachment_ref,
			sent_at`

func scanMessage(row scanner) (*Message, error) {
	var (
		message     Message
		isEncrypted int
	)

	if err := row.Scan(
		&message.Seq,
		&message.MessageID,
		&message.SenderID,
		&message.ReceiverID,
		&isEncrypted,
		&message.CiphertextForSender,
		&message.CiphertextForReceiver,
		&message.MessageType,
		&message.AttachmentRef,
		&message.SentAt,
	); err != nil {
		return nil, err
	}

	message.IsEncrypted = isEncrypted == 1
	return &message, nil
}
