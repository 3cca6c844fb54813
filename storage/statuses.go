package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetStatus fetches the delivery status row for a message.
func (s *Store) GetStatus(messageID string) (*DeliveryStatus, error) {
	if messageID == "" {
		return nil, errors.New("message_id is required")
	}

	row := s.db.QueryRow(
		`SELECT message_id, user_id, receiver_id, status, sent_at, delivered_at, read_at
		FROM message_status
		WHERE message_id = ?`,
		messageID,
	)

	status, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get status for message %q: %w", messageID, err)
	}
	return status, nil
}

// CompareAndSetStatus advances a status row only if it still holds the
// expected previous status, so concurrent writers cannot move it backward.
// Non-nil timestamps overwrite; nil ones keep the stored value. Returns
// false when the row was not in the expected status.
func (s *Store) CompareAndSetStatus(messageID, expected, next string, deliveredAt, readAt *int64) (bool, error) {
	if messageID == "" {
		return false, errors.New("message_id is required")
	}
	if err := validateStatus(expected); err != nil {
		return false, err
	}
	if err := validateStatus(next); err != nil {
		return false, err
	}

	res, err := s.db.Exec(
		`UPDATE message_status
		SET status = ?,
			delivered_at = COALESCE(?, delivered_at),
			read_at = COALESCE(?, read_at)
		WHERE message_id = ? AND status = ?`,
		next,
		nullInt64(deliveredAt),
		nullInt64(readAt),
		messageID,
		expected,
	)
	if err != nil {
		return false, fmt.Errorf("update status for message %q: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected for status update %q: %w", messageID, err)
	}

	return rowsAffected > 0, nil
}

// MarkAllDelivered transitions every SENT status targeting a receiver to
// DELIVERED with the given timestamp. Idempotent: rows already advanced are
// untouched. Returns the number of rows transitioned.
func (s *Store) MarkAllDelivered(receiverID int64, deliveredAt int64) (int64, error) {
	if receiverID <= 0 {
		return 0, errors.New("receiver_id is required")
	}
	if deliveredAt == 0 {
		deliveredAt = nowUnixMilli()
	}

	res, err := s.db.Exec(
		`UPDATE message_status
		SET status = ?, delivered_at = ?
		WHERE receiver_id = ? AND status = ?`,
		statusDelivered,
		deliveredAt,
		receiverID,
		statusSent,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all delivered for receiver %d: %w", receiverID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for mark all delivered: %w", err)
	}

	return rowsAffected, nil
}

// CountUnread counts SENT statuses targeting a receiver.
func (s *Store) CountUnread(receiverID int64) (int, error) {
	if receiverID <= 0 {
		return 0, errors.New("receiver_id is required")
	}

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*)
		FROM message_status
		WHERE receiver_id = ? AND status = ?`,
		receiverID,
		statusSent,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread for receiver %d: %w", receiverID, err)
	}

	return count, nil
}

func scanStatus(row scanner) (*DeliveryStatus, error) {
	var (
		status      DeliveryStatus
		deliveredAt sql.NullInt64
		readAt      sql.NullInt64
	)

	if err := row.Scan(
		&status.MessageID,
		&status.UserID,
		&status.ReceiverID,
		&status.Status,
		&status.SentAt,
		&deliveredAt,
		&readAt,
	); err != nil {
		return nil, err
	}

	status.DeliveredAt = int64Ptr(deliveredAt)
	status.ReadAt = int64Ptr(readAt)
	return &status, nil
}
