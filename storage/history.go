package storage

import (
	"errors"
	"fmt"
)

// FindChatPeers returns every user the given user has exchanged at least one
// message with, annotated with the latest exchanged timestamp and ordered
// most recent conversation first.
func (s *Store) FindChatPeers(userID int64) ([]PeerActivity, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}

	rows, err := s.db.Query(
		`SELECT peer_id, MAX(sent_at) AS last_message_time
		FROM (
			SELECT
				CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id,
				sent_at
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
		)
		GROUP BY peer_id
		ORDER BY last_message_time DESC, peer_id ASC`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("find chat peers for user %d: %w", userID, err)
	}
	defer rows.Close()

	peers := make([]PeerActivity, 0)
	for rows.Next() {
		var peer PeerActivity
		if err := rows.Scan(&peer.PeerID, &peer.LastMessageTime); err != nil {
			return nil, fmt.Errorf("scan chat peer row: %w", err)
		}
		peers = append(peers, peer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat peer rows: %w", err)
	}

	return peers, nil
}
