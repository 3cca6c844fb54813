package models

// ConversationSummary is a derived per-peer rollup used to render a chat
// list: who the peer is, plus preview and time of the most recent message.
type ConversationSummary struct {
	PeerUserID         int64  `json:"peer_user_id"`
	PeerFirstName      string `json:"peer_first_name"`
	PeerLastName       string `json:"peer_last_name"`
	LastMessagePreview string `json:"last_message_preview"`
	LastMessageTime    int64  `json:"last_message_time,omitempty"`
}

// TypingEvent signals that one user is typing to another.
type TypingEvent struct {
	SenderID   int64 `json:"sender_id"`
	ReceiverID int64 `json:"receiver_id"`
	Typing     bool  `json:"typing"`
}
