package models

const (
	// MessageTypeText marks a plain text chat message.
	MessageTypeText = "TEXT"
	// MessageTypeFile marks a message carrying an attachment reference.
	MessageTypeFile = "FILE"
)

const (
	// StatusSent is the initial delivery state of every message.
	StatusSent = "SENT"
	// StatusDelivered means the receiver's client acknowledged arrival.
	StatusDelivered = "DELIVERED"
	// StatusRead means the receiver opened the conversation.
	StatusRead = "READ"
)

// Message is a stored chat message. Content is never present in plaintext:
// each party decrypts its own ciphertext copy with its private key.
type Message struct {
	MessageID             string `json:"message_id"`
	SenderID              int64  `json:"sender_id"`
	ReceiverID            int64  `json:"receiver_id"`
	IsEncrypted           bool   `json:"is_encrypted"`
	CiphertextForSender   string `json:"ciphertext_for_sender"`
	CiphertextForReceiver string `json:"ciphertext_for_receiver"`
	MessageType           string `json:"message_type"`
	AttachmentRef         string `json:"attachment_ref,omitempty"`
	SentAt                int64  `json:"sent_at"`
}

// DecryptedMessage is a message annotated with the plaintext recovered for
// one authorized participant. It only ever travels back to that participant.
type DecryptedMessage struct {
	Message
	Content string `json:"content"`
}

// DeliveryStatus is the lifecycle record attached 1:1 to a message.
// UserID is the sending user, the owner of the status row.
type DeliveryStatus struct {
	MessageID   string `json:"message_id"`
	UserID      int64  `json:"user_id"`
	ReceiverID  int64  `json:"receiver_id"`
	Status      string `json:"status"`
	SentAt      int64  `json:"sent_at"`
	DeliveredAt *int64 `json:"delivered_at,omitempty"`
	ReadAt      *int64 `json:"read_at,omitempty"`
}
