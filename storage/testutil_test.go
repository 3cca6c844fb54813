package storage

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustSaveMessage(t *testing.T, store *Store, messageID string, senderID, receiverID, sentAt int64) *Message {
	t.Helper()

	stored, err := store.SaveMessageWithStatus(Message{
		MessageID:             messageID,
		SenderID:              senderID,
		ReceiverID:            receiverID,
		IsEncrypted:           true,
		CiphertextForSender:   "ct-sender-" + messageID,
		CiphertextForReceiver: "ct-receiver-" + messageID,
		SentAt:                sentAt,
	}, DeliveryStatus{})
	if err != nil {
		t.Fatalf("save message %q: %v", messageID, err)
	}

	return stored
}
