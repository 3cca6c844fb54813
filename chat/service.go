// Package chat implements the encrypted message pipeline: dual-ciphertext
// sends, the delivery-status state machine, and per-user conversation
// rollups. Persistence and pub/sub are collaborators passed in at
// construction; nothing here holds mutable in-process state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cipherchat/crypto"
	"cipherchat/directory"
	"cipherchat/models"
	"cipherchat/notify"
	"cipherchat/storage"
)

// Config carries the optional behavior knobs of the service.
type Config struct {
	// FallbackPeerID, when positive, is appended as a synthetic
	// conversation entry whenever it is absent from a user's rollup.
	FallbackPeerID int64
	// FallbackPreview is the placeholder preview text of the synthetic
	// entry.
	FallbackPreview string
}

// ChatService is the messaging core. All blocking collaborator calls take
// the request context; cryptographic work is synchronous.
type ChatService struct {
	store     *storage.Store
	keys      *KeyService
	directory directory.Client
	publisher notify.Publisher
	cfg       Config
}

// NewChatService wires the service from its collaborators.
func NewChatService(store *storage.Store, keys *KeyService, dir directory.Client, publisher notify.Publisher, cfg Config) *ChatService {
	return &ChatService{
		store:     store,
		keys:      keys,
		directory: dir,
		publisher: publisher,
		cfg:       cfg,
	}
}

// SendMessage runs the send pipeline: validate, resolve keys, encrypt one
// copy per participant, persist message and SENT status in one transaction,
// then notify the pair topic. A publish failure is logged and never fails
// the call; the persisted message is the durable outcome.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID int64, plaintext, attachmentRef string) (*models.Message, error) {
	if senderID <= 0 || receiverID <= 0 {
		return nil, fmt.Errorf("%w: sender and receiver ids must be positive", ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: sender and receiver must differ", ErrValidation)
	}
	if strings.TrimSpace(plaintext) == "" && attachmentRef == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrValidation)
	}

	senderKey, ok, err := s.keys.GetPublicKey(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: sender %d has no keypair", ErrUserNotFound, senderID)
	}
	receiverKey, ok, err := s.keys.GetPublicKey(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: receiver %d has no keypair", ErrUserNotFound, receiverID)
	}

	ciphertextForReceiver, err := crypto.Encrypt(plaintext, receiverKey)
	if err != nil {
		return nil, err
	}
	ciphertextForSender, err := crypto.Encrypt(plaintext, senderKey)
	if err != nil {
		return nil, err
	}

	messageType := models.MessageTypeText
	if attachmentRef != "" {
		messageType = models.MessageTypeFile
	}

	now := time.Now().UnixMilli()
	stored, err := s.store.SaveMessageWithStatus(storage.Message{
		MessageID:             uuid.NewString(),
		SenderID:              senderID,
		ReceiverID:            receiverID,
		IsEncrypted:           true,
		CiphertextForSender:   ciphertextForSender,
		CiphertextForReceiver: ciphertextForReceiver,
		MessageType:           messageType,
		AttachmentRef:         attachmentRef,
		SentAt:                now,
	}, storage.DeliveryStatus{
		Status: models.StatusSent,
		SentAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	message := messageToModel(stored)
	topic := notify.PairTopic(senderID, receiverID)
	if err := s.publisher.Publish(ctx, topic, message); err != nil {
		logrus.WithFields(logrus.Fields{
			"message_id": message.MessageID,
			"topic":      topic,
		}).WithError(err).Warn("message persisted but realtime publish failed")
	}

	return &message, nil
}

// GetChatHistory returns every message between two users, both directions
// merged, oldest first. Symmetric in its arguments.
func (s *ChatService) GetChatHistory(ctx context.Context, userID1, userID2 int64) ([]models.Message, error) {
	if userID1 <= 0 || userID2 <= 0 {
		return nil, fmt.Errorf("%w: both user ids must be positive", ErrValidation)
	}

	rows, err := s.store.GetChatHistory(userID1, userID2)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	messages := make([]models.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, messageToModel(&rows[i]))
	}
	return messages, nil
}

// NotifyTyping publishes a typing event on the directional typing topic.
func (s *ChatService) NotifyTyping(ctx context.Context, event models.TypingEvent) error {
	if event.SenderID <= 0 || event.ReceiverID <= 0 {
		return fmt.Errorf("%w: sender and receiver ids must be positive", ErrValidation)
	}

	topic := notify.TypingTopic(event.ReceiverID, event.SenderID)
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		logrus.WithField("topic", topic).WithError(err).Warn("typing publish failed")
	}
	return nil
}

const statusUpdateRetries = 3

// UpdateStatus advances a message's delivery status. Transitions are
// monotonic: SENT to DELIVERED or READ, DELIVERED to READ. Re-applying the
// current DELIVERED or READ status refreshes its timestamp; a backward
// transition is ignored and the current row returned. Concurrent updates
// are serialized by a compare-and-set at the storage layer.
func (s *ChatService) UpdateStatus(ctx context.Context, messageID, newStatus string) (*models.DeliveryStatus, error) {
	if messageID == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrValidation)
	}
	rank, ok := statusRank(newStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	for attempt := 0; attempt < statusUpdateRetries; attempt++ {
		current, err := s.store.GetStatus(messageID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: message %q", ErrMessageNotFound, messageID)
			}
			return nil, fmt.Errorf("load status: %w", err)
		}

		currentRank, _ := statusRank(current.Status)
		if rank < currentRank || newStatus == models.StatusSent {
			// Backward or re-applied SENT: nothing to write.
			status := statusToModel(current)
			return &status, nil
		}

		now := time.Now().UnixMilli()
		var deliveredAt, readAt *int64
		switch newStatus {
		case models.StatusDelivered:
			deliveredAt = &now
		case models.StatusRead:
			readAt = &now
		}

		applied, err := s.store.CompareAndSetStatus(messageID, current.Status, newStatus, deliveredAt, readAt)
		if err != nil {
			return nil, fmt.Errorf("advance status: %w", err)
		}
		if applied {
			updated, err := s.store.GetStatus(messageID)
			if err != nil {
				return nil, fmt.Errorf("reload status: %w", err)
			}
			status := statusToModel(updated)
			return &status, nil
		}
		// A concurrent writer moved the row; re-read and re-evaluate.
	}

	return nil, fmt.Errorf("advance status for message %q: too many concurrent updates", messageID)
}

// MarkAllDelivered moves every SENT message targeting the user to DELIVERED.
// Idempotent; returns the number of rows transitioned.
func (s *ChatService) MarkAllDelivered(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}

	transitioned, err := s.store.MarkAllDelivered(userID, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("mark all delivered: %w", err)
	}
	return transitioned, nil
}

// CountUnread counts messages still in SENT targeting the user.
func (s *ChatService) CountUnread(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}

	count, err := s.store.CountUnread(userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// GetUserChatHistory builds the user's conversation list: one summary per
// peer, most recent conversation first. A peer whose profile the directory
// cannot resolve fails the whole call; callers decide whether to retry or
// degrade.
func (s *ChatService) GetUserChatHistory(ctx context.Context, authToken string, userID int64) ([]models.ConversationSummary, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}

	peers, err := s.store.FindChatPeers(userID)
	if err != nil {
		return nil, fmt.Errorf("find chat peers: %w", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(peers))
	for _, peer := range peers {
		summary, err := s.buildSummary(ctx, authToken, userID, peer)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	if s.cfg.FallbackPeerID > 0 {
		summaries, err = s.appendFallback(ctx, authToken, summaries)
		if err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

func (s *ChatService) buildSummary(ctx context.Context, authToken string, userID int64, peer storage.PeerActivity) (*models.ConversationSummary, error) {
	profile, err := s.resolveProfile(ctx, authToken, peer.PeerID)
	if err != nil {
		return nil, err
	}

	summary := models.ConversationSummary{
		PeerUserID:      peer.PeerID,
		PeerFirstName:   profile.FirstName,
		PeerLastName:    profile.LastName,
		LastMessageTime: peer.LastMessageTime,
	}

	last, err := s.store.GetLatestMessage(userID, peer.PeerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &summary, nil
		}
		return nil, fmt.Errorf("load latest message with peer %d: %w", peer.PeerID, err)
	}

	// The preview must be the copy the requesting user can decrypt.
	if last.SenderID == userID {
		summary.LastMessagePreview = last.CiphertextForSender
	} else {
		summary.LastMessagePreview = last.CiphertextForReceiver
	}
	summary.LastMessageTime = last.SentAt

	return &summary, nil
}

func (s *ChatService) appendFallback(ctx context.Context, authToken string, summaries []models.ConversationSummary) ([]models.ConversationSummary, error) {
	for _, summary := range summaries {
		if summary.PeerUserID == s.cfg.FallbackPeerID {
			return summaries, nil
		}
	}

	profile, err := s.resolveProfile(ctx, authToken, s.cfg.FallbackPeerID)
	if err != nil {
		return nil, err
	}

	return append(summaries, models.ConversationSummary{
		PeerUserID:         s.cfg.FallbackPeerID,
		PeerFirstName:      profile.FirstName,
		PeerLastName:       profile.LastName,
		LastMessagePreview: s.cfg.FallbackPreview,
	}), nil
}

func (s *ChatService) resolveProfile(ctx context.Context, authToken string, userID int64) (*models.UserProfile, error) {
	profile, err := s.directory.GetUserProfile(ctx, authToken, userID)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("resolve profile for user %d: %w", userID, err)
	}
	return profile, nil
}

// DecryptBatch recovers plaintext for the requester's copies of the given
// messages using the requester's stored private key. Messages the requester
// is not part of are refused outright so no other user's plaintext can leak.
func (s *ChatService) DecryptBatch(ctx context.Context, requesterID int64, messages []models.Message) ([]models.DecryptedMessage, error) {
	if requesterID <= 0 {
		return nil, fmt.Errorf("%w: requester id must be positive", ErrValidation)
	}

	pair, err := s.store.GetKeyPair(requesterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: no keypair for user %d", ErrKeyNotFound, requesterID)
		}
		return nil, fmt.Errorf("load keypair for user %d: %w", requesterID, err)
	}

	decrypted := make([]models.DecryptedMessage, 0, len(messages))
	for _, message := range messages {
		var ciphertext string
		switch requesterID {
		case message.SenderID:
			ciphertext = message.CiphertextForSender
		case message.ReceiverID:
			ciphertext = message.CiphertextForReceiver
		default:
			return nil, fmt.Errorf("%w: message %q does not involve user %d", ErrForbidden, message.MessageID, requesterID)
		}

		content, err := crypto.Decrypt(ciphertext, pair.PrivateKey)
		if err != nil {
			return nil, err
		}

		decrypted = append(decrypted, models.DecryptedMessage{
			Message: message,
			Content: content,
		})
	}

	return decrypted, nil
}

func statusRank(status string) (int, bool) {
	switch status {
	case models.StatusSent:
		return 0, true
	case models.StatusDelivered:
		return 1, true
	case models.StatusRead:
		return 2, true
	default:
		return 0, false
	}
}

func messageToModel(m *storage.Message) models.Message {
	return models.Message{
		MessageID:             m.MessageID,
		SenderID:              m.SenderID,
		ReceiverID:            m.ReceiverID,
		IsEncrypted:           m.IsEncrypted,
		CiphertextForSender:   m.CiphertextForSender,
		CiphertextForReceiver: m.CiphertextForReceiver,
		MessageType:           m.MessageType,
		AttachmentRef:         m.AttachmentRef,
		SentAt:                m.SentAt,
	}
}

func statusToModel(st *storage.DeliveryStatus) models.DeliveryStatus {
	return models.DeliveryStatus{
		MessageID:   st.MessageID,
		UserID:      st.UserID,
		ReceiverID:  st.ReceiverID,
		Status:      st.Status,
		SentAt:      st.SentAt,
		DeliveredAt: st.DeliveredAt,
		ReadAt:      st.ReadAt,
	}
}
