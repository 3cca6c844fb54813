package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cipherchat/crypto"
	"cipherchat/directory"
	"cipherchat/models"
	"cipherchat/storage"
)

type fakeDirectory struct {
	profiles map[int64]models.UserProfile
}

func (f *fakeDirectory) GetUserProfile(ctx context.Context, authToken string, userID int64) (*models.UserProfile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, directory.ErrProfileNotFound
	}
	return &profile, nil
}

type recordedPublish struct {
	Topic   string
	Payload any
}

type fakePublisher struct {
	published []recordedPublish
	fail      bool
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload any) error {
	if f.fail {
		return errors.New("publish transport down")
	}
	f.published = append(f.published, recordedPublish{Topic: topic, Payload: payload})
	return nil
}

type fixture struct {
	store     *storage.Store
	keys      *KeyService
	service   *ChatService
	directory *fakeDirectory
	publisher *fakePublisher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store, _, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	dir := &fakeDirectory{profiles: map[int64]models.UserProfile{}}
	pub := &fakePublisher{}
	keys := NewKeyService(store)

	return &fixture{
		store:     store,
		keys:      keys,
		service:   NewChatService(store, keys, dir, pub, cfg),
		directory: dir,
		publisher: pub,
	}
}

func (f *fixture) addUser(t *testing.T, userID int64, first, last string) *models.KeyPair {
	t.Helper()

	f.directory.profiles[userID] = models.UserProfile{UserID: userID, FirstName: first, LastName: last}
	pair, err := f.keys.GenerateKeys(context.Background(), userID)
	require.NoError(t, err)
	return pair
}

func TestSendMessageEncryptsOneCopyPerParticipant(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	alice := f.addUser(t, 1, "Alice", "Anders")
	bob := f.addUser(t, 2, "Bob", "B442")

	message, err := f.service.SendMessage(ctx, 1, 2, "hello", "")
	require.NoError(t, err)

	assert.Equal(t, models.MessageTypeText, message.MessageType)
	assert.True(t, message.IsEncrypted)
	assert.NotEqual(t, message.CiphertextForSender, message.CiphertextForReceiver)
	assert.NotEqual(t, "hello", message.CiphertextForSender)

	senderCopy, err := crypto.Decrypt(message.CiphertextForSender, alice.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "hello", senderCopy)

	receiverCopy, err := crypto.Decrypt(message.CiphertextForReceiver, bob.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "hello", receiverCopy)

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, "private-chat-1-2", f.publisher.published[0].Topic)
}

func TestSendMessageCreatesSentStatusAndUnreadCount(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "Anders")
	f.addUser(t, 2, "Bob", "B")

	before, err := f.service.CountUnread(ctx, 2)
	require.NoError(t, err)

	message, err := f.service.SendMessage(ctx, 1, 2, "ping", "")
	require.NoError(t, err)

	after, err := f.service.CountUnread(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	status, err := f.store.GetStatus(message.MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, status.Status)
	assert.Equal(t, int64(1), status.UserID)
	assert.Equal(t, int64(2), status.ReceiverID)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	_, err := f.service.SendMessage(ctx, 1, 2, "   ", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.SendMessage(ctx, 1, 1, "self", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.SendMessage(ctx, 1, 99, "to nobody", "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Whitespace-only content rides along when an attachment is present.
	message, err := f.service.SendMessage(ctx, 1, 2, "", "files/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeFile, message.MessageType)
	assert.Equal(t, "files/report.pdf", message.AttachmentRef)
}

func TestSendMessageSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")
	f.publisher.fail = true

	message, err := f.service.SendMessage(ctx, 1, 2, "still persisted", "")
	require.NoError(t, err)

	stored, err := f.store.GetMessageByID(message.MessageID)
	require.NoError(t, err)
	assert.Equal(t, message.MessageID, stored.MessageID)
}

func TestGetChatHistorySymmetricAndSorted(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	_, err := f.service.SendMessage(ctx, 1, 2, "first", "")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, 2, 1, "second", "")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, 1, 2, "third", "")
	require.NoError(t, err)

	forward, err := f.service.GetChatHistory(ctx, 1, 2)
	require.NoError(t, err)
	reverse, err := f.service.GetChatHistory(ctx, 2, 1)
	require.NoError(t, err)

	require.Len(t, forward, 3)
	require.Equal(t, len(forward), len(reverse))
	for i := range forward {
		assert.Equal(t, forward[i].MessageID, reverse[i].MessageID)
		if i > 0 {
			assert.LessOrEqual(t, forward[i-1].SentAt, forward[i].SentAt)
		}
	}
}

func TestUpdateStatusStateMachine(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	message, err := f.service.SendMessage(ctx, 1, 2, "state machine", "")
	require.NoError(t, err)

	// READ is reachable directly from SENT; delivered_at stays empty.
	status, err := f.service.UpdateStatus(ctx, message.MessageID, models.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, status.Status)
	require.NotNil(t, status.ReadAt)
	assert.Nil(t, status.DeliveredAt)

	// Backward transitions are ignored, not applied.
	reverted, err := f.service.UpdateStatus(ctx, message.MessageID, models.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, reverted.Status)
	assert.Equal(t, status.ReadAt, reverted.ReadAt)

	downgraded, err := f.service.UpdateStatus(ctx, message.MessageID, models.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, downgraded.Status)

	_, err = f.service.UpdateStatus(ctx, "no-such-message", models.StatusRead)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.service.UpdateStatus(ctx, message.MessageID, "ARCHIVED")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatusDeliveredThenRead(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	message, err := f.service.SendMessage(ctx, 1, 2, "two hops", "")
	require.NoError(t, err)

	delivered, err := f.service.UpdateStatus(ctx, message.MessageID, models.StatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)

	read, err := f.service.UpdateStatus(ctx, message.MessageID, models.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, read.Status)
	require.NotNil(t, read.ReadAt)
	assert.Equal(t, delivered.DeliveredAt, read.DeliveredAt)
}

func TestMarkAllDeliveredIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")
	f.addUser(t, 3, "Cleo", "C")

	_, err := f.service.SendMessage(ctx, 1, 2, "one", "")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, 3, 2, "two", "")
	require.NoError(t, err)

	first, err := f.service.MarkAllDelivered(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first)

	second, err := f.service.MarkAllDelivered(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, second)

	count, err := f.service.CountUnread(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetUserChatHistoryOrdersByRecency(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")
	f.addUser(t, 5, "Eve", "E")

	_, err := f.service.SendMessage(ctx, 1, 2, "older thread", "")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, 5, 1, "newer thread", "")
	require.NoError(t, err)

	summaries, err := f.service.GetUserChatHistory(ctx, "Bearer t", 1)
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	assert.Equal(t, int64(5), summaries[0].PeerUserID)
	assert.Equal(t, "Eve", summaries[0].PeerFirstName)
	assert.Equal(t, int64(2), summaries[1].PeerUserID)
	assert.NotEmpty(t, summaries[0].LastMessagePreview)
	assert.GreaterOrEqual(t, summaries[0].LastMessageTime, summaries[1].LastMessageTime)
}

func TestGetUserChatHistoryPreviewIsDecryptableByRequester(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	alice := f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	// Last message in the thread was sent TO user 1.
	_, err := f.service.SendMessage(ctx, 1, 2, "from alice", "")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, 2, 1, "from bob", "")
	require.NoError(t, err)

	summaries, err := f.service.GetUserChatHistory(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	preview, err := crypto.Decrypt(summaries[0].LastMessagePreview, alice.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "from bob", preview)
}

func TestGetUserChatHistoryPropagatesMissingProfile(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	_, err := f.service.SendMessage(ctx, 1, 2, "hello", "")
	require.NoError(t, err)

	// The peer vanishes from the directory after the exchange.
	delete(f.directory.profiles, 2)

	_, err = f.service.GetUserChatHistory(ctx, "", 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUserChatHistoryFallbackEntry(t *testing.T) {
	f := newFixture(t, Config{FallbackPeerID: 17, FallbackPreview: "No messages yet"})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")
	f.directory.profiles[17] = models.UserProfile{UserID: 17, FirstName: "Help", LastName: "Desk"}

	_, err := f.service.SendMessage(ctx, 1, 2, "hello", "")
	require.NoError(t, err)

	summaries, err := f.service.GetUserChatHistory(ctx, "", 1)
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	last := summaries[len(summaries)-1]
	assert.Equal(t, int64(17), last.PeerUserID)
	assert.Equal(t, "No messages yet", last.LastMessagePreview)
	assert.Zero(t, last.LastMessageTime)
}

func TestGetUserChatHistoryFallbackDisabledByDefault(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	_, err := f.service.SendMessage(ctx, 1, 2, "hello", "")
	require.NoError(t, err)

	summaries, err := f.service.GetUserChatHistory(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestDecryptBatchUsesRequesterCopy(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")

	for i := 0; i < 3; i++ {
		_, err := f.service.SendMessage(ctx, 1, 2, fmt.Sprintf("note %d", i), "")
		require.NoError(t, err)
	}
	_, err := f.service.SendMessage(ctx, 2, 1, "reply", "")
	require.NoError(t, err)

	history, err := f.service.GetChatHistory(ctx, 1, 2)
	require.NoError(t, err)

	decrypted, err := f.service.DecryptBatch(ctx, 1, history)
	require.NoError(t, err)
	require.Len(t, decrypted, 4)
	assert.Equal(t, "note 0", decrypted[0].Content)
	assert.Equal(t, "reply", decrypted[3].Content)

	asBob, err := f.service.DecryptBatch(ctx, 2, history)
	require.NoError(t, err)
	assert.Equal(t, "note 0", asBob[0].Content)
}

func TestDecryptBatchRefusesForeignMessages(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.addUser(t, 1, "Alice", "A")
	f.addUser(t, 2, "Bob", "B")
	f.addUser(t, 3, "Cleo", "C")

	_, err := f.service.SendMessage(ctx, 1, 2, "not for cleo", "")
	require.NoError(t, err)

	history, err := f.service.GetChatHistory(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.service.DecryptBatch(ctx, 3, history)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestNotifyTypingPublishesDirectionalTopic(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	err := f.service.NotifyTyping(ctx, models.TypingEvent{SenderID: 1, ReceiverID: 2, Typing: true})
	require.NoError(t, err)

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, "typing-2-1", f.publisher.published[0].Topic)
}
