package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairTopicIsDirectionIndependent(t *testing.T) {
	assert.Equal(t, "private-chat-3-12", PairTopic(12, 3))
	assert.Equal(t, "private-chat-3-12", PairTopic(3, 12))
	assert.Equal(t, PairTopic(1, 2), PairTopic(2, 1))
}

func TestTypingTopicKeepsDirection(t *testing.T) {
	assert.Equal(t, "typing-2-1", TypingTopic(2, 1))
	assert.NotEqual(t, TypingTopic(1, 2), TypingTopic(2, 1))
}

func TestStatusTopicIsDirectionIndependent(t *testing.T) {
	assert.Equal(t, "message-status-4-9", StatusTopic(9, 4))
	assert.Equal(t, StatusTopic(4, 9), StatusTopic(9, 4))
}
