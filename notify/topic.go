// Package notify fans out chat events over pub/sub topic channels. Delivery
// is at-most-once and best-effort: the message log, not the pub/sub channel,
// is the source of truth for ordering and durability.
package notify

import "fmt"

// PairTopic derives the conversation channel for two users. Both directions
// map to the same topic because the ids are ordered before formatting.
func PairTopic(userID1, userID2 int64) string {
	lo, hi := userID1, userID2
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("private-chat-%d-%d", lo, hi)
}

// TypingTopic is the channel a receiver watches for one sender's typing
// events. Direction matters here, unlike PairTopic.
func TypingTopic(receiverID, senderID int64) string {
	return fmt.Sprintf("typing-%d-%d", receiverID, senderID)
}

// StatusTopic is the channel carrying delivery-status changes for a pair.
func StatusTopic(userID1, userID2 int64) string {
	lo, hi := userID1, userID2
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("message-status-%d-%d", lo, hi)
}
