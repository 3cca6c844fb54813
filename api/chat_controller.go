package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cipherchat/chat"
	"cipherchat/models"
	"cipherchat/notify"
)

// ChatController exposes the messaging operations. Status-change
// notifications are published here, keeping the status tracker itself free
// of any publish dependency.
type ChatController struct {
	service   *chat.ChatService
	publisher notify.Publisher
}

// NewChatController wires the messaging endpoints.
func NewChatController(service *chat.ChatService, publisher notify.Publisher) *ChatController {
	return &ChatController{service: service, publisher: publisher}
}

type sendMessageRequest struct {
	SenderID      int64  `json:"sender_id"`
	ReceiverID    int64  `json:"receiver_id"`
	Message       string `json:"message"`
	AttachmentRef string `json:"attachment_ref"`
}

func (ctl *ChatController) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", chat.ErrValidation, err))
		return
	}

	message, err := ctl.service.SendMessage(c.Request.Context(), req.SenderID, req.ReceiverID, req.Message, req.AttachmentRef)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, message)
}

func (ctl *ChatController) getChatHistory(c *gin.Context) {
	senderID, err := queryInt64(c, "senderId")
	if err != nil {
		respondError(c, err)
		return
	}
	receiverID, err := queryInt64(c, "receiverId")
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := ctl.service.GetChatHistory(c.Request.Context(), senderID, receiverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, history)
}

func (ctl *ChatController) updateStatus(c *gin.Context) {
	messageID := c.Param("messageId")
	newStatus := c.Query("status")

	status, err := ctl.service.UpdateStatus(c.Request.Context(), messageID, newStatus)
	if err != nil {
		respondError(c, err)
		return
	}

	ctl.publishStatus(c.Request.Context(), status)
	respondSuccess(c, status)
}

func (ctl *ChatController) markAllDelivered(c *gin.Context) {
	userID, err := paramInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}

	transitioned, err := ctl.service.MarkAllDelivered(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, gin.H{"delivered": transitioned})
}

func (ctl *ChatController) countUnread(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}

	count, err := ctl.service.CountUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, count)
}

func (ctl *ChatController) getUserChatHistory(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}

	authToken := c.GetHeader("Authorization")
	summaries, err := ctl.service.GetUserChatHistory(c.Request.Context(), authToken, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, summaries)
}

func (ctl *ChatController) notifyTyping(c *gin.Context) {
	var event models.TypingEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		respondError(c, fmt.Errorf("%w: %v", chat.ErrValidation, err))
		return
	}

	if err := ctl.service.NotifyTyping(c.Request.Context(), event); err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, nil)
}

func (ctl *ChatController) publishStatus(ctx context.Context, status *models.DeliveryStatus) {
	topic := notify.StatusTopic(status.UserID, status.ReceiverID)
	if err := ctl.publisher.Publish(ctx, topic, status); err != nil {
		logrus.WithFields(logrus.Fields{
			"message_id": status.MessageID,
			"topic":      topic,
		}).WithError(err).Warn("status publish failed")
	}
}

func queryInt64(c *gin.Context, name string) (int64, error) {
	value, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: query parameter %q must be an integer", chat.ErrValidation, name)
	}
	return value, nil
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: path parameter %q must be an integer", chat.ErrValidation, name)
	}
	return value, nil
}
