// Package api is the HTTP surface of the messaging core: gin controllers
// returning a uniform response envelope. Authentication happens upstream;
// this layer only forwards the Authorization header and the X-User-Id
// requester identity into the services.
package api

import (
	"github.com/gin-gonic/gin"

	"cipherchat/chat"
	"cipherchat/notify"
)

// NewRouter builds the gin engine with all chat and encryption routes.
func NewRouter(service *chat.ChatService, keys *chat.KeyService, publisher notify.Publisher) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	chatCtl := NewChatController(service, publisher)
	encryptionCtl := NewEncryptionController(keys, service)

	v1 := router.Group("/api/v1")

	chatRoutes := v1.Group("/chat")
	{
		chatRoutes.POST("/messages", chatCtl.sendMessage)
		chatRoutes.GET("/history", chatCtl.getChatHistory)
		chatRoutes.PUT("/:messageId/status", chatCtl.updateStatus)
		chatRoutes.PUT("/mark-delivered/:userId", chatCtl.markAllDelivered)
		chatRoutes.GET("/unread", chatCtl.countUnread)
		chatRoutes.GET("/user-history", chatCtl.getUserChatHistory)
		chatRoutes.POST("/typing", chatCtl.notifyTyping)
	}

	encryptionRoutes := v1.Group("/encryption")
	{
		encryptionRoutes.POST("/keys", encryptionCtl.generateKeys)
		encryptionRoutes.GET("/public-key", encryptionCtl.getPublicKey)
		encryptionRoutes.GET("/private-key", encryptionCtl.getPrivateKey)
		encryptionRoutes.GET("/encrypt", encryptionCtl.encryptMessage)
		encryptionRoutes.POST("/decrypt", encryptionCtl.decryptBatch)
	}

	return router
}
