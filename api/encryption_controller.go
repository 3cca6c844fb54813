package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"cipherchat/chat"
	"cipherchat/crypto"
	"cipherchat/models"
)

// EncryptionController exposes key provisioning and the crypto convenience
// endpoints. The requester's identity arrives in the X-User-Id header, set
// by the authenticating gateway in front of this service.
type EncryptionController struct {
	keys    *chat.KeyService
	service *chat.ChatService
}

// NewEncryptionController wires the key and crypto endpoints.
func NewEncryptionController(keys *chat.KeyService, service *chat.ChatService) *EncryptionController {
	return &EncryptionController{keys: keys, service: service}
}

func (ctl *EncryptionController) generateKeys(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := ctl.keys.GenerateKeys(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, pair)
}

func (ctl *EncryptionController) getPublicKey(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}

	key, ok, err := ctl.keys.GetPublicKey(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondSuccess(c, nil)
		return
	}

	respondSuccess(c, key)
}

func (ctl *EncryptionController) getPrivateKey(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	requesterID, err := requesterID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	key, err := ctl.keys.GetPrivateKey(c.Request.Context(), requesterID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, key)
}

func (ctl *EncryptionController) encryptMessage(c *gin.Context) {
	message := c.Query("message")
	publicKey := c.Query("publicKey")
	if message == "" || publicKey == "" {
		respondError(c, fmt.Errorf("%w: message and publicKey are required", chat.ErrValidation))
		return
	}

	ciphertext, err := crypto.Encrypt(message, publicKey)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, ciphertext)
}

type decryptBatchRequest struct {
	Messages []models.Message `json:"messages"`
}

func (ctl *EncryptionController) decryptBatch(c *gin.Context) {
	var req decryptBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", chat.ErrValidation, err))
		return
	}
	requesterID, err := requesterID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	decrypted, err := ctl.service.DecryptBatch(c.Request.Context(), requesterID, req.Messages)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, decrypted)
}

func requesterID(c *gin.Context) (int64, error) {
	raw := c.GetHeader("X-User-Id")
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: X-User-Id header is required", chat.ErrValidation)
	}
	return value, nil
}
