package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cipherchat/chat"
	"cipherchat/crypto"
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

const codeSuccess = 1000

func respondSuccess(c *gin.Context, result any) {
	c.JSON(http.StatusOK, Response{Code: codeSuccess, Result: result})
}

// respondError maps the service error taxonomy onto HTTP statuses. Unknown
// failures are reported generically so no internal detail leaks outward.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, chat.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrUserNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, chat.ErrKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, crypto.ErrEncryption),
		errors.Is(err, crypto.ErrDecryption),
		errors.Is(err, crypto.ErrKeyGeneration):
		status = http.StatusInternalServerError
	default:
		logrus.WithError(err).Error("request failed")
		message = "internal error"
	}

	c.JSON(status, Response{Code: status, Message: message})
}
