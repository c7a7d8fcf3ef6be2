package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/chat"
	"social-chat/internal/logger"
)

func statusFor(kind chat.Kind, err error) int {
	switch kind {
	case chat.KindInvalidUser:
		if errors.Is(err, chat.ErrSelf) {
			return http.StatusBadRequest
		}
		return http.StatusForbidden
	case chat.KindRoomNotFound:
		return http.StatusNotFound
	case chat.KindChatDenied:
		return http.StatusForbidden
	case chat.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case chat.KindInvalidOrigin:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes the {"error","code"} body for err. Unclassified errors
// are logged and reported as 500 without detail.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	_ = c.Error(err)
	kind, ok := chat.KindOf(err)
	if !ok {
		logger.FromContext(c.Request.Context(), log).Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL_ERROR"})
		return
	}

	msg := kind.String()
	if errors.Is(err, chat.ErrSelf) {
		msg = chat.ErrSelf.Error()
	}
	c.JSON(statusFor(kind, err), gin.H{"error": msg, "code": kind.Code()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "INVALID_REQUEST"})
}
