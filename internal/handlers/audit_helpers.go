package handlers

import (
	"github.com/gin-gonic/gin"

	"social-chat/internal/middleware"
	"social-chat/internal/telemetry"
)

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}

func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, action, text string, fields map[string]any) {
	if emitter == nil {
		return
	}
	emitter.Emit(c.Request.Context(), telemetry.AuditEvent{
		Action: action,
		Text:   text,
		UserID: currentUser(c),
		Fields: fields,
	})
}
