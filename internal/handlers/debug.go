package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/notify"
	"social-chat/internal/telemetry"
)

// TopicPublisher is implemented by notify.Fanout.
type TopicPublisher interface {
	PublishTopic(ctx context.Context, targets []int64, category notify.Category, p notify.Payload) error
}

// RegisterDebugRoutes wires debug-only endpoints on an authenticated group.
func RegisterDebugRoutes(rg gin.IRoutes, emitter *telemetry.AuditEmitter, publisher TopicPublisher, enabled bool) {
	if !enabled {
		return
	}

	rg.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, emitter, "debug.audit_test", "audit test", nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// system announcement to a set of users
	rg.POST("/debug/notifications", func(c *gin.Context) {
		var req struct {
			Targets []int64 `json:"targets" binding:"required,min=1"`
			Title   string  `json:"title" binding:"required"`
			Message string  `json:"message"`
			Subject string  `json:"subject"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if publisher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications not configured"})
			return
		}

		p := notify.SystemPayload(req.Title, req.Message, req.Subject)
		if err := publisher.PublishTopic(c.Request.Context(), req.Targets, notify.CategorySystem, p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed", "code": "INTERNAL_ERROR"})
			return
		}
		emitAudit(c, emitter, "debug.notify", "system notification published", map[string]any{"targets": len(req.Targets)})
		c.JSON(http.StatusOK, gin.H{"status": "sent", "targets": len(req.Targets)})
	})
}
