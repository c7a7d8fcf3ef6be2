package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/chat"
	"social-chat/internal/models"
	"social-chat/internal/telemetry"
)

// ChatService is the chat core as seen by the HTTP layer.
type ChatService interface {
	ListRooms(ctx context.Context, me int64, page, size int, blocked bool) (chat.Page[models.RoomSummary], error)
	GetRoomByUser(ctx context.Context, me int64, otherRef string) (chat.Conversation, error)
	UnreadCount(ctx context.Context, me int64) (int64, error)
	History(ctx context.Context, me int64, roomRef string, page, size int, beforeID int64) (chat.Page[models.Message], error)
	MarkRead(ctx context.Context, me int64, roomRef string) error
	RemainingToday(ctx context.Context, sender int64) (int, error)
	SendTicket(ctx context.Context, me int64, otherRef string, originID int64) (models.Message, error)
	SetBlocked(ctx context.Context, me int64, otherRef string, blocked bool) error
	SendMessage(ctx context.Context, me int64, roomRef, body string) (models.Message, error)
}

// ChatHandler manages direct message endpoints.
type ChatHandler struct {
	svc   ChatService
	audit *telemetry.AuditEmitter
	log   *zap.Logger
}

// NewChatHandler builds a ChatHandler. audit may be nil.
func NewChatHandler(svc ChatService, audit *telemetry.AuditEmitter, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{svc: svc, audit: audit, log: log}
}

// RegisterRoutes mounts the chat endpoints on an authenticated group.
func (h *ChatHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/chat/recent", h.ListRooms)
	rg.GET("/chat/user/:ref", h.GetRoomByUser)
	rg.GET("/chat/unread", h.UnreadCount)
	rg.GET("/chat/history/:ref", h.History)
	rg.PUT("/chat/read/:ref", h.MarkRead)
	rg.GET("/chat/ticket/count", h.TicketCount)
	rg.POST("/chat/ticket/:ref", h.SendTicket)
	rg.POST("/chat/deny/:ref", h.Deny)
	rg.POST("/chat/message/:ref", h.SendMessage)
}

// ListRooms returns the caller's active rooms, or the blocked ones with
// is-block=true.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	page, size, ok := pageQuery(c)
	if !ok {
		return
	}
	blocked := c.Query("is-block") == "true"

	rooms, err := h.svc.ListRooms(c.Request.Context(), currentUser(c), page, size, blocked)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newPage(rooms, toRoomSummary))
}

// GetRoomByUser returns (creating on first contact) the room shared with
// the user in :ref.
func (h *ChatHandler) GetRoomByUser(c *gin.Context) {
	conv, err := h.svc.GetRoomByUser(c.Request.Context(), currentUser(c), c.Param("ref"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toRoom(conv))
}

func (h *ChatHandler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// History pages a room's log newest first. begin-id anchors the listing.
func (h *ChatHandler) History(c *gin.Context) {
	page, size, ok := pageQuery(c)
	if !ok {
		return
	}
	var beginID int64
	if raw := c.Query("begin-id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			badRequest(c, "invalid begin-id")
			return
		}
		beginID = v
	}

	msgs, err := h.svc.History(c.Request.Context(), currentUser(c), c.Param("ref"), page, size, beginID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newPage(msgs, toMessage))
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), currentUser(c), c.Param("ref")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TicketCount returns how many express tickets the caller has left today.
func (h *ChatHandler) TicketCount(c *gin.Context) {
	n, err := h.svc.RemainingToday(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// SendTicket sends an express ticket to :ref. originId answers a pending
// ticket from that user.
func (h *ChatHandler) SendTicket(c *gin.Context) {
	var originID int64
	if raw := c.Query("originId"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			badRequest(c, "invalid originId")
			return
		}
		originID = v
	}

	ref := c.Param("ref")
	msg, err := h.svc.SendTicket(c.Request.Context(), currentUser(c), ref, originID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	emitAudit(c, h.audit, "chat.ticket.send", "express ticket sent", map[string]any{
		"recipient_ref": ref,
		"message_id":    msg.ID,
		"origin_id":     originID,
	})
	c.JSON(http.StatusCreated, toMessage(msg))
}

// Deny sets or clears the caller's block on the room shared with :ref.
func (h *ChatHandler) Deny(c *gin.Context) {
	var req struct {
		Status *bool `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	ref := c.Param("ref")
	if err := h.svc.SetBlocked(c.Request.Context(), currentUser(c), ref, *req.Status); err != nil {
		respondError(c, h.log, err)
		return
	}

	emitAudit(c, h.audit, "chat.deny", "chat deny toggled", map[string]any{
		"peer_ref": ref,
		"status":   *req.Status,
	})
	c.JSON(http.StatusOK, gin.H{"status": *req.Status})
}

// SendMessage posts a text message to the room :ref.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Body) == "" {
		badRequest(c, "body is required")
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), currentUser(c), c.Param("ref"), req.Body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toMessage(msg))
}

// pageQuery reads page and size. Missing values are left to the service
// defaults.
func pageQuery(c *gin.Context) (int, int, bool) {
	page, ok := intQuery(c, "page")
	if !ok {
		return 0, 0, false
	}
	size, ok := intQuery(c, "size")
	if !ok {
		return 0, 0, false
	}
	return page, size, true
}

func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return v, true
}
