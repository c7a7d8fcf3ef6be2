package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"social-chat/internal/logger"
	"social-chat/internal/middleware"
	"social-chat/internal/observability"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// TokenVerifier resolves an access token to a user id.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// NotificationHandler serves the per-user notification socket. The socket
// is push only; anything the client sends is discarded.
type NotificationHandler struct {
	hub      *Hub
	verifier TokenVerifier
	log      *zap.Logger
}

func NewNotificationHandler(hub *Hub, verifier TokenVerifier, log *zap.Logger) *NotificationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationHandler{hub: hub, verifier: verifier, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades and then blocks reading until the client
// goes away.
func (h *NotificationHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("social-chat/ws").Start(c.Request.Context(), "ws.handshake")

	token := middleware.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "UNAUTHORIZED"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		logger.FromContext(ctx, h.log).Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   logger.RequestID(ctx),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.End()

	// events outlive the request context once the connection is hijacked
	evCtx := context.WithoutCancel(ctx)
	client := h.hub.Add(conn, info)
	observability.IncWSActive(wsKind)
	h.log.Debug("notification socket opened", info.fields()...)
	publishWSEvent(evCtx, info, "ws_connect", "")

	done := make(chan struct{})
	go h.keepAlive(client, done)

	reason := h.readLoop(conn)
	close(done)

	h.hub.Remove(userID, conn)
	observability.DecWSActive(wsKind)
	publishWSEvent(evCtx, info, "ws_disconnect", reason)
	h.log.Debug("notification socket closed", append(info.fields(), zap.String("reason", reason))...)
	_ = conn.Close()
}

func (h *NotificationHandler) readLoop(conn *websocket.Conn) string {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(wsKind, "ws_error")
			}
			return err.Error()
		}
	}
}

func (h *NotificationHandler) keepAlive(c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		}
	}
}
