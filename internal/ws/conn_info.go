package ws

import (
	"time"

	"go.uber.org/zap"
)

// ConnInfo describes one notification socket for logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) fields() []zap.Field {
	return []zap.Field{
		zap.String("conn_id", i.ConnID),
		zap.Int64("user_id", i.UserID),
		zap.String("device_id", i.DeviceID),
		zap.String("ip", i.IP),
	}
}
