package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/models"
)

// NotificationRepository persists notification rows and reads push devices.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	CreateBatch(ctx context.Context, ns []models.Notification) ([]models.Notification, error)
	ListDevices(ctx context.Context, userID int64, limit int) ([]models.Device, error)
	DeleteDevice(ctx context.Context, token string) error
}

// NotificationRepo is a sqlx-backed NotificationRepository.
type NotificationRepo struct {
	db sqlx.ExtContext
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db sqlx.ExtContext) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, target, category, subject, title, message, payload, read_at, created_at`

// Create stores a notification row.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	var created models.Notification
	err := sqlx.GetContext(ctx, r.db, &created,
		`INSERT INTO notifications (target, category, subject, title, message, payload)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+notificationColumns,
		n.Target, n.Category, n.Subject, n.Title, n.Message, payloadOrEmpty(n.Payload))
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", translate(err))
	}
	return created, nil
}

// CreateBatch stores every row with a single INSERT, so either all rows are
// written or none.
func (r *NotificationRepo) CreateBatch(ctx context.Context, ns []models.Notification) ([]models.Notification, error) {
	created := []models.Notification{}
	if len(ns) == 0 {
		return created, nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO notifications (target, category, subject, title, message, payload) VALUES `)
	args := make([]any, 0, len(ns)*6)
	for i, n := range ns {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, n.Target, n.Category, n.Subject, n.Title, n.Message, payloadOrEmpty(n.Payload))
	}
	b.WriteString(` RETURNING ` + notificationColumns)

	if err := sqlx.SelectContext(ctx, r.db, &created, b.String(), args...); err != nil {
		return nil, fmt.Errorf("create notifications: %w", translate(err))
	}
	return created, nil
}

func payloadOrEmpty(p []byte) []byte {
	if len(p) == 0 {
		return []byte(`{}`)
	}
	return p
}

// ListDevices returns the most recently used push registrations of a user.
func (r *NotificationRepo) ListDevices(ctx context.Context, userID int64, limit int) ([]models.Device, error) {
	devices := []models.Device{}
	err := sqlx.SelectContext(ctx, r.db, &devices, `SELECT id, user_id, fcm_token, device, last_login, created_at
        FROM user_devices WHERE user_id=$1
        ORDER BY last_login DESC
        LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// DeleteDevice removes every registration carrying token.
func (r *NotificationRepo) DeleteDevice(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_devices WHERE fcm_token=$1`, token); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}
