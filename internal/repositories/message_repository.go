package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/models"
)

// MessageRepository defines interactions with a room's message log.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	UpdateBody(ctx context.Context, messageID int64, body string) error
	MaxID(ctx context.Context, roomID int64) (int64, error)
	History(ctx context.Context, roomID, beforeID int64, limit, offset int) ([]models.Message, error)
	CountHistory(ctx context.Context, roomID, beforeID int64) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db sqlx.ExtContext
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db sqlx.ExtContext) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, sender, body, encoded, created_at, updated_at`

// Append stores a message at the end of the room log.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := sqlx.GetContext(ctx, r.db, &created,
		`INSERT INTO chats (room_id, sender, body, encoded) VALUES ($1, $2, $3, $4) RETURNING `+messageColumns,
		msg.RoomID, msg.Sender, msg.Body, msg.Encoded)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", translate(err))
	}
	return created, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.db, &msg, `SELECT `+messageColumns+` FROM chats WHERE id=$1`, messageID)
	return msg, translate(err)
}

// UpdateBody rewrites a message body. Only ticket state transitions use it.
func (r *MessageRepo) UpdateBody(ctx context.Context, messageID int64, body string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET body=$2, updated_at=NOW() WHERE id=$1`, messageID, body)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return requireAffected(res)
}

// MaxID returns the newest message id of a room, or 0 for an empty room.
func (r *MessageRepo) MaxID(ctx context.Context, roomID int64) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, `SELECT COALESCE(MAX(id), 0) FROM chats WHERE room_id=$1`, roomID)
	return id, translate(err)
}

// History returns messages with id <= beforeID newest first. A zero beforeID
// means no upper bound.
func (r *MessageRepo) History(ctx context.Context, roomID, beforeID int64, limit, offset int) ([]models.Message, error) {
	where, args := historyFilter(roomID, beforeID)
	n := len(args)
	args = append(args, limit, offset)

	msgs := []models.Message{}
	err := sqlx.SelectContext(ctx, r.db, &msgs, fmt.Sprintf(`SELECT `+messageColumns+` FROM chats
        WHERE %s
        ORDER BY id DESC
        LIMIT $%d OFFSET $%d`, where, n+1, n+2), args...)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// CountHistory counts the messages History pages over.
func (r *MessageRepo) CountHistory(ctx context.Context, roomID, beforeID int64) (int64, error) {
	where, args := historyFilter(roomID, beforeID)
	var total int64
	err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM chats WHERE `+where, args...)
	return total, translate(err)
}

// historyFilter only binds the anchor when there is one, so the parameter is
// typed from the bigint id column.
func historyFilter(roomID, beforeID int64) (string, []any) {
	if beforeID > 0 {
		return `room_id=$1 AND id <= $2`, []any{roomID, beforeID}
	}
	return `room_id=$1`, []any{roomID}
}
