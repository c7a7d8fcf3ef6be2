package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/models"
)

// RoomRepository abstracts room and room-view persistence.
type RoomRepository interface {
	FindByPair(ctx context.Context, userA, userB int64) (models.Room, error)
	GetByRef(ctx context.Context, ref string) (models.Room, error)
	Create(ctx context.Context, room models.Room) (models.Room, error)
	CreateView(ctx context.Context, view models.RoomView) (models.RoomView, error)
	GetView(ctx context.Context, roomID, userID int64) (models.RoomView, error)
	SetBlocked(ctx context.Context, roomID, userID int64, blocked bool) error
	AdvanceWatermark(ctx context.Context, roomID, userID, messageID int64) error
	ListSummaries(ctx context.Context, userID int64, blocked bool, limit, offset int) ([]models.RoomSummary, error)
	CountViews(ctx context.Context, userID int64, blocked bool) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db sqlx.ExtContext
}

// NewRoomRepo constructs a RoomRepo on a database or transaction handle.
func NewRoomRepo(db sqlx.ExtContext) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `id, ref, user_a, user_b, created_at`

const viewColumns = `id, room_id, user_id, title, is_blocked, last_read, created_at, updated_at`

// FindByPair looks up the room of a canonical pair (userA < userB).
func (r *RoomRepo) FindByPair(ctx context.Context, userA, userB int64) (models.Room, error) {
	var room models.Room
	err := sqlx.GetContext(ctx, r.db, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE user_a=$1 AND user_b=$2`, userA, userB)
	return room, translate(err)
}

// GetByRef fetches a room by its public ref.
func (r *RoomRepo) GetByRef(ctx context.Context, ref string) (models.Room, error) {
	var room models.Room
	err := sqlx.GetContext(ctx, r.db, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE ref=$1`, ref)
	return room, translate(err)
}

// Create inserts a room. A concurrent insert of the same pair yields ErrDuplicate.
func (r *RoomRepo) Create(ctx context.Context, room models.Room) (models.Room, error) {
	var created models.Room
	err := sqlx.GetContext(ctx, r.db, &created,
		`INSERT INTO chat_rooms (ref, user_a, user_b) VALUES ($1, $2, $3) RETURNING `+roomColumns,
		room.Ref, room.UserA, room.UserB)
	return created, translate(err)
}

// CreateView inserts a member's view of a room.
func (r *RoomRepo) CreateView(ctx context.Context, view models.RoomView) (models.RoomView, error) {
	var created models.RoomView
	err := sqlx.GetContext(ctx, r.db, &created,
		`INSERT INTO chat_room_views (room_id, user_id, title, is_blocked, last_read) VALUES ($1, $2, $3, $4, $5) RETURNING `+viewColumns,
		view.RoomID, view.UserID, view.Title, view.IsBlocked, view.LastRead)
	return created, translate(err)
}

// GetView fetches a member's view of a room.
func (r *RoomRepo) GetView(ctx context.Context, roomID, userID int64) (models.RoomView, error) {
	var view models.RoomView
	err := sqlx.GetContext(ctx, r.db, &view, `SELECT `+viewColumns+` FROM chat_room_views WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	return view, translate(err)
}

// SetBlocked flips the block flag of a single view.
func (r *RoomRepo) SetBlocked(ctx context.Context, roomID, userID int64, blocked bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_room_views SET is_blocked=$3, updated_at=NOW() WHERE room_id=$1 AND user_id=$2`, roomID, userID, blocked)
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	return requireAffected(res)
}

// AdvanceWatermark moves last_read forward to messageID. It never moves it back.
func (r *RoomRepo) AdvanceWatermark(ctx context.Context, roomID, userID, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_room_views SET last_read = GREATEST(last_read, $3), updated_at=NOW() WHERE room_id=$1 AND user_id=$2`, roomID, userID, messageID)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return requireAffected(res)
}

// ListSummaries returns the caller's active or blocked rooms, most recently
// active first. Rooms without messages come last.
func (r *RoomRepo) ListSummaries(ctx context.Context, userID int64, blocked bool, limit, offset int) ([]models.RoomSummary, error) {
	query := `SELECT r.id AS room_id, r.ref AS room_ref, v.title, v.is_blocked, v.last_read,
            u.id AS peer_id, u.ref AS peer_ref, u.nickname AS peer_nickname,
            (SELECT COUNT(*) FROM chats c WHERE c.room_id = r.id AND c.id > v.last_read AND c.sender <> v.user_id) AS unread,
            lm.id AS last_message_id, lm.sender AS last_sender, lm.body AS last_body,
            lm.encoded AS last_encoded, lm.created_at AS last_at
        FROM chat_room_views v
        JOIN chat_rooms r ON r.id = v.room_id
        JOIN users u ON u.id = CASE WHEN r.user_a = v.user_id THEN r.user_b ELSE r.user_a END
        LEFT JOIN LATERAL (
            SELECT id, sender, body, encoded, created_at FROM chats
            WHERE room_id = r.id ORDER BY id DESC LIMIT 1
        ) lm ON TRUE
        WHERE v.user_id = $1 AND v.is_blocked = $2
        ORDER BY lm.id DESC NULLS LAST, r.id DESC
        LIMIT $3 OFFSET $4`
	summaries := []models.RoomSummary{}
	if err := sqlx.SelectContext(ctx, r.db, &summaries, query, userID, blocked, limit, offset); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return summaries, nil
}

// CountViews counts the caller's active or blocked rooms.
func (r *RoomRepo) CountViews(ctx context.Context, userID int64, blocked bool) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM chat_room_views WHERE user_id=$1 AND is_blocked=$2`, userID, blocked)
	return total, translate(err)
}

// UnreadCount sums messages past the watermark over the caller's non-blocked
// rooms. The caller's own messages are not unread.
func (r *RoomRepo) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(c.id) FROM chat_room_views v
        JOIN chats c ON c.room_id = v.room_id AND c.id > v.last_read AND c.sender <> v.user_id
        WHERE v.user_id = $1 AND v.is_blocked = FALSE`, userID)
	return total, translate(err)
}
