package models

import (
	"database/sql"
	"time"
)

// Room is the single direct-message room of an unordered user pair.
// UserA is always the smaller id.
type Room struct {
	ID        int64     `db:"id" json:"id"`
	Ref       string    `db:"ref" json:"ref"`
	UserA     int64     `db:"user_a" json:"user_a"`
	UserB     int64     `db:"user_b" json:"user_b"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Peer returns the member of the room that is not userID.
func (r Room) Peer(userID int64) int64 {
	if r.UserA == userID {
		return r.UserB
	}
	return r.UserA
}

// HasMember reports whether userID belongs to the room.
func (r Room) HasMember(userID int64) bool {
	return r.UserA == userID || r.UserB == userID
}

// RoomView is one member's private state for a room.
type RoomView struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	IsBlocked bool      `db:"is_blocked" json:"is_blocked"`
	LastRead  int64     `db:"last_read" json:"last_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoomSummary is a row of the room list: the caller's view, the peer, the
// latest message and the caller's unread count.
type RoomSummary struct {
	RoomID        int64          `db:"room_id"`
	RoomRef       string         `db:"room_ref"`
	Title         string         `db:"title"`
	IsBlocked     bool           `db:"is_blocked"`
	LastRead      int64          `db:"last_read"`
	PeerID        int64          `db:"peer_id"`
	PeerRef       string         `db:"peer_ref"`
	PeerNickname  string         `db:"peer_nickname"`
	Unread        int64          `db:"unread"`
	LastMessageID sql.NullInt64  `db:"last_message_id"`
	LastSender    sql.NullInt64  `db:"last_sender"`
	LastBody      sql.NullString `db:"last_body"`
	LastEncoded   sql.NullBool   `db:"last_encoded"`
	LastAt        sql.NullTime   `db:"last_at"`
}
