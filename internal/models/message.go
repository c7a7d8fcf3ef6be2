package models

import "time"

// Message is an entry of a room's append-only log. Encoded bodies carry a
// JSON document instead of plain text.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	Sender    int64     `db:"sender" json:"sender"`
	Body      string    `db:"body" json:"body"`
	Encoded   bool      `db:"encoded" json:"encoded"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExpressTicket records one rate-limited ticket send.
type ExpressTicket struct {
	ID        int64     `db:"id" json:"id"`
	Sender    int64     `db:"sender" json:"sender"`
	Recipient int64     `db:"recipient" json:"recipient"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
