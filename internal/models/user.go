package models

import "time"

// User is the subset of the user directory the chat service reads.
type User struct {
	ID       int64  `db:"id" json:"id" msgpack:"id"`
	Ref      string `db:"ref" json:"ref" msgpack:"ref"`
	Nickname string `db:"nickname" json:"nickname" msgpack:"nickname"`
}

// Device is a push registration of a user.
type Device struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FCMToken  string    `db:"fcm_token" json:"fcm_token"`
	Device    string    `db:"device" json:"device"`
	LastLogin time.Time `db:"last_login" json:"last_login"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
