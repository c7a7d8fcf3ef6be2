package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Notification is the durable record of a notification sent to a user.
type Notification struct {
	ID        int64          `db:"id" json:"id"`
	Target    int64          `db:"target" json:"target"`
	Category  string         `db:"category" json:"category"`
	Subject   string         `db:"subject" json:"subject"`
	Title     string         `db:"title" json:"title"`
	Message   string         `db:"message" json:"message"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	ReadAt    *time.Time     `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
