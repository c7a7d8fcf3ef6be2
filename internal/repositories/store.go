package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/db"
)

// Store groups the repositories that take part in chat transactions.
type Store interface {
	Rooms() RoomRepository
	Messages() MessageRepository
	Tickets() TicketRepository
	// WithTx runs fn against a Store bound to a single transaction. Nested
	// calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// SQLStore is the sqlx implementation of Store.
type SQLStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewStore builds a Store on top of db.
func NewStore(database *sqlx.DB) *SQLStore {
	return &SQLStore{db: database, ext: database}
}

func (s *SQLStore) Rooms() RoomRepository       { return NewRoomRepo(s.ext) }
func (s *SQLStore) Messages() MessageRepository { return NewMessageRepo(s.ext) }
func (s *SQLStore) Tickets() TicketRepository   { return NewTicketRepo(s.ext) }

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.ext.(*sqlx.Tx); ok {
		return fn(s)
	}
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&SQLStore{db: s.db, ext: tx})
	})
}
