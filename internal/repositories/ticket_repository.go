package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/models"
)

// TicketRepository stores express tickets for the daily quota.
type TicketRepository interface {
	// LockSender serialises ticket sends of one sender until the surrounding
	// transaction ends. Must be called inside WithTx.
	LockSender(ctx context.Context, sender int64) error
	CountBetween(ctx context.Context, sender int64, from, to time.Time) (int, error)
	Create(ctx context.Context, ticket models.ExpressTicket) (models.ExpressTicket, error)
}

// TicketRepo is a sqlx-backed TicketRepository.
type TicketRepo struct {
	db sqlx.ExtContext
}

// NewTicketRepo constructs a TicketRepo.
func NewTicketRepo(db sqlx.ExtContext) *TicketRepo {
	return &TicketRepo{db: db}
}

func (r *TicketRepo) LockSender(ctx context.Context, sender int64) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, sender); err != nil {
		return fmt.Errorf("lock ticket sender: %w", err)
	}
	return nil
}

// CountBetween counts tickets sent in [from, to).
func (r *TicketRepo) CountBetween(ctx context.Context, sender int64, from, to time.Time) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM express_tickets WHERE sender=$1 AND created_at >= $2 AND created_at < $3`, sender, from, to)
	return n, translate(err)
}

func (r *TicketRepo) Create(ctx context.Context, ticket models.ExpressTicket) (models.ExpressTicket, error) {
	var created models.ExpressTicket
	err := sqlx.GetContext(ctx, r.db, &created,
		`INSERT INTO express_tickets (sender, recipient, created_at) VALUES ($1, $2, $3) RETURNING id, sender, recipient, created_at`,
		ticket.Sender, ticket.Recipient, ticket.CreatedAt)
	if err != nil {
		return models.ExpressTicket{}, fmt.Errorf("create ticket: %w", translate(err))
	}
	return created, nil
}
