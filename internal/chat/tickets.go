package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"social-chat/internal/logger"
	"social-chat/internal/models"
	"social-chat/internal/notify"
	"social-chat/internal/observability"
	"social-chat/internal/repositories"
)

const (
	ticketKind    = "ticket"
	ticketSent    = "sent"
	ticketReplied = "replied"
)

// ticketBody is the encoded body of a ticket message.
type ticketBody struct {
	Kind    string `json:"kind"`
	State   string `json:"state"`
	ReplyTo int64  `json:"replyTo,omitempty"`
	ReplyID int64  `json:"replyId,omitempty"`
}

func (b ticketBody) encode() string {
	raw, _ := json.Marshal(b)
	return string(raw)
}

func decodeTicket(m models.Message) (ticketBody, bool) {
	if !m.Encoded {
		return ticketBody{}, false
	}
	var b ticketBody
	if err := json.Unmarshal([]byte(m.Body), &b); err != nil || b.Kind != ticketKind {
		return ticketBody{}, false
	}
	return b, true
}

// dayWindow returns [local midnight, next local midnight) around now.
func (s *Service) dayWindow() (time.Time, time.Time) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) remaining(used int) int {
	if left := s.limit - used; left > 0 {
		return left
	}
	return 0
}

// RemainingToday is the number of tickets sender may still send today.
func (s *Service) RemainingToday(ctx context.Context, sender int64) (int, error) {
	from, to := s.dayWindow()
	used, err := s.store.Tickets().CountBetween(ctx, sender, from, to)
	if err != nil {
		return 0, fmt.Errorf("chat.RemainingToday: %w", err)
	}
	return s.remaining(used), nil
}

// SendTicket sends an express ticket to the user identified by otherRef.
// A non-zero originID answers the peer's pending ticket in the same room.
func (s *Service) SendTicket(ctx context.Context, me int64, otherRef string, originID int64) (models.Message, error) {
	const op = "chat.SendTicket"
	ctx, span := otel.Tracer("social-chat/chat").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.sender", me), attribute.Bool("chat.reply", originID > 0))

	msg, err := s.sendTicket(ctx, op, me, otherRef, originID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Message{}, err
	}
	return msg, nil
}

func (s *Service) sendTicket(ctx context.Context, op string, me int64, otherRef string, originID int64) (models.Message, error) {
	meUser, other, err := s.pair(ctx, op, me, otherRef)
	if err != nil {
		return models.Message{}, err
	}
	room, err := s.resolve(ctx, meUser, other)
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	view, err := s.store.Rooms().GetView(ctx, room.ID, me)
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: load view: %w", op, err)
	}
	if view.IsBlocked {
		return models.Message{}, newError(KindChatDenied, op, nil)
	}

	from, to := s.dayWindow()
	used, err := s.store.Tickets().CountBetween(ctx, me, from, to)
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: count tickets: %w", op, err)
	}
	if s.remaining(used) == 0 {
		return models.Message{}, newError(KindQuotaExceeded, op, nil)
	}

	var msg models.Message
	err = s.store.WithTx(ctx, func(tx repositories.Store) error {
		if err := tx.Tickets().LockSender(ctx, me); err != nil {
			return err
		}
		// recount under the lock: concurrent sends of this sender are serialised
		used, err := tx.Tickets().CountBetween(ctx, me, from, to)
		if err != nil {
			return err
		}
		if s.remaining(used) == 0 {
			return newError(KindQuotaExceeded, op, nil)
		}

		var (
			origin     models.Message
			originBody ticketBody
		)
		if originID > 0 {
			origin, originBody, err = replyOrigin(ctx, tx, op, room, other.ID, originID)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Tickets().Create(ctx, models.ExpressTicket{Sender: me, Recipient: other.ID, CreatedAt: s.now()}); err != nil {
			return err
		}
		body := ticketBody{Kind: ticketKind, State: ticketSent, ReplyTo: originID}
		msg, err = tx.Messages().Append(ctx, models.Message{RoomID: room.ID, Sender: me, Body: body.encode(), Encoded: true})
		if err != nil {
			return err
		}
		if originID > 0 {
			originBody.State = ticketReplied
			originBody.ReplyID = msg.ID
			if err := tx.Messages().UpdateBody(ctx, origin.ID, originBody.encode()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := KindOf(err); ok {
			return models.Message{}, err
		}
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	observability.IncTicketSent(originID > 0)
	logger.FromContext(ctx, s.log).Info("express ticket sent",
		zap.String("room_ref", room.Ref), zap.Int64("message_id", msg.ID), zap.Bool("reply", originID > 0))

	if s.peerBlocked(ctx, room.ID, other.ID) {
		return msg, nil
	}
	p := notify.TicketPayload(meUser.Nickname, notify.TicketData{
		RoomRef:   room.Ref,
		FromRef:   meUser.Ref,
		MessageID: msg.ID,
		Reply:     originID > 0,
	})
	target := other.ID
	s.dispatch(ctx, "ticket.notify", func(ctx context.Context) {
		if err := s.notifier.SendNotification(ctx, target, notify.CategoryTicket, p); err != nil {
			logger.FromContext(ctx, s.log).Error("ticket notification failed", zap.Int64("target", target), zap.Error(err))
		}
	})
	return msg, nil
}

// replyOrigin checks that originID is a pending ticket the peer sent in room.
func replyOrigin(ctx context.Context, tx repositories.Store, op string, room models.Room, peer, originID int64) (models.Message, ticketBody, error) {
	origin, err := tx.Messages().Get(ctx, originID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Message{}, ticketBody{}, newError(KindInvalidOrigin, op, fmt.Errorf("message %d does not exist", originID))
	}
	if err != nil {
		return models.Message{}, ticketBody{}, err
	}
	if origin.RoomID != room.ID || origin.Sender != peer {
		return models.Message{}, ticketBody{}, newError(KindInvalidOrigin, op, fmt.Errorf("message %d is not the peer's ticket in this room", originID))
	}
	body, ok := decodeTicket(origin)
	if !ok {
		return models.Message{}, ticketBody{}, newError(KindInvalidOrigin, op, fmt.Errorf("message %d is not a ticket", originID))
	}
	if body.State != ticketSent {
		return models.Message{}, ticketBody{}, newError(KindInvalidOrigin, op, fmt.Errorf("ticket %d was already answered", originID))
	}
	return origin, body, nil
}
