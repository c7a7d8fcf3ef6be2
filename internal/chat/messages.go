package chat

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"social-chat/internal/logger"
	"social-chat/internal/models"
	"social-chat/internal/notify"
)

const previewLength = 80

// Append adds a message to a room log. Only storage errors are returned.
func (s *Service) Append(ctx context.Context, roomID, sender int64, body string, encoded bool) (models.Message, error) {
	msg, err := s.store.Messages().Append(ctx, models.Message{RoomID: roomID, Sender: sender, Body: body, Encoded: encoded})
	if err != nil {
		return models.Message{}, fmt.Errorf("chat.Append: %w", err)
	}
	return msg, nil
}

// History pages backwards through a room the caller belongs to. Only
// messages with id <= beforeID are considered; zero means the newest.
func (s *Service) History(ctx context.Context, me int64, roomRef string, page, size int, beforeID int64) (Page[models.Message], error) {
	const op = "chat.History"
	page, size = normalizePage(page, size)
	if beforeID < 0 {
		beforeID = 0
	}

	room, _, err := s.member(ctx, op, me, roomRef)
	if err != nil {
		return Page[models.Message]{}, err
	}

	msgs := s.store.Messages()
	total, err := msgs.CountHistory(ctx, room.ID, beforeID)
	if err != nil {
		return Page[models.Message]{}, fmt.Errorf("%s: %w", op, err)
	}
	items, err := msgs.History(ctx, room.ID, beforeID, size, (page-1)*size)
	if err != nil {
		return Page[models.Message]{}, fmt.Errorf("%s: %w", op, err)
	}
	return Page[models.Message]{Items: items, Total: total, Page: page, Size: size}, nil
}

// SendMessage posts a plain text message and announces it to the peer.
func (s *Service) SendMessage(ctx context.Context, me int64, roomRef, body string) (models.Message, error) {
	const op = "chat.SendMessage"
	room, view, err := s.member(ctx, op, me, roomRef)
	if err != nil {
		return models.Message{}, err
	}
	if view.IsBlocked {
		return models.Message{}, newError(KindChatDenied, op, nil)
	}

	msg, err := s.Append(ctx, room.ID, me, body, false)
	if err != nil {
		return models.Message{}, err
	}

	peer := room.Peer(me)
	if s.peerBlocked(ctx, room.ID, peer) {
		return msg, nil
	}
	sender, err := s.users.GetByID(ctx, me)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("skip chat announce, sender lookup failed", zap.Error(err))
		return msg, nil
	}
	p := notify.ChatPayload(sender.Nickname, preview(body), notify.ChatData{RoomRef: room.Ref, MessageID: msg.ID, FromRef: sender.Ref})
	s.dispatch(ctx, "chat.announce", func(ctx context.Context) {
		if err := s.notifier.Announce(ctx, []int64{peer}, notify.CategoryChat, p); err != nil {
			logger.FromContext(ctx, s.log).Warn("chat announce failed", zap.Error(err))
		}
	})
	return msg, nil
}

// MarkRead moves the caller's watermark to the newest message of the room.
func (s *Service) MarkRead(ctx context.Context, me int64, roomRef string) error {
	const op = "chat.MarkRead"
	room, _, err := s.member(ctx, op, me, roomRef)
	if err != nil {
		return err
	}
	maxID, err := s.store.Messages().MaxID(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if maxID == 0 {
		return nil
	}
	if err := s.store.Rooms().AdvanceWatermark(ctx, room.ID, me, maxID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UnreadCount totals unread messages over the caller's non-blocked rooms.
func (s *Service) UnreadCount(ctx context.Context, me int64) (int64, error) {
	n, err := s.store.Rooms().UnreadCount(ctx, me)
	if err != nil {
		return 0, fmt.Errorf("chat.UnreadCount: %w", err)
	}
	return n, nil
}

// peerBlocked reports whether the peer's view of the room is blocked. Lookup
// failures count as blocked so nothing is sent on doubt.
func (s *Service) peerBlocked(ctx context.Context, roomID, peer int64) bool {
	view, err := s.store.Rooms().GetView(ctx, roomID, peer)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("load peer view failed", zap.Int64("room_id", roomID), zap.Error(err))
		return true
	}
	return view.IsBlocked
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewLength]) + "…"
}
