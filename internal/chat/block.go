package chat

import (
	"context"
	"fmt"
)

// SetBlocked sets the caller's block flag on the room shared with otherRef,
// creating the room if the pair never talked. The peer's view is untouched.
func (s *Service) SetBlocked(ctx context.Context, me int64, otherRef string, blocked bool) error {
	const op = "chat.SetBlocked"
	meUser, other, err := s.pair(ctx, op, me, otherRef)
	if err != nil {
		return err
	}
	room, err := s.resolve(ctx, meUser, other)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Rooms().SetBlocked(ctx, room.ID, me, blocked); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
