package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/notify"
)

func TestSendTicketQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	left, err := f.svc.RemainingToday(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyLimit, left)

	prev := left
	for i := 0; i < DefaultDailyLimit; i++ {
		_, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
		require.NoError(t, err, "ticket %d", i+1)

		left, err := f.svc.RemainingToday(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, left, prev)
		prev = left
	}
	assert.Zero(t, prev)

	before := f.store.snapshot()
	_, err = f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	kind, _ := KindOf(err)
	assert.Equal(t, "TICKET_EXHAUSTED", kind.Code())

	after := f.store.snapshot()
	assert.Len(t, after.tickets, len(before.tickets))
	assert.Len(t, after.messages, len(before.messages))
	assert.Len(t, f.notifier.sent, DefaultDailyLimit)

	// other senders have their own quota
	left, err = f.svc.RemainingToday(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyLimit, left)
}

func TestRemainingTodayResetsAtLocalMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 23:59 in Seoul is still the same local day although UTC says 14:59
	f.setNow(time.Date(2024, 3, 1, 14, 59, 0, 0, time.UTC))
	_, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.NoError(t, err)

	left, err := f.svc.RemainingToday(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyLimit-1, left)

	f.setNow(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))
	left, err = f.svc.RemainingToday(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyLimit, left)
}

func TestSendTicketNotifiesPeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.NoError(t, err)
	assert.True(t, msg.Encoded)
	assert.Equal(t, f.alice.ID, msg.Sender)

	body, ok := decodeTicket(msg)
	require.True(t, ok)
	assert.Equal(t, ticketSent, body.State)

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, f.bob.ID, sent.target)
	assert.Equal(t, notify.CategoryTicket, sent.category)
	data, ok := sent.payload.Data.(notify.TicketData)
	require.True(t, ok)
	assert.Equal(t, f.alice.Ref, data.FromRef)
	assert.Equal(t, msg.ID, data.MessageID)
	assert.False(t, data.Reply)

	room, err := f.store.Rooms().GetByRef(ctx, data.RoomRef)
	require.NoError(t, err)
	assert.Equal(t, "ticket__"+room.Ref, sent.payload.SubjectKey(notify.CategoryTicket))
}

func TestSendTicketSkipsNotificationWhenPeerBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetBlocked(ctx, f.bob.ID, f.alice.Ref, true))

	_, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sent)

	left, err := f.svc.RemainingToday(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyLimit-1, left)
}

func TestSendTicketDeniedWhenSenderBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetBlocked(ctx, f.alice.ID, f.bob.Ref, true))

	_, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.ErrorIs(t, err, ErrChatDenied)
	assert.Empty(t, f.store.snapshot().tickets)

	_, err = f.svc.SendTicket(ctx, f.alice.ID, "ghost", 0)
	require.ErrorIs(t, err, ErrInvalidUser)
	_, err = f.svc.SendTicket(ctx, f.alice.ID, f.alice.Ref, 0)
	require.ErrorIs(t, err, ErrSelf)
}

func TestSendTicketReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	origin, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.NoError(t, err)

	reply, err := f.svc.SendTicket(ctx, f.bob.ID, f.alice.Ref, origin.ID)
	require.NoError(t, err)

	replyBody, ok := decodeTicket(reply)
	require.True(t, ok)
	assert.Equal(t, origin.ID, replyBody.ReplyTo)

	stored, err := f.store.Messages().Get(ctx, origin.ID)
	require.NoError(t, err)
	originBody, ok := decodeTicket(stored)
	require.True(t, ok)
	assert.Equal(t, ticketReplied, originBody.State)
	assert.Equal(t, reply.ID, originBody.ReplyID)

	require.Len(t, f.notifier.sent, 2)
	data := f.notifier.sent[1].payload.Data.(notify.TicketData)
	assert.True(t, data.Reply)
	assert.Equal(t, f.alice.ID, f.notifier.sent[1].target)

	left, err := f.svc.RemainingToday(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultDailyLimit-1, left)
}

func TestSendTicketReplyRejectsInvalidOrigins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	origin, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.NoError(t, err)
	room, err := f.store.Rooms().GetByRef(ctx, f.notifier.sent[0].payload.Subject)
	require.NoError(t, err)
	text, err := f.svc.Append(ctx, room.ID, f.alice.ID, "plain", false)
	require.NoError(t, err)
	other, err := f.svc.SendTicket(ctx, f.carol.ID, f.bob.Ref, 0)
	require.NoError(t, err)

	cases := []struct {
		name   string
		sender int64
		peer   string
		origin int64
	}{
		{"unknown message", f.bob.ID, f.alice.Ref, 9999},
		{"own ticket", f.alice.ID, f.bob.Ref, origin.ID},
		{"plain message", f.bob.ID, f.alice.Ref, text.ID},
		{"ticket from another room", f.bob.ID, f.alice.Ref, other.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.store.snapshot()
			_, err := f.svc.SendTicket(ctx, tc.sender, tc.peer, tc.origin)
			require.ErrorIs(t, err, ErrInvalidOrigin)

			after := f.store.snapshot()
			assert.Len(t, after.tickets, len(before.tickets))
			assert.Len(t, after.messages, len(before.messages))
		})
	}

	_, err = f.svc.SendTicket(ctx, f.bob.ID, f.alice.Ref, origin.ID)
	require.NoError(t, err)
	_, err = f.svc.SendTicket(ctx, f.bob.ID, f.alice.Ref, origin.ID)
	require.ErrorIs(t, err, ErrInvalidOrigin)
}

func TestSendTicketStorageFailureWritesNothing(t *testing.T) {
	storageErr := errors.New("connection reset")

	for _, op := range []string{"tickets.create", "messages.append"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
			require.NoError(t, err)

			f.store.failOn(op, storageErr)
			before := f.store.snapshot()

			_, err = f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
			require.ErrorIs(t, err, storageErr)
			_, classified := KindOf(err)
			assert.False(t, classified)

			after := f.store.snapshot()
			assert.Equal(t, before.tickets, after.tickets)
			assert.Equal(t, before.messages, after.messages)
			assert.Len(t, f.notifier.sent, 1)

			left, err := f.svc.RemainingToday(ctx, f.alice.ID)
			require.NoError(t, err)
			assert.Equal(t, DefaultDailyLimit-1, left)
		})
	}
}

func TestSendTicketReplyRollsBackWhenOriginRewriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	storageErr := errors.New("connection reset")

	origin, err := f.svc.SendTicket(ctx, f.alice.ID, f.bob.Ref, 0)
	require.NoError(t, err)

	f.store.failOn("messages.update_body", storageErr)
	before := f.store.snapshot()

	_, err = f.svc.SendTicket(ctx, f.bob.ID, f.alice.Ref, origin.ID)
	require.ErrorIs(t, err, storageErr)

	after := f.store.snapshot()
	assert.Equal(t, before.tickets, after.tickets)
	assert.Equal(t, before.messages, after.messages)
	assert.Len(t, f.notifier.sent, 1)

	stored, err := f.store.Messages().Get(ctx, origin.ID)
	require.NoError(t, err)
	body, ok := decodeTicket(stored)
	require.True(t, ok)
	assert.Equal(t, ticketSent, body.State)
}
