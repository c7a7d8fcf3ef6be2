// Package chat implements direct messaging between two users: canonical room
// resolution, the message log, read watermarks, per-viewer blocking and the
// daily express-ticket quota.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-chat/internal/logger"
	"social-chat/internal/models"
	"social-chat/internal/notify"
	"social-chat/internal/repositories"
)

const (
	DefaultPageSize   = 20
	MaxPageSize       = 100
	DefaultDailyLimit = 10
)

// Notifier delivers notifications produced by chat operations.
type Notifier interface {
	SendNotification(ctx context.Context, target int64, category notify.Category, p notify.Payload) error
	Announce(ctx context.Context, targets []int64, category notify.Category, p notify.Payload) error
}

// Dispatcher runs notification work after the originating transaction
// committed. Submit reports false when the job was dropped.
type Dispatcher interface {
	Submit(ctx context.Context, name string, job notify.Job) bool
}

// Config tunes the quota window.
type Config struct {
	Location   *time.Location
	DailyLimit int
	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

// Service is the chat core.
type Service struct {
	store      repositories.Store
	users      repositories.UserRepository
	notifier   Notifier
	dispatcher Dispatcher
	loc        *time.Location
	limit      int
	now        func() time.Time
	log        *zap.Logger
}

func NewService(store repositories.Store, users repositories.UserRepository, notifier Notifier, dispatcher Dispatcher, cfg Config, log *zap.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:      store,
		users:      users,
		notifier:   notifier,
		dispatcher: dispatcher,
		loc:        cfg.Location,
		limit:      cfg.DailyLimit,
		now:        cfg.Clock,
		log:        log,
	}
}

// Conversation is a resolved room seen from one member.
type Conversation struct {
	Room models.Room
	View models.RoomView
	Peer models.User
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Size  int
}

// TotalPages reports how many pages of Size cover Total.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Resolve returns the single room of the pair {a, b}, creating it on first use.
func (s *Service) Resolve(ctx context.Context, a, b int64) (models.Room, error) {
	const op = "chat.Resolve"
	if a == b {
		return models.Room{}, newError(KindInvalidUser, op, ErrSelf)
	}
	ua, err := s.user(ctx, op, a)
	if err != nil {
		return models.Room{}, err
	}
	ub, err := s.user(ctx, op, b)
	if err != nil {
		return models.Room{}, err
	}
	return s.resolve(ctx, ua, ub)
}

// GetRoomByUser resolves the caller's room with the user identified by
// otherRef. A caller who blocked the room is denied.
func (s *Service) GetRoomByUser(ctx context.Context, me int64, otherRef string) (Conversation, error) {
	const op = "chat.GetRoomByUser"
	meUser, other, err := s.pair(ctx, op, me, otherRef)
	if err != nil {
		return Conversation{}, err
	}
	room, err := s.resolve(ctx, meUser, other)
	if err != nil {
		return Conversation{}, err
	}
	view, err := s.store.Rooms().GetView(ctx, room.ID, me)
	if err != nil {
		return Conversation{}, fmt.Errorf("%s: load view: %w", op, err)
	}
	if view.IsBlocked {
		return Conversation{}, newError(KindChatDenied, op, nil)
	}
	return Conversation{Room: room, View: view, Peer: other}, nil
}

// ListRooms pages through the caller's active or blocked rooms.
func (s *Service) ListRooms(ctx context.Context, me int64, page, size int, blocked bool) (Page[models.RoomSummary], error) {
	page, size = normalizePage(page, size)
	rooms := s.store.Rooms()
	total, err := rooms.CountViews(ctx, me, blocked)
	if err != nil {
		return Page[models.RoomSummary]{}, fmt.Errorf("chat.ListRooms: %w", err)
	}
	items, err := rooms.ListSummaries(ctx, me, blocked, size, (page-1)*size)
	if err != nil {
		return Page[models.RoomSummary]{}, fmt.Errorf("chat.ListRooms: %w", err)
	}
	return Page[models.RoomSummary]{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *Service) resolve(ctx context.Context, ua, ub models.User) (models.Room, error) {
	lo, hi := ua, ub
	if lo.ID > hi.ID {
		lo, hi = hi, lo
	}

	room, err := s.store.Rooms().FindByPair(ctx, lo.ID, hi.ID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.Room{}, fmt.Errorf("find room: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx repositories.Store) error {
		created, err := tx.Rooms().Create(ctx, models.Room{Ref: uuid.NewString(), UserA: lo.ID, UserB: hi.ID})
		if err != nil {
			return err
		}
		for _, v := range []struct{ owner, peer models.User }{{lo, hi}, {hi, lo}} {
			if _, err := tx.Rooms().CreateView(ctx, models.RoomView{
				RoomID: created.ID,
				UserID: v.owner.ID,
				Title:  roomTitle(v.peer),
			}); err != nil {
				return err
			}
		}
		room = created
		return nil
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		// lost the race against a concurrent first contact
		logger.FromContext(ctx, s.log).Debug("room created concurrently, reloading",
			zap.Int64("user_a", lo.ID), zap.Int64("user_b", hi.ID))
		room, err = s.store.Rooms().FindByPair(ctx, lo.ID, hi.ID)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// roomTitle names a view after the other members.
func roomTitle(peers ...models.User) string {
	names := make([]string, 0, len(peers))
	for _, p := range peers {
		names = append(names, p.Nickname)
	}
	return strings.Join(names, ", ")
}

func (s *Service) user(ctx context.Context, op string, id int64) (models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, newError(KindInvalidUser, op, fmt.Errorf("user %d does not exist", id))
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: load user: %w", op, err)
	}
	return u, nil
}

// pair loads the caller and the counterpart addressed by ref.
func (s *Service) pair(ctx context.Context, op string, me int64, otherRef string) (models.User, models.User, error) {
	other, err := s.users.GetByRef(ctx, otherRef)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, models.User{}, newError(KindInvalidUser, op, fmt.Errorf("user %q does not exist", otherRef))
	}
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("%s: load user: %w", op, err)
	}
	if other.ID == me {
		return models.User{}, models.User{}, newError(KindInvalidUser, op, ErrSelf)
	}
	meUser, err := s.user(ctx, op, me)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	return meUser, other, nil
}

// member loads a room by ref together with the caller's view of it.
func (s *Service) member(ctx context.Context, op string, me int64, roomRef string) (models.Room, models.RoomView, error) {
	room, err := s.store.Rooms().GetByRef(ctx, roomRef)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Room{}, models.RoomView{}, newError(KindRoomNotFound, op, nil)
	}
	if err != nil {
		return models.Room{}, models.RoomView{}, fmt.Errorf("%s: load room: %w", op, err)
	}
	view, err := s.store.Rooms().GetView(ctx, room.ID, me)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Room{}, models.RoomView{}, newError(KindRoomNotFound, op, nil)
	}
	if err != nil {
		return models.Room{}, models.RoomView{}, fmt.Errorf("%s: load view: %w", op, err)
	}
	return room, view, nil
}

// dispatch hands notification work to the dispatcher, or runs it inline when
// none is configured.
func (s *Service) dispatch(ctx context.Context, name string, job notify.Job) {
	if s.notifier == nil {
		return
	}
	if s.dispatcher == nil {
		job(ctx)
		return
	}
	s.dispatcher.Submit(ctx, name, job)
}
