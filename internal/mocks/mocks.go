package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-chat/internal/chat"
	"social-chat/internal/models"
	"social-chat/internal/notify"
	"social-chat/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int64) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByRef(ctx context.Context, ref string) (models.User, error) {
	args := m.Called(ctx, ref)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var out models.Notification
	if val := args.Get(0); val != nil {
		out = val.(models.Notification)
	}
	return out, args.Error(1)
}

func (m *NotificationRepositoryMock) CreateBatch(ctx context.Context, ns []models.Notification) ([]models.Notification, error) {
	args := m.Called(ctx, ns)
	var out []models.Notification
	if val := args.Get(0); val != nil {
		out = val.([]models.Notification)
	}
	return out, args.Error(1)
}

func (m *NotificationRepositoryMock) ListDevices(ctx context.Context, userID int64, limit int) ([]models.Device, error) {
	args := m.Called(ctx, userID, limit)
	var devices []models.Device
	if val := args.Get(0); val != nil {
		devices = val.([]models.Device)
	}
	return devices, args.Error(1)
}

func (m *NotificationRepositoryMock) DeleteDevice(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type PushGatewayMock struct {
	mock.Mock
}

func (m *PushGatewayMock) SendDevice(ctx context.Context, token string, data map[string]string) error {
	args := m.Called(ctx, token, data)
	return args.Error(0)
}

func (m *PushGatewayMock) SendTopic(ctx context.Context, topic string, data map[string]string) error {
	args := m.Called(ctx, topic, data)
	return args.Error(0)
}

// ChatServiceMock stands in for *chat.Service in handler tests.
type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) ListRooms(ctx context.Context, me int64, page, size int, blocked bool) (chat.Page[models.RoomSummary], error) {
	args := m.Called(ctx, me, page, size, blocked)
	var out chat.Page[models.RoomSummary]
	if val := args.Get(0); val != nil {
		out = val.(chat.Page[models.RoomSummary])
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) GetRoomByUser(ctx context.Context, me int64, otherRef string) (chat.Conversation, error) {
	args := m.Called(ctx, me, otherRef)
	var out chat.Conversation
	if val := args.Get(0); val != nil {
		out = val.(chat.Conversation)
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) UnreadCount(ctx context.Context, me int64) (int64, error) {
	args := m.Called(ctx, me)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ChatServiceMock) History(ctx context.Context, me int64, roomRef string, page, size int, beforeID int64) (chat.Page[models.Message], error) {
	args := m.Called(ctx, me, roomRef, page, size, beforeID)
	var out chat.Page[models.Message]
	if val := args.Get(0); val != nil {
		out = val.(chat.Page[models.Message])
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) MarkRead(ctx context.Context, me int64, roomRef string) error {
	args := m.Called(ctx, me, roomRef)
	return args.Error(0)
}

func (m *ChatServiceMock) RemainingToday(ctx context.Context, sender int64) (int, error) {
	args := m.Called(ctx, sender)
	return args.Int(0), args.Error(1)
}

func (m *ChatServiceMock) SendTicket(ctx context.Context, me int64, otherRef string, originID int64) (models.Message, error) {
	args := m.Called(ctx, me, otherRef, originID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) SetBlocked(ctx context.Context, me int64, otherRef string, blocked bool) error {
	args := m.Called(ctx, me, otherRef, blocked)
	return args.Error(0)
}

func (m *ChatServiceMock) SendMessage(ctx context.Context, me int64, roomRef, body string) (models.Message, error) {
	args := m.Called(ctx, me, roomRef, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

// TopicPublisherMock stands in for the fanout behind the debug routes.
type TopicPublisherMock struct {
	mock.Mock
}

func (m *TopicPublisherMock) PublishTopic(ctx context.Context, targets []int64, category notify.Category, p notify.Payload) error {
	args := m.Called(ctx, targets, category, p)
	return args.Error(0)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ notify.PushGateway = (*PushGatewayMock)(nil)
