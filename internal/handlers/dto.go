package handlers

import (
	"time"

	"social-chat/internal/chat"
	"social-chat/internal/models"
)

type pageMeta struct {
	PageNo     int   `json:"pageNo"`
	PageSize   int   `json:"pageSize"`
	TotalPage  int   `json:"totalPage"`
	TotalCount int64 `json:"totalCount"`
}

type pageResponse[T any] struct {
	Meta pageMeta `json:"meta"`
	List []T      `json:"list"`
}

func newPage[S, T any](p chat.Page[S], convert func(S) T) pageResponse[T] {
	list := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		list = append(list, convert(item))
	}
	return pageResponse[T]{
		Meta: pageMeta{
			PageNo:     p.Page,
			PageSize:   p.Size,
			TotalPage:  p.TotalPages(),
			TotalCount: p.Total,
		},
		List: list,
	}
}

type userResponse struct {
	Ref      string `json:"ref"`
	Nickname string `json:"nickname,omitempty"`
}

type messageResponse struct {
	ID        int64     `json:"id"`
	Sender    int64     `json:"sender"`
	Body      string    `json:"body"`
	Encoded   bool      `json:"encoded"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toMessage(m models.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Sender:    m.Sender,
		Body:      m.Body,
		Encoded:   m.Encoded,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type roomResponse struct {
	Ref       string       `json:"ref"`
	Title     string       `json:"title"`
	IsBlocked bool         `json:"isBlock"`
	LastRead  int64        `json:"lastRead"`
	Peer      userResponse `json:"peer"`
	CreatedAt time.Time    `json:"createdAt"`
}

func toRoom(conv chat.Conversation) roomResponse {
	return roomResponse{
		Ref:       conv.Room.Ref,
		Title:     conv.View.Title,
		IsBlocked: conv.View.IsBlocked,
		LastRead:  conv.View.LastRead,
		Peer:      userResponse{Ref: conv.Peer.Ref, Nickname: conv.Peer.Nickname},
		CreatedAt: conv.Room.CreatedAt,
	}
}

type roomSummaryResponse struct {
	Ref       string           `json:"ref"`
	Title     string           `json:"title"`
	IsBlocked bool             `json:"isBlock"`
	LastRead  int64            `json:"lastRead"`
	Unread    int64            `json:"unread"`
	Peer      userResponse     `json:"peer"`
	LastChat  *messageResponse `json:"lastChat"`
}

func toRoomSummary(s models.RoomSummary) roomSummaryResponse {
	out := roomSummaryResponse{
		Ref:       s.RoomRef,
		Title:     s.Title,
		IsBlocked: s.IsBlocked,
		LastRead:  s.LastRead,
		Unread:    s.Unread,
		Peer:      userResponse{Ref: s.PeerRef, Nickname: s.PeerNickname},
	}
	if s.LastMessageID.Valid {
		out.LastChat = &messageResponse{
			ID:        s.LastMessageID.Int64,
			Sender:    s.LastSender.Int64,
			Body:      s.LastBody.String,
			Encoded:   s.LastEncoded.Bool,
			CreatedAt: s.LastAt.Time,
			UpdatedAt: s.LastAt.Time,
		}
	}
	return out
}
