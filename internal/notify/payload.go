package notify

import (
	"fmt"
	"strconv"
)

// Payload is the user-facing content of a notification. Data carries the
// category specific fields.
type Payload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	ClickURL string `json:"clickUrl,omitempty"`
	Data     any    `json:"data,omitempty"`

	// Subject identifies what the notification is about (room ref, post id).
	Subject string `json:"-"`
}

// SubjectKey builds the "<category>__<subject>" key stored with the row.
func (p Payload) SubjectKey(c Category) string {
	return string(c) + "__" + p.Subject
}

type TicketData struct {
	RoomRef   string `json:"roomRef"`
	FromRef   string `json:"fromRef"`
	MessageID int64  `json:"messageId"`
	Reply     bool   `json:"reply"`
}

type ChatData struct {
	RoomRef   string `json:"roomRef"`
	MessageID int64  `json:"messageId"`
	FromRef   string `json:"fromRef"`
}

type PostData struct {
	PostID         int64  `json:"postId"`
	AuthorNickname string `json:"authorNickname"`
}

type GroupData struct {
	GroupRef       string `json:"groupRef"`
	PostID         int64  `json:"postId"`
	AuthorNickname string `json:"authorNickname"`
}

func roomURL(ref string) string {
	return "/chat/room/" + ref
}

// TicketPayload describes a received express ticket or a reply to one.
func TicketPayload(fromNickname string, d TicketData) Payload {
	msg := fmt.Sprintf("%s sent you an express ticket", fromNickname)
	if d.Reply {
		msg = fmt.Sprintf("%s answered your express ticket", fromNickname)
	}
	return Payload{
		Title:    "Express ticket",
		Message:  msg,
		ClickURL: roomURL(d.RoomRef),
		Data:     d,
		Subject:  d.RoomRef,
	}
}

// ChatPayload describes a new direct message.
func ChatPayload(fromNickname, preview string, d ChatData) Payload {
	return Payload{
		Title:    fromNickname,
		Message:  preview,
		ClickURL: roomURL(d.RoomRef),
		Data:     d,
		Subject:  d.RoomRef,
	}
}

// PostPayload describes activity on a post.
func PostPayload(title, message string, d PostData) Payload {
	return Payload{
		Title:    title,
		Message:  message,
		ClickURL: "/post/" + strconv.FormatInt(d.PostID, 10),
		Data:     d,
		Subject:  strconv.FormatInt(d.PostID, 10),
	}
}

// GroupPayload describes a new post in a group.
func GroupPayload(title, message string, d GroupData) Payload {
	return Payload{
		Title:    title,
		Message:  message,
		ClickURL: "/group/" + d.GroupRef,
		Data:     d,
		Subject:  d.GroupRef,
	}
}

// SystemPayload is an operator announcement.
func SystemPayload(title, message, subject string) Payload {
	return Payload{Title: title, Message: message, Subject: subject}
}
