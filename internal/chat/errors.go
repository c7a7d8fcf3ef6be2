package chat

import "errors"

// Kind classifies the failures callers of the chat core must handle.
type Kind uint8

const (
	KindInvalidUser Kind = iota + 1
	KindRoomNotFound
	KindChatDenied
	KindQuotaExceeded
	KindInvalidOrigin
)

// Code is the stable identifier exposed to API clients.
func (k Kind) Code() string {
	switch k {
	case KindInvalidUser:
		return "INVALID_USER"
	case KindRoomNotFound:
		return "ROOM_NOT_FOUND"
	case KindChatDenied:
		return "CHAT_DENIED"
	case KindQuotaExceeded:
		return "TICKET_EXHAUSTED"
	case KindInvalidOrigin:
		return "INVALID_ORIGIN"
	}
	return "UNKNOWN"
}

func (k Kind) String() string {
	switch k {
	case KindInvalidUser:
		return "invalid user"
	case KindRoomNotFound:
		return "room not found"
	case KindChatDenied:
		return "chat denied"
	case KindQuotaExceeded:
		return "express tickets exhausted for today"
	case KindInvalidOrigin:
		return "invalid origin message"
	}
	return "unknown error"
}

// Error is a classified chat failure. Op names the operation, Err the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidUser   = &Error{Kind: KindInvalidUser}
	ErrRoomNotFound  = &Error{Kind: KindRoomNotFound}
	ErrChatDenied    = &Error{Kind: KindChatDenied}
	ErrQuotaExceeded = &Error{Kind: KindQuotaExceeded}
	ErrInvalidOrigin = &Error{Kind: KindInvalidOrigin}
)

// ErrSelf is the cause of InvalidUser when both sides are the same user.
var ErrSelf = errors.New("cannot chat with yourself")

func newError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the kind of a classified error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
