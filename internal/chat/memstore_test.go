package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

// memState is the data behind memStore. clone gives an independent copy used
// to roll back a failed transaction.
type memState struct {
	users    map[int64]models.User
	rooms    []models.Room
	views    []models.RoomView
	messages []models.Message
	tickets  []models.ExpressTicket
	nextID   int64
}

func (st *memState) clone() *memState {
	users := make(map[int64]models.User, len(st.users))
	for k, v := range st.users {
		users[k] = v
	}
	return &memState{
		users:    users,
		rooms:    append([]models.Room(nil), st.rooms...),
		views:    append([]models.RoomView(nil), st.views...),
		messages: append([]models.Message(nil), st.messages...),
		tickets:  append([]models.ExpressTicket(nil), st.tickets...),
		nextID:   st.nextID,
	}
}

func (st *memState) id() int64 {
	st.nextID++
	return st.nextID
}

// memStore emulates the postgres store: transactions are serialisable and
// the (user_a, user_b) pair is unique.
type memStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool

	// onPairMiss runs after a FindByPair miss outside a transaction, with
	// no lock held.
	onPairMiss func()

	// faults makes the named write fail before it touches state. Shared
	// with transaction-scoped copies.
	faults map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		mu:     &sync.Mutex{},
		state:  &memState{users: map[int64]models.User{}},
		faults: map[string]error{},
	}
}

// failOn injects err into every later call of op ("tickets.create",
// "messages.append", "messages.update_body").
func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *memStore) addUser(id int64, ref, nickname string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{ID: id, Ref: ref, Nickname: nickname}
	s.state.users[id] = u
	return u
}

func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) snapshot() *memState {
	unlock := s.lock()
	defer unlock()
	return s.state.clone()
}

func (s *memStore) Rooms() repositories.RoomRepository       { return memRooms{s} }
func (s *memStore) Messages() repositories.MessageRepository { return memMessages{s} }
func (s *memStore) Tickets() repositories.TicketRepository   { return memTickets{s} }

func (s *memStore) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.clone()
	tx := &memStore{mu: s.mu, state: s.state, inTx: true, faults: s.faults}
	if err := fn(tx); err != nil {
		*s.state = *saved
		return err
	}
	return nil
}

// users

type memUsers struct{ s *memStore }

func (u memUsers) GetByID(ctx context.Context, id int64) (models.User, error) {
	unlock := u.s.lock()
	defer unlock()
	user, ok := u.s.state.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (u memUsers) GetByRef(ctx context.Context, ref string) (models.User, error) {
	unlock := u.s.lock()
	defer unlock()
	for _, user := range u.s.state.users {
		if user.Ref == ref {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

// rooms

type memRooms struct{ s *memStore }

func (r memRooms) FindByPair(ctx context.Context, a, b int64) (models.Room, error) {
	unlock := r.s.lock()
	for _, room := range r.s.state.rooms {
		if room.UserA == a && room.UserB == b {
			unlock()
			return room, nil
		}
	}
	unlock()
	if !r.s.inTx && r.s.onPairMiss != nil {
		r.s.onPairMiss()
	}
	return models.Room{}, repositories.ErrNotFound
}

func (r memRooms) GetByRef(ctx context.Context, ref string) (models.Room, error) {
	unlock := r.s.lock()
	defer unlock()
	for _, room := range r.s.state.rooms {
		if room.Ref == ref {
			return room, nil
		}
	}
	return models.Room{}, repositories.ErrNotFound
}

func (r memRooms) Create(ctx context.Context, room models.Room) (models.Room, error) {
	unlock := r.s.lock()
	defer unlock()
	if room.UserA >= room.UserB {
		panic("rooms must be stored with user_a < user_b")
	}
	for _, existing := range r.s.state.rooms {
		if existing.UserA == room.UserA && existing.UserB == room.UserB {
			return models.Room{}, repositories.ErrDuplicate
		}
	}
	room.ID = r.s.state.id()
	room.CreatedAt = time.Now()
	r.s.state.rooms = append(r.s.state.rooms, room)
	return room, nil
}

func (r memRooms) CreateView(ctx context.Context, view models.RoomView) (models.RoomView, error) {
	unlock := r.s.lock()
	defer unlock()
	for _, existing := range r.s.state.views {
		if existing.RoomID == view.RoomID && existing.UserID == view.UserID {
			return models.RoomView{}, repositories.ErrDuplicate
		}
	}
	view.ID = r.s.state.id()
	view.CreatedAt = time.Now()
	view.UpdatedAt = view.CreatedAt
	r.s.state.views = append(r.s.state.views, view)
	return view, nil
}

func (r memRooms) view(roomID, userID int64) *models.RoomView {
	for i := range r.s.state.views {
		if r.s.state.views[i].RoomID == roomID && r.s.state.views[i].UserID == userID {
			return &r.s.state.views[i]
		}
	}
	return nil
}

func (r memRooms) GetView(ctx context.Context, roomID, userID int64) (models.RoomView, error) {
	unlock := r.s.lock()
	defer unlock()
	if v := r.view(roomID, userID); v != nil {
		return *v, nil
	}
	return models.RoomView{}, repositories.ErrNotFound
}

func (r memRooms) SetBlocked(ctx context.Context, roomID, userID int64, blocked bool) error {
	unlock := r.s.lock()
	defer unlock()
	v := r.view(roomID, userID)
	if v == nil {
		return repositories.ErrNotFound
	}
	v.IsBlocked = blocked
	return nil
}

func (r memRooms) AdvanceWatermark(ctx context.Context, roomID, userID, messageID int64) error {
	unlock := r.s.lock()
	defer unlock()
	v := r.view(roomID, userID)
	if v == nil {
		return repositories.ErrNotFound
	}
	if messageID > v.LastRead {
		v.LastRead = messageID
	}
	return nil
}

func (r memRooms) unread(v models.RoomView) int64 {
	var n int64
	for _, m := range r.s.state.messages {
		if m.RoomID == v.RoomID && m.ID > v.LastRead && m.Sender != v.UserID {
			n++
		}
	}
	return n
}

func (r memRooms) ListSummaries(ctx context.Context, userID int64, blocked bool, limit, offset int) ([]models.RoomSummary, error) {
	unlock := r.s.lock()
	defer unlock()

	var out []models.RoomSummary
	for _, v := range r.s.state.views {
		if v.UserID != userID || v.IsBlocked != blocked {
			continue
		}
		var room models.Room
		for _, candidate := range r.s.state.rooms {
			if candidate.ID == v.RoomID {
				room = candidate
			}
		}
		peer := r.s.state.users[room.Peer(userID)]
		sum := models.RoomSummary{
			RoomID:       room.ID,
			RoomRef:      room.Ref,
			Title:        v.Title,
			IsBlocked:    v.IsBlocked,
			LastRead:     v.LastRead,
			PeerID:       peer.ID,
			PeerRef:      peer.Ref,
			PeerNickname: peer.Nickname,
			Unread:       r.unread(v),
		}
		for _, m := range r.s.state.messages {
			if m.RoomID == room.ID && m.ID > sum.LastMessageID.Int64 {
				sum.LastMessageID.Int64, sum.LastMessageID.Valid = m.ID, true
				sum.LastBody.String, sum.LastBody.Valid = m.Body, true
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageID, out[j].LastMessageID
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Int64 != b.Int64 {
			return a.Int64 > b.Int64
		}
		return out[i].RoomID > out[j].RoomID
	})
	if offset >= len(out) {
		return []models.RoomSummary{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memRooms) CountViews(ctx context.Context, userID int64, blocked bool) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	var n int64
	for _, v := range r.s.state.views {
		if v.UserID == userID && v.IsBlocked == blocked {
			n++
		}
	}
	return n, nil
}

func (r memRooms) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	var n int64
	for _, v := range r.s.state.views {
		if v.UserID == userID && !v.IsBlocked {
			n += r.unread(v)
		}
	}
	return n, nil
}

// messages

type memMessages struct{ s *memStore }

func (m memMessages) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	unlock := m.s.lock()
	defer unlock()
	if err := m.s.faults["messages.append"]; err != nil {
		return models.Message{}, err
	}
	msg.ID = m.s.state.id()
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	m.s.state.messages = append(m.s.state.messages, msg)
	return msg, nil
}

func (m memMessages) Get(ctx context.Context, id int64) (models.Message, error) {
	unlock := m.s.lock()
	defer unlock()
	for _, msg := range m.s.state.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return models.Message{}, repositories.ErrNotFound
}

func (m memMessages) UpdateBody(ctx context.Context, id int64, body string) error {
	unlock := m.s.lock()
	defer unlock()
	if err := m.s.faults["messages.update_body"]; err != nil {
		return err
	}
	for i := range m.s.state.messages {
		if m.s.state.messages[i].ID == id {
			m.s.state.messages[i].Body = body
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m memMessages) MaxID(ctx context.Context, roomID int64) (int64, error) {
	unlock := m.s.lock()
	defer unlock()
	var max int64
	for _, msg := range m.s.state.messages {
		if msg.RoomID == roomID && msg.ID > max {
			max = msg.ID
		}
	}
	return max, nil
}

func (m memMessages) anchored(roomID, beforeID int64) []models.Message {
	var out []models.Message
	for _, msg := range m.s.state.messages {
		if msg.RoomID == roomID && (beforeID == 0 || msg.ID <= beforeID) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m memMessages) History(ctx context.Context, roomID, beforeID int64, limit, offset int) ([]models.Message, error) {
	unlock := m.s.lock()
	defer unlock()
	out := m.anchored(roomID, beforeID)
	if offset >= len(out) {
		return []models.Message{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memMessages) CountHistory(ctx context.Context, roomID, beforeID int64) (int64, error) {
	unlock := m.s.lock()
	defer unlock()
	return int64(len(m.anchored(roomID, beforeID))), nil
}

// tickets

type memTickets struct{ s *memStore }

func (t memTickets) LockSender(ctx context.Context, sender int64) error {
	if !t.s.inTx {
		panic("LockSender outside a transaction")
	}
	return nil
}

func (t memTickets) CountBetween(ctx context.Context, sender int64, from, to time.Time) (int, error) {
	unlock := t.s.lock()
	defer unlock()
	n := 0
	for _, tk := range t.s.state.tickets {
		if tk.Sender == sender && !tk.CreatedAt.Before(from) && tk.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t memTickets) Create(ctx context.Context, tk models.ExpressTicket) (models.ExpressTicket, error) {
	unlock := t.s.lock()
	defer unlock()
	if err := t.s.faults["tickets.create"]; err != nil {
		return models.ExpressTicket{}, err
	}
	tk.ID = t.s.state.id()
	t.s.state.tickets = append(t.s.state.tickets, tk)
	return tk, nil
}
