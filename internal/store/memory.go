package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"board-arena/internal/game"
)

// Memory is an in-process Store used for STORE_DRIVER=memory and tests. It
// honours the same uniqueness rules as the Postgres schema.
type Memory struct {
	mu           sync.Mutex
	users        map[string]User
	tokens       map[string]string
	rooms        map[string]Room
	participants map[string]map[string]Participant
	games        map[string]Game
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:        map[string]User{},
		tokens:       map[string]string{},
		rooms:        map[string]Room{},
		participants: map[string]map[string]Participant{},
		games:        map[string]Game{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) CreateUser(_ context.Context, name, token string, isBot bool, balance int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := HashToken(token)
	if _, ok := m.tokens[hash]; ok {
		return "", ErrConflict
	}
	u := User{ID: NewID(), Name: name, TokenHash: hash, IsBot: isBot, BalanceCC: balance, CreatedAt: m.now()}
	m.users[u.ID] = u
	m.tokens[hash] = u.ID
	return u.ID, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByToken(_ context.Context, token string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[HashToken(token)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *Memory) GetBalance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return u.BalanceCC, nil
}

// SetBalance is a test hook; balances are owned by the economy service.
func (m *Memory) SetBalance(userID string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.BalanceCC = balance
		m.users[userID] = u
	}
}

func (m *Memory) ListBots(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []User{}
	for _, u := range m.users {
		if u.IsBot {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) EnsureBotUsers(ctx context.Context, names []string, balance int64) error {
	bots, _ := m.ListBots(ctx)
	have := map[string]bool{}
	for _, b := range bots {
		have[b.Name] = true
	}
	for _, name := range names {
		if have[name] {
			continue
		}
		if _, err := m.CreateUser(ctx, name, "bot:"+NewID(), true, balance); err != nil {
			return err
		}
		have[name] = true
	}
	return nil
}

func (m *Memory) CreateRoom(_ context.Context, r Room) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = NewID()
	}
	if _, ok := m.rooms[r.ID]; ok {
		return nil, ErrConflict
	}
	if r.Status == "" {
		r.Status = RoomWaiting
	}
	if r.Kind == "" {
		r.Kind = RoomKindPrivate
	}
	r.Name = strings.TrimSpace(r.Name)
	r.CreatedAt = m.now()
	m.rooms[r.ID] = r
	return &r, nil
}

func (m *Memory) GetRoom(_ context.Context, id string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListOpenRooms(_ context.Context, limit int) ([]Room, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Room{}
	for _, r := range m.rooms {
		if r.Status != RoomClosed {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateRoomStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	m.rooms[id] = r
	return nil
}

func (m *Memory) AddParticipant(_ context.Context, roomID, userID, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return false, ErrNotFound
	}
	members := m.participants[roomID]
	if members == nil {
		members = map[string]Participant{}
		m.participants[roomID] = members
	}
	if _, ok := members[userID]; ok {
		return false, nil
	}
	members[userID] = Participant{RoomID: roomID, UserID: userID, Role: role, JoinedAt: m.now()}
	return true, nil
}

func (m *Memory) RemoveParticipant(_ context.Context, roomID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.participants[roomID]
	if _, ok := members[userID]; !ok {
		return false, nil
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(m.participants, roomID)
	}
	return true, nil
}

func (m *Memory) GetParticipantByUser(_ context.Context, userID string) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Participant
	for roomID, members := range m.participants {
		p, ok := members[userID]
		if !ok || m.rooms[roomID].Status == RoomClosed {
			continue
		}
		if best == nil || p.JoinedAt.After(best.JoinedAt) {
			cp := p
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *Memory) ListParticipants(_ context.Context, roomID string) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Participant, 0, len(m.participants[roomID]))
	for _, p := range m.participants[roomID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *Memory) CreateGame(_ context.Context, g Game) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[g.RoomID]; !ok {
		return nil, ErrNotFound
	}
	for _, existing := range m.games {
		if existing.RoomID == g.RoomID && existing.Active() {
			return nil, ErrConflict
		}
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	now := m.now()
	if g.StartedAt.IsZero() {
		g.StartedAt = now
	}
	if g.LastMoveAt.IsZero() {
		g.LastMoveAt = g.StartedAt
	}
	if g.Status == "" {
		g.Status = game.StatusActive
	}
	if g.Current == game.Empty {
		g.Current = game.X
	}
	m.games[g.ID] = g
	return &g, nil
}

func (m *Memory) GetGame(_ context.Context, id string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (m *Memory) UpdateGame(_ context.Context, g Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[g.ID]
	if !ok || !cur.Active() {
		return ErrConflict
	}
	cur.Board = g.Board
	cur.Current = g.Current
	cur.Status = g.Status
	cur.Result = g.Result
	cur.WinnerID = g.WinnerID
	cur.AutoPlayX = g.AutoPlayX
	cur.AutoPlayO = g.AutoPlayO
	cur.MoveCount = g.MoveCount
	cur.LastMoveAt = g.LastMoveAt
	cur.EndedAt = g.EndedAt
	m.games[g.ID] = cur
	return nil
}

func (m *Memory) GetActiveGameByUser(_ context.Context, userID string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Game
	for _, g := range m.games {
		if !g.Active() || (g.PlayerX != userID && g.PlayerO != userID) {
			continue
		}
		if best == nil || g.StartedAt.After(best.StartedAt) {
			cp := g
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *Memory) GetActiveGameByRoom(_ context.Context, roomID string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.RoomID == roomID && g.Active() {
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListActiveGames(context.Context) ([]Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Game{}
	for _, g := range m.games {
		if g.Active() {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ListGames returns every game in a room, any status. Tests use it to assert
// on terminal games.
func (m *Memory) ListGames(roomID string) []Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Game{}
	for _, g := range m.games {
		if g.RoomID == roomID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
