package store

import (
	"time"

	"board-arena/internal/game"
)

const (
	RoomWaiting = "waiting"
	RoomPlaying = "playing"
	RoomClosed  = "closed"

	RoomKindMatch   = "match"
	RoomKindPrivate = "private"
	RoomKindBot     = "bot"

	RolePlayer    = "player"
	RoleSpectator = "spectator"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	IsBot     bool      `json:"is_bot"`
	BalanceCC int64     `json:"balance_cc"`
	CreatedAt time.Time `json:"created_at"`
}

type Room struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HostID     string    `json:"host_id"`
	BetCC      int64     `json:"bet_cc"`
	Status     string    `json:"status"`
	Kind       string    `json:"kind"`
	Difficulty string    `json:"difficulty,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Participant struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Game struct {
	ID         string
	RoomID     string
	PlayerX    string
	PlayerO    string
	Board      game.Board
	Current    game.Symbol
	Status     game.Status
	Result     game.Result
	WinnerID   string
	AutoPlayX  bool
	AutoPlayO  bool
	MoveCount  int
	BetCC      int64
	StartedAt  time.Time
	LastMoveAt time.Time
	EndedAt    *time.Time
}

func (g *Game) Active() bool {
	return g.Status == game.StatusActive
}

// SymbolOf returns the seat held by userID, or game.Empty for non-players.
func (g *Game) SymbolOf(userID string) game.Symbol {
	switch userID {
	case "":
		return game.Empty
	case g.PlayerX:
		return game.X
	case g.PlayerO:
		return game.O
	default:
		return game.Empty
	}
}

func (g *Game) PlayerFor(s game.Symbol) string {
	switch s {
	case game.X:
		return g.PlayerX
	case game.O:
		return g.PlayerO
	default:
		return ""
	}
}

func (g *Game) OpponentOf(userID string) string {
	return g.PlayerFor(g.SymbolOf(userID).Opponent())
}

func (g *Game) AutoPlay(s game.Symbol) bool {
	switch s {
	case game.X:
		return g.AutoPlayX
	case game.O:
		return g.AutoPlayO
	default:
		return false
	}
}

func (g *Game) SetAutoPlay(s game.Symbol, on bool) {
	switch s {
	case game.X:
		g.AutoPlayX = on
	case game.O:
		g.AutoPlayO = on
	}
}
