package viewmodel

import (
	"time"

	"board-arena/internal/game"
	"board-arena/internal/store"
)

type PlayerView struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	IsBot    bool   `json:"is_bot"`
	AutoPlay bool   `json:"auto_play"`
}

// GameStateView is the authoritative snapshot pushed on reconnect and served
// to explicit state pulls.
type GameStateView struct {
	GameID          string       `json:"game_id"`
	RoomID          string       `json:"room_id"`
	Status          string       `json:"status"`
	Result          string       `json:"result,omitempty"`
	WinnerID        string       `json:"winner_id,omitempty"`
	Board           game.Board   `json:"board"`
	CurrentSymbol   string       `json:"current_symbol,omitempty"`
	CurrentUserID   string       `json:"current_user_id,omitempty"`
	MySymbol        string       `json:"my_symbol,omitempty"`
	MoveCount       int          `json:"move_count"`
	BetCC           int64        `json:"bet_cc"`
	Players         []PlayerView `json:"players"`
	StartedAt       time.Time    `json:"started_at"`
	LastMoveAt      time.Time    `json:"last_move_at"`
	TurnRemainingMS int64        `json:"turn_remaining_ms"`
	ExpiresInMS     int64        `json:"expires_in_ms"`
}

// Clock carries the windows remaining times are measured against.
type Clock struct {
	Now           time.Time
	AutoPlayAfter time.Duration
	Expiry        time.Duration
}

// BuildGameState derives remaining times from the recorded last-move time, so a
// reconnecting client never sees a stale countdown.
func BuildGameState(g *store.Game, viewerID string, users map[string]store.User, clk Clock) GameStateView {
	out := GameStateView{
		GameID:     g.ID,
		RoomID:     g.RoomID,
		Status:     string(g.Status),
		Result:     string(g.Result),
		WinnerID:   g.WinnerID,
		Board:      g.Board,
		MySymbol:   g.SymbolOf(viewerID).String(),
		MoveCount:  g.MoveCount,
		BetCC:      g.BetCC,
		StartedAt:  g.StartedAt,
		LastMoveAt: g.LastMoveAt,
		Players:    make([]PlayerView, 0, 2),
	}
	for _, sym := range []game.Symbol{game.X, game.O} {
		id := g.PlayerFor(sym)
		u := users[id]
		out.Players = append(out.Players, PlayerView{
			UserID:   id,
			Name:     u.Name,
			Symbol:   sym.String(),
			IsBot:    u.IsBot,
			AutoPlay: g.AutoPlay(sym),
		})
	}
	if !g.Active() {
		return out
	}
	out.CurrentSymbol = g.Current.String()
	out.CurrentUserID = g.PlayerFor(g.Current)
	idle := clk.Now.Sub(g.LastMoveAt)
	out.TurnRemainingMS = remainingMS(clk.AutoPlayAfter, idle)
	out.ExpiresInMS = remainingMS(clk.Expiry, idle)
	return out
}

func remainingMS(window, elapsed time.Duration) int64 {
	left := window - elapsed
	if left < 0 {
		return 0
	}
	return left.Milliseconds()
}
