package store

import (
	"context"
	"fmt"
	"time"

	"board-arena/internal/game"

	"github.com/jackc/pgx/v5/pgtype"
)

const gameColumns = `id, room_id, player_x, player_o, board, current_symbol, status, result, winner_id,
	auto_play_x, auto_play_o, move_count, bet_cc, started_at, last_move_at, ended_at`

func scanGame(row rowScanner) (*Game, error) {
	var (
		g       Game
		board   string
		current string
		status  string
		result  string
		winner  pgtype.Text
		endedAt pgtype.Timestamptz
	)
	err := row.Scan(&g.ID, &g.RoomID, &g.PlayerX, &g.PlayerO, &board, &current, &status, &result, &winner,
		&g.AutoPlayX, &g.AutoPlayO, &g.MoveCount, &g.BetCC, &g.StartedAt, &g.LastMoveAt, &endedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if g.Board, err = game.ParseBoard(board); err != nil {
		return nil, fmt.Errorf("game %s board: %w", g.ID, err)
	}
	if g.Current, err = game.ParseSymbol(current); err != nil {
		return nil, fmt.Errorf("game %s current symbol: %w", g.ID, err)
	}
	g.Status = game.Status(status)
	g.Result = game.Result(result)
	g.WinnerID = textVal(winner)
	g.EndedAt = timePtrVal(endedAt)
	return &g, nil
}

func scanGames(rows interface {
	rowScanner
	Next() bool
	Err() error
	Close()
}) ([]Game, error) {
	defer rows.Close()
	out := []Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// CreateGame inserts an active game. A room holds at most one active game;
// violating that returns ErrConflict.
func (s *Store) CreateGame(ctx context.Context, g Game) (*Game, error) {
	if g.ID == "" {
		g.ID = NewID()
	}
	now := time.Now().UTC()
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
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO games (id, room_id, player_x, player_o, board, current_symbol, status, result,
		                    bet_cc, started_at, last_move_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+gameColumns,
		g.ID, g.RoomID, g.PlayerX, g.PlayerO, g.Board.String(), g.Current.String(), string(g.Status),
		string(g.Result), g.BetCC, g.StartedAt, g.LastMoveAt)
	out, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", mapUnique(err))
	}
	return out, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (*Game, error) {
	return scanGame(s.Pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
}

// UpdateGame writes the mutable fields of an active game. It returns
// ErrConflict when the stored row is no longer active.
func (s *Store) UpdateGame(ctx context.Context, g Game) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE games
		    SET board = $2, current_symbol = $3, status = $4, result = $5, winner_id = $6,
		        auto_play_x = $7, auto_play_o = $8, move_count = $9, last_move_at = $10, ended_at = $11
		  WHERE id = $1 AND status = 'active'`,
		g.ID, g.Board.String(), g.Current.String(), string(g.Status), string(g.Result), textParam(g.WinnerID),
		g.AutoPlayX, g.AutoPlayO, g.MoveCount, g.LastMoveAt, timeParam(g.EndedAt))
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) GetActiveGameByUser(ctx context.Context, userID string) (*Game, error) {
	return scanGame(s.Pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games
		  WHERE status = 'active' AND (player_x = $1 OR player_o = $1)
		  ORDER BY started_at DESC LIMIT 1`, userID))
}

func (s *Store) GetActiveGameByRoom(ctx context.Context, roomID string) (*Game, error) {
	return scanGame(s.Pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = 'active' AND room_id = $1`, roomID))
}

func (s *Store) ListActiveGames(ctx context.Context) ([]Game, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE status = 'active' ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	return scanGames(rows)
}
