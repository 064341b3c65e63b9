package coordinator

import (
	"context"
	"errors"
	"time"

	"board-arena/internal/game"
	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// sweepAutoPlay walks every active game once. It returns the number of games
// that received an automatic move.
func (c *Coordinator) sweepAutoPlay(ctx context.Context, now time.Time) int {
	games, err := c.store.ListActiveGames(ctx)
	if err != nil {
		log.Error().Err(err).Msg("auto_play_sweep_failed")
		return 0
	}
	moved := 0
	for _, g := range games {
		ok, err := c.autoPlayGame(ctx, g.ID, now)
		if err != nil {
			log.Warn().Err(err).Str("game_id", g.ID).Msg("auto_play_failed")
			continue
		}
		if ok {
			moved++
		}
	}
	return moved
}

// autoPlayGame flags the current player once they have been idle past the
// auto-play window and plays the first legal position for a flagged player,
// at most once per throttle interval per game. It reports whether a move was
// made.
func (c *Coordinator) autoPlayGame(ctx context.Context, gameID string, now time.Time) (bool, error) {
	unlock := c.gameLocks.Lock(gameID)
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		unlock()
		return false, err
	}
	if !g.Active() || g.Current == game.Empty {
		unlock()
		return false, nil
	}
	sym := g.Current
	userID := g.PlayerFor(sym)
	if c.isBot(userID) {
		unlock()
		return false, nil
	}

	enabled := false
	if !g.AutoPlay(sym) {
		if sinceOrZero(now, g.LastMoveAt) <= c.opts.AutoPlayAfter {
			unlock()
			return false, nil
		}
		g.SetAutoPlay(sym, true)
		enabled = true
	}

	c.mu.Lock()
	last, seen := c.lastAutoMove[g.ID]
	throttled := seen && now.Sub(last) < c.opts.AutoPlayThrottle
	if !throttled {
		c.lastAutoMove[g.ID] = now
	}
	c.mu.Unlock()

	var fx *moveEffects
	pos, ok := game.FirstLegal(g.Board)
	if throttled || !ok {
		if enabled {
			err = c.store.UpdateGame(ctx, *g)
		}
	} else {
		fx, err = c.commitMoveLocked(ctx, g, sym, pos, moveAuto, false)
	}
	unlock()
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if enabled {
		log.Info().Str("game_id", g.ID).Str("user_id", userID).Str("symbol", sym.String()).Msg("auto_play_enabled")
		c.broadcastRoom(g.RoomID, AutoPlayEvent{
			Type: EvtAutoPlayEnabled, RoomID: g.RoomID, GameID: g.ID,
			UserID: userID, Symbol: sym.String(), Reason: "inactive",
		}, "")
	}
	if fx == nil {
		return false, nil
	}
	metricAutoMovesTotal.Add(1)
	c.afterMove(ctx, fx)
	return true, nil
}

// sweepExpiry ends every active game whose last move is older than the expiry
// window.
func (c *Coordinator) sweepExpiry(ctx context.Context, now time.Time) int {
	games, err := c.store.ListActiveGames(ctx)
	if err != nil {
		log.Error().Err(err).Msg("expiry_sweep_failed")
		return 0
	}
	expired := 0
	for _, g := range games {
		if sinceOrZero(now, g.LastMoveAt) <= c.opts.GameExpiry {
			continue
		}
		ok, err := c.expireGame(ctx, g.ID, now)
		if err != nil {
			log.Warn().Err(err).Str("game_id", g.ID).Msg("expire_failed")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired
}

func (c *Coordinator) expireGame(ctx context.Context, gameID string, now time.Time) (bool, error) {
	unlock := c.gameLocks.Lock(gameID)
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		unlock()
		return false, err
	}
	if !g.Active() || sinceOrZero(now, g.LastMoveAt) <= c.opts.GameExpiry {
		unlock()
		return false, nil
	}
	ended := now.UTC()
	g.Status = game.StatusExpired
	g.Result = game.ResultExpired
	g.Current = game.Empty
	g.EndedAt = &ended
	err = c.store.UpdateGame(ctx, *g)
	unlock()
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	metricGamesExpired.Add(1)
	c.broadcastRoom(g.RoomID, GameOverEvent{
		Type: EvtGameOver, RoomID: g.RoomID, GameID: g.ID,
		Result: string(game.ResultExpired), Reason: "expired", Board: g.Board,
	}, "")
	c.afterFinish(ctx, g)
	return true, nil
}

// DisableAutoPlay hands control back to the caller without making a move. The
// idle clock restarts so the next sweep does not flag them again at once.
func (c *Coordinator) DisableAutoPlay(ctx context.Context, userID, gameID string) (*store.Game, error) {
	g, err := c.resolveGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	unlock := c.gameLocks.Lock(g.ID)
	g, err = c.store.GetGame(ctx, g.ID)
	if err != nil {
		unlock()
		return nil, err
	}
	sym := g.SymbolOf(userID)
	switch {
	case sym == game.Empty:
		unlock()
		return nil, game.ErrNotAParticipant
	case !g.Active():
		unlock()
		return nil, game.ErrGameNotActive
	case !g.AutoPlay(sym):
		unlock()
		return g, nil
	}
	g.SetAutoPlay(sym, false)
	g.LastMoveAt = c.now().UTC()
	err = c.store.UpdateGame(ctx, *g)
	unlock()
	if errors.Is(err, store.ErrConflict) {
		return nil, game.ErrGameNotActive
	}
	if err != nil {
		return nil, err
	}
	c.Touch(userID)
	c.broadcastRoom(g.RoomID, AutoPlayEvent{
		Type: EvtAutoPlayDisabled, RoomID: g.RoomID, GameID: g.ID,
		UserID: userID, Symbol: sym.String(), Reason: "manual",
	}, "")
	return g, nil
}
