package coordinator

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"board-arena/internal/eventbus"
	"board-arena/internal/game"
	"board-arena/internal/game/viewmodel"
	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	moveManual = "manual"
	moveAuto   = "auto"
	moveBot    = "bot"
)

// moveEffects is what a committed move must announce once the game lock is
// released.
type moveEffects struct {
	game          store.Game
	userID        string
	symbol        game.Symbol
	position      game.Position
	outcome       game.Outcome
	source        string
	regainControl bool
}

// startRoomGame creates the active game for a room, X moving first. It is
// serialized per room and idempotent: a room that already has an active game
// returns it. The human players' key locks are held while the seating is
// re-checked so neither can move to another room mid-start.
func (c *Coordinator) startRoomGame(ctx context.Context, room *store.Room, playerX, playerO string) (*store.Game, error) {
	unlockUsers := c.lockHumans(playerX, playerO)
	unlock := c.gameLocks.Lock("room:" + room.ID)
	g, created, err := c.createGameLocked(ctx, room, playerX, playerO)
	unlock()
	unlockUsers()
	if err != nil {
		return nil, err
	}
	if created {
		metricGamesStarted.Add(1)
		log.Info().Str("room_id", room.ID).Str("game_id", g.ID).Str("player_x", playerX).Str("player_o", playerO).Msg("game_started")
		c.publish(eventbus.SubjectGameStarted, eventbus.Event{RoomID: room.ID, GameID: g.ID, UserIDs: []string{playerX, playerO}})
	}
	c.announceStart(ctx, g)
	return g, nil
}

func (c *Coordinator) createGameLocked(ctx context.Context, room *store.Room, playerX, playerO string) (*store.Game, bool, error) {
	if g, err := c.store.GetActiveGameByRoom(ctx, room.ID); err == nil {
		return g, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	if err := c.requireSeated(ctx, room.ID, playerX, playerO); err != nil {
		return nil, false, err
	}
	for _, uid := range []string{playerX, playerO} {
		// Bots sit in any number of rooms at once.
		if c.isBot(uid) {
			continue
		}
		g, err := c.store.GetActiveGameByUser(ctx, uid)
		if err == nil && g.RoomID != room.ID {
			return nil, false, ErrActiveGameElsewhere
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}
	}
	now := c.now().UTC()
	g, err := c.store.CreateGame(ctx, store.Game{
		RoomID:     room.ID,
		PlayerX:    playerX,
		PlayerO:    playerO,
		Current:    game.X,
		Status:     game.StatusActive,
		BetCC:      room.BetCC,
		StartedAt:  now,
		LastMoveAt: now,
	})
	if errors.Is(err, store.ErrConflict) {
		existing, gerr := c.store.GetActiveGameByRoom(ctx, room.ID)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := c.store.UpdateRoomStatus(ctx, room.ID, store.RoomPlaying); err != nil {
		log.Warn().Err(err).Str("room_id", room.ID).Msg("room_status_update_failed")
	}
	c.mu.Lock()
	for _, uid := range []string{playerX, playerO} {
		if _, bot := c.bots[uid]; !bot {
			c.setInGameLocked(uid, room.ID, g.ID, true)
		}
	}
	c.mu.Unlock()
	return g, true, nil
}

// lockHumans takes the key locks of the non-bot users in sorted order and
// returns a func releasing them in reverse.
func (c *Coordinator) lockHumans(userIDs ...string) func() {
	keys := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		if c.isBot(uid) || slices.Contains(keys, uid) {
			continue
		}
		keys = append(keys, uid)
	}
	sort.Strings(keys)
	unlocks := make([]func(), 0, len(keys))
	for _, k := range keys {
		unlocks = append(unlocks, c.userLocks.Lock(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// requireSeated fails with ErrPlayerLeft unless every user is still a player
// of the room.
func (c *Coordinator) requireSeated(ctx context.Context, roomID string, userIDs ...string) error {
	members, err := c.store.ListParticipants(ctx, roomID)
	if err != nil {
		return err
	}
	for _, uid := range userIDs {
		seated := false
		for _, p := range members {
			if p.UserID == uid && p.Role == store.RolePlayer {
				seated = true
				break
			}
		}
		if !seated {
			return ErrPlayerLeft
		}
	}
	return nil
}

// announceStart hands game_started to the outbox for every distinct user in
// the room.
func (c *Coordinator) announceStart(ctx context.Context, g *store.Game) {
	ev := GameStartedEvent{
		Type:        EvtGameStarted,
		AckRequired: true,
		RoomID:      g.RoomID,
		GameID:      g.ID,
		PlayerX:     c.playerRef(ctx, g.PlayerX),
		PlayerO:     c.playerRef(ctx, g.PlayerO),
		Current:     g.Current.String(),
		BetCC:       g.BetCC,
		Board:       g.Board,
		StartedAt:   g.StartedAt.UnixMilli(),
	}
	c.outbox.BroadcastGameStarted(g.RoomID, g.ID, c.roomRecipients(g.RoomID), func(messageID string) []byte {
		ev.MessageID = messageID
		return encode(ev)
	})
	if g.Active() && c.isBot(g.PlayerFor(g.Current)) {
		c.scheduleBotMove(g.ID)
	}
}

func (c *Coordinator) playerRef(ctx context.Context, userID string) PlayerRef {
	return PlayerRef{UserID: userID, Name: c.userName(ctx, userID), IsBot: c.isBot(userID)}
}

func (c *Coordinator) resolveGame(ctx context.Context, userID, gameID string) (*store.Game, error) {
	var (
		g   *store.Game
		err error
	)
	if gameID != "" {
		g, err = c.store.GetGame(ctx, gameID)
	} else {
		g, err = c.store.GetActiveGameByUser(ctx, userID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return g, err
}

// Move applies a manual move. A move by a player under auto-play hands control
// back to them.
func (c *Coordinator) Move(ctx context.Context, userID, gameID string, pos game.Position) (*store.Game, error) {
	g, err := c.resolveGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	unlock := c.gameLocks.Lock(g.ID)
	fx, err := c.moveLocked(ctx, g.ID, userID, pos)
	unlock()
	if err != nil {
		return nil, err
	}
	c.Touch(userID)
	c.afterMove(ctx, fx)
	return &fx.game, nil
}

func (c *Coordinator) moveLocked(ctx context.Context, gameID, userID string, pos game.Position) (*moveEffects, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.Active() {
		return nil, game.ErrGameNotActive
	}
	sym := g.SymbolOf(userID)
	regain := sym != game.Empty && g.AutoPlay(sym)
	g.SetAutoPlay(sym, false)
	return c.commitMoveLocked(ctx, g, sym, pos, moveManual, regain)
}

// commitMoveLocked validates, applies and persists one move. The caller holds
// the game's key lock and has just re-read g.
func (c *Coordinator) commitMoveLocked(ctx context.Context, g *store.Game, sym game.Symbol, pos game.Position, source string, regain bool) (*moveEffects, error) {
	out, err := game.Play(g.Board, g.Current, sym, pos)
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	g.Board = out.Board
	g.MoveCount++
	g.LastMoveAt = now
	if out.Finished {
		g.Status = game.StatusFinished
		g.Result = out.Result
		g.Current = game.Empty
		if out.Winner != game.Empty {
			g.WinnerID = g.PlayerFor(out.Winner)
		}
		g.EndedAt = &now
	} else {
		g.Current = out.Next
	}
	if err := c.store.UpdateGame(ctx, *g); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, game.ErrGameNotActive
		}
		return nil, err
	}
	metricMovesTotal.Add(1)
	return &moveEffects{
		game:          *g,
		userID:        g.PlayerFor(sym),
		symbol:        sym,
		position:      pos,
		outcome:       out,
		source:        source,
		regainControl: regain,
	}, nil
}

// afterMove broadcasts a committed move and schedules whoever acts next.
func (c *Coordinator) afterMove(ctx context.Context, fx *moveEffects) {
	g := &fx.game
	if fx.regainControl {
		c.broadcastRoom(g.RoomID, AutoPlayEvent{
			Type: EvtAutoPlayDisabled, RoomID: g.RoomID, GameID: g.ID,
			UserID: fx.userID, Symbol: fx.symbol.String(), Reason: "regained_control",
		}, "")
	}
	c.broadcastRoom(g.RoomID, MoveEvent{
		Type:      EvtMove,
		RoomID:    g.RoomID,
		GameID:    g.ID,
		UserID:    fx.userID,
		Symbol:    fx.symbol.String(),
		Position:  int(fx.position),
		Board:     g.Board,
		Next:      g.Current.String(),
		MoveCount: g.MoveCount,
		Auto:      fx.source == moveAuto,
	}, "")
	if fx.outcome.Finished {
		if fx.outcome.Result == game.ResultWin {
			c.broadcastRoom(g.RoomID, WinningMoveEvent{
				Type: EvtWinningMove, RoomID: g.RoomID, GameID: g.ID,
				Symbol: fx.outcome.Winner.String(), Line: positions(fx.outcome.Line),
			}, "")
		}
		c.broadcastRoom(g.RoomID, GameOverEvent{
			Type: EvtGameOver, RoomID: g.RoomID, GameID: g.ID,
			Result: string(g.Result), WinnerID: g.WinnerID, Board: g.Board,
		}, "")
		c.afterFinish(ctx, g)
		return
	}
	next := g.PlayerFor(g.Current)
	switch {
	case c.isBot(next):
		c.scheduleBotMove(g.ID)
	case g.AutoPlay(g.Current):
		gameID := g.ID
		c.after(c.opts.AutoPlayThrottle, func() {
			if _, err := c.autoPlayGame(c.ctx, gameID, c.now()); err != nil {
				log.Warn().Err(err).Str("game_id", gameID).Msg("auto_play_followup_failed")
			}
		})
	}
}

// afterFinish runs once per terminal game: pending starts are cancelled, the
// room returns to waiting (bot rooms close) and in-game flags are cleared.
func (c *Coordinator) afterFinish(ctx context.Context, g *store.Game) {
	c.outbox.CancelGame(g.ID)
	metricGamesFinished.Add(1)

	c.mu.Lock()
	delete(c.lastAutoMove, g.ID)
	for _, uid := range []string{g.PlayerX, g.PlayerO} {
		if st := c.userRooms[uid]; st != nil && st.gameID == g.ID {
			st.inGame = false
			st.gameID = ""
		}
	}
	c.mu.Unlock()

	c.publish(eventbus.SubjectGameFinished, eventbus.Event{
		RoomID:  g.RoomID,
		GameID:  g.ID,
		UserIDs: []string{g.PlayerX, g.PlayerO},
		Data:    map[string]any{"status": string(g.Status), "result": string(g.Result), "winner_id": g.WinnerID},
	})
	log.Info().Str("game_id", g.ID).Str("status", string(g.Status)).Str("result", string(g.Result)).Str("winner_id", g.WinnerID).Msg("game_finished")

	room, err := c.store.GetRoom(ctx, g.RoomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", g.RoomID).Msg("finish_room_lookup_failed")
		return
	}
	if room.Kind == store.RoomKindBot {
		c.closeRoom(ctx, room.ID, EvtRoomEnded, g.ID, string(g.Result))
		return
	}
	if room.Status == store.RoomPlaying {
		if err := c.store.UpdateRoomStatus(ctx, room.ID, store.RoomWaiting); err != nil {
			log.Warn().Err(err).Str("room_id", room.ID).Msg("room_status_update_failed")
		}
	}
}

// Abandon awards the game to the remaining player when leaverID walks away from
// an active game. The session is re-read under the game lock so a game that
// already finished is never overwritten.
func (c *Coordinator) Abandon(ctx context.Context, gameID, leaverID string) (bool, error) {
	unlock := c.gameLocks.Lock(gameID)
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		unlock()
		return false, err
	}
	if !g.Active() || g.SymbolOf(leaverID) == game.Empty {
		unlock()
		return false, nil
	}
	now := c.now().UTC()
	g.Status = game.StatusFinished
	g.Result = game.ResultAbandonment
	g.WinnerID = g.OpponentOf(leaverID)
	g.Current = game.Empty
	g.EndedAt = &now
	err = c.store.UpdateGame(ctx, *g)
	unlock()
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metricGamesAbandoned.Add(1)
	c.broadcastRoom(g.RoomID, GameOverEvent{
		Type: EvtGameOver, RoomID: g.RoomID, GameID: g.ID,
		Result: string(game.ResultAbandonment), Reason: "opponent_left", WinnerID: g.WinnerID, Board: g.Board,
	}, "")
	c.afterFinish(ctx, g)
	return true, nil
}

// scheduleBotMove lets the synthetic opponent act after its think delay.
func (c *Coordinator) scheduleBotMove(gameID string) {
	if c.opts.BotMoveDelay <= 0 {
		c.playBotTurn(c.ctx, gameID)
		return
	}
	c.after(c.opts.BotMoveDelay, func() { c.playBotTurn(c.ctx, gameID) })
}

func (c *Coordinator) playBotTurn(ctx context.Context, gameID string) {
	unlock := c.gameLocks.Lock(gameID)
	fx, err := c.botMoveLocked(ctx, gameID)
	unlock()
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("bot_move_failed")
		return
	}
	if fx != nil {
		c.afterMove(ctx, fx)
	}
}

func (c *Coordinator) botMoveLocked(ctx context.Context, gameID string) (*moveEffects, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.Active() || !c.isBot(g.PlayerFor(g.Current)) {
		return nil, nil
	}
	difficulty := c.opts.BotDifficulty
	if room, err := c.store.GetRoom(ctx, g.RoomID); err == nil && room.Difficulty != "" {
		difficulty = room.Difficulty
	}
	pos, err := c.opponent.ChooseMove(g.Board, g.Current, difficulty)
	if err != nil {
		return nil, err
	}
	return c.commitMoveLocked(ctx, g, g.Current, pos, moveBot, false)
}

// GameState builds the authoritative view of a game for viewerID.
func (c *Coordinator) GameState(ctx context.Context, viewerID, gameID string) (*viewmodel.GameStateView, error) {
	g, err := c.resolveGame(ctx, viewerID, gameID)
	if err != nil {
		return nil, err
	}
	view := c.buildView(ctx, g, viewerID)
	return &view, nil
}

func (c *Coordinator) buildView(ctx context.Context, g *store.Game, viewerID string) viewmodel.GameStateView {
	users := map[string]store.User{}
	for _, id := range []string{g.PlayerX, g.PlayerO} {
		if u, err := c.store.GetUser(ctx, id); err == nil {
			users[id] = *u
		}
	}
	return viewmodel.BuildGameState(g, viewerID, users, viewmodel.Clock{
		Now:           c.now(),
		AutoPlayAfter: c.opts.AutoPlayAfter,
		Expiry:        c.opts.GameExpiry,
	})
}

// pushGameState sends the authoritative state to the user's most recent
// connection.
func (c *Coordinator) pushGameState(ctx context.Context, userID string, g *store.Game) {
	view := c.buildView(ctx, g, userID)
	c.sendToUser(userID, StateEvent{Type: EvtGameState, State: view})
}

func sinceOrZero(now, t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t)
}
