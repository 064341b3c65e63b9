package coordinator

import (
	"errors"
	"testing"
	"time"

	"board-arena/internal/game"
	"board-arena/internal/store"
)

func TestMoveWinBroadcastsWinningLine(t *testing.T) {
	h := newHarness(t)
	x, xConn := h.user("alice", 1000)
	o, oConn := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	for i, pos := range []int{0, 4, 1, 5, 2} {
		mover := x
		if i%2 == 1 {
			mover = o
		}
		h.move(mover, g.ID, pos)
	}

	after := h.game(g.ID)
	if after.Status != game.StatusFinished || after.Result != game.ResultWin || after.WinnerID != x {
		t.Fatalf("expected X to win, got %+v", after)
	}
	win := oConn.last(t, EvtWinningMove)
	line, _ := win["line"].([]any)
	if len(line) != 3 || line[0] != float64(0) || line[2] != float64(2) {
		t.Fatalf("unexpected winning line %v", win["line"])
	}
	if xConn.count(EvtMove) != 5 {
		t.Fatalf("expected 5 move frames, got %d", xConn.count(EvtMove))
	}
	if xConn.count(EvtGameOver) != 1 {
		t.Fatalf("expected one game_over")
	}
}

// The board fills with no three in a line.
func TestFullBoardIsDrawAndRejectsFurtherMoves(t *testing.T) {
	h := newHarness(t)
	x, xConn := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	for i, pos := range []int{0, 4, 2, 1, 7, 5, 3, 6, 8} {
		mover := x
		if i%2 == 1 {
			mover = o
		}
		h.move(mover, g.ID, pos)
	}

	after := h.game(g.ID)
	if after.Status != game.StatusFinished || after.Result != game.ResultDraw || after.WinnerID != "" {
		t.Fatalf("expected draw, got status=%s result=%s winner=%s", after.Status, after.Result, after.WinnerID)
	}
	if !after.Board.Full() {
		t.Fatalf("expected full board, got %s", after.Board)
	}
	over := xConn.last(t, EvtGameOver)
	if over["result"] != string(game.ResultDraw) {
		t.Fatalf("expected draw game_over, got %v", over)
	}
	if _, err := h.c.Move(h.ctx, o, g.ID, 0); !errors.Is(err, game.ErrGameNotActive) {
		t.Fatalf("expected game not active, got %v", err)
	}
	if xConn.count(EvtWinningMove) != 0 {
		t.Fatalf("expected no winning_move on a draw")
	}
}

func TestMoveValidation(t *testing.T) {
	h := newHarness(t)
	x, _ := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	outsider, _ := h.user("carol", 1000)
	g := h.privateGame(x, o, 0)

	if _, err := h.c.Move(h.ctx, o, g.ID, 0); !errors.Is(err, game.ErrInvalidTurn) {
		t.Fatalf("expected invalid turn, got %v", err)
	}
	if _, err := h.c.Move(h.ctx, x, g.ID, game.Center); !errors.Is(err, game.ErrInvalidPosition) {
		t.Fatalf("expected center rejected as first move, got %v", err)
	}
	if _, err := h.c.Move(h.ctx, outsider, g.ID, 0); !errors.Is(err, game.ErrNotAParticipant) {
		t.Fatalf("expected not a participant, got %v", err)
	}
	h.move(x, g.ID, 0)
	if _, err := h.c.Move(h.ctx, o, g.ID, 0); !errors.Is(err, game.ErrInvalidPosition) {
		t.Fatalf("expected occupied cell rejected, got %v", err)
	}
	if _, err := h.c.Move(h.ctx, o, "", 4); err != nil {
		t.Fatalf("expected move resolved from active game, got %v", err)
	}
}

func TestAbandonIsResolvedOnce(t *testing.T) {
	h := newHarness(t)
	x, xConn := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	first, err := h.c.Abandon(h.ctx, g.ID, o)
	if err != nil || !first {
		t.Fatalf("expected first abandon to finish the game, got %v %v", first, err)
	}
	second, err := h.c.Abandon(h.ctx, g.ID, x)
	if err != nil || second {
		t.Fatalf("expected second abandon to be ignored, got %v %v", second, err)
	}
	if after := h.game(g.ID); after.WinnerID != x {
		t.Fatalf("expected winner %s, got %s", x, after.WinnerID)
	}
	if xConn.count(EvtGameOver) != 1 {
		t.Fatalf("expected one game_over, got %d", xConn.count(EvtGameOver))
	}
}

func TestAutoPlayFlagsIdlePlayerAndMoves(t *testing.T) {
	h := newHarness(t)
	x, xConn := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	if moved := h.c.sweepAutoPlay(h.ctx, h.clock.Advance(30*time.Second)); moved != 0 {
		t.Fatalf("expected no auto move before the idle window, got %d", moved)
	}
	if moved := h.c.sweepAutoPlay(h.ctx, h.clock.Advance(31*time.Second)); moved != 1 {
		t.Fatalf("expected one auto move, got %d", moved)
	}
	after := h.game(g.ID)
	if !after.AutoPlayX || after.Board[0] != game.X || after.Current != game.O {
		t.Fatalf("expected X flagged and auto-played at 0, got %+v", after)
	}
	enabled := xConn.last(t, EvtAutoPlayEnabled)
	if enabled["user_id"] != x {
		t.Fatalf("unexpected auto_play_enabled %v", enabled)
	}
	if mv := xConn.last(t, EvtMove); mv["auto"] != true {
		t.Fatalf("expected auto move frame, got %v", mv)
	}
}

func TestAutoPlayThrottlesPerGame(t *testing.T) {
	h := newHarness(t)
	x, _ := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	h.c.sweepAutoPlay(h.ctx, h.clock.Advance(61*time.Second))
	h.move(o, g.ID, 4)

	if moved, err := h.c.autoPlayGame(h.ctx, g.ID, h.clock.Advance(time.Second)); err != nil || moved {
		t.Fatalf("expected throttled auto move, got moved=%v err=%v", moved, err)
	}
	if after := h.game(g.ID); after.Current != game.X || after.MoveCount != 2 {
		t.Fatalf("expected X still to move, got %+v", after)
	}
	moved, err := h.c.autoPlayGame(h.ctx, g.ID, h.clock.Advance(h.c.opts.AutoPlayThrottle))
	if err != nil || !moved {
		t.Fatalf("expected auto move once the throttle passed, got moved=%v err=%v", moved, err)
	}
}

func TestManualMoveRegainsControl(t *testing.T) {
	h := newHarness(t)
	x, _ := h.user("alice", 1000)
	o, oConn := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	h.c.sweepAutoPlay(h.ctx, h.clock.Advance(61*time.Second))
	h.move(o, g.ID, 4)
	h.move(x, g.ID, 8)

	after := h.game(g.ID)
	if after.AutoPlayX {
		t.Fatalf("expected manual move to clear auto-play")
	}
	disabled := oConn.last(t, EvtAutoPlayDisabled)
	if disabled["reason"] != "regained_control" || disabled["user_id"] != x {
		t.Fatalf("unexpected auto_play_disabled %v", disabled)
	}
}

func TestDisableAutoPlay(t *testing.T) {
	h := newHarness(t)
	x, xConn := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	h.c.sweepAutoPlay(h.ctx, h.clock.Advance(61*time.Second))
	h.move(o, g.ID, 4)

	got, err := h.c.DisableAutoPlay(h.ctx, x, g.ID)
	if err != nil {
		t.Fatalf("disable auto play: %v", err)
	}
	if got.AutoPlayX {
		t.Fatalf("expected flag cleared")
	}
	if d := xConn.last(t, EvtAutoPlayDisabled); d["reason"] != "manual" {
		t.Fatalf("unexpected auto_play_disabled %v", d)
	}
	if moved := h.c.sweepAutoPlay(h.ctx, h.clock.Advance(time.Second)); moved != 0 {
		t.Fatalf("expected the idle clock to restart, got %d auto moves", moved)
	}
	if _, err := h.c.DisableAutoPlay(h.ctx, "nobody", g.ID); !errors.Is(err, game.ErrNotAParticipant) {
		t.Fatalf("expected not a participant, got %v", err)
	}
}

func TestExpirySweepEndsStaleGames(t *testing.T) {
	h := newHarness(t)
	x, xConn := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	if n := h.c.sweepExpiry(h.ctx, h.clock.Advance(9*time.Minute)); n != 0 {
		t.Fatalf("expected no expiry yet, got %d", n)
	}
	if n := h.c.sweepExpiry(h.ctx, h.clock.Advance(2*time.Minute)); n != 1 {
		t.Fatalf("expected one expiry, got %d", n)
	}
	after := h.game(g.ID)
	if after.Status != game.StatusExpired || after.Result != game.ResultExpired {
		t.Fatalf("expected expired game, got status=%s result=%s", after.Status, after.Result)
	}
	if over := xConn.last(t, EvtGameOver); over["reason"] != "expired" {
		t.Fatalf("unexpected game_over %v", over)
	}
	room, _ := h.st.GetRoom(h.ctx, g.RoomID)
	if room.Status != store.RoomWaiting {
		t.Fatalf("expected room reverted to waiting, got %s", room.Status)
	}
	if _, err := h.c.Move(h.ctx, x, g.ID, 0); !errors.Is(err, game.ErrGameNotActive) {
		t.Fatalf("expected moves rejected after expiry, got %v", err)
	}
}

func TestGameStateRecomputesRemainingTime(t *testing.T) {
	h := newHarness(t)
	x, _ := h.user("alice", 1000)
	o, _ := h.user("bob", 1000)
	g := h.privateGame(x, o, 0)

	h.clock.Advance(20 * time.Second)
	view, err := h.c.GameState(h.ctx, o, "")
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if view.GameID != g.ID {
		t.Fatalf("expected game %s, got %s", g.ID, view.GameID)
	}
	if view.TurnRemainingMS != 40_000 {
		t.Fatalf("expected 40s of turn left, got %d", view.TurnRemainingMS)
	}
}
