package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"board-arena/internal/game"
	"board-arena/internal/store"
)

func (h *harness) activeGames() []store.Game {
	h.t.Helper()
	games, err := h.st.ListActiveGames(h.ctx)
	if err != nil {
		h.t.Fatalf("list active games: %v", err)
	}
	return games
}

func (h *harness) queuedEntry(userID string) *queueEntry {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.queued[userID]
}

func TestJoinQueueValidation(t *testing.T) {
	h := newHarness(t)
	u1, _ := h.user("alice", 1000)

	if _, err := h.c.JoinQueue(h.ctx, u1, 0); !errors.Is(err, ErrInvalidBet) {
		t.Fatalf("expected invalid bet, got %v", err)
	}
	if _, err := h.c.JoinQueue(h.ctx, u1, 5000); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if _, err := h.c.JoinQueue(h.ctx, u1, 500); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if _, err := h.c.JoinQueue(h.ctx, u1, 500); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected already queued, got %v", err)
	}
	if !h.c.LeaveQueue(u1) {
		t.Fatalf("expected leave to report queued user")
	}
	if h.c.LeaveQueue(u1) {
		t.Fatalf("expected second leave to report nothing")
	}
}

func TestQueuePairsOnlyEqualBets(t *testing.T) {
	h := newHarness(t)
	u1, c1 := h.user("alice", 10_000)
	u2, c2 := h.user("bob", 10_000)
	u3, c3 := h.user("carol", 10_000)

	for _, j := range []struct {
		id  string
		bet int64
	}{{u1, 100}, {u2, 50}, {u3, 100}} {
		if _, err := h.c.JoinQueue(h.ctx, j.id, j.bet); err != nil {
			t.Fatalf("join queue %s: %v", j.id, err)
		}
	}

	games := h.activeGames()
	if len(games) != 1 {
		t.Fatalf("expected one game, got %d", len(games))
	}
	g := games[0]
	if g.PlayerX != u1 || g.PlayerO != u3 {
		t.Fatalf("expected alice vs carol, got %s vs %s", g.PlayerX, g.PlayerO)
	}
	if g.BetCC != 100 {
		t.Fatalf("expected bet 100, got %d", g.BetCC)
	}
	if c1.count(EvtMatchFound) != 1 || c3.count(EvtMatchFound) != 1 {
		t.Fatalf("expected match_found for both matched players")
	}
	if c2.count(EvtMatchFound) != 0 {
		t.Fatalf("expected bob to stay queued")
	}
	if h.c.QueueSize() != 1 {
		t.Fatalf("expected one user left in queue, got %d", h.c.QueueSize())
	}
}

// Two users queue the same bet in the same tick.
func TestSameTickQueuePairsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	u1, c1 := h.user("alice", 5_000_000)
	u2, c2 := h.user("bob", 5_000_000)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{u1, u2} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := h.c.JoinQueue(h.ctx, id, 1_000_000); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("join queue: %v", err)
	}

	games := h.activeGames()
	if len(games) != 1 {
		t.Fatalf("expected exactly one game, got %d", len(games))
	}
	if c1.count(EvtGameStarted) != 1 || c2.count(EvtGameStarted) != 1 {
		t.Fatalf("expected one game_started each, got %d and %d", c1.count(EvtGameStarted), c2.count(EvtGameStarted))
	}
	room, err := h.st.GetRoom(h.ctx, games[0].RoomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.Kind != store.RoomKindMatch || room.Status != store.RoomPlaying {
		t.Fatalf("expected playing match room, got kind=%s status=%s", room.Kind, room.Status)
	}
}

func TestConcurrentQueueNeverDoubleBooks(t *testing.T) {
	h := newHarness(t)
	ids := make([]string, 10)
	for i := range ids {
		ids[i], _ = h.user(fmt.Sprintf("user%d", i), 1000)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := h.c.JoinQueue(h.ctx, id, 100); err != nil {
				t.Errorf("join queue %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	games := h.activeGames()
	if len(games) != 5 {
		t.Fatalf("expected 5 games, got %d", len(games))
	}
	seen := map[string]int{}
	for _, g := range games {
		seen[g.PlayerX]++
		seen[g.PlayerO]++
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Fatalf("user %s is in %d games", id, seen[id])
		}
	}
	if h.c.QueueSize() != 0 {
		t.Fatalf("expected empty queue, got %d", h.c.QueueSize())
	}
}

// No peer arrives before the fallback fires.
func TestBotFallbackCreatesBotGame(t *testing.T) {
	h := newHarness(t)
	u1, c1 := h.user("alice", 10_000)

	if _, err := h.c.JoinQueue(h.ctx, u1, 5000); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	e := h.queuedEntry(u1)
	if e == nil {
		t.Fatalf("expected alice queued")
	}
	h.c.onBotFallback(h.ctx, e)

	games := h.activeGames()
	if len(games) != 1 {
		t.Fatalf("expected one bot game, got %d", len(games))
	}
	g := games[0]
	if g.PlayerX != u1 {
		t.Fatalf("expected alice to play X, got %s", g.PlayerX)
	}
	if !h.c.isBot(g.PlayerO) {
		t.Fatalf("expected a bot to play O")
	}
	found := c1.last(t, EvtMatchFound)
	opp, _ := found["opponent"].(map[string]any)
	if opp["is_bot"] != true {
		t.Fatalf("expected bot opponent in match_found, got %v", found)
	}
	if c1.count(EvtGameStarted) != 1 {
		t.Fatalf("expected game_started, got %d", c1.count(EvtGameStarted))
	}
	room, _ := h.st.GetRoom(h.ctx, g.RoomID)
	if room.Kind != store.RoomKindBot || room.Difficulty == "" {
		t.Fatalf("expected bot room with difficulty, got %+v", room)
	}

	h.move(u1, g.ID, 0)
	after := h.game(g.ID)
	if after.MoveCount != 2 || after.Current != game.X {
		t.Fatalf("expected bot reply, got move_count=%d current=%s", after.MoveCount, after.Current)
	}
}

func TestBotFallbackIgnoredAfterMatchOrLeave(t *testing.T) {
	h := newHarness(t)
	u1, _ := h.user("alice", 10_000)
	u2, _ := h.user("bob", 10_000)
	u3, _ := h.user("carol", 10_000)

	if _, err := h.c.JoinQueue(h.ctx, u1, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	stale := h.queuedEntry(u1)
	if _, err := h.c.JoinQueue(h.ctx, u2, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	h.c.onBotFallback(h.ctx, stale)

	if _, err := h.c.JoinQueue(h.ctx, u3, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	left := h.queuedEntry(u3)
	h.c.LeaveQueue(u3)
	h.c.onBotFallback(h.ctx, left)

	games := h.activeGames()
	if len(games) != 1 {
		t.Fatalf("expected only the human match, got %d games", len(games))
	}
	for _, g := range games {
		if h.c.isBot(g.PlayerO) || h.c.isBot(g.PlayerX) {
			t.Fatalf("expected no bot game")
		}
	}
}

func TestJoinQueueRejectsPlayerInGame(t *testing.T) {
	h := newHarness(t)
	u1, _ := h.user("alice", 10_000)
	u2, _ := h.user("bob", 10_000)
	h.privateGame(u1, u2, 0)

	if _, err := h.c.JoinQueue(h.ctx, u1, 100); !errors.Is(err, ErrActiveGameElsewhere) {
		t.Fatalf("expected active game elsewhere, got %v", err)
	}
}

func TestMatchWithoutLiveConnectionsAsksForManualStart(t *testing.T) {
	clock := newFakeClock()
	opts := testOptions(clock)
	opts.AutoStartRetries = 0
	h := newHarnessWith(t, clock, opts)
	u1, c1 := h.user("alice", 10_000)
	u2, c2 := h.user("bob", 10_000)
	h.c.HandleDisconnect(c2)

	if _, err := h.c.JoinQueue(h.ctx, u1, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if _, err := h.c.JoinQueue(h.ctx, u2, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if n := len(h.activeGames()); n != 0 {
		t.Fatalf("expected no auto-started game, got %d", n)
	}
	if c1.count(EvtManualStartRequired) != 1 {
		t.Fatalf("expected manual_start_required for alice")
	}
}

func TestAutoStartSucceedsOnRetry(t *testing.T) {
	h := newHarness(t)
	u1, c1 := h.user("alice", 10_000)
	u2, c2 := h.user("bob", 10_000)
	h.c.HandleDisconnect(c2)

	if _, err := h.c.JoinQueue(h.ctx, u1, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if _, err := h.c.JoinQueue(h.ctx, u2, 100); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if n := len(h.activeGames()); n != 0 {
		t.Fatalf("expected the first attempt to wait for bob, got %d games", n)
	}
	roomID, _ := c1.last(t, EvtMatchFound)["room_id"].(string)
	room, err := h.st.GetRoom(h.ctx, roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}

	// Bob comes back before the next attempt.
	c2b := h.connect("bob")
	h.c.autoStart(h.ctx, room, u1, u2, 1)

	games := h.activeGames()
	if len(games) != 1 || games[0].RoomID != roomID || games[0].PlayerX != u1 || games[0].PlayerO != u2 {
		t.Fatalf("expected the retry to start alice vs bob in %s, got %+v", roomID, games)
	}
	if c1.count(EvtManualStartRequired) != 0 || c2b.count(EvtManualStartRequired) != 0 {
		t.Fatalf("expected no manual_start_required after a successful retry")
	}
	if c2b.count(EvtGameStarted) != 1 {
		t.Fatalf("expected bob's new connection to get game_started, got %d", c2b.count(EvtGameStarted))
	}
}
