package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"board-arena/internal/game"
	"board-arena/internal/opponent"
	"board-arena/internal/store"
	"board-arena/internal/testutil"
)

var errConnClosed = errors.New("conn closed")

type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	fail   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.fail {
		return errConnClosed
	}
	f.msgs = append(f.msgs, append([]byte(nil), msg...))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

// frames returns every decoded frame of the given type, in arrival order.
func (f *fakeConn) frames(typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, raw := range f.msgs {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) count(typ string) int {
	return len(f.frames(typ))
}

func (f *fakeConn) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	frames := f.frames(typ)
	if len(frames) == 0 {
		t.Fatalf("conn %s: no %s frame received", f.id, typ)
	}
	return frames[len(frames)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	c     *Coordinator
	st    *store.Memory
	clock *fakeClock
	seq   int
}

// testOptions keeps every background timer far in the future so tests drive
// sweeps and expiries explicitly. Bot delays are zero so bot work runs inline.
func testOptions(clock *fakeClock) Options {
	opts := DefaultOptions()
	opts.BotFallback = time.Hour
	opts.BotStartDelay = 0
	opts.BotMoveDelay = 0
	opts.AutoStartBackoff = time.Hour
	opts.AutoPlayThrottle = 30 * time.Minute
	opts.Grace = time.Hour
	opts.GraceInGame = 2 * time.Hour
	opts.Now = clock.Now
	return opts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := newFakeClock()
	return newHarnessWith(t, clock, testOptions(clock))
}

func newHarnessWith(t *testing.T, clock *fakeClock, opts Options) *harness {
	t.Helper()
	return newHarnessStore(t, clock, opts, nil)
}

// newHarnessStore lets a test put wrap between the coordinator and the memory
// store. The harness keeps direct access to the memory store.
func newHarnessStore(t *testing.T, clock *fakeClock, opts Options, wrap func(*store.Memory) Store) *harness {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.EnsureBotUsers(ctx, []string{"Botty"}, 1_000_000); err != nil {
		t.Fatalf("ensure bots: %v", err)
	}
	var cs Store = st
	if wrap != nil {
		cs = wrap(st)
	}
	c := New(cs, opponent.NewWithSeed(7), nil, opts)
	if err := c.refreshBots(ctx); err != nil {
		t.Fatalf("refresh bots: %v", err)
	}
	t.Cleanup(c.Close)
	return &harness{t: t, ctx: ctx, c: c, st: st, clock: clock}
}

// user creates a human and authenticates one connection for them.
func (h *harness) user(name string, balance int64) (string, *fakeConn) {
	h.t.Helper()
	id := testutil.MustCreateUser(h.t, h.st, name, balance)
	return id, h.connect(name)
}

// connect opens and authenticates a new connection for an existing user.
func (h *harness) connect(name string) *fakeConn {
	h.t.Helper()
	h.seq++
	conn := newFakeConn(fmt.Sprintf("%s-%d", name, h.seq))
	h.send(conn, map[string]any{"type": MsgAuth, "request_id": "auth", "token": "tok-" + name})
	res := conn.last(h.t, MsgAuth+"_result")
	if res["ok"] != true {
		h.t.Fatalf("auth %s failed: %v", name, res["error"])
	}
	return conn
}

func (h *harness) send(conn Conn, msg map[string]any) {
	h.t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		h.t.Fatalf("marshal: %v", err)
	}
	h.c.HandleMessage(h.ctx, conn, raw)
}

// privateGame has host create a room, guest join it and host start the game.
// The host plays X.
func (h *harness) privateGame(hostID, guestID string, bet int64) *store.Game {
	h.t.Helper()
	room, err := h.c.CreateRoom(h.ctx, hostID, "table", bet)
	if err != nil {
		h.t.Fatalf("create room: %v", err)
	}
	if _, err := h.c.JoinRoom(h.ctx, guestID, room.ID); err != nil {
		h.t.Fatalf("join room: %v", err)
	}
	g, err := h.c.StartGame(h.ctx, hostID, room.ID)
	if err != nil {
		h.t.Fatalf("start game: %v", err)
	}
	return g
}

func (h *harness) game(id string) *store.Game {
	h.t.Helper()
	g, err := h.st.GetGame(h.ctx, id)
	if err != nil {
		h.t.Fatalf("get game %s: %v", id, err)
	}
	return g
}

func (h *harness) move(userID, gameID string, pos int) {
	h.t.Helper()
	if _, err := h.c.Move(h.ctx, userID, gameID, game.Position(pos)); err != nil {
		h.t.Fatalf("move %d by %s: %v", pos, userID, err)
	}
}
