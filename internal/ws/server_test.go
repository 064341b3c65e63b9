package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"board-arena/internal/coordinator"
	"board-arena/internal/opponent"
	"board-arena/internal/store"
)

type testEnv struct {
	t     *testing.T
	url   string
	st    *store.Memory
	coord *coordinator.Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	opts := coordinator.DefaultOptions()
	opts.BotFallback = time.Hour
	coord := coordinator.New(st, opponent.NewWithSeed(1), nil, opts)
	srv := httptest.NewServer(newMux(NewServer(coord)))
	t.Cleanup(func() {
		coord.Close()
		srv.Close()
	})
	return &testEnv{t: t, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", st: st, coord: coord}
}

type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	frames []map[string]any
	raw    [][]byte
}

func (e *testEnv) dial(name string, balance int64) *testClient {
	e.t.Helper()
	if _, err := e.st.CreateUser(context.Background(), name, "tok-"+name, false, balance); err != nil {
		e.t.Fatalf("create user: %v", err)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(e.url, nil)
	if err != nil {
		e.t.Fatalf("dial: %v", err)
	}
	if v := resp.Header.Get("X-Protocol-Version"); v != ProtocolVersion {
		e.t.Fatalf("expected protocol version header, got %q", v)
	}
	c := &testClient{t: e.t, conn: conn}
	e.t.Cleanup(func() { _ = conn.Close() })
	c.write(map[string]any{"type": "auth", "request_id": "auth", "token": "tok-" + name})
	if res := c.await("auth_result"); res["ok"] != true {
		e.t.Fatalf("auth failed: %v", res)
	}
	return c
}

func (c *testClient) write(msg map[string]any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// await reads frames until one of the given type arrives.
func (c *testClient) await(typ string) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %s: %v", typ, err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			c.t.Fatalf("decode frame: %v", err)
		}
		c.frames = append(c.frames, m)
		c.raw = append(c.raw, raw)
		if m["type"] == typ {
			return m
		}
	}
}

func TestWebSocketAuthAndPing(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial("alice", 100)

	c.write(map[string]any{"type": "ping"})
	pong := c.await("pong")
	if _, ok := pong["ts"].(float64); !ok {
		t.Fatalf("expected pong timestamp, got %v", pong)
	}
	if n := len(env.coord.OnlineUsers()); n != 1 {
		t.Fatalf("expected one online user, got %d", n)
	}
}

func TestWebSocketRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	c := &testClient{t: t, conn: conn}
	c.write(map[string]any{"type": "queue_join", "request_id": "q", "bet_cc": 10})
	res := c.await("queue_join_result")
	if res["ok"] != false || res["error"] != "unauthorized" {
		t.Fatalf("expected unauthorized, got %v", res)
	}
}

func TestWebSocketDisconnectOpensGraceWindow(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial("alice", 100)
	_ = c.conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for env.coord.Stats().PendingDisconnects != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected a pending disconnect after socket close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClientSendNeverBlocks(t *testing.T) {
	c := &Client{id: "c1", send: make(chan []byte, 1)}
	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.Send([]byte("b")); err != ErrSlowClient {
		t.Fatalf("expected slow client error, got %v", err)
	}
	if err := c.Send([]byte("c")); err != ErrClientClosed {
		t.Fatalf("expected closed client error, got %v", err)
	}
	c.Close()
}
