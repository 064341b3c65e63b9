package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"board-arena/internal/game"
	"board-arena/internal/store"
	"board-arena/internal/testutil"
)

type backend interface {
	CreateUser(ctx context.Context, name, token string, isBot bool, balance int64) (string, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetUserByToken(ctx context.Context, token string) (*store.User, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	ListBots(ctx context.Context) ([]store.User, error)
	EnsureBotUsers(ctx context.Context, names []string, balance int64) error
	CreateRoom(ctx context.Context, r store.Room) (*store.Room, error)
	GetRoom(ctx context.Context, id string) (*store.Room, error)
	ListOpenRooms(ctx context.Context, limit int) ([]store.Room, error)
	UpdateRoomStatus(ctx context.Context, id, status string) error
	AddParticipant(ctx context.Context, roomID, userID, role string) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
	GetParticipantByUser(ctx context.Context, userID string) (*store.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]store.Participant, error)
	CreateGame(ctx context.Context, g store.Game) (*store.Game, error)
	GetGame(ctx context.Context, id string) (*store.Game, error)
	UpdateGame(ctx context.Context, g store.Game) error
	GetActiveGameByUser(ctx context.Context, userID string) (*store.Game, error)
	GetActiveGameByRoom(ctx context.Context, roomID string) (*store.Game, error)
	ListActiveGames(ctx context.Context) ([]store.Game, error)
}

var (
	_ backend = (*store.Store)(nil)
	_ backend = (*store.Memory)(nil)
)

func TestMemoryUsersAndBots(t *testing.T) {
	testUsersAndBots(t, store.NewMemory())
}

func TestMemoryRoomsAndParticipants(t *testing.T) {
	testRoomsAndParticipants(t, store.NewMemory())
}

func TestMemoryGames(t *testing.T) {
	testGames(t, store.NewMemory())
}

func TestPostgresUsersAndBots(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	testUsersAndBots(t, st)
}

func TestPostgresRoomsAndParticipants(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	testRoomsAndParticipants(t, st)
}

func TestPostgresGames(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	testGames(t, st)
}

func testUsersAndBots(t *testing.T, st backend) {
	ctx := context.Background()
	id := testutil.MustCreateUser(t, st, "alice", 10000)
	u, err := st.GetUserByToken(ctx, "tok-alice")
	if err != nil || u.ID != id {
		t.Fatalf("get by token: %+v %v", u, err)
	}
	if _, err := st.GetUserByToken(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	bal, err := st.GetBalance(ctx, id)
	if err != nil || bal != 10000 {
		t.Fatalf("balance = %d, %v", bal, err)
	}
	if _, err := st.CreateUser(ctx, "alice2", "tok-alice", false, 0); err == nil {
		t.Fatal("expected duplicate token to fail")
	}

	if err := st.EnsureBotUsers(ctx, []string{"Ada", "Turing"}, 500); err != nil {
		t.Fatalf("ensure bots: %v", err)
	}
	if err := st.EnsureBotUsers(ctx, []string{"Ada", "Turing"}, 500); err != nil {
		t.Fatalf("ensure bots again: %v", err)
	}
	bots, err := st.ListBots(ctx)
	if err != nil {
		t.Fatalf("list bots: %v", err)
	}
	if len(bots) != 2 || bots[0].Name != "Ada" || !bots[0].IsBot {
		t.Fatalf("unexpected bots: %+v", bots)
	}
}

func testRoomsAndParticipants(t *testing.T, st backend) {
	ctx := context.Background()
	host := testutil.MustCreateUser(t, st, "host", 1000)
	guest := testutil.MustCreateUser(t, st, "guest", 1000)

	room, err := st.CreateRoom(ctx, store.Room{Name: " Lobby ", HostID: host, BetCC: 100})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.Status != store.RoomWaiting || room.Kind != store.RoomKindPrivate || room.Name != "Lobby" {
		t.Fatalf("unexpected room defaults: %+v", room)
	}

	created, err := st.AddParticipant(ctx, room.ID, guest, store.RolePlayer)
	if err != nil || !created {
		t.Fatalf("add participant: %v %v", created, err)
	}
	created, err = st.AddParticipant(ctx, room.ID, guest, store.RolePlayer)
	if err != nil || created {
		t.Fatalf("second add should be a no-op: %v %v", created, err)
	}
	members, _ := st.ListParticipants(ctx, room.ID)
	if len(members) != 1 {
		t.Fatalf("expected one membership, got %d", len(members))
	}

	p, err := st.GetParticipantByUser(ctx, guest)
	if err != nil || p.RoomID != room.ID {
		t.Fatalf("participant by user: %+v %v", p, err)
	}

	removed, err := st.RemoveParticipant(ctx, room.ID, guest)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	removed, err = st.RemoveParticipant(ctx, room.ID, guest)
	if err != nil || removed {
		t.Fatalf("second remove should report false: %v %v", removed, err)
	}

	if err := st.UpdateRoomStatus(ctx, room.ID, store.RoomClosed); err != nil {
		t.Fatalf("close room: %v", err)
	}
	open, _ := st.ListOpenRooms(ctx, 10)
	if len(open) != 0 {
		t.Fatalf("closed room listed: %+v", open)
	}
	if err := st.UpdateRoomStatus(ctx, "missing", store.RoomClosed); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testGames(t *testing.T, st backend) {
	ctx := context.Background()
	x := testutil.MustCreateUser(t, st, "x", 1000)
	o := testutil.MustCreateUser(t, st, "o", 1000)
	room, _ := st.CreateRoom(ctx, store.Room{HostID: x, Kind: store.RoomKindMatch, BetCC: 100})

	g, err := st.CreateGame(ctx, store.Game{RoomID: room.ID, PlayerX: x, PlayerO: o, BetCC: 100})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if g.Status != game.StatusActive || g.Current != game.X {
		t.Fatalf("unexpected defaults: %+v", g)
	}
	if _, err := st.CreateGame(ctx, store.Game{RoomID: room.ID, PlayerX: x, PlayerO: o}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for second active game, got %v", err)
	}

	g.Board = game.ApplyMove(g.Board, game.X, 0)
	g.Current = game.O
	g.MoveCount = 1
	g.AutoPlayO = true
	g.LastMoveAt = time.Now().UTC()
	if err := st.UpdateGame(ctx, *g); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := st.GetActiveGameByUser(ctx, o)
	if err != nil {
		t.Fatalf("active by user: %v", err)
	}
	if got.Board[0] != game.X || got.Current != game.O || !got.AutoPlayO || got.MoveCount != 1 {
		t.Fatalf("update not persisted: %+v", got)
	}
	if byRoom, err := st.GetActiveGameByRoom(ctx, room.ID); err != nil || byRoom.ID != g.ID {
		t.Fatalf("active by room: %+v %v", byRoom, err)
	}

	ended := time.Now().UTC()
	got.Status = game.StatusFinished
	got.Result = game.ResultAbandonment
	got.WinnerID = x
	got.EndedAt = &ended
	if err := st.UpdateGame(ctx, *got); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := st.UpdateGame(ctx, *got); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict updating finished game, got %v", err)
	}
	final, _ := st.GetGame(ctx, g.ID)
	if final.Result != game.ResultAbandonment || final.WinnerID != x || final.EndedAt == nil {
		t.Fatalf("unexpected final game: %+v", final)
	}
	active, _ := st.ListActiveGames(ctx)
	if len(active) != 0 {
		t.Fatalf("expected no active games, got %d", len(active))
	}
	if _, err := st.GetActiveGameByUser(ctx, x); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
