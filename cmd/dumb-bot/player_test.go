package main

import (
	"encoding/json"
	"testing"
)

func decodeOut(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

func TestPlayerQueuesAfterAuth(t *testing.T) {
	p := &player{betCC: 100, requeue: true}
	out := p.handle([]byte(`{"type":"auth_result","ok":true,"data":{"user_id":"u1"}}`))
	if len(out) != 1 {
		t.Fatalf("expected one reply, got %d", len(out))
	}
	msg := decodeOut(t, out[0])
	if msg["type"] != "queue_join" || msg["bet_cc"] != float64(100) {
		t.Fatalf("unexpected reply: %v", msg)
	}
	if p.userID != "u1" {
		t.Fatalf("user id not recorded")
	}
}

func TestPlayerStopsOnAuthFailure(t *testing.T) {
	p := &player{}
	if out := p.handle([]byte(`{"type":"auth_result","ok":false,"error":"unauthorized"}`)); out != nil || !p.done {
		t.Fatalf("expected stop on auth failure, out=%v done=%v", out, p.done)
	}
}

func TestPlayerAcksStartAndOpensAwayFromCenter(t *testing.T) {
	p := &player{userID: "u1"}
	start := `{"type":"game_started","message_id":"msg_1","ack_required":true,"game_id":"g1","room_id":"r1",
		"player_x":{"user_id":"u1","name":"me"},"player_o":{"user_id":"u2","name":"them"},
		"current_symbol":"X","board":["","","","","","","","",""]}`
	out := p.handle([]byte(start))
	if len(out) != 2 {
		t.Fatalf("expected ack and move, got %d frames", len(out))
	}
	ack := decodeOut(t, out[0])
	if ack["type"] != "game_started_ack" || ack["message_id"] != "msg_1" {
		t.Fatalf("unexpected ack: %v", ack)
	}
	move := decodeOut(t, out[1])
	if move["type"] != "move" || move["game_id"] != "g1" || move["position"] == float64(4) {
		t.Fatalf("unexpected opening move: %v", move)
	}
}

func TestPlayerWaitsForItsTurn(t *testing.T) {
	p := &player{userID: "u2"}
	start := `{"type":"game_started","message_id":"msg_2","game_id":"g1",
		"player_x":{"user_id":"u1"},"player_o":{"user_id":"u2"},
		"current_symbol":"X","board":["","","","","","","","",""]}`
	if out := p.handle([]byte(start)); len(out) != 1 {
		t.Fatalf("expected only the ack, got %d frames", len(out))
	}
	if p.symbol != "O" {
		t.Fatalf("expected symbol O, got %q", p.symbol)
	}
	moved := `{"type":"move","game_id":"g1","current_symbol":"O","board":["X","","","","","","","",""]}`
	out := p.handle([]byte(moved))
	if len(out) != 1 {
		t.Fatalf("expected a reply move")
	}
	if m := decodeOut(t, out[0]); m["position"] != float64(1) {
		t.Fatalf("expected first free cell 1, got %v", m["position"])
	}
	other := `{"type":"move","game_id":"other","current_symbol":"O","board":["X","","","","","","","",""]}`
	if out := p.handle([]byte(other)); out != nil {
		t.Fatalf("moves for other games must be ignored")
	}
}

func TestPlayerRequeuesUntilMaxGames(t *testing.T) {
	p := &player{userID: "u1", requeue: true, maxGames: 2, gameID: "g1", betCC: 10}
	if out := p.handle([]byte(`{"type":"game_over","game_id":"g1","result":"draw"}`)); len(out) != 1 || p.done {
		t.Fatalf("expected requeue after first game")
	}
	p.gameID = "g2"
	if out := p.handle([]byte(`{"type":"game_over","game_id":"g2","result":"win","winner_id":"u1"}`)); out != nil || !p.done {
		t.Fatalf("expected stop after max games")
	}
	if p.played != 2 {
		t.Fatalf("played=%d want 2", p.played)
	}
}

func TestPlayerStartsManuallyWhenAsked(t *testing.T) {
	p := &player{}
	out := p.handle([]byte(`{"type":"manual_start_required","room_id":"r9","reason":"players_not_ready"}`))
	if len(out) != 1 {
		t.Fatalf("expected start request")
	}
	if m := decodeOut(t, out[0]); m["type"] != "start_game_request" || m["room_id"] != "r9" {
		t.Fatalf("unexpected start request: %v", m)
	}
}
