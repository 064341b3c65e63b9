package coordinator

import (
	"encoding/json"

	"board-arena/internal/game"
)

// Client -> server message types.
const (
	MsgAuth             = "auth"
	MsgPing             = "ping"
	MsgJoinRoom         = "join_room"
	MsgLeaveRoom        = "leave_room"
	MsgMove             = "move"
	MsgDisableAutoPlay  = "disable_auto_play"
	MsgPlayerReaction   = "player_reaction"
	MsgPlayerChat       = "player_chat"
	MsgCreateRoom       = "create_room"
	MsgJoinRoomRequest  = "join_room_request"
	MsgStartGameRequest = "start_game_request"
	MsgGameStartedAck   = "game_started_ack"
	MsgQueueJoin        = "queue_join"
	MsgQueueLeave       = "queue_leave"
	MsgGetGameState     = "get_game_state"
)

// Server -> client event types.
const (
	EvtGameStarted         = "game_started"
	EvtMove                = "move"
	EvtWinningMove         = "winning_move"
	EvtGameOver            = "game_over"
	EvtAutoPlayEnabled     = "auto_play_enabled"
	EvtAutoPlayDisabled    = "auto_play_disabled"
	EvtUserJoined          = "user_joined"
	EvtUserLeft            = "user_left"
	EvtPlayerReconnected   = "player_reconnected"
	EvtRoomClosed          = "room_closed"
	EvtRoomEnded           = "room_ended"
	EvtOnlineUsersUpdate   = "online_users_update"
	EvtMatchFound          = "match_found"
	EvtManualStartRequired = "manual_start_required"
	EvtGameState           = "game_state"
	EvtPlayerReaction      = "player_reaction"
	EvtPlayerChat          = "player_chat"
	EvtPong                = "pong"
	EvtError               = "error"
)

const (
	maxRequestIDLen = 64
	maxChatLen      = 500
	maxReactionLen  = 32
)

type Inbound struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Token     string `json:"token,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	GameID    string `json:"game_id,omitempty"`
	Name      string `json:"name,omitempty"`
	BetCC     int64  `json:"bet_cc,omitempty"`
	Position  *int   `json:"position,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Reaction  string `json:"reaction,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Result answers a request; Type is the request type with a "_result" suffix.
type Result struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type ErrorEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
}

type PongEvent struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

type PlayerRef struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

type GameStartedEvent struct {
	Type        string     `json:"type"`
	MessageID   string     `json:"message_id,omitempty"`
	AckRequired bool       `json:"ack_required"`
	RoomID      string     `json:"room_id"`
	GameID      string     `json:"game_id"`
	PlayerX     PlayerRef  `json:"player_x"`
	PlayerO     PlayerRef  `json:"player_o"`
	Current     string     `json:"current_symbol"`
	BetCC       int64      `json:"bet_cc"`
	Board       game.Board `json:"board"`
	StartedAt   int64      `json:"started_at"`
}

type MoveEvent struct {
	Type      string     `json:"type"`
	RoomID    string     `json:"room_id"`
	GameID    string     `json:"game_id"`
	UserID    string     `json:"user_id"`
	Symbol    string     `json:"symbol"`
	Position  int        `json:"position"`
	Board     game.Board `json:"board"`
	Next      string     `json:"current_symbol,omitempty"`
	MoveCount int        `json:"move_count"`
	Auto      bool       `json:"auto,omitempty"`
}

type WinningMoveEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	GameID string `json:"game_id"`
	Symbol string `json:"symbol"`
	Line   []int  `json:"line"`
}

type GameOverEvent struct {
	Type     string     `json:"type"`
	RoomID   string     `json:"room_id"`
	GameID   string     `json:"game_id"`
	Result   string     `json:"result"`
	Reason   string     `json:"reason,omitempty"`
	WinnerID string     `json:"winner_id,omitempty"`
	Board    game.Board `json:"board"`
}

type AutoPlayEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	GameID string `json:"game_id"`
	UserID string `json:"user_id"`
	Symbol string `json:"symbol"`
	Reason string `json:"reason,omitempty"`
}

type MemberEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	GameID string `json:"game_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type OnlineUser struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	RoomID string `json:"room_id,omitempty"`
}

type OnlineUsersEvent struct {
	Type  string       `json:"type"`
	Users []OnlineUser `json:"users"`
	Count int          `json:"count"`
}

type MatchFoundEvent struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"room_id"`
	BetCC    int64     `json:"bet_cc"`
	Opponent PlayerRef `json:"opponent"`
}

type SocialEvent struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Reaction string `json:"reaction,omitempty"`
	Text     string `json:"text,omitempty"`
	TS       int64  `json:"ts"`
}

type StateEvent struct {
	Type  string `json:"type"`
	State any    `json:"state"`
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every outbound type is a plain struct; a failure here is a programming error.
		panic(err)
	}
	return b
}

func positions(ps []game.Position) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = int(p)
	}
	return out
}
