package coordinator

import (
	"errors"
	"net/http"

	"board-arena/internal/game"
	"board-arena/internal/store"
)

var (
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidMessage      = errors.New("invalid_message")
	ErrInvalidBet          = errors.New("invalid_bet")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyQueued       = errors.New("already_queued")
	ErrRoomFull            = errors.New("room_full")
	ErrRoomNotWaiting      = errors.New("room_not_waiting")
	ErrNotEnoughPlayers    = errors.New("not_enough_players")
	ErrPlayerLeft          = errors.New("player_left")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrActiveGameElsewhere = errors.New("active_game_elsewhere")
	ErrRoomNotFound        = errors.New("room_not_found")
	ErrGameNotFound        = errors.New("game_not_found")
	ErrNotInRoom           = errors.New("not_in_room")
	ErrNoBotAvailable      = errors.New("bot_unavailable")
	ErrUnknownType         = errors.New("unknown_type")
	ErrClosed              = errors.New("coordinator_closed")
)

// MapError converts a coordinator error into an HTTP status and the wire code
// sent to clients. Unknown errors are internal.
func MapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest, "invalid_message"
	case errors.Is(err, ErrInvalidBet):
		return http.StatusBadRequest, "invalid_bet"
	case errors.Is(err, ErrUnknownType):
		return http.StatusBadRequest, "unknown_type"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, game.ErrNotAParticipant):
		return http.StatusForbidden, "not_a_participant"
	case errors.Is(err, game.ErrInvalidTurn):
		return http.StatusConflict, "invalid_turn"
	case errors.Is(err, game.ErrInvalidPosition):
		return http.StatusConflict, "invalid_position"
	case errors.Is(err, game.ErrGameNotActive):
		return http.StatusConflict, "game_not_active"
	case errors.Is(err, ErrAlreadyQueued):
		return http.StatusConflict, "already_queued"
	case errors.Is(err, ErrRoomFull):
		return http.StatusConflict, "room_full"
	case errors.Is(err, ErrRoomNotWaiting):
		return http.StatusConflict, "room_not_waiting"
	case errors.Is(err, ErrNotEnoughPlayers):
		return http.StatusConflict, "not_enough_players"
	case errors.Is(err, ErrPlayerLeft):
		return http.StatusConflict, "player_left"
	case errors.Is(err, ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, ErrActiveGameElsewhere):
		return http.StatusConflict, "active_game_elsewhere"
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound, "game_not_found"
	case errors.Is(err, ErrNotInRoom):
		return http.StatusNotFound, "not_in_room"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrNoBotAvailable):
		return http.StatusServiceUnavailable, "bot_unavailable"
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func wireCode(err error) string {
	_, code := MapError(err)
	return code
}
