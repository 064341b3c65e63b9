package httptransport

import (
	"encoding/json"
	"net/http"

	"board-arena/internal/coordinator"
	"board-arena/internal/game"

	"github.com/go-chi/chi/v5"
)

// PlayerHandlers is the request/response surface for clients without a live
// socket. Every route runs behind UserAuthMiddleware.
type PlayerHandlers struct {
	coord *coordinator.Coordinator
}

func NewPlayerHandlers(coord *coordinator.Coordinator) *PlayerHandlers {
	return &PlayerHandlers{coord: coord}
}

type queueJoinRequest struct {
	BetCC int64 `json:"bet_cc"`
}

type createRoomRequest struct {
	Name  string `json:"name"`
	BetCC int64  `json:"bet_cc"`
}

type moveRequest struct {
	Position *int `json:"position"`
}

func decodeBody(r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v) == nil
}

func (h *PlayerHandlers) QueueJoin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricQueueJoinTotal.Add(1)
		user, _ := UserFromContext(r.Context())
		var req queueJoinRequest
		if !decodeBody(r, &req) {
			metricQueueJoinErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		ticket, err := h.coord.JoinQueue(r.Context(), user.ID, req.BetCC)
		if err != nil {
			metricQueueJoinErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ticket)
	}
}

func (h *PlayerHandlers) QueueLeave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"left": h.coord.LeaveQueue(user.ID)})
	}
}

func (h *PlayerHandlers) CreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricRoomActionTotal.Add(1)
		user, _ := UserFromContext(r.Context())
		var req createRoomRequest
		if !decodeBody(r, &req) {
			metricRoomActionErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		room, err := h.coord.CreateRoom(r.Context(), user.ID, req.Name, req.BetCC)
		if err != nil {
			metricRoomActionErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	}
}

func (h *PlayerHandlers) JoinRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricRoomActionTotal.Add(1)
		user, _ := UserFromContext(r.Context())
		res, err := h.coord.JoinRoom(r.Context(), user.ID, chi.URLParam(r, "room_id"))
		if err != nil {
			metricRoomActionErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *PlayerHandlers) LeaveRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricRoomActionTotal.Add(1)
		user, _ := UserFromContext(r.Context())
		roomID, err := h.coord.LeaveRoom(r.Context(), user.ID)
		if err != nil {
			metricRoomActionErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"room_id": roomID})
	}
}

func (h *PlayerHandlers) StartGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricRoomActionTotal.Add(1)
		user, _ := UserFromContext(r.Context())
		g, err := h.coord.StartGame(r.Context(), user.ID, chi.URLParam(r, "room_id"))
		if err != nil {
			metricRoomActionErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"game_id":  g.ID,
			"room_id":  g.RoomID,
			"player_x": g.PlayerX,
			"player_o": g.PlayerO,
		})
	}
}

func (h *PlayerHandlers) Move() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricMoveSubmitTotal.Add(1)
		user, _ := UserFromContext(r.Context())
		var req moveRequest
		if !decodeBody(r, &req) || req.Position == nil {
			metricMoveSubmitErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		gameID := chi.URLParam(r, "game_id")
		if _, err := h.coord.Move(r.Context(), user.ID, gameID, game.Position(*req.Position)); err != nil {
			metricMoveSubmitErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		view, err := h.coord.GameState(r.Context(), user.ID, gameID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *PlayerHandlers) GameState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		view, err := h.coord.GameState(r.Context(), user.ID, chi.URLParam(r, "game_id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *PlayerHandlers) DisableAutoPlay() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		gameID := chi.URLParam(r, "game_id")
		if _, err := h.coord.DisableAutoPlay(r.Context(), user.ID, gameID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "auto_play": false})
	}
}
