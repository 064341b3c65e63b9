package httptransport

import (
	"net/http"

	"board-arena/internal/coordinator"
)

type PublicHandlers struct {
	store Store
	coord *coordinator.Coordinator
}

func NewPublicHandlers(st Store, coord *coordinator.Coordinator) *PublicHandlers {
	return &PublicHandlers{store: st, coord: coord}
}

func (h *PublicHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ParseLimit(r, 50, 200)
		rooms, err := h.store.ListOpenRooms(r.Context(), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rooms, "limit": limit})
	}
}

func (h *PublicHandlers) Online() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		users := h.coord.OnlineUsers()
		writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
	}
}
