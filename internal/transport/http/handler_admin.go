package httptransport

import (
	"encoding/json"
	"net/http"

	"board-arena/internal/coordinator"
)

type AdminHandlers struct {
	store Store
	coord *coordinator.Coordinator
}

func NewAdminHandlers(st Store, coord *coordinator.Coordinator) *AdminHandlers {
	return &AdminHandlers{store: st, coord: coord}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

// Stats reports the coordinator's in-memory index sizes.
func (h *AdminHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.coord.Stats())
	}
}
