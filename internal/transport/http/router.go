package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"board-arena/internal/config"
	"board-arena/internal/coordinator"
	"board-arena/internal/mcpserver"
	"board-arena/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Store is what the HTTP surface reads directly; everything that mutates goes
// through the coordinator.
type Store interface {
	mcpserver.Store
	Ping(ctx context.Context) error
}

func NewRouter(st Store, cfg config.ServerConfig, coord *coordinator.Coordinator, wsSrv *ws.Server) *chi.Mux {
	mcpSrv := mcpserver.New(st, coord)

	publicHandlers := NewPublicHandlers(st, coord)
	playerHandlers := NewPlayerHandlers(coord)
	adminHandlers := NewAdminHandlers(st, coord)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Get("/ws", wsSrv.HandleWS)
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/public/rooms", publicHandlers.Rooms())
		r.Get("/public/online", publicHandlers.Online())

		r.Group(func(r chi.Router) {
			r.Use(UserAuthMiddleware(st))
			r.Post("/queue", playerHandlers.QueueJoin())
			r.Delete("/queue", playerHandlers.QueueLeave())
			r.Post("/rooms", playerHandlers.CreateRoom())
			r.Post("/rooms/leave", playerHandlers.LeaveRoom())
			r.Post("/rooms/{room_id}/join", playerHandlers.JoinRoom())
			r.Post("/rooms/{room_id}/start", playerHandlers.StartGame())
			r.Get("/games/{game_id}", playerHandlers.GameState())
			r.Post("/games/{game_id}/moves", playerHandlers.Move())
			r.Post("/games/{game_id}/auto_play/disable", playerHandlers.DisableAutoPlay())
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/admin/stats", adminHandlers.Stats())

			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
