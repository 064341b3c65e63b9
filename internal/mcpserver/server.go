package mcpserver

import (
	"context"
	"net/http"
	"strings"

	"board-arena/internal/coordinator"
	"board-arena/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Store is the read side the tools need beyond the coordinator.
type Store interface {
	GetUserByToken(ctx context.Context, token string) (*store.User, error)
	ListOpenRooms(ctx context.Context, limit int) ([]store.Room, error)
}

type Server struct {
	store Store
	coord *coordinator.Coordinator

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(st Store, coord *coordinator.Coordinator) *Server {
	mcpSrv := server.NewMCPServer(
		"board-arena",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s := &Server{
		store:      st,
		coord:      coord,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPublicTools()
	s.registerMatchmakingTools()
	s.registerGameplayTools()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) authUser(ctx context.Context, request mcp.CallToolRequest) (*store.User, *mcp.CallToolResult) {
	token := strings.TrimSpace(request.GetString("token", ""))
	if token == "" {
		return nil, toolError("invalid_request", "token is required")
	}
	user, err := s.store.GetUserByToken(ctx, token)
	if err != nil {
		return nil, toolError("unauthorized", "invalid token")
	}
	return user, nil
}
