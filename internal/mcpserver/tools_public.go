package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_rooms",
			mcp.WithDescription("List rooms waiting for players"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 200")),
		),
		s.handleListRooms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"online_users",
			mcp.WithDescription("List users currently online"),
		),
		s.handleOnlineUsers,
	)
}

func (s *Server) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampLimit(int(request.GetFloat("limit", 0)))
	rooms, err := s.store.ListOpenRooms(ctx, limit)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"items": rooms, "limit": limit}), nil
}

func (s *Server) handleOnlineUsers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users := s.coord.OnlineUsers()
	return toolResult(map[string]any{"users": users, "count": len(users)}), nil
}
