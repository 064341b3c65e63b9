package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerMatchmakingTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"queue_join",
			mcp.WithDescription("Enter the matchmaking queue for a bet amount"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithNumber("bet_cc", mcp.Required(), mcp.Description("Bet in credits, must be positive")),
		),
		s.handleQueueJoin,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"queue_leave",
			mcp.WithDescription("Leave the matchmaking queue"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
		),
		s.handleQueueLeave,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_room",
			mcp.WithDescription("Create a private room and take the first seat"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithString("name", mcp.Description("Room name")),
			mcp.WithNumber("bet_cc", mcp.Required(), mcp.Description("Bet in credits")),
		),
		s.handleCreateRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_room",
			mcp.WithDescription("Join a room as player, or spectator once seats are full"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleJoinRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"leave_room",
			mcp.WithDescription("Leave the current room, forfeiting any active game"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
		),
		s.handleLeaveRoom,
	)
}

func (s *Server) handleQueueJoin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	bet, err := request.RequireFloat("bet_cc")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	ticket, err := s.coord.JoinQueue(ctx, user.ID, int64(bet))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(ticket), nil
}

func (s *Server) handleQueueLeave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	return toolResult(map[string]any{"left": s.coord.LeaveQueue(user.ID)}), nil
}

func (s *Server) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	bet, err := request.RequireFloat("bet_cc")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	room, err := s.coord.CreateRoom(ctx, user.ID, request.GetString("name", ""), int64(bet))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(room), nil
}

func (s *Server) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	res, err := s.coord.JoinRoom(ctx, user.ID, roomID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(res), nil
}

func (s *Server) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	roomID, err := s.coord.LeaveRoom(ctx, user.ID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"room_id": roomID}), nil
}
