package mcpserver

import (
	"context"

	"board-arena/internal/game"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerGameplayTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_game",
			mcp.WithDescription("Start the game in a room with both seats filled"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleStartGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"move",
			mcp.WithDescription("Place your symbol on a cell 0..8"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
			mcp.WithNumber("position", mcp.Required(), mcp.Description("Cell index 0..8, row-major")),
		),
		s.handleMove,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"game_state",
			mcp.WithDescription("Current game state with remaining turn and expiry time"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
		),
		s.handleGameState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"disable_auto_play",
			mcp.WithDescription("Take back control after the server started moving for you"),
			mcp.WithString("token", mcp.Required(), mcp.Description("User token")),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
		),
		s.handleDisableAutoPlay,
	)
}

func (s *Server) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	g, err := s.coord.StartGame(ctx, user.ID, roomID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"game_id": g.ID, "room_id": g.RoomID, "player_x": g.PlayerX, "player_o": g.PlayerO}), nil
}

func (s *Server) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	pos, err := request.RequireFloat("position")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if _, err := s.coord.Move(ctx, user.ID, gameID, game.Position(int(pos))); err != nil {
		return mapDomainError(err), nil
	}
	view, err := s.coord.GameState(ctx, user.ID, gameID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	view, err := s.coord.GameState(ctx, user.ID, gameID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleDisableAutoPlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, errResp := s.authUser(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if _, err := s.coord.DisableAutoPlay(ctx, user.ID, gameID); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"game_id": gameID, "auto_play": false}), nil
}
