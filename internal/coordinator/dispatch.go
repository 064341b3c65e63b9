package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"board-arena/internal/game"

	"github.com/rs/zerolog/log"
)

// HandleMessage decodes and routes one client frame. Everything except auth and
// ping requires an authenticated connection; requests are answered with a
// "<type>_result" frame.
func (c *Coordinator) HandleMessage(ctx context.Context, conn Conn, raw []byte) {
	var req Inbound
	if err := json.Unmarshal(raw, &req); err != nil || strings.TrimSpace(req.Type) == "" {
		c.sendError(conn, "", ErrInvalidMessage)
		return
	}
	if len(req.RequestID) > maxRequestIDLen {
		c.sendError(conn, "", ErrInvalidRequest)
		return
	}

	switch req.Type {
	case MsgAuth:
		u, err := c.Authenticate(ctx, conn, req.Token)
		var data any
		if u != nil {
			data = map[string]any{"user_id": u.ID, "name": u.Name, "balance_cc": u.BalanceCC}
		}
		c.reply(conn, req, data, err)
		return
	case MsgPing:
		c.touchConn(conn.ID())
		send(conn, encode(PongEvent{Type: EvtPong, TS: c.now().UnixMilli()}))
		return
	}

	userID := c.userOf(conn.ID())
	if userID == "" {
		c.reply(conn, req, nil, ErrUnauthorized)
		return
	}
	c.touchConn(conn.ID())

	data, err := c.route(ctx, userID, req)
	if errors.Is(err, ErrUnknownType) {
		c.sendError(conn, req.RequestID, err)
		return
	}
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Str("type", req.Type).Msg("request_failed")
	}
	c.reply(conn, req, data, err)
}

func (c *Coordinator) route(ctx context.Context, userID string, req Inbound) (any, error) {
	switch req.Type {
	case MsgJoinRoom, MsgJoinRoomRequest:
		return c.JoinRoom(ctx, userID, req.RoomID)

	case MsgLeaveRoom:
		roomID, err := c.LeaveRoom(ctx, userID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"room_id": roomID}, nil

	case MsgCreateRoom:
		return c.CreateRoom(ctx, userID, req.Name, req.BetCC)

	case MsgStartGameRequest:
		g, err := c.StartGame(ctx, userID, req.RoomID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"room_id": g.RoomID, "game_id": g.ID}, nil

	case MsgGameStartedAck:
		if req.MessageID == "" {
			return nil, ErrInvalidRequest
		}
		return map[string]bool{"acked": c.outbox.Ack(userID, req.MessageID)}, nil

	case MsgMove:
		if req.Position == nil {
			return nil, ErrInvalidRequest
		}
		g, err := c.Move(ctx, userID, req.GameID, game.Position(*req.Position))
		if err != nil {
			return nil, err
		}
		return c.buildView(ctx, g, userID), nil

	case MsgDisableAutoPlay:
		g, err := c.DisableAutoPlay(ctx, userID, req.GameID)
		if err != nil {
			return nil, err
		}
		return c.buildView(ctx, g, userID), nil

	case MsgGetGameState:
		return c.GameState(ctx, userID, req.GameID)

	case MsgQueueJoin:
		return c.JoinQueue(ctx, userID, req.BetCC)

	case MsgQueueLeave:
		return map[string]bool{"left": c.LeaveQueue(userID)}, nil

	case MsgPlayerReaction:
		reaction := strings.TrimSpace(req.Reaction)
		if reaction == "" || utf8.RuneCountInString(reaction) > maxReactionLen {
			return nil, ErrInvalidRequest
		}
		return nil, c.social(ctx, userID, SocialEvent{Type: EvtPlayerReaction, Reaction: reaction})

	case MsgPlayerChat:
		text := strings.TrimSpace(req.Text)
		if text == "" || utf8.RuneCountInString(text) > maxChatLen {
			return nil, ErrInvalidRequest
		}
		return nil, c.social(ctx, userID, SocialEvent{Type: EvtPlayerChat, Text: text})
	}
	return nil, ErrUnknownType
}

// social relays a reaction or chat line to the rest of the sender's room.
func (c *Coordinator) social(ctx context.Context, userID string, ev SocialEvent) error {
	roomID := c.currentRoom(userID)
	if roomID == "" {
		return ErrNotInRoom
	}
	ev.RoomID = roomID
	ev.UserID = userID
	ev.Name = c.userName(ctx, userID)
	ev.TS = c.now().UnixMilli()
	c.broadcastRoom(roomID, ev, userID)
	return nil
}
