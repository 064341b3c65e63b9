package coordinator

import (
	"context"
	"errors"
	"strings"

	"board-arena/internal/game"
	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	maxPlayers    = 2
	maxSpectators = 50
	maxRoomName   = 64
)

type JoinResult struct {
	Room          store.Room          `json:"room"`
	Role          string              `json:"role"`
	Participants  []store.Participant `json:"participants"`
	GameID        string              `json:"game_id,omitempty"`
	AlreadyMember bool                `json:"already_member"`
}

// ensureCanJoin prepares userID to enter targetRoomID. The caller holds the
// user's key lock. On success the user is no longer a member of any other
// room, and peers of the old room have been told.
func (c *Coordinator) ensureCanJoin(ctx context.Context, userID, targetRoomID string) error {
	g, err := c.store.GetActiveGameByUser(ctx, userID)
	switch {
	case err == nil && g.RoomID != targetRoomID:
		return ErrActiveGameElsewhere
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	current, err := c.store.GetParticipantByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.RoomID == targetRoomID {
		return nil
	}
	_, err = c.removeFromRoom(ctx, userID, current.RoomID, "switched_room")
	return err
}

// JoinRoom adds the user to a room as a player while seats are open and the
// room is waiting, otherwise as a spectator. Joining a room the user already
// belongs to is a no-op that produces no second notification.
func (c *Coordinator) JoinRoom(ctx context.Context, userID, roomID string) (*JoinResult, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrInvalidRequest
	}
	unlock := c.userLocks.Lock(userID)
	defer unlock()

	room, err := c.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if room.Status == store.RoomClosed {
		return nil, ErrRoomNotFound
	}
	if err := c.ensureCanJoin(ctx, userID, roomID); err != nil {
		return nil, err
	}

	members, err := c.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	res := &JoinResult{Room: *room}
	players, spectators := 0, 0
	for _, p := range members {
		if p.UserID == userID {
			res.Role = p.Role
			res.AlreadyMember = true
		}
		if p.Role == store.RolePlayer {
			players++
		} else {
			spectators++
		}
	}

	if !res.AlreadyMember {
		switch {
		case room.Status == store.RoomWaiting && players < maxPlayers:
			res.Role = store.RolePlayer
		case spectators < maxSpectators:
			res.Role = store.RoleSpectator
		default:
			return nil, ErrRoomFull
		}
		if res.Role == store.RolePlayer && room.BetCC > 0 {
			bal, err := c.store.GetBalance(ctx, userID)
			if err != nil {
				return nil, err
			}
			if bal < room.BetCC {
				return nil, ErrInsufficientBalance
			}
		}
		created, err := c.store.AddParticipant(ctx, roomID, userID, res.Role)
		if err != nil {
			return nil, err
		}
		res.AlreadyMember = !created
	}

	var active *store.Game
	if g, err := c.store.GetActiveGameByRoom(ctx, roomID); err == nil {
		active = g
		res.GameID = g.ID
	}
	if res.Participants, err = c.store.ListParticipants(ctx, roomID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.enterRoomLocked(userID, roomID)
	if active != nil && active.SymbolOf(userID) != game.Empty {
		c.setInGameLocked(userID, roomID, active.ID, true)
	}
	c.mu.Unlock()

	if !res.AlreadyMember {
		name := c.userName(ctx, userID)
		c.broadcastRoom(roomID, MemberEvent{Type: EvtUserJoined, RoomID: roomID, UserID: userID, Name: name, Role: res.Role}, userID)
		log.Info().Str("room_id", roomID).Str("user_id", userID).Str("role", res.Role).Msg("room_joined")
	}
	if active != nil {
		c.pushGameState(ctx, userID, active)
	}
	return res, nil
}

// LeaveRoom removes the user from their current room. A player leaving an
// active game forfeits it.
func (c *Coordinator) LeaveRoom(ctx context.Context, userID string) (string, error) {
	unlock := c.userLocks.Lock(userID)
	defer unlock()

	p, err := c.store.GetParticipantByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotInRoom
	}
	if err != nil {
		return "", err
	}
	if _, err := c.removeFromRoom(ctx, userID, p.RoomID, "left"); err != nil {
		return "", err
	}
	return p.RoomID, nil
}

// removeFromRoom is the single exit path from a room: abandonment when a player
// leaves an active game, Store deletion, index cleanup, peer notice, and room
// closure once no human player remains. The caller holds the user's key lock.
func (c *Coordinator) removeFromRoom(ctx context.Context, userID, roomID, reason string) (bool, error) {
	members, err := c.store.ListParticipants(ctx, roomID)
	if err != nil {
		return false, err
	}
	role := ""
	for _, p := range members {
		if p.UserID == userID {
			role = p.Role
		}
	}
	if role == store.RolePlayer {
		if g, err := c.store.GetActiveGameByRoom(ctx, roomID); err == nil && g.SymbolOf(userID) != game.Empty {
			if _, err := c.Abandon(ctx, g.ID, userID); err != nil {
				return false, err
			}
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
	}

	removed, err := c.store.RemoveParticipant(ctx, roomID, userID)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.exitRoomLocked(userID, roomID)
	c.mu.Unlock()

	if removed {
		c.broadcastRoom(roomID, MemberEvent{Type: EvtUserLeft, RoomID: roomID, UserID: userID, Reason: reason}, userID)
		log.Info().Str("room_id", roomID).Str("user_id", userID).Str("reason", reason).Msg("room_left")
	}

	humans := 0
	for _, p := range members {
		if p.UserID != userID && p.Role == store.RolePlayer && !c.isBot(p.UserID) {
			humans++
		}
	}
	if removed && humans == 0 {
		c.closeRoom(ctx, roomID, EvtRoomClosed, "", "last_player_left")
	}
	return removed, nil
}

// closeRoom marks the room closed, tells whoever is still attached and drops
// the room from the index.
func (c *Coordinator) closeRoom(ctx context.Context, roomID, evtType, gameID, reason string) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("close_room_lookup_failed")
		return
	}
	if room.Status == store.RoomClosed {
		return
	}
	if err := c.store.UpdateRoomStatus(ctx, roomID, store.RoomClosed); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("close_room_failed")
		return
	}
	c.mu.Lock()
	targets := c.roomConnsLocked(roomID, "")
	c.dropRoomLocked(roomID)
	c.mu.Unlock()
	c.sendTo(targets, RoomEvent{Type: evtType, RoomID: roomID, GameID: gameID, Reason: reason})
	log.Info().Str("room_id", roomID).Str("reason", reason).Msg("room_closed")
}

// CreateRoom opens a private room hosted by userID, who joins as a player.
func (c *Coordinator) CreateRoom(ctx context.Context, userID, name string, bet int64) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if len(name) > maxRoomName {
		return nil, ErrInvalidRequest
	}
	if bet < 0 {
		return nil, ErrInvalidBet
	}
	unlock := c.userLocks.Lock(userID)
	defer unlock()

	if bet > 0 {
		bal, err := c.store.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if bal < bet {
			return nil, ErrInsufficientBalance
		}
	}
	if err := c.ensureCanJoin(ctx, userID, ""); err != nil {
		return nil, err
	}
	if name == "" {
		name = c.userName(ctx, userID) + "'s room"
	}
	room, err := c.store.CreateRoom(ctx, store.Room{Name: name, HostID: userID, BetCC: bet, Kind: store.RoomKindPrivate})
	if err != nil {
		return nil, err
	}
	if _, err := c.store.AddParticipant(ctx, room.ID, userID, store.RolePlayer); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.enterRoomLocked(userID, room.ID)
	c.mu.Unlock()
	log.Info().Str("room_id", room.ID).Str("host_id", userID).Int64("bet_cc", bet).Msg("room_created")
	return room, nil
}

// StartGame is the manual start path. Starting a room that already has an
// active game re-triggers the start broadcast, which skips users that were
// already notified.
func (c *Coordinator) StartGame(ctx context.Context, userID, roomID string) (*store.Game, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = c.currentRoom(userID)
	}
	if roomID == "" {
		return nil, ErrNotInRoom
	}
	room, err := c.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	members, err := c.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	players := []string{}
	isPlayer := false
	for _, p := range members {
		if p.Role != store.RolePlayer {
			continue
		}
		players = append(players, p.UserID)
		if p.UserID == userID {
			isPlayer = true
		}
	}
	if !isPlayer {
		return nil, game.ErrNotAParticipant
	}
	if g, err := c.store.GetActiveGameByRoom(ctx, roomID); err == nil {
		c.announceStart(ctx, g)
		return g, nil
	}
	if room.Status != store.RoomWaiting {
		return nil, ErrRoomNotWaiting
	}
	if len(players) < maxPlayers {
		return nil, ErrNotEnoughPlayers
	}
	x, o := players[0], players[1]
	if players[1] == room.HostID {
		x, o = players[1], players[0]
	}
	return c.startRoomGame(ctx, room, x, o)
}

func (c *Coordinator) userName(ctx context.Context, userID string) string {
	c.mu.Lock()
	if p := c.presence[userID]; p != nil && p.name != "" {
		c.mu.Unlock()
		return p.name
	}
	if b, ok := c.bots[userID]; ok {
		c.mu.Unlock()
		return b.Name
	}
	if cs := c.mostRecentConnLocked(userID, ""); cs != nil && cs.name != "" {
		c.mu.Unlock()
		return cs.name
	}
	c.mu.Unlock()
	u, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return userID
	}
	return u.Name
}
