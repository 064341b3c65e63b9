package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"

	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// pendingDisconnect is the grace window opened when a user's last connection
// closes. It resolves exactly once: cancelled by re-auth or cleaned up on
// expiry, whichever removes it from c.pending first.
type pendingDisconnect struct {
	userID    string
	roomID    string
	inGame    bool
	expiresAt time.Time
	timer     *time.Timer
}

// Authenticate binds conn to the token's user. A pending disconnect for that
// user is cancelled and the user is re-attached to their room, with the
// authoritative game state pushed to the new connection.
func (c *Coordinator) Authenticate(ctx context.Context, conn Conn, token string) (*store.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metricAuthErrors.Add(1)
		return nil, ErrUnauthorized
	}
	u, err := c.store.GetUserByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		metricAuthErrors.Add(1)
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	now := c.now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	hadConns := len(c.userConns[u.ID]) > 0
	c.registerLocked(conn, u.ID, u.Name, now)
	pd := c.pending[u.ID]
	if pd != nil {
		delete(c.pending, u.ID)
		c.stopTimerLocked(pd.timer)
	}
	roomID := ""
	if st := c.userRooms[u.ID]; st != nil {
		roomID = st.roomID
	}
	added := c.upsertPresenceLocked(u.ID, u.Name, now)
	c.mu.Unlock()
	metricAuthTotal.Add(1)

	active, err := c.store.GetActiveGameByUser(ctx, u.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		roomID = active.RoomID
	} else if roomID == "" {
		if p, err := c.store.GetParticipantByUser(ctx, u.ID); err == nil {
			roomID = p.RoomID
		}
	}

	if roomID != "" {
		c.mu.Lock()
		c.enterRoomLocked(u.ID, roomID)
		if active != nil {
			c.setInGameLocked(u.ID, roomID, active.ID, true)
		}
		c.mu.Unlock()
	}
	if added {
		c.broadcastOnlineUsers()
	}

	reconnected := pd != nil || (!hadConns && roomID != "")
	if pd != nil {
		metricReconnects.Add(1)
		log.Info().Str("user_id", u.ID).Str("room_id", roomID).Dur("remaining", pd.expiresAt.Sub(now)).Msg("reconnected")
	}
	if reconnected && roomID != "" {
		c.notifyReconnected(u, roomID, now)
	}
	if active != nil {
		c.pushGameState(ctx, u.ID, active)
	}
	return u, nil
}

// notifyReconnected tells peers a user is back, at most once per dedup window.
func (c *Coordinator) notifyReconnected(u *store.User, roomID string, now time.Time) {
	c.mu.Lock()
	last, seen := c.reconnectSeen[u.ID]
	if seen && now.Sub(last) < c.opts.ReconnectDedup {
		c.mu.Unlock()
		return
	}
	c.reconnectSeen[u.ID] = now
	c.mu.Unlock()
	c.broadcastRoom(roomID, MemberEvent{Type: EvtPlayerReconnected, RoomID: roomID, UserID: u.ID, Name: u.Name}, u.ID)
}

// HandleDisconnect forgets conn. When it was the user's last connection a grace
// window opens; longer while the user holds an active game.
func (c *Coordinator) HandleDisconnect(conn Conn) {
	c.mu.Lock()
	cs, remaining := c.unregisterLocked(conn.ID())
	if cs == nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.outbox.DropConnection(conn.ID())
	if remaining > 0 {
		return
	}

	now := c.now()
	c.mu.Lock()
	pd := &pendingDisconnect{userID: cs.userID}
	if st := c.userRooms[cs.userID]; st != nil {
		pd.roomID = st.roomID
		pd.inGame = st.inGame
	}
	grace := c.opts.Grace
	if pd.inGame {
		grace = c.opts.GraceInGame
	}
	pd.expiresAt = now.Add(grace)
	if old := c.pending[cs.userID]; old != nil {
		c.stopTimerLocked(old.timer)
	}
	c.pending[cs.userID] = pd
	pd.timer = c.afterLocked(grace, func() { c.onGraceExpired(c.ctx, pd) })
	c.mu.Unlock()

	log.Info().Str("user_id", cs.userID).Str("room_id", pd.roomID).Bool("in_game", pd.inGame).Dur("grace", grace).Msg("disconnect_pending")
}

// onGraceExpired runs the departure cleanup for a user who did not come back.
func (c *Coordinator) onGraceExpired(ctx context.Context, pd *pendingDisconnect) {
	c.mu.Lock()
	if c.pending[pd.userID] != pd {
		c.mu.Unlock()
		return
	}
	delete(c.pending, pd.userID)
	back := len(c.userConns[pd.userID]) > 0
	c.mu.Unlock()
	if back {
		return
	}
	metricGraceExpiries.Add(1)

	unlock := c.userLocks.Lock(pd.userID)
	if g, err := c.store.GetActiveGameByUser(ctx, pd.userID); err == nil {
		if _, err := c.Abandon(ctx, g.ID, pd.userID); err != nil {
			log.Error().Err(err).Str("user_id", pd.userID).Str("game_id", g.ID).Msg("grace_abandon_failed")
		}
	}
	if p, err := c.store.GetParticipantByUser(ctx, pd.userID); err == nil {
		if _, err := c.removeFromRoom(ctx, pd.userID, p.RoomID, "disconnected"); err != nil {
			log.Error().Err(err).Str("user_id", pd.userID).Str("room_id", p.RoomID).Msg("grace_leave_failed")
		}
	}
	unlock()

	c.LeaveQueue(pd.userID)
	c.mu.Lock()
	delete(c.userRooms, pd.userID)
	delete(c.reconnectSeen, pd.userID)
	c.mu.Unlock()
	c.markOffline(pd.userID)
	log.Info().Str("user_id", pd.userID).Str("room_id", pd.roomID).Msg("grace_expired")
}

// PendingDisconnects reports how many grace windows are open.
func (c *Coordinator) PendingDisconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
