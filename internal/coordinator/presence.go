package coordinator

import (
	"sort"
	"time"

	"board-arena/internal/eventbus"

	"github.com/rs/zerolog/log"
)

type presenceEntry struct {
	userID   string
	name     string
	roomID   string
	lastSeen time.Time
}

// upsertPresenceLocked refreshes last-seen and reports whether the user just
// came online.
func (c *Coordinator) upsertPresenceLocked(userID, name string, now time.Time) bool {
	if p := c.presence[userID]; p != nil {
		p.lastSeen = now
		if name != "" {
			p.name = name
		}
		return false
	}
	roomID := ""
	if st := c.userRooms[userID]; st != nil {
		roomID = st.roomID
	}
	c.presence[userID] = &presenceEntry{userID: userID, name: name, roomID: roomID, lastSeen: now}
	return true
}

// Touch records activity for a user. It is called for heartbeats, moves, chat
// and reactions.
func (c *Coordinator) Touch(userID string) {
	now := c.now()
	c.mu.Lock()
	added := false
	if p := c.presence[userID]; p != nil {
		p.lastSeen = now
	} else if len(c.userConns[userID]) > 0 {
		name := ""
		if cs := c.mostRecentConnLocked(userID, ""); cs != nil {
			name = cs.name
		}
		added = c.upsertPresenceLocked(userID, name, now)
	}
	c.mu.Unlock()
	if added {
		c.broadcastOnlineUsers()
	}
}

// touchConn records activity on one connection and for its user.
func (c *Coordinator) touchConn(connID string) {
	now := c.now()
	c.mu.Lock()
	cs := c.conns[connID]
	if cs == nil {
		c.mu.Unlock()
		return
	}
	cs.lastSeen = now
	added := c.upsertPresenceLocked(cs.userID, cs.name, now)
	c.mu.Unlock()
	if added {
		c.broadcastOnlineUsers()
	}
}

func (c *Coordinator) setPresenceRoomLocked(userID, roomID string) {
	if p := c.presence[userID]; p != nil {
		p.roomID = roomID
	}
}

func (c *Coordinator) OnlineUsers() []OnlineUser {
	c.mu.Lock()
	out := make([]OnlineUser, 0, len(c.presence))
	for _, p := range c.presence {
		out = append(out, OnlineUser{UserID: p.userID, Name: p.name, RoomID: p.roomID})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// broadcastOnlineUsers fans the presence list out to every live connection.
func (c *Coordinator) broadcastOnlineUsers() {
	users := c.OnlineUsers()
	msg := encode(OnlineUsersEvent{Type: EvtOnlineUsersUpdate, Users: users, Count: len(users)})
	c.mu.Lock()
	targets := make([]Conn, 0, len(c.conns))
	for _, cs := range c.conns {
		targets = append(targets, cs.conn)
	}
	c.mu.Unlock()
	for _, conn := range targets {
		send(conn, msg)
	}
}

// sweepPresence evicts entries idle beyond the presence TTL, or the longer
// in-game TTL while the user holds an active game.
func (c *Coordinator) sweepPresence(now time.Time) int {
	c.mu.Lock()
	evicted := 0
	for userID, p := range c.presence {
		ttl := c.opts.PresenceTTL
		if st := c.userRooms[userID]; st != nil && st.inGame {
			ttl = c.opts.PresenceInGameTTL
		}
		if now.Sub(p.lastSeen) <= ttl {
			continue
		}
		delete(c.presence, userID)
		evicted++
	}
	c.mu.Unlock()
	if evicted > 0 {
		log.Info().Int("evicted", evicted).Msg("presence_swept")
		c.broadcastOnlineUsers()
	}
	return evicted
}

// markOffline removes a user's presence for good and announces it.
func (c *Coordinator) markOffline(userID string) {
	c.mu.Lock()
	_, had := c.presence[userID]
	delete(c.presence, userID)
	c.mu.Unlock()
	c.publish(eventbus.SubjectPresenceOffline, eventbus.Event{UserIDs: []string{userID}})
	if had {
		c.broadcastOnlineUsers()
	}
}
