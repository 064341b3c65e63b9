package coordinator

import (
	"time"

	"github.com/rs/zerolog/log"
)

type connState struct {
	conn     Conn
	userID   string
	name     string
	roomID   string
	lastSeen time.Time
	seq      uint64
}

// register binds conn to a user. Re-registering the same conn id replaces the
// stale entry, so a reconnect on a new channel never leaves two owners.
// Caller holds c.mu.
func (c *Coordinator) registerLocked(conn Conn, userID, name string, now time.Time) *connState {
	if old, ok := c.conns[conn.ID()]; ok {
		c.detachLocked(old)
		c.dropUserConnLocked(old.userID, conn.ID())
	}
	c.connSeq++
	cs := &connState{conn: conn, userID: userID, name: name, lastSeen: now, seq: c.connSeq}
	c.conns[conn.ID()] = cs
	set := c.userConns[userID]
	if set == nil {
		set = map[string]struct{}{}
		c.userConns[userID] = set
	}
	set[conn.ID()] = struct{}{}
	metricConnectionsActive.Set(int64(len(c.conns)))
	return cs
}

// unregisterLocked forgets conn and reports the state it held. remaining is the
// number of other live connections of the same user.
func (c *Coordinator) unregisterLocked(connID string) (cs *connState, remaining int) {
	cs, ok := c.conns[connID]
	if !ok {
		return nil, 0
	}
	delete(c.conns, connID)
	c.detachLocked(cs)
	c.dropUserConnLocked(cs.userID, connID)
	metricConnectionsActive.Set(int64(len(c.conns)))
	return cs, len(c.userConns[cs.userID])
}

func (c *Coordinator) dropUserConnLocked(userID, connID string) {
	set := c.userConns[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(c.userConns, userID)
	}
}

func (c *Coordinator) connLocked(connID string) *connState {
	return c.conns[connID]
}

// userOf returns the authenticated user of a connection, "" when anonymous.
func (c *Coordinator) userOf(connID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cs := c.conns[connID]; cs != nil {
		return cs.userID
	}
	return ""
}

func (c *Coordinator) hasLiveConn(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.userConns[userID]) > 0
}

// mostRecentConnLocked picks the user's most recently active connection,
// optionally restricted to one room.
func (c *Coordinator) mostRecentConnLocked(userID, roomID string) *connState {
	var best *connState
	for id := range c.userConns[userID] {
		cs := c.conns[id]
		if cs == nil || (roomID != "" && cs.roomID != roomID) {
			continue
		}
		if best == nil || cs.lastSeen.After(best.lastSeen) ||
			(cs.lastSeen.Equal(best.lastSeen) && cs.seq > best.seq) {
			best = cs
		}
	}
	return best
}

func (c *Coordinator) userConnsLocked(userID string) []*connState {
	out := make([]*connState, 0, len(c.userConns[userID]))
	for id := range c.userConns[userID] {
		if cs := c.conns[id]; cs != nil {
			out = append(out, cs)
		}
	}
	return out
}

// send writes msg to one connection. Delivery failures on closed channels are
// expected and only logged at debug level.
func send(conn Conn, msg []byte) bool {
	if conn == nil {
		return false
	}
	if err := conn.Send(msg); err != nil {
		log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("send_dropped")
		return false
	}
	return true
}

// sendToUser delivers to the user's most recently active connection only.
func (c *Coordinator) sendToUser(userID string, v any) bool {
	c.mu.Lock()
	cs := c.mostRecentConnLocked(userID, "")
	var conn Conn
	if cs != nil {
		conn = cs.conn
	}
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	return send(conn, encode(v))
}

func (c *Coordinator) reply(conn Conn, req Inbound, data any, err error) {
	res := Result{Type: req.Type + "_result", RequestID: req.RequestID, OK: err == nil, Data: data}
	if err != nil {
		res.Error = wireCode(err)
		res.Data = nil
	}
	send(conn, encode(res))
}

func (c *Coordinator) sendError(conn Conn, requestID string, err error) {
	send(conn, encode(ErrorEvent{Type: EvtError, RequestID: requestID, Code: wireCode(err)}))
}
