package coordinator

// userRoomState is the in-memory view of where a user sits. It survives a
// disconnect until the grace window resolves.
type userRoomState struct {
	roomID string
	gameID string
	inGame bool
}

type recipient struct {
	userID string
	conn   Conn
}

// attachLocked moves a connection into roomID. A connection belongs to at most
// one room.
func (c *Coordinator) attachLocked(cs *connState, roomID string) {
	if cs.roomID == roomID {
		return
	}
	c.detachLocked(cs)
	if roomID == "" {
		return
	}
	set := c.rooms[roomID]
	if set == nil {
		set = map[string]struct{}{}
		c.rooms[roomID] = set
	}
	set[cs.conn.ID()] = struct{}{}
	cs.roomID = roomID
}

func (c *Coordinator) detachLocked(cs *connState) {
	if cs.roomID == "" {
		return
	}
	if set := c.rooms[cs.roomID]; set != nil {
		delete(set, cs.conn.ID())
		if len(set) == 0 {
			delete(c.rooms, cs.roomID)
		}
	}
	cs.roomID = ""
}

// enterRoomLocked attaches every live connection of the user and records the
// room as the user's current one.
func (c *Coordinator) enterRoomLocked(userID, roomID string) {
	for _, cs := range c.userConnsLocked(userID) {
		c.attachLocked(cs, roomID)
	}
	st := c.userRooms[userID]
	if st == nil || st.roomID != roomID {
		st = &userRoomState{roomID: roomID}
		c.userRooms[userID] = st
	}
	c.setPresenceRoomLocked(userID, roomID)
}

// exitRoomLocked detaches the user's connections from roomID and forgets the
// room if it is still the user's current one.
func (c *Coordinator) exitRoomLocked(userID, roomID string) {
	for _, cs := range c.userConnsLocked(userID) {
		if cs.roomID == roomID {
			c.detachLocked(cs)
		}
	}
	if st := c.userRooms[userID]; st != nil && st.roomID == roomID {
		delete(c.userRooms, userID)
		c.setPresenceRoomLocked(userID, "")
	}
}

func (c *Coordinator) setInGameLocked(userID, roomID, gameID string, inGame bool) {
	st := c.userRooms[userID]
	if st == nil || st.roomID != roomID {
		st = &userRoomState{roomID: roomID}
		c.userRooms[userID] = st
	}
	st.inGame = inGame
	st.gameID = ""
	if inGame {
		st.gameID = gameID
	}
}

// dropRoomLocked empties a room from the index and returns the users that
// were attached to it.
func (c *Coordinator) dropRoomLocked(roomID string) []string {
	users := map[string]struct{}{}
	for id := range c.rooms[roomID] {
		if cs := c.conns[id]; cs != nil {
			users[cs.userID] = struct{}{}
			cs.roomID = ""
		}
	}
	delete(c.rooms, roomID)
	for userID, st := range c.userRooms {
		if st.roomID == roomID {
			users[userID] = struct{}{}
			delete(c.userRooms, userID)
			c.setPresenceRoomLocked(userID, "")
		}
	}
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	return out
}

func (c *Coordinator) roomConnsLocked(roomID, exceptUser string) []Conn {
	out := make([]Conn, 0, len(c.rooms[roomID]))
	for id := range c.rooms[roomID] {
		cs := c.conns[id]
		if cs == nil || (exceptUser != "" && cs.userID == exceptUser) {
			continue
		}
		out = append(out, cs.conn)
	}
	return out
}

// broadcastRoom fans v out to every connection in the room, O(room size).
func (c *Coordinator) broadcastRoom(roomID string, v any, exceptUser string) {
	c.mu.Lock()
	targets := c.roomConnsLocked(roomID, exceptUser)
	c.mu.Unlock()
	if len(targets) == 0 {
		return
	}
	msg := encode(v)
	for _, conn := range targets {
		send(conn, msg)
	}
}

func (c *Coordinator) sendTo(conns []Conn, v any) {
	if len(conns) == 0 {
		return
	}
	msg := encode(v)
	for _, conn := range conns {
		send(conn, msg)
	}
}

// roomRecipients returns one connection per distinct user in the room: the
// user's most recently active one.
func (c *Coordinator) roomRecipients(roomID string) []recipient {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := map[string]bool{}
	out := []recipient{}
	for id := range c.rooms[roomID] {
		cs := c.conns[id]
		if cs == nil || seen[cs.userID] {
			continue
		}
		seen[cs.userID] = true
		if best := c.mostRecentConnLocked(cs.userID, roomID); best != nil {
			out = append(out, recipient{userID: cs.userID, conn: best.conn})
		}
	}
	return out
}

// userInRoom reports whether the user has a live connection attached to roomID.
func (c *Coordinator) userInRoom(userID, roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mostRecentConnLocked(userID, roomID) != nil
}

func (c *Coordinator) currentRoom(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st := c.userRooms[userID]; st != nil {
		return st.roomID
	}
	return ""
}

// RoomConnections lists the connection ids attached to a room.
func (c *Coordinator) RoomConnections(roomID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms[roomID]))
	for id := range c.rooms[roomID] {
		out = append(out, id)
	}
	return out
}
