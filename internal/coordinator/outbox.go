package coordinator

import (
	"sync"
	"time"

	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// PendingAck is one game_started delivery awaiting acknowledgement.
type PendingAck struct {
	MessageID string
	UserID    string
	RoomID    string
	GameID    string
	Attempts  int
	NextAt    time.Time

	conn    Conn
	payload []byte
}

type startTracker struct {
	gameID     string
	inProgress bool
	notified   map[string]bool
	// queued holds recipients handed in while a pass was sending. The
	// running pass drains them before it clears inProgress.
	queued []recipient
}

// Outbox delivers game_started at least once per user and game. Every send
// carries a fresh message id; unacknowledged sends are resent on the retry
// interval up to maxRetries times and then dropped.
type Outbox struct {
	retry      time.Duration
	maxRetries int
	now        func() time.Time

	mu       sync.Mutex
	pending  map[string]*PendingAck
	trackers map[string]*startTracker
}

func NewOutbox(retry time.Duration, maxRetries int, now func() time.Time) *Outbox {
	if now == nil {
		now = time.Now
	}
	return &Outbox{
		retry:      retry,
		maxRetries: maxRetries,
		now:        now,
		pending:    map[string]*PendingAck{},
		trackers:   map[string]*startTracker{},
	}
}

func startKey(roomID, gameID string) string {
	return roomID + "|" + gameID
}

// BroadcastGameStarted sends one game_started per recipient that has not been
// notified for this game yet. A call that arrives while another pass for the
// same room and game is sending queues its recipients on that pass and
// returns 0; the running pass delivers them before it finishes. It returns the
// number of messages this call sent.
func (o *Outbox) BroadcastGameStarted(roomID, gameID string, recipients []recipient, build func(messageID string) []byte) int {
	key := startKey(roomID, gameID)

	o.mu.Lock()
	tr := o.trackers[key]
	if tr == nil {
		tr = &startTracker{gameID: gameID, notified: map[string]bool{}}
		o.trackers[key] = tr
	}
	if tr.inProgress {
		tr.queued = append(tr.queued, recipients...)
		o.mu.Unlock()
		metricStartCoalesced.Add(1)
		return 0
	}
	tr.inProgress = true

	sent := 0
	for {
		batch := o.claimBatchLocked(tr, roomID, gameID, recipients, build)
		o.mu.Unlock()
		sent += o.sendBatch(tr, batch)

		o.mu.Lock()
		if len(tr.queued) == 0 {
			tr.inProgress = false
			o.mu.Unlock()
			break
		}
		recipients, tr.queued = tr.queued, nil
	}
	if sent > 0 {
		log.Info().Str("room_id", roomID).Str("game_id", gameID).Int("sent", sent).Msg("game_started_sent")
	}
	return sent
}

// claimBatchLocked marks every recipient not yet notified and registers its
// pending send. The caller holds o.mu.
func (o *Outbox) claimBatchLocked(tr *startTracker, roomID, gameID string, recipients []recipient, build func(string) []byte) []*PendingAck {
	now := o.now()
	batch := make([]*PendingAck, 0, len(recipients))
	for _, r := range recipients {
		if tr.notified[r.userID] {
			continue
		}
		tr.notified[r.userID] = true
		id := store.NewPrefixedID("msg")
		p := &PendingAck{
			MessageID: id,
			UserID:    r.userID,
			RoomID:    roomID,
			GameID:    gameID,
			NextAt:    now.Add(o.retry),
			conn:      r.conn,
			payload:   build(id),
		}
		o.pending[id] = p
		batch = append(batch, p)
	}
	return batch
}

func (o *Outbox) sendBatch(tr *startTracker, batch []*PendingAck) int {
	sent := 0
	for _, p := range batch {
		if send(p.conn, p.payload) {
			sent++
			metricStartSends.Add(1)
			continue
		}
		// Channel already gone: forget quietly and let a reconnect or a
		// later start retrigger reach the user.
		o.mu.Lock()
		delete(o.pending, p.MessageID)
		delete(tr.notified, p.UserID)
		o.mu.Unlock()
	}
	return sent
}

// Ack clears the pending send. Acks from a user that does not own the message
// are ignored.
func (o *Outbox) Ack(userID, messageID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending[messageID]
	if p == nil || p.UserID != userID {
		return false
	}
	delete(o.pending, messageID)
	return true
}

// RetryDue resends every pending message whose retry time has passed. A
// message that already used all its resends is dropped with a warning.
func (o *Outbox) RetryDue(now time.Time) (resent, dropped int) {
	type resend struct {
		p       *PendingAck
		conn    Conn
		payload []byte
	}
	var due []resend
	o.mu.Lock()
	for id, p := range o.pending {
		if now.Before(p.NextAt) {
			continue
		}
		if p.Attempts >= o.maxRetries {
			delete(o.pending, id)
			dropped++
			log.Warn().Str("message_id", id).Str("user_id", p.UserID).Str("game_id", p.GameID).Int("attempts", p.Attempts).Msg("game_started_ack_dropped")
			continue
		}
		p.Attempts++
		p.NextAt = now.Add(o.retry)
		due = append(due, resend{p: p, conn: p.conn, payload: p.payload})
	}
	o.mu.Unlock()
	metricStartDropped.Add(int64(dropped))

	for _, r := range due {
		if send(r.conn, r.payload) {
			resent++
			metricStartRetries.Add(1)
			continue
		}
		o.mu.Lock()
		delete(o.pending, r.p.MessageID)
		o.mu.Unlock()
	}
	return resent, dropped
}

// DropConnection forgets pending sends bound to a closed connection so the
// user can be notified again on a new one.
func (o *Outbox) DropConnection(connID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, p := range o.pending {
		if p.conn == nil || p.conn.ID() != connID {
			continue
		}
		delete(o.pending, id)
		if tr := o.trackers[startKey(p.RoomID, p.GameID)]; tr != nil {
			delete(tr.notified, p.UserID)
		}
	}
}

// CancelGame discards everything tied to a game that is no longer active.
func (o *Outbox) CancelGame(gameID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, p := range o.pending {
		if p.GameID == gameID {
			delete(o.pending, id)
		}
	}
	for key, tr := range o.trackers {
		if tr.gameID == gameID {
			delete(o.trackers, key)
		}
	}
}

// Pending returns a copy of the outstanding sends.
func (o *Outbox) Pending() []PendingAck {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PendingAck, 0, len(o.pending))
	for _, p := range o.pending {
		out = append(out, PendingAck{
			MessageID: p.MessageID,
			UserID:    p.UserID,
			RoomID:    p.RoomID,
			GameID:    p.GameID,
			Attempts:  p.Attempts,
			NextAt:    p.NextAt,
		})
	}
	return out
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
