package coordinator

import (
	"context"
	"errors"
	"sort"
	"time"

	"board-arena/internal/eventbus"
	"board-arena/internal/opponent"
	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// queueEntry moves NOT_QUEUED -> QUEUED -> {MATCHED | BOT_MATCHED | LEFT}.
// Whoever removes it from c.queued owns its outcome.
type queueEntry struct {
	userID     string
	bet        int64
	enqueuedAt time.Time
	timer      *time.Timer
}

type QueueTicket struct {
	UserID     string    `json:"user_id"`
	BetCC      int64     `json:"bet_cc"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	BotAfterMS int64     `json:"bot_after_ms"`
}

// JoinQueue enqueues the user for a stranger with the exact same bet and arms
// the bot fallback timer.
func (c *Coordinator) JoinQueue(ctx context.Context, userID string, bet int64) (*QueueTicket, error) {
	if bet <= 0 {
		return nil, ErrInvalidBet
	}
	if c.isQueued(userID) {
		return nil, ErrAlreadyQueued
	}
	if _, err := c.store.GetActiveGameByUser(ctx, userID); err == nil {
		return nil, ErrActiveGameElsewhere
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	bal, err := c.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bal < bet {
		return nil, ErrInsufficientBalance
	}

	now := c.now()
	e := &queueEntry{userID: userID, bet: bet, enqueuedAt: now}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := c.queued[userID]; ok {
		c.mu.Unlock()
		return nil, ErrAlreadyQueued
	}
	c.queued[userID] = e
	c.queue[bet] = append(c.queue[bet], e)
	e.timer = c.afterLocked(c.opts.BotFallback, func() { c.onBotFallback(c.ctx, e) })
	c.mu.Unlock()

	metricQueueJoinTotal.Add(1)
	log.Info().Str("user_id", userID).Int64("bet_cc", bet).Msg("queue_joined")

	c.tryPair(ctx)
	return &QueueTicket{UserID: userID, BetCC: bet, EnqueuedAt: now, BotAfterMS: c.opts.BotFallback.Milliseconds()}, nil
}

// LeaveQueue cancels the fallback timer and removes the entry. It reports
// whether the user was queued.
func (c *Coordinator) LeaveQueue(userID string) bool {
	c.mu.Lock()
	e := c.dequeueLocked(userID)
	c.mu.Unlock()
	if e != nil {
		log.Info().Str("user_id", userID).Msg("queue_left")
	}
	return e != nil
}

func (c *Coordinator) isQueued(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.queued[userID]
	return ok
}

// dequeueLocked removes userID's entry from both the index and its bet bucket.
func (c *Coordinator) dequeueLocked(userID string) *queueEntry {
	e := c.queued[userID]
	if e == nil {
		return nil
	}
	delete(c.queued, userID)
	bucket := c.queue[e.bet]
	for i, other := range bucket {
		if other == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.queue, e.bet)
	} else {
		c.queue[e.bet] = bucket
	}
	c.stopTimerLocked(e.timer)
	return e
}

// requeue puts entries back at the front of their bucket with a fresh
// fallback timer. Used when a claimed pair could not be seated.
func (c *Coordinator) requeue(entries ...*queueEntry) {
	for _, e := range entries {
		c.mu.Lock()
		if _, ok := c.queued[e.userID]; ok || c.closed {
			c.mu.Unlock()
			continue
		}
		fresh := &queueEntry{userID: e.userID, bet: e.bet, enqueuedAt: e.enqueuedAt}
		c.queued[e.userID] = fresh
		c.queue[e.bet] = append([]*queueEntry{fresh}, c.queue[e.bet]...)
		fresh.timer = c.afterLocked(c.opts.BotFallback, func() { c.onBotFallback(c.ctx, fresh) })
		c.mu.Unlock()
	}
}

// claimPairLocked removes and returns the first two distinct users sharing a
// bet, oldest bucket first.
func (c *Coordinator) claimPairLocked() (*queueEntry, *queueEntry) {
	bets := make([]int64, 0, len(c.queue))
	for bet, bucket := range c.queue {
		if len(bucket) >= 2 {
			bets = append(bets, bet)
		}
	}
	sort.Slice(bets, func(i, j int) bool {
		return c.queue[bets[i]][0].enqueuedAt.Before(c.queue[bets[j]][0].enqueuedAt)
	})
	for _, bet := range bets {
		bucket := c.queue[bet]
		a := bucket[0]
		for _, b := range bucket[1:] {
			if b.userID == a.userID {
				continue
			}
			c.dequeueLocked(a.userID)
			c.dequeueLocked(b.userID)
			return a, b
		}
	}
	return nil, nil
}

// tryPair drains every available pair. pairMu makes scan-and-remove plus the
// Store work that seats a pair one critical section, so concurrent joins never
// claim overlapping pairs.
func (c *Coordinator) tryPair(ctx context.Context) {
	c.pairMu.Lock()
	defer c.pairMu.Unlock()
	for {
		c.mu.Lock()
		a, b := c.claimPairLocked()
		c.mu.Unlock()
		if a == nil {
			return
		}
		if err := c.matchPair(ctx, a, b); err != nil {
			log.Error().Err(err).Str("user_a", a.userID).Str("user_b", b.userID).Msg("match_failed")
			return
		}
	}
}

func (c *Coordinator) matchPair(ctx context.Context, a, b *queueEntry) error {
	room, err := c.store.CreateRoom(ctx, store.Room{
		Name:   "Match",
		HostID: a.userID,
		BetCC:  a.bet,
		Kind:   store.RoomKindMatch,
	})
	if err != nil {
		c.requeue(a, b)
		return err
	}
	seated := []*queueEntry{}
	for _, e := range []*queueEntry{a, b} {
		if err := c.seatPlayer(ctx, e.userID, room.ID); err != nil {
			metricPairRaceLost.Add(1)
			log.Warn().Err(err).Str("user_id", e.userID).Str("room_id", room.ID).Msg("match_seat_failed")
			for _, s := range seated {
				c.unseat(ctx, s.userID, room.ID)
			}
			c.closeRoom(ctx, room.ID, EvtRoomClosed, "", "match_aborted")
			others := []*queueEntry{}
			for _, o := range []*queueEntry{a, b} {
				if o != e {
					others = append(others, o)
				}
			}
			c.requeue(others...)
			if errors.Is(err, ErrActiveGameElsewhere) {
				return nil
			}
			return err
		}
		seated = append(seated, e)
	}

	metricMatchesTotal.Add(1)
	log.Info().Str("room_id", room.ID).Str("user_a", a.userID).Str("user_b", b.userID).Int64("bet_cc", a.bet).Msg("match_found")
	c.publish(eventbus.SubjectMatchFound, eventbus.Event{RoomID: room.ID, UserIDs: []string{a.userID, b.userID}, Data: map[string]any{"bet_cc": a.bet}})
	c.sendToUser(a.userID, MatchFoundEvent{Type: EvtMatchFound, RoomID: room.ID, BetCC: a.bet, Opponent: c.playerRef(ctx, b.userID)})
	c.sendToUser(b.userID, MatchFoundEvent{Type: EvtMatchFound, RoomID: room.ID, BetCC: a.bet, Opponent: c.playerRef(ctx, a.userID)})

	c.autoStart(ctx, room, a.userID, b.userID, 0)
	return nil
}

// seatPlayer moves a matched user into room as a player under the user's key
// lock.
func (c *Coordinator) seatPlayer(ctx context.Context, userID, roomID string) error {
	unlock := c.userLocks.Lock(userID)
	defer unlock()
	if err := c.ensureCanJoin(ctx, userID, roomID); err != nil {
		return err
	}
	if _, err := c.store.AddParticipant(ctx, roomID, userID, store.RolePlayer); err != nil {
		return err
	}
	c.mu.Lock()
	c.enterRoomLocked(userID, roomID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) unseat(ctx context.Context, userID, roomID string) {
	if _, err := c.store.RemoveParticipant(ctx, roomID, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("room_id", roomID).Msg("unseat_failed")
	}
	c.mu.Lock()
	c.exitRoomLocked(userID, roomID)
	c.mu.Unlock()
}

// autoStart starts a matched room once both players have a live connection in
// it, retrying with a fixed backoff before asking for a manual start.
func (c *Coordinator) autoStart(ctx context.Context, room *store.Room, x, o string, attempt int) {
	if c.userInRoom(x, room.ID) && c.userInRoom(o, room.ID) {
		if _, err := c.startRoomGame(ctx, room, x, o); err != nil {
			log.Warn().Err(err).Str("room_id", room.ID).Msg("auto_start_failed")
		}
		return
	}
	if attempt < c.opts.AutoStartRetries {
		c.after(c.opts.AutoStartBackoff, func() { c.autoStart(c.ctx, room, x, o, attempt+1) })
		return
	}
	log.Info().Str("room_id", room.ID).Int("attempts", attempt+1).Msg("manual_start_required")
	for _, uid := range []string{x, o} {
		c.sendToUser(uid, RoomEvent{Type: EvtManualStartRequired, RoomID: room.ID, Reason: "players_not_ready"})
	}
}

// onBotFallback fires when an entry waited the full fallback window. It only
// acts if the entry is still queued; a concurrent match or leave wins.
func (c *Coordinator) onBotFallback(ctx context.Context, e *queueEntry) {
	c.mu.Lock()
	if c.queued[e.userID] != e {
		c.mu.Unlock()
		return
	}
	c.dequeueLocked(e.userID)
	c.mu.Unlock()

	if err := c.matchBot(ctx, e); err != nil {
		log.Error().Err(err).Str("user_id", e.userID).Msg("bot_match_failed")
		c.sendToUser(e.userID, ErrorEvent{Type: EvtError, Code: wireCode(err)})
	}
}

func (c *Coordinator) matchBot(ctx context.Context, e *queueEntry) error {
	bot, err := c.pickBot(ctx)
	if err != nil {
		return err
	}
	difficulty := opponent.NormalizeDifficulty(c.opts.BotDifficulty)
	room, err := c.store.CreateRoom(ctx, store.Room{
		Name:       "vs " + bot.Name,
		HostID:     e.userID,
		BetCC:      e.bet,
		Kind:       store.RoomKindBot,
		Difficulty: difficulty,
	})
	if err != nil {
		return err
	}
	if err := c.seatPlayer(ctx, e.userID, room.ID); err != nil {
		c.closeRoom(ctx, room.ID, EvtRoomClosed, "", "match_aborted")
		return err
	}
	if _, err := c.store.AddParticipant(ctx, room.ID, bot.ID, store.RolePlayer); err != nil {
		return err
	}

	metricBotMatches.Add(1)
	log.Info().Str("room_id", room.ID).Str("user_id", e.userID).Str("bot_id", bot.ID).Str("difficulty", difficulty).Msg("bot_matched")
	c.publish(eventbus.SubjectMatchFound, eventbus.Event{RoomID: room.ID, UserIDs: []string{e.userID, bot.ID}, Data: map[string]any{"bet_cc": e.bet, "bot": true}})
	c.sendToUser(e.userID, MatchFoundEvent{Type: EvtMatchFound, RoomID: room.ID, BetCC: e.bet, Opponent: PlayerRef{UserID: bot.ID, Name: bot.Name, IsBot: true}})

	start := func() {
		if _, err := c.startRoomGame(c.ctx, room, e.userID, bot.ID); err != nil {
			log.Warn().Err(err).Str("room_id", room.ID).Msg("bot_game_start_failed")
		}
	}
	if c.opts.BotStartDelay <= 0 {
		start()
	} else {
		c.after(c.opts.BotStartDelay, start)
	}
	return nil
}

func (c *Coordinator) pickBot(ctx context.Context) (store.User, error) {
	c.mu.Lock()
	bots := make([]store.User, 0, len(c.bots))
	for _, b := range c.bots {
		bots = append(bots, b)
	}
	c.mu.Unlock()
	if len(bots) == 0 {
		if err := c.refreshBots(ctx); err != nil {
			return store.User{}, err
		}
		c.mu.Lock()
		for _, b := range c.bots {
			bots = append(bots, b)
		}
		c.mu.Unlock()
	}
	if len(bots) == 0 {
		return store.User{}, ErrNoBotAvailable
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].ID < bots[j].ID })
	return bots[c.randIntn(len(bots))], nil
}

// QueueSize reports the number of queued users.
func (c *Coordinator) QueueSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}
