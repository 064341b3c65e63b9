package coordinator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"board-arena/internal/eventbus"
	"board-arena/internal/game"
	"board-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// Store is the durable side of the coordinator. It is the only cross-process
// source of truth and is re-read before any decision a concurrent writer could
// invalidate.
type Store interface {
	GetUserByToken(ctx context.Context, token string) (*store.User, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	ListBots(ctx context.Context) ([]store.User, error)
	CreateRoom(ctx context.Context, r store.Room) (*store.Room, error)
	GetRoom(ctx context.Context, id string) (*store.Room, error)
	UpdateRoomStatus(ctx context.Context, id, status string) error
	AddParticipant(ctx context.Context, roomID, userID, role string) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
	GetParticipantByUser(ctx context.Context, userID string) (*store.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]store.Participant, error)
	CreateGame(ctx context.Context, g store.Game) (*store.Game, error)
	GetGame(ctx context.Context, id string) (*store.Game, error)
	UpdateGame(ctx context.Context, g store.Game) error
	GetActiveGameByUser(ctx context.Context, userID string) (*store.Game, error)
	GetActiveGameByRoom(ctx context.Context, roomID string) (*store.Game, error)
	ListActiveGames(ctx context.Context) ([]store.Game, error)
}

// Opponent chooses moves for synthetic players.
type Opponent interface {
	ChooseMove(b game.Board, me game.Symbol, difficulty string) (game.Position, error)
}

// Conn is one live client channel. Send must not block.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close()
}

type Options struct {
	BotFallback       time.Duration
	BotStartDelay     time.Duration
	BotMoveDelay      time.Duration
	BotDifficulty     string
	AutoStartRetries  int
	AutoStartBackoff  time.Duration
	AutoPlayAfter     time.Duration
	AutoPlayThrottle  time.Duration
	AutoPlaySweep     time.Duration
	GameExpiry        time.Duration
	AckRetry          time.Duration
	AckMaxRetries     int
	PresenceTTL       time.Duration
	PresenceInGameTTL time.Duration
	PresenceSweep     time.Duration
	Grace             time.Duration
	GraceInGame       time.Duration
	ReconnectDedup    time.Duration

	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		BotFallback:       25 * time.Second,
		BotStartDelay:     time.Second,
		BotMoveDelay:      700 * time.Millisecond,
		BotDifficulty:     "medium",
		AutoStartRetries:  4,
		AutoStartBackoff:  time.Second,
		AutoPlayAfter:     60 * time.Second,
		AutoPlayThrottle:  5 * time.Second,
		AutoPlaySweep:     10 * time.Second,
		GameExpiry:        10 * time.Minute,
		AckRetry:          2 * time.Second,
		AckMaxRetries:     3,
		PresenceTTL:       90 * time.Second,
		PresenceInGameTTL: 5 * time.Minute,
		PresenceSweep:     30 * time.Second,
		Grace:             60 * time.Second,
		GraceInGame:       120 * time.Second,
		ReconnectDedup:    time.Second,
	}
}

// Coordinator owns every piece of process-local session state: connections,
// presence, the room index, the matchmaking queue, pending disconnects and the
// start outbox. mu guards the in-memory indices and is never held across a
// Store call.
type Coordinator struct {
	store    Store
	opponent Opponent
	events   eventbus.Publisher
	opts     Options
	outbox   *Outbox

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	userLocks keyedMutex
	gameLocks keyedMutex
	pairMu    sync.Mutex

	mu            sync.Mutex
	conns         map[string]*connState
	userConns     map[string]map[string]struct{}
	presence      map[string]*presenceEntry
	rooms         map[string]map[string]struct{}
	userRooms     map[string]*userRoomState
	queue         map[int64][]*queueEntry
	queued        map[string]*queueEntry
	pending       map[string]*pendingDisconnect
	lastAutoMove  map[string]time.Time
	reconnectSeen map[string]time.Time
	bots          map[string]store.User
	timers        map[*time.Timer]struct{}
	connSeq       uint64
	closed        bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(st Store, opp Opponent, events eventbus.Publisher, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if events == nil {
		events = eventbus.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:         st,
		opponent:      opp,
		events:        events,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
		conns:         map[string]*connState{},
		userConns:     map[string]map[string]struct{}{},
		presence:      map[string]*presenceEntry{},
		rooms:         map[string]map[string]struct{}{},
		userRooms:     map[string]*userRoomState{},
		queue:         map[int64][]*queueEntry{},
		queued:        map[string]*queueEntry{},
		pending:       map[string]*pendingDisconnect{},
		lastAutoMove:  map[string]time.Time{},
		reconnectSeen: map[string]time.Time{},
		bots:          map[string]store.User{},
		timers:        map[*time.Timer]struct{}{},
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.outbox = NewOutbox(opts.AckRetry, opts.AckMaxRetries, opts.Now)
	return c
}

func (c *Coordinator) now() time.Time {
	return c.opts.Now()
}

// Start loads the bot roster and launches the janitor.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.refreshBots(ctx); err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runJanitor(c.ctx)
	}()
	return nil
}

// Close stops the janitor and every outstanding timer. Live connections are
// closed; their disconnect handling becomes a no-op.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for t := range c.timers {
		t.Stop()
	}
	c.timers = map[*time.Timer]struct{}{}
	conns := make([]Conn, 0, len(c.conns))
	for _, cs := range c.conns {
		conns = append(conns, cs.conn)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	for _, conn := range conns {
		conn.Close()
	}
	log.Info().Int("connections", len(conns)).Msg("coordinator_closed")
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// after runs fn once d elapses unless the coordinator has closed or the
// returned timer is cancelled with stopTimerLocked.
func (c *Coordinator) after(d time.Duration, fn func()) *time.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.afterLocked(d, fn)
}

// afterLocked is after for callers that hold c.mu.
func (c *Coordinator) afterLocked(d time.Duration, fn func()) *time.Timer {
	if c.closed {
		return nil
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.mu.Lock()
		_, live := c.timers[t]
		delete(c.timers, t)
		closed := c.closed
		c.mu.Unlock()
		if !live || closed {
			return
		}
		fn()
	})
	c.timers[t] = struct{}{}
	return t
}

// stopTimerLocked cancels t. Caller holds c.mu.
func (c *Coordinator) stopTimerLocked(t *time.Timer) {
	if t == nil {
		return
	}
	t.Stop()
	delete(c.timers, t)
}

func (c *Coordinator) refreshBots(ctx context.Context) error {
	bots, err := c.store.ListBots(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, b := range bots {
		c.bots[b.ID] = b
	}
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) isBot(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bots[userID]
	return ok
}

func (c *Coordinator) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Intn(n)
}

func (c *Coordinator) publish(subject string, ev eventbus.Event) {
	if ev.At.IsZero() {
		ev.At = c.now().UTC()
	}
	if err := c.events.Publish(subject, ev); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("event_publish_failed")
	}
}

// Stats is a point-in-time view used by health and debug endpoints.
type Stats struct {
	Connections        int `json:"connections"`
	OnlineUsers        int `json:"online_users"`
	Rooms              int `json:"rooms"`
	Queued             int `json:"queued"`
	PendingDisconnects int `json:"pending_disconnects"`
	PendingAcks        int `json:"pending_acks"`
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		Connections:        len(c.conns),
		OnlineUsers:        len(c.presence),
		Rooms:              len(c.rooms),
		Queued:             len(c.queued),
		PendingDisconnects: len(c.pending),
	}
	c.mu.Unlock()
	s.PendingAcks = c.outbox.Len()
	return s
}
