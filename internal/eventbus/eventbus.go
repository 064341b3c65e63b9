package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	SubjectMatchFound      = "arena.match.found"
	SubjectGameStarted     = "arena.game.started"
	SubjectGameFinished    = "arena.game.finished"
	SubjectPresenceOffline = "arena.presence.offline"
)

// Event is the envelope published for lifecycle facts. Consumers outside this
// process (economy, achievements) subscribe by subject.
type Event struct {
	Type    string         `json:"type"`
	RoomID  string         `json:"room_id,omitempty"`
	GameID  string         `json:"game_id,omitempty"`
	UserIDs []string       `json:"user_ids,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

type Publisher interface {
	Publish(subject string, ev Event) error
	Close()
}

type Nop struct{}

func (Nop) Publish(string, Event) error { return nil }
func (Nop) Close()                      {}

type NATSPublisher struct {
	nc *nats.Conn
}

func Connect(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("board-arena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats_disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats_reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(subject string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.Type == "" {
		ev.Type = subject
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(subject, b)
}

func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Open returns a NATS publisher when url is set, otherwise Nop.
func Open(url string) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	return Connect(url)
}
