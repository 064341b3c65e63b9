package main

import (
	"board-arena/internal/config"
	"board-arena/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	if cfg.Token == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.WSURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial failed")
	}
	defer conn.Close()

	p := &player{betCC: cfg.BetCC, requeue: cfg.Requeue, maxGames: cfg.MaxGames}
	if err := conn.WriteMessage(websocket.TextMessage, p.hello(cfg.Token)); err != nil {
		log.Fatal().Err(err).Msg("auth write failed")
	}
	for !p.done {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("bot_connection_closed")
			return
		}
		for _, out := range p.handle(data) {
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				log.Warn().Err(err).Msg("bot_write_failed")
				return
			}
		}
	}
	log.Info().Int("played", p.played).Msg("bot_done")
}
