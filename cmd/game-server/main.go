package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"board-arena/internal/config"
	"board-arena/internal/coordinator"
	"board-arena/internal/eventbus"
	"board-arena/internal/logging"
	"board-arena/internal/opponent"
	"board-arena/internal/store"
	httptransport "board-arena/internal/transport/http"
	"board-arena/internal/ws"

	"github.com/rs/zerolog/log"
)

// arenaStore is what the server needs from either store driver.
type arenaStore interface {
	coordinator.Store
	httptransport.Store
	EnsureBotUsers(ctx context.Context, names []string, balance int64) error
	Close()
}

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Server.StoreDriver).Msg("store init failed")
	}
	defer st.Close()
	if err := st.EnsureBotUsers(ctx, cfg.Server.BotNames, cfg.Server.BotBalanceCC); err != nil {
		log.Fatal().Err(err).Msg("ensure bot users failed")
	}

	events, err := eventbus.Open(cfg.Server.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("event bus connect failed")
	}
	defer events.Close()

	coord := coordinator.New(st, opponent.New(), events, coordinatorOptions(cfg.Server))
	if err := coord.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("coordinator start failed")
	}
	defer coord.Close()

	r := httptransport.NewRouter(st, cfg.Server, coord, ws.NewServer(coord))
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Server.StoreDriver).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown_requested")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
}

func openStore(ctx context.Context, cfg config.ServerConfig) (arenaStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func coordinatorOptions(cfg config.ServerConfig) coordinator.Options {
	t := cfg.Timings()
	return coordinator.Options{
		BotFallback:       t.BotFallback,
		BotStartDelay:     t.BotStartDelay,
		BotMoveDelay:      t.BotMoveDelay,
		BotDifficulty:     cfg.BotDifficulty,
		AutoStartRetries:  t.AutoStartRetries,
		AutoStartBackoff:  t.AutoStartBackoff,
		AutoPlayAfter:     t.AutoPlayAfter,
		AutoPlayThrottle:  t.AutoPlayThrottle,
		AutoPlaySweep:     t.AutoPlaySweep,
		GameExpiry:        t.GameExpiry,
		AckRetry:          t.AckRetry,
		AckMaxRetries:     t.AckMaxRetries,
		PresenceTTL:       t.PresenceTTL,
		PresenceInGameTTL: t.PresenceInGameTTL,
		PresenceSweep:     t.PresenceSweep,
		Grace:             t.Grace,
		GraceInGame:       t.GraceInGame,
		ReconnectDedup:    t.ReconnectDedup,
	}
}
