package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`
	NATSURL     string `env:"NATS_URL"`

	BotNames      []string `env:"BOT_NAMES" envSeparator:"," envDefault:"Ada,Turing,Hopper"`
	BotDifficulty string   `env:"BOT_DIFFICULTY" envDefault:"medium"`
	BotBalanceCC  int64    `env:"BOT_BALANCE_CC" envDefault:"1000000000"`

	BotFallbackMS         int `env:"BOT_FALLBACK_MS" envDefault:"25000"`
	BotStartDelayMS       int `env:"BOT_START_DELAY_MS" envDefault:"1000"`
	BotMoveDelayMS        int `env:"BOT_MOVE_DELAY_MS" envDefault:"700"`
	AutoStartRetries      int `env:"AUTO_START_RETRIES" envDefault:"4"`
	AutoStartBackoffMS    int `env:"AUTO_START_BACKOFF_MS" envDefault:"1000"`
	AutoPlayAfterMS       int `env:"AUTO_PLAY_AFTER_MS" envDefault:"60000"`
	AutoPlayThrottleMS    int `env:"AUTO_PLAY_THROTTLE_MS" envDefault:"5000"`
	AutoPlaySweepMS       int `env:"AUTO_PLAY_SWEEP_MS" envDefault:"10000"`
	GameExpiryMS          int `env:"GAME_EXPIRY_MS" envDefault:"600000"`
	AckRetryMS            int `env:"ACK_RETRY_MS" envDefault:"2000"`
	AckMaxRetries         int `env:"ACK_MAX_RETRIES" envDefault:"3"`
	PresenceTTLMS         int `env:"PRESENCE_TTL_MS" envDefault:"90000"`
	PresenceInGameTTLMS   int `env:"PRESENCE_IN_GAME_TTL_MS" envDefault:"300000"`
	PresenceSweepMS       int `env:"PRESENCE_SWEEP_MS" envDefault:"30000"`
	DisconnectGraceMS     int `env:"DISCONNECT_GRACE_MS" envDefault:"60000"`
	DisconnectGraceGameMS int `env:"DISCONNECT_GRACE_GAME_MS" envDefault:"120000"`
	ReconnectDedupMS      int `env:"RECONNECT_DEDUP_MS" envDefault:"1000"`
}

var errMissingPostgresDSN = errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "postgres" && strings.TrimSpace(cfg.PostgresDSN) == "" {
		return cfg, errMissingPostgresDSN
	}
	return cfg, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Timings is the flat duration view of the coordinator knobs.
type Timings struct {
	BotFallback       time.Duration
	BotStartDelay     time.Duration
	BotMoveDelay      time.Duration
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
}

func (c ServerConfig) Timings() Timings {
	return Timings{
		BotFallback:       ms(c.BotFallbackMS),
		BotStartDelay:     ms(c.BotStartDelayMS),
		BotMoveDelay:      ms(c.BotMoveDelayMS),
		AutoStartRetries:  c.AutoStartRetries,
		AutoStartBackoff:  ms(c.AutoStartBackoffMS),
		AutoPlayAfter:     ms(c.AutoPlayAfterMS),
		AutoPlayThrottle:  ms(c.AutoPlayThrottleMS),
		AutoPlaySweep:     ms(c.AutoPlaySweepMS),
		GameExpiry:        ms(c.GameExpiryMS),
		AckRetry:          ms(c.AckRetryMS),
		AckMaxRetries:     c.AckMaxRetries,
		PresenceTTL:       ms(c.PresenceTTLMS),
		PresenceInGameTTL: ms(c.PresenceInGameTTLMS),
		PresenceSweep:     ms(c.PresenceSweepMS),
		Grace:             ms(c.DisconnectGraceMS),
		GraceInGame:       ms(c.DisconnectGraceGameMS),
		ReconnectDedup:    ms(c.ReconnectDedupMS),
	}
}
