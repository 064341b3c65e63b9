package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL    string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	Token    string `env:"BOT_TOKEN" envDefault:""`
	BetCC    int64  `env:"BOT_BET_CC" envDefault:"5000"`
	Requeue  bool   `env:"BOT_REQUEUE" envDefault:"true"`
	MaxGames int    `env:"BOT_MAX_GAMES" envDefault:"0"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
