package main

import (
	"log/slog"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config defines the client environment variables. Flags override them.
type Config struct {
	ServerURL   string `env:"ROOMCHAT_SERVER_URL,default=ws://localhost:8080"`
	Name        string `env:"ROOMCHAT_NAME"`
	Room        string `env:"ROOMCHAT_ROOM"`
	CensorWords string `env:"ROOMCHAT_CENSOR_WORDS"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// loadConfig reads an optional .env file and the process environment.
func loadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// censorList splits the comma-separated censor word configuration.
func (c Config) censorList() []string {
	if strings.TrimSpace(c.CensorWords) == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Split(c.CensorWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func (c Config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
