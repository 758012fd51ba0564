package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration, loaded from the environment.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"CODEDECK_DB_PATH" envDefault:"./data/codedeck.db"`

	// Media session token issuance. Optional: without a key pair the
	// get-token endpoint reports a configuration error instead of failing
	// the whole server.
	LiveKitAPIKey    string        `env:"LIVEKIT_API_KEY"`
	LiveKitAPISecret string        `env:"LIVEKIT_API_SECRET"`
	LiveKitWSURL     string        `env:"LIVEKIT_WS_URL"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"6h"`

	// External code-compiler API
	CompilerAPIURL  string `env:"COMPILER_API_URL" envDefault:"https://code-compiler.p.rapidapi.com/v2"`
	CompilerAPIKey  string `env:"COMPILER_API_KEY"`
	CompilerAPIHost string `env:"COMPILER_API_HOST" envDefault:"code-compiler.p.rapidapi.com"`

	// Per-caller rate limit on the execute endpoint
	ExecRatePerMinute float64 `env:"EXEC_RATE_PER_MINUTE" envDefault:"10"`
	ExecBurst         int     `env:"EXEC_BURST" envDefault:"3"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
