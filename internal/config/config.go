package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	// Empty DatabaseURL selects the in-memory store with seeded demo data.
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret         string `env:"JWT_SECRET,required"`
	SessionTTLMinutes int    `env:"SESSION_TTL_MINUTES" envDefault:"30"`
	PinMaxAttempts    int    `env:"PIN_MAX_ATTEMPTS" envDefault:"3"`

	OllamaURL         string `env:"OLLAMA_API_URL" envDefault:"http://localhost:11434"`
	OllamaModel       string `env:"OLLAMA_MODEL" envDefault:"gemma2:2b"`
	LLMTimeoutS       int    `env:"LLM_TIMEOUT_S" envDefault:"30"`
	ToolTimeoutS      int    `env:"TOOL_TIMEOUT_S" envDefault:"10"`
	MaxToolIterations int    `env:"MAX_TOOL_ITERATIONS" envDefault:"6"`

	DailyWithdrawalLimit string `env:"DAILY_WITHDRAWAL_LIMIT" envDefault:"500.00"`
	DailyDepositLimit    string `env:"DAILY_DEPOSIT_LIMIT" envDefault:"10000.00"`
	DailyTransferLimit   string `env:"DAILY_TRANSFER_LIMIT" envDefault:"5000.00"`

	FastCashAmount string `env:"FAST_CASH_AMOUNT" envDefault:"100.00"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutS) * time.Second
}

func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutS) * time.Second
}
