package config

import (
	"errors"
	"fmt"
	"log"

	"contactsync/internal/utils/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = logger.EnvLocal
	EnvDev   = logger.EnvDev
	EnvProd  = logger.EnvProd
)

type Config struct {
	Env    string
	DB     db
	Server server
	Sync   syncConfig
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

type syncConfig struct {
	MaxPageSize  int `env:"MAX_PAGE_SIZE"`
	MaxBatchSize int `env:"MAX_BATCH_SIZE"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Load читает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("max_page_size", 500)
	v.SetDefault("max_batch_size", 1000)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB: db{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: server{RunAddress: v.GetString("run_address")},
		Sync: syncConfig{
			MaxPageSize:  v.GetInt("max_page_size"),
			MaxBatchSize: v.GetInt("max_batch_size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}
	if c.DB.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}
	if c.Sync.MaxPageSize <= 0 || c.Sync.MaxBatchSize <= 0 {
		return errors.New("MAX_PAGE_SIZE and MAX_BATCH_SIZE must be positive")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal
}
