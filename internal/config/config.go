package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken       string  `envconfig:"BOT_TOKEN" required:"true"`
	DBPath         string  `envconfig:"DB_PATH" default:"./data/discipline.db"`
	Timezone       string  `envconfig:"TIMEZONE" default:"Europe/Moscow"`
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr       string  `envconfig:"HTTP_ADDR" default:":8080"` // healthz
	AdminIDs       []int64 `envconfig:"ADMIN_IDS"`                 // comma separated chat ids
	TrialDays      int     `envconfig:"TRIAL_DAYS" default:"5"`
	SendRatePerSec float64 `envconfig:"SEND_RATE_PER_SEC" default:"25"`
	RedisURL       string  `envconfig:"REDIS_URL"` // empty keeps wizard sessions in memory
}

// Load reads an optional .env file and then environment variables into Config.
// Variables already set in the environment win over .env values.
func Load() (Config, error) {
	return load(".env")
}

func load(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	tz, err := domain.ValidateTZ(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Timezone = tz
	return cfg, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
