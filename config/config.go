package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	BindAddress string     `env:"BIND_ADDRESS" envDefault:"localhost"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat   string     `env:"LOG_FORMAT" envDefault:"text"`

	// DatabaseURL wins over the discrete DB_* settings when set.
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"quizchat"`
	DBPassword  string `env:"DB_PASSWORD" envDefault:"quizchat123"`
	DBName      string `env:"DB_NAME" envDefault:"quizchat"`

	RedisURL   string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	ChannelTTL time.Duration `env:"CHANNEL_TTL" envDefault:"0s"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`

	GameRooms      []string      `env:"GAME_ROOMS" envSeparator:"," envDefault:"Game"`
	StartupDelay   time.Duration `env:"STARTUP_DELAY" envDefault:"500ms"`
	RoundDuration  time.Duration `env:"ROUND_DURATION" envDefault:"15s"`
	GracePeriod    time.Duration `env:"GRACE_PERIOD" envDefault:"5s"`
	RevealPause    time.Duration `env:"REVEAL_PAUSE" envDefault:"8s"`
	WinnerPoints   int           `env:"WINNER_POINTS" envDefault:"10"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"3s"`

	MaxNameLength    int `env:"MAX_NAME_LENGTH" envDefault:"32"`
	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" envDefault:"1000"`
	HistoryLimit     int `env:"HISTORY_LIMIT" envDefault:"50"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.WinnerPoints <= 0 {
		return nil, fmt.Errorf("WINNER_POINTS must be positive, got %d", cfg.WinnerPoints)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return c.BindAddress + ":" + c.Port
}

func (c *Config) dsn() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}
