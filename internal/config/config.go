package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	App            App
	AWS            AWS
	DynamoTables   DynamoTables
	JWT            JWT
	SMTP           SMTP
	Google         Google
	Confirmation   Confirmation
	Redis          Redis
	Telegram       Telegram
	Limiter        Limiter
	Cookie         Cookie
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	BcryptCost     int      `env:"BCRYPT_COST" env-default:"10"`
}

type App struct {
	Port string `env:"APP_PORT" env-default:"3000"`
	Env  string `env:"APP_ENV" env-default:"development"`
}

type AWS struct {
	Region      string `env:"AWS_REGION" env-default:"us-east-1"`
	EndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, LocalStack URL in dev
	AccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string `env:"DYNAMO_TABLE_USERS" env-default:"users"`
	Uniques  string `env:"DYNAMO_TABLE_USER_UNIQUES" env-default:"user_uniques"`
	Sessions string `env:"DYNAMO_TABLE_SESSIONS" env-default:"sessions"`
	Boards   string `env:"DYNAMO_TABLE_BOARDS" env-default:"boards"`
	Tasks    string `env:"DYNAMO_TABLE_TASKS" env-default:"tasks"`
}

type JWT struct {
	PrivateKeyPath  string        `env:"JWT_PRIVATE_KEY_PATH" env-default:"./private_key.pem"`
	PublicKeyPath   string        `env:"JWT_PUBLIC_KEY_PATH" env-default:"./public_key.pem"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"168h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"720h"`
}

type SMTP struct {
	Host     string `env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `env:"SMTP_PORT" env-default:"1025"`
	From     string `env:"SMTP_FROM" env-default:"noreply@example.com"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

type Google struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" env-default:"postmessage"`
}

// Confirmation tunes the one-time code workflow.
type Confirmation struct {
	CodeLength      int           `env:"CONFIRMATION_CODE_LENGTH" env-default:"6"`
	CodeTTL         time.Duration `env:"CONFIRMATION_CODE_TTL" env-default:"10m"`
	PendingTTL      time.Duration `env:"CONFIRMATION_PENDING_TTL" env-default:"15m"`
	DeliveryTimeout time.Duration `env:"CONFIRMATION_DELIVERY_TIMEOUT" env-default:"10s"`
	SweepInterval   time.Duration `env:"CONFIRMATION_SWEEP_INTERVAL" env-default:"1m"`
	Backend         string        `env:"CONFIRMATION_BACKEND" env-default:"memory" env-description:"memory or redis"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" env-default:"20"`
}

type Telegram struct {
	BotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	WebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
	APIBaseURL    string `env:"TELEGRAM_API_BASE_URL" env-default:"https://api.telegram.org"`
}

// Limiter is the per-IP token bucket applied to code-issuing and login endpoints.
type Limiter struct {
	RPS   float64       `env:"LIMITER_RPS" env-default:"1"`
	Burst int           `env:"LIMITER_BURST" env-default:"5"`
	TTL   time.Duration `env:"LIMITER_TTL" env-default:"10m"`
}

type Cookie struct {
	Secure           bool          `env:"COOKIE_SECURE" env-default:"false"`
	RegistrationName string        `env:"COOKIE_REGISTRATION_NAME" env-default:"registration_key"`
	RegistrationTTL  time.Duration `env:"COOKIE_REGISTRATION_TTL" env-default:"15m"`
}

// Load reads all configuration from environment variables and checks it.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that exits the process on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot load config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Confirmation.CodeLength < 6 {
		return fmt.Errorf("CONFIRMATION_CODE_LENGTH must be at least 6, got %d", c.Confirmation.CodeLength)
	}
	if c.Confirmation.CodeTTL <= 0 || c.Confirmation.PendingTTL <= 0 {
		return fmt.Errorf("confirmation TTLs must be positive")
	}
	switch c.Confirmation.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CONFIRMATION_BACKEND must be memory or redis, got %q", c.Confirmation.Backend)
	}
	return nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }
