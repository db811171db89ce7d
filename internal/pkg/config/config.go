package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	appenv "github.com/ManuelReschke/CourseSeat/internal/pkg/env"
)

type Config struct {
	App      App
	DB       Database `envPrefix:"DB_"`
	Cache    Cache    `envPrefix:"CACHE_"`
	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
	Mail     Mail     `envPrefix:"SMTP_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	Jobs     Jobs     `envPrefix:"JOBS_"`
}

type App struct {
	Env             string        `env:"APP_ENV" envDefault:"prod"`
	Host            string        `env:"APP_HOST" envDefault:"localhost"`
	Port            string        `env:"APP_PORT" envDefault:"4000"`
	PublicURL       string        `env:"APP_PUBLIC_URL" envDefault:"http://localhost:4000"`
	MetricsUser     string        `env:"METRICS_USER" envDefault:"metrics"`
	MetricsPassword string        `env:"METRICS_PASSWORD"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	APIRateLimit    int           `env:"API_RATE_LIMIT" envDefault:"60"`
}

type Database struct {
	User        string `env:"USER"`
	Password    string `env:"PASSWORD"`
	Host        string `env:"HOST" envDefault:"127.0.0.1"`
	Port        string `env:"PORT" envDefault:"3306"`
	Name        string `env:"NAME"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type Cache struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Razorpay struct {
	KeyID         string        `env:"KEY_ID"`
	KeySecret     string        `env:"KEY_SECRET"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	BaseURL       string        `env:"BASE_URL" envDefault:"https://api.razorpay.com"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

type Mail struct {
	Host     string        `env:"HOST"`
	Port     string        `env:"PORT" envDefault:"587"`
	Username string        `env:"USERNAME"`
	Password string        `env:"PASSWORD"`
	Sender   string        `env:"SENDER"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Auth struct {
	TokenSecret      string        `env:"TOKEN_SECRET"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	AttemptWindow    time.Duration `env:"ATTEMPT_WINDOW" envDefault:"15m"`
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"10"`
	LockoutWindow    time.Duration `env:"LOCKOUT_WINDOW" envDefault:"1h"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`
}

type Jobs struct {
	PendingTTL           time.Duration `env:"PENDING_TTL" envDefault:"30m"`
	PendingSweepInterval time.Duration `env:"PENDING_SWEEP_INTERVAL" envDefault:"5m"`
	LimiterSweepInterval time.Duration `env:"LIMITER_SWEEP_INTERVAL" envDefault:"1m"`
}

// Load reads the .env file and parses the process environment.
func Load() (*Config, error) {
	appenv.SetupEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

// ListenAddr returns the host:port the HTTP server binds to.
func (a App) ListenAddr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// DSN builds the MySQL data source name. clientFoundRows makes conditional
// updates report matched rows, which the compare-and-set logic relies on.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Addr returns the Redis address.
func (c Cache) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
