package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/planthub/authapi/internal/auth"
)

// DefaultServerPort is used when neither SERVER_PORT nor PORT is set.
const DefaultServerPort = 4000

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Config struct {
	ServerPort   int
	Environment  string
	CookieDomain string
	CORSOrigin   string
	Database     DatabaseConfig
	JWT          JWTConfig
	Seed         SeedConfig
	Events       EventsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type JWTConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

// TokenConfig maps the JWT settings onto the token service configuration.
func (j JWTConfig) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  j.AccessTokenSecret,
		RefreshSecret: j.RefreshTokenSecret,
		AccessTTL:     j.AccessTokenTTL,
		RefreshTTL:    j.RefreshTokenTTL,
	}
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

type EventsConfig struct {
	// Backend is one of "none", "memory", "rabbitmq" or "pubsub".
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// Production reports whether production cookie attributes apply.
func (c Config) Production() bool {
	return c.Environment == "production"
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "planthub"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "planthub_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	jwtConfig := JWTConfig{
		AccessTokenSecret:  os.Getenv("JWT_ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("JWT_REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     getEnvDuration("JWT_ACCESS_TOKEN_EXPIRATION", defaultAccessTokenTTL),
		RefreshTokenTTL:    getEnvDuration("JWT_REFRESH_TOKEN_EXPIRATION", defaultRefreshTokenTTL),
	}

	eventsConfig := EventsConfig{
		Backend: strings.ToLower(getEnv("EVENTS_BACKEND", "none")),
		Channel: getEnv("EVENTS_CHANNEL", "auth-events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort:   getEnvInt("SERVER_PORT", getEnvInt("PORT", DefaultServerPort)),
		Environment:  getEnv("NODE_ENV", getEnv("ENV", "development")),
		CookieDomain: getEnv("COOKIE_DOMAIN", ".schwager.fr"),
		CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:3000"),
		Database:     dbConfig,
		JWT:          jwtConfig,
		Seed: SeedConfig{
			AdminEmail:    getEnv("ADMIN_DEFAULT_EMAIL", "admin@example.com"),
			AdminPassword: getEnv("ADMIN_DEFAULT_PASSWORD", "ChangeMe123!"),
		},
		Events: eventsConfig,
	}
}

// Validate checks the invariants the server refuses to start without.
func (c Config) Validate() error {
	var errs []error
	if err := c.JWT.TokenConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TOKEN_SECRET, JWT_REFRESH_TOKEN_SECRET and token lifetimes: %w", err))
	}
	switch c.Events.Backend {
	case "", "none", "memory", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvDuration returns zero for unparsable values so Validate rejects them.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := ParseDuration(valueStr)
		if err != nil {
			return 0
		}
		return value
	}
	return defaultValue
}

// ParseDuration accepts Go duration strings plus a whole-day form such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
