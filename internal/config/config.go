package config

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type TrackSecrets struct {
	AccessSecret  []byte
	RefreshSecret []byte
}

type Config struct {
	Env         string
	ServiceName string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	DBDriver    string
	DatabaseURL string

	Customer TrackSecrets
	Admin    TrackSecrets

	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	ResetTTL    time.Duration
	TokenLeeway time.Duration

	BlacklistRetention    time.Duration
	BlacklistFailOpen     bool
	RotateRevokesPrevious bool
	PurgeInterval         time.Duration
	StoreTimeout          time.Duration
	BcryptCost            int

	CookieSecure   bool
	CookieSameSite http.SameSite
	CSRFEnabled    bool

	ResetStore    string
	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	ESAddresses  []string
	ESUser       string
	ESPassword   string
	ESAuditIndex string

	AdminBootstrapName     string
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
}

func (c Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// LogOutput is LOG_FORMAT when set, otherwise text in development and json elsewhere.
func (c Config) LogOutput() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	if c.IsDevelopment() {
		return "text"
	}
	return "json"
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Env:         EnvDefault("APP_ENV", EnvProduction),
		ServiceName: EnvDefault("SERVICE_NAME", "auth"),
		HTTPAddr:    EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),
		LogFormat:   os.Getenv("LOG_FORMAT"),

		DBDriver:    EnvDefault("DB_DRIVER", "pgx"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		Customer: TrackSecrets{
			AccessSecret:  []byte(os.Getenv("JWT_SECRET")),
			RefreshSecret: []byte(os.Getenv("REFRESH_SECRET")),
		},
		Admin: TrackSecrets{
			AccessSecret:  []byte(os.Getenv("ADMIN_JWT_SECRET")),
			RefreshSecret: []byte(os.Getenv("ADMIN_REFRESH_SECRET")),
		},

		AccessTTL:   EnvDurationDefault("ACCESS_TTL", time.Hour),
		RefreshTTL:  EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),
		ResetTTL:    EnvDurationDefault("RESET_TTL", time.Hour),
		TokenLeeway: EnvDurationDefault("TOKEN_LEEWAY", 0),

		BlacklistRetention:    EnvDurationDefault("BLACKLIST_RETENTION", 7*24*time.Hour),
		BlacklistFailOpen:     EnvBoolDefault("BLACKLIST_FAIL_OPEN", true),
		RotateRevokesPrevious: EnvBoolDefault("ROTATE_REVOKES_PREVIOUS", true),
		PurgeInterval:         EnvDurationDefault("PURGE_INTERVAL", time.Hour),
		StoreTimeout:          EnvDurationDefault("STORE_TIMEOUT", 10*time.Second),
		BcryptCost:            EnvIntDefault("BCRYPT_COST", 10),

		CookieSecure:   EnvBoolDefault("COOKIE_SECURE", true),
		CookieSameSite: ParseSameSite(EnvDefault("COOKIE_SAMESITE", "lax")),
		CSRFEnabled:    EnvBoolDefault("CSRF_ENABLED", false),

		ResetStore:    EnvDefault("RESET_STORE", "db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),

		ESAddresses:  CSV(os.Getenv("ES_ADDRESSES")),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		ESAuditIndex: EnvDefault("ES_AUDIT_INDEX", "auth-audit"),

		AdminBootstrapName:     EnvDefault("ADMIN_BOOTSTRAP_NAME", "Administrator"),
		AdminBootstrapEmail:    os.Getenv("ADMIN_BOOTSTRAP_EMAIL"),
		AdminBootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),
	}
}

// Validate reports the first setting that makes the service unable to start.
func (c Config) Validate() error {
	secrets := map[string][]byte{
		"JWT_SECRET":           c.Customer.AccessSecret,
		"REFRESH_SECRET":       c.Customer.RefreshSecret,
		"ADMIN_JWT_SECRET":     c.Admin.AccessSecret,
		"ADMIN_REFRESH_SECRET": c.Admin.RefreshSecret,
	}
	for _, name := range []string{"JWT_SECRET", "REFRESH_SECRET", "ADMIN_JWT_SECRET", "ADMIN_REFRESH_SECRET"} {
		if len(secrets[name]) == 0 {
			return fmt.Errorf("missing required env %s", name)
		}
	}
	if string(c.Customer.AccessSecret) == string(c.Admin.AccessSecret) ||
		string(c.Customer.RefreshSecret) == string(c.Admin.RefreshSecret) {
		return fmt.Errorf("admin and customer secrets must differ")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing required env DATABASE_URL")
	}
	if c.BcryptCost < 10 || c.BcryptCost > 12 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 12, got %d", c.BcryptCost)
	}
	switch c.ResetStore {
	case "db":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("RESET_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown RESET_STORE %q", c.ResetStore)
	}
	return nil
}

func MustValid(c Config) Config {
	if err := c.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
