package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	ServiceName string
	Environment string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecret             []byte
	JWTIssuer             string
	JWTAudience           string
	EnforceIssuerAudience bool
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration

	BcryptCost  int
	HashWorkers int

	Admin AdminConfig

	KafkaBrokers []string
	KafkaTopic   string
}

// AdminConfig holds the initial administrator credentials used on first run.
type AdminConfig struct {
	Initialize bool
	Username   string
	Password   string
	Name       string
	Reset      bool
}

func (c Config) Production() bool {
	return c.Environment == EnvProduction
}

// Load reads the process environment, after merging an optional .env file.
func Load(envFile string) Config {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("Notice: %s not loaded: %v. Using system environment variables", envFile, err)
		}
	}
	return FromEnv()
}

func FromEnv() Config {
	env := strings.ToLower(EnvDefault("APP_ENV", "development"))
	prod := env == EnvProduction

	cfg := Config{
		ServiceName: EnvDefault("SERVICE_NAME", "wg-dashboard-api"),
		Environment: env,
		ServerPort:  EnvIntDefault("SERVER_PORT", 3000),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(EnvDefault("DB_DRIVER", "sqlite")),
		DatabaseURL: EnvDefault("DATABASE_URL", "file::memory:?cache=shared"),

		JWTSecret:             []byte(os.Getenv("JWT_SECRET")),
		JWTIssuer:             os.Getenv("JWT_ISSUER"),
		JWTAudience:           os.Getenv("JWT_AUDIENCE"),
		EnforceIssuerAudience: EnvBoolDefault("JWT_ENFORCE_ISSUER_AUDIENCE", prod),
		AccessTokenTTL:        EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:       EnvDurationDefault("REFRESH_TOKEN_TTL", 48*time.Hour),

		BcryptCost:  EnvIntDefault("BCRYPT_COST", 12),
		HashWorkers: EnvIntDefault("HASH_WORKERS", runtime.NumCPU()),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),
	}

	if prod {
		cfg.Admin = AdminConfig{
			Initialize: EnvBoolDefault("ADMIN_INITIALIZE", false),
			Username:   os.Getenv("ADMIN_USERNAME"),
			Password:   os.Getenv("ADMIN_PASSWORD"),
			Name:       EnvDefault("ADMIN_NAME", "Administrator"),
			Reset:      EnvBoolDefault("ADMIN_BOOTSTRAP_RESET", false),
		}
	} else {
		cfg.Admin = AdminConfig{
			Initialize: EnvBoolDefault("ADMIN_INITIALIZE", true),
			Username:   EnvDefault("ADMIN_USERNAME", "admin"),
			Password:   EnvDefault("ADMIN_PASSWORD", "admin"),
			Name:       EnvDefault("ADMIN_NAME", "Development Admin"),
			Reset:      EnvBoolDefault("ADMIN_BOOTSTRAP_RESET", false),
		}
	}

	return cfg
}

// Validate aborts the process on settings the server cannot start without.
func (c Config) Validate() {
	if err := c.Check(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
}

// Check reports every setting the server cannot start without.
func (c Config) Check() error {
	errs := []error{requireNonEmptyBytes(c.JWTSecret, "JWT_SECRET")}
	if c.Production() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.EnforceIssuerAudience {
		errs = append(errs,
			requireNonEmpty(c.JWTIssuer, "JWT_ISSUER"),
			requireNonEmpty(c.JWTAudience, "JWT_AUDIENCE"),
		)
	}
	if c.Admin.Initialize {
		errs = append(errs,
			requireNonEmpty(c.Admin.Username, "ADMIN_USERNAME"),
			requireNonEmpty(c.Admin.Password, "ADMIN_PASSWORD"),
		)
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	return errors.Join(errs...)
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
