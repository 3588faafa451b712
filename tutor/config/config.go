package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

type Config struct {
	Port string

	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string
	JWTSecret  string

	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string
	GoogleAPIKey    string
	GoogleModel     string

	DefaultProvider    string
	DefaultTemperature float64
	DefaultMaxTokens   int
	HistoryTurns       int

	MinSafetyScore     float64
	SafetyMaxLength    int
	SafetyStrictIssues bool
	SafetyRulesFile    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigin     string

	LogDir    string
	LogStdout bool

	// malformed holds one error per env value that failed to parse.
	malformed []error
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	env := &envReader{}
	cfg := Config{
		Port: getEnv("PORT", "8000"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "tutor"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		JWTSecret:  getEnv("JWT_SECRET", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20240620"),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		GoogleModel:     getEnv("GOOGLE_MODEL", "gemini-1.5-flash"),

		DefaultProvider:    strings.ToLower(getEnv("DEFAULT_PROVIDER", ProviderOpenAI)),
		DefaultTemperature: env.floatValue("DEFAULT_TEMPERATURE", 0.7),
		DefaultMaxTokens:   env.intValue("DEFAULT_MAX_TOKENS", 1000),
		HistoryTurns:       env.intValue("HISTORY_TURNS", 10),

		MinSafetyScore:     env.floatValue("MIN_SAFETY_SCORE", 0.7),
		SafetyMaxLength:    env.intValue("SAFETY_MAX_LENGTH", 2000),
		SafetyStrictIssues: env.boolValue("SAFETY_STRICT_ISSUES", true),
		SafetyRulesFile:    getEnv("SAFETY_RULES_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       env.intValue("REDIS_DB", 0),
		CacheTTL:      env.durationValue("CACHE_TTL", 5*time.Minute),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "tutor-transcripts"),
		MinIOUseSSL:    env.boolValue("MINIO_USE_SSL", false),

		RateLimitRPS:   env.floatValue("RATE_LIMIT_RPS", 2),
		RateLimitBurst: env.intValue("RATE_LIMIT_BURST", 10),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),

		LogDir:    getEnv("LOG_DIR", "./logs"),
		LogStdout: env.boolValue("LOG_STDOUT", false),
	}
	cfg.malformed = env.errs
	return cfg
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if len(c.malformed) > 0 {
		return errors.Join(c.malformed...)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.DefaultProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
	default:
		return fmt.Errorf("unsupported DEFAULT_PROVIDER %q", c.DefaultProvider)
	}
	if c.MinSafetyScore < 0 || c.MinSafetyScore > 1 {
		return fmt.Errorf("MIN_SAFETY_SCORE must be within [0,1], got %v", c.MinSafetyScore)
	}
	if c.SafetyMaxLength <= 0 {
		return fmt.Errorf("SAFETY_MAX_LENGTH must be positive, got %d", c.SafetyMaxLength)
	}
	if c.DefaultMaxTokens <= 0 {
		return fmt.Errorf("DEFAULT_MAX_TOKENS must be positive, got %d", c.DefaultMaxTokens)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}

// DSN builds the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.DBName
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

// envReader parses typed settings, keeping the default and recording an
// error for every value that does not parse.
type envReader struct {
	errs []error
}

func (r *envReader) parse(key string, parse func(string) error) {
	value := getEnv(key, "")
	if value == "" {
		return
	}
	if err := parse(value); err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
	}
}

func (r *envReader) intValue(key string, fallback int) int {
	v := fallback
	r.parse(key, func(s string) error {
		n, err := strconv.Atoi(s)
		if err == nil {
			v = n
		}
		return err
	})
	return v
}

func (r *envReader) floatValue(key string, fallback float64) float64 {
	v := fallback
	r.parse(key, func(s string) error {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			v = f
		}
		return err
	})
	return v
}

func (r *envReader) boolValue(key string, fallback bool) bool {
	v := fallback
	r.parse(key, func(s string) error {
		b, err := strconv.ParseBool(s)
		if err == nil {
			v = b
		}
		return err
	})
	return v
}

func (r *envReader) durationValue(key string, fallback time.Duration) time.Duration {
	v := fallback
	r.parse(key, func(s string) error {
		d, err := time.ParseDuration(s)
		if err == nil {
			v = d
		}
		return err
	})
	return v
}
