package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MIN_SAFETY_SCORE", "")
	t.Setenv("DEFAULT_PROVIDER", "")
	t.Setenv("SAFETY_MAX_LENGTH", "")

	cfg := LoadConfig()

	assert.Equal(t, 0.7, cfg.MinSafetyScore)
	assert.Equal(t, ProviderOpenAI, cfg.DefaultProvider)
	assert.Equal(t, 2000, cfg.SafetyMaxLength)
	assert.True(t, cfg.SafetyStrictIssues)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_NAME", "/tmp/tutor.db")
	t.Setenv("DEFAULT_PROVIDER", "Anthropic")
	t.Setenv("MIN_SAFETY_SCORE", "0.5")
	t.Setenv("SAFETY_STRICT_ISSUES", "false")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/tutor.db", cfg.DSN())
	assert.Equal(t, ProviderAnthropic, cfg.DefaultProvider)
	assert.Equal(t, 0.5, cfg.MinSafetyScore)
	assert.False(t, cfg.SafetyStrictIssues)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.ErrorContains(t, cfg.Validate(), `invalid REDIS_DB "not-a-number"`)
}

func TestLoadConfig_MalformedValuesFailValidation(t *testing.T) {
	t.Setenv("MIN_SAFETY_SCORE", "0,9")
	t.Setenv("SAFETY_STRICT_ISSUES", "sometimes")
	t.Setenv("CACHE_TTL", "5")

	cfg := LoadConfig()

	assert.Equal(t, 0.7, cfg.MinSafetyScore)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid MIN_SAFETY_SCORE "0,9"`)
	assert.Contains(t, err.Error(), `invalid SAFETY_STRICT_ISSUES "sometimes"`)
	assert.Contains(t, err.Error(), `invalid CACHE_TTL "5"`)
}

func TestConfig_Validate(t *testing.T) {
	base := Config{SafetyMaxLength: 2000, DefaultMaxTokens: 1000, RateLimitRPS: 2, RateLimitBurst: 10}
	base.DBDriver = "postgres"
	base.DefaultProvider = ProviderOpenAI
	base.MinSafetyScore = 0.7

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"unknown provider", func(c *Config) { c.DefaultProvider = "mistral" }},
		{"score above one", func(c *Config) { c.MinSafetyScore = 1.5 }},
		{"negative score", func(c *Config) { c.MinSafetyScore = -0.1 }},
		{"zero max length", func(c *Config) { c.SafetyMaxLength = 0 }},
		{"zero rate", func(c *Config) { c.RateLimitRPS = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_DSNPostgres(t *testing.T) {
	cfg := Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "tutor", DBSSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tutor sslmode=disable", cfg.DSN())
}
