package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AppName:             "Sharebox",
		AppEnv:              "development",
		Port:                "8090",
		DBDriver:            "sqlite",
		DBConnection:        "./data/test.db",
		SharedFolder:        "/srv/share",
		UploadStagingPath:   "/srv/uploads",
		UploadMaxChunkBytes: 1 << 20,
		UploadMaxChunks:     100,
		UploadStagingTTL:    time.Hour,
		DefaultGroups:       []string{"Administrators", "Users", "Guests"},
		AdminUsername:       "admin",
		JWTSecret:           "0123456789abcdef0123",
		JWTExpiry:           time.Hour,
		OTPExpiry:           time.Minute,
		OTPMaxAttempts:      3,
		LoginAttemptWindow:  time.Hour,
		RateLimitAuth:       1,
		RateLimitBurst:      5,
		HTTPReadTimeout:     time.Minute,
		EmailFrom:           "noreply@example.com",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown env", func(c *Config) { c.AppEnv = "staging" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }},
		{"zero chunk size", func(c *Config) { c.UploadMaxChunkBytes = 0 }},
		{"missing shared folder", func(c *Config) { c.SharedFolder = "" }},
		{"bucket without region", func(c *Config) { c.S3Bucket = "replica" }},
		{"production without email key", func(c *Config) { c.AppEnv = "production" }},
		{"empty default group", func(c *Config) { c.DefaultGroups = []string{"Users", ""} }},
		{"no default groups", func(c *Config) { c.DefaultGroups = nil }},
		{"staging inside shared folder", func(c *Config) { c.UploadStagingPath = "/srv/share/uploads" }},
		{"staging is shared folder", func(c *Config) { c.UploadStagingPath = "/srv/share/" }},
		{"shared folder inside staging", func(c *Config) { c.SharedFolder = "/srv/uploads/share" }},
		{"relative staging inside relative shared", func(c *Config) {
			c.SharedFolder = "./data"
			c.UploadStagingPath = "./data/uploads"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SHAREBOX_TEST_LIST", " Editors, ,Viewers ")
	assert.Equal(t, []string{"Editors", "Viewers"}, envList("SHAREBOX_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, envList("SHAREBOX_TEST_UNSET", []string{"x"}))

	t.Setenv("SHAREBOX_TEST_INT", "nope")
	assert.Equal(t, 7, envInt("SHAREBOX_TEST_INT", 7))

	t.Setenv("SHAREBOX_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, envDuration("SHAREBOX_TEST_DURATION", time.Second))

	t.Setenv("SHAREBOX_TEST_BOOL", "true")
	assert.True(t, envBool("SHAREBOX_TEST_BOOL", false))
}

func TestSanitizedDropsSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.S3SecretKey = "secret"
	cfg.ResendAPIKey = "re_key"

	safe := cfg.Sanitized()
	assert.Empty(t, safe.JWTSecret)
	assert.Empty(t, safe.S3SecretKey)
	assert.Empty(t, safe.ResendAPIKey)
	assert.Equal(t, cfg.AppName, safe.AppName)
}
