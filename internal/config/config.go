package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string `validate:"required"`
	AppEnv  string `validate:"required,oneof=development production"`
	Port    string `validate:"required,numeric"`

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string `validate:"required,oneof=sqlite pgx"`
	DBConnection string `validate:"required"`

	// Shared folder served to clients and the staging area for chunked uploads
	SharedFolder        string        `validate:"required"`
	UploadStagingPath   string        `validate:"required"`
	UploadMaxChunkBytes int64         `validate:"gt=0"`
	UploadMaxChunks     int           `validate:"gt=0"`
	UploadStagingTTL    time.Duration `validate:"gt=0"`

	// Groups every new top-level file is associated with when its folder has none
	DefaultGroups []string `validate:"dive,required"`

	// Initial administrator, created on first start only
	AdminUsername string `validate:"required"`
	AdminPassword string

	// Security
	JWTSecret          string        `validate:"required,min=16"`
	JWTExpiry          time.Duration `validate:"gt=0"`
	OTPExpiry          time.Duration `validate:"gt=0"`
	OTPMaxAttempts     int           `validate:"gt=0"`
	LoginAttemptWindow time.Duration `validate:"gt=0"`
	RateLimitAuth      float64       `validate:"gt=0"`
	RateLimitBurst     int           `validate:"gt=0"`
	CookieSecure       bool
	TrustProxy         bool // honour X-Forwarded-For / X-Real-IP

	// HTTP server
	HTTPReadTimeout  time.Duration `validate:"gt=0"`
	HTTPWriteTimeout time.Duration `validate:"gte=0"`

	// Email
	EmailFrom    string `validate:"omitempty,email"`
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string

	// Replica (optional, S3-compatible: MinIO, AWS S3, Cloudflare R2, etc.)
	S3Region    string `validate:"required_with=S3Bucket"`
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string `validate:"omitempty,url"`
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Sharebox"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/sharebox.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"),

		// Files
		SharedFolder:        envRequired("SHARED_FOLDER"),
		UploadStagingPath:   envString("UPLOAD_STAGING_PATH", "./data/uploads"),
		UploadMaxChunkBytes: envInt64("UPLOAD_MAX_CHUNK_BYTES", 10<<20), // 10MB
		UploadMaxChunks:     envInt("UPLOAD_MAX_CHUNKS", 10000),
		UploadStagingTTL:    envDuration("UPLOAD_STAGING_TTL", 24*time.Hour),
		DefaultGroups:       envList("DEFAULT_GROUPS", []string{"Administrators", "Users", "Guests"}),

		// Bootstrap
		AdminUsername: envString("ADMIN_USERNAME", "admin"),
		AdminPassword: envString("ADMIN_PASSWORD", ""),

		// Security
		JWTSecret:          envRequired("JWT_SECRET"),
		JWTExpiry:          envDuration("JWT_EXPIRY", 1*time.Hour), // fallback when a user has no session timeout
		OTPExpiry:          envDuration("OTP_EXPIRY", 60*time.Second),
		OTPMaxAttempts:     envInt("OTP_MAX_ATTEMPTS", 3),
		LoginAttemptWindow: envDuration("LOGIN_ATTEMPT_WINDOW", 1*time.Hour),
		RateLimitAuth:      envFloat("RATE_LIMIT_AUTH", 0.2), // requests per second per IP
		RateLimitBurst:     envInt("RATE_LIMIT_BURST", 5),
		CookieSecure:       envBool("COOKIE_SECURE", envString("APP_ENV", "development") == "production"),
		TrustProxy:         envBool("TRUST_PROXY", false),

		// HTTP server (write timeout 0 keeps long downloads alive)
		HTTPReadTimeout:  envDuration("HTTP_READ_TIMEOUT", 60*time.Second),
		HTTPWriteTimeout: envDuration("HTTP_WRITE_TIMEOUT", 0),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Replica
		S3Region:    envString("S3_REGION", ""),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	err = Validate(cfg)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	return cfg
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList reads a comma separated list, dropping empty items.
func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) ReplicaEnabled() bool {
	return c.S3Bucket != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		Port:    c.Port,

		DBDriver: c.DBDriver,

		UploadMaxChunkBytes: c.UploadMaxChunkBytes,
		UploadMaxChunks:     c.UploadMaxChunks,
		DefaultGroups:       c.DefaultGroups,

		OTPExpiry: c.OTPExpiry,

		EmailFrom: c.EmailFrom,

		S3Bucket:   c.S3Bucket,
		S3Endpoint: c.S3Endpoint,
	}
}
