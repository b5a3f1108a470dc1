package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Media backends accepted by MEDIA_BACKEND.
const (
	MediaBackendStorage    = "storage"
	MediaBackendCloudinary = "cloudinary"
)

type Config struct {
	Port         string
	Env          string
	LogLevel     string
	LogFormat    string
	MetricsPort  string
	PublicAppURL string
	CORSOrigins  []string

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseStorageBucket   string

	PostgresUrl   string
	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Session SessionConfig
	Media   MediaConfig

	RateLimitRPS   float64
	RateLimitBurst int

	StoryCleanupInterval  time.Duration
	NotificationRetention time.Duration
}

type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
}

type MediaConfig struct {
	Backend             string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		MetricsPort:  getEnv("METRICS_PORT", "9090"),
		PublicAppURL: getEnv("PUBLIC_APP_URL", ""),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "")),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),

		PostgresUrl:   getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "linkup"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", ""),
			CookieName: getEnv("SESSION_COOKIE_NAME", "session"),
			TTL:        getEnvDuration("SESSION_TTL", 5*24*time.Hour),
		},
		Media: MediaConfig{
			Backend:             getEnv("MEDIA_BACKEND", MediaBackendStorage),
			CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		StoryCleanupInterval:  getEnvDuration("STORY_CLEANUP_INTERVAL", 15*time.Minute),
		NotificationRetention: getEnvDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
	}
}

// IsProduction reports whether the service runs with production settings
// (secure cookies, JSON logs).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Missing returns the required settings that are absent. A non-empty result
// means the backend is not configured and must not serve API traffic.
func (c *Config) Missing() []string {
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"FIREBASE_CREDENTIALS_PATH", c.FirebaseCredentialsPath},
		{"POSTGRES_CONN_STR", c.PostgresUrl},
		{"MONGO_URI", c.MongoURI},
		{"SESSION_SECRET", c.Session.Secret},
		{"PUBLIC_APP_URL", c.PublicAppURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}

	switch c.Media.Backend {
	case MediaBackendStorage:
		if c.FirebaseStorageBucket == "" {
			missing = append(missing, "FIREBASE_STORAGE_BUCKET")
		}
	case MediaBackendCloudinary:
		if c.Media.CloudinaryCloudName == "" {
			missing = append(missing, "CLOUDINARY_CLOUD_NAME")
		}
		if c.Media.CloudinaryAPIKey == "" {
			missing = append(missing, "CLOUDINARY_API_KEY")
		}
		if c.Media.CloudinaryAPISecret == "" {
			missing = append(missing, "CLOUDINARY_API_SECRET")
		}
	}
	return missing
}

// Validate checks that configured values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be > 0")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	if c.StoryCleanupInterval <= 0 {
		return fmt.Errorf("STORY_CLEANUP_INTERVAL must be > 0")
	}
	if c.NotificationRetention <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must be > 0")
	}
	switch c.Media.Backend {
	case MediaBackendStorage, MediaBackendCloudinary:
	default:
		return fmt.Errorf("MEDIA_BACKEND must be %q or %q, got %q", MediaBackendStorage, MediaBackendCloudinary, c.Media.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
