package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BackendMode selects between the live database and the in-memory demo data
type BackendMode string

const (
	BackendLive BackendMode = "live"
	BackendDemo BackendMode = "demo"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr    string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	Mode           BackendMode
	DatabaseDriver string
	DatabaseDSN    string
	DemoDataFile   string

	RedisURL   string
	SessionTTL time.Duration

	MaxNameMatches  int
	AutoLookupDelay time.Duration
	LookupRateLimit int

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
	UploadDir       string
	PublicBaseURL   string

	GalleryFile string

	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	NotificationEmails  []string
	NotifyWebhookURL    string
	NotifyWebhookSecret string

	WhatsAppEnabled     bool
	WhatsAppDataDir     string
	WhatsAppCountryCode string
	HostPhones          []string
}

// LoadConfig loads configuration from environment variables or defaults. A
// .env file in the working directory is read first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins: getList("CORS_ORIGINS", "*"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),

		Mode:           BackendMode(strings.ToLower(getEnv("BACKEND_MODE", string(BackendDemo)))),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseDSN:    getEnv("DATABASE_DSN", "file:data/wedding.db?_foreign_keys=on"),
		DemoDataFile:   getEnv("DEMO_DATA_FILE", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		S3Bucket:        getEnv("S3_BUCKET", "wedding-photos"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		UploadDir:       getEnv("UPLOAD_DIR", "data/uploads"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		GalleryFile: getEnv("GALLERY_FILE", ""),

		SMTPHost:            getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		NotificationEmails:  getList("NOTIFICATION_EMAILS", ""),
		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),

		WhatsAppDataDir:     getEnv("WHATSAPP_DATA_DIR", "data"),
		WhatsAppCountryCode: getEnv("WHATSAPP_COUNTRY_CODE", ""),
		HostPhones:          getList("HOST_PHONES", ""),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AutoLookupDelay, err = getDuration("AUTO_LOOKUP_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MaxNameMatches, err = getInt("MAX_NAME_MATCHES", 10); err != nil {
		return nil, err
	}
	if cfg.LookupRateLimit, err = getInt("LOOKUP_RATE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 465); err != nil {
		return nil, err
	}
	if cfg.WhatsAppEnabled, err = getBool("WHATSAPP_ENABLED", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option combinations
func (c *Config) Validate() error {
	switch c.Mode {
	case BackendLive, BackendDemo:
	default:
		return fmt.Errorf("BACKEND_MODE must be %q or %q, got %q", BackendLive, BackendDemo, c.Mode)
	}
	if c.MaxNameMatches < 1 {
		return fmt.Errorf("MAX_NAME_MATCHES must be at least 1")
	}
	if c.WhatsAppEnabled && len(c.HostPhones) == 0 {
		return fmt.Errorf("WHATSAPP_ENABLED requires HOST_PHONES")
	}
	if c.NotifyWebhookURL != "" && c.NotifyWebhookSecret == "" {
		return fmt.Errorf("NOTIFY_WEBHOOK_URL requires NOTIFY_WEBHOOK_SECRET")
	}
	return nil
}

// UseS3 reports whether uploads go to an S3 bucket rather than UploadDir
func (c *Config) UseS3() bool {
	return c.Mode == BackendLive && c.S3Bucket != "" && (c.S3Endpoint != "" || c.S3AccessKey != "")
}

// SMTPEnabled reports whether notification email can be sent
func (c *Config) SMTPEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != "" && len(c.NotificationEmails) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
