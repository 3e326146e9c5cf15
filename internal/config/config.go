package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the services need. It is built once in main
// and handed to constructors; packages never read the environment directly.
type Config struct {
	RESTPort    string
	WSPort      string
	LogLevel    string
	DatabaseURL string
	RedisURL    string

	GeminiAPIKey string
	GeminiModel  string

	PlacesAPIKey string
	RenderJS     bool
	HTTPTimeout  time.Duration

	Email EmailConfig
	SMS   SMSConfig
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider       string // "sendgrid" or "smtp"
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	FromEmail      string
	FromName       string
	UnsubscribeURL string
	CompanyAddress string
	RateLimit      time.Duration
}

// SMSConfig holds Twilio credentials.
type SMSConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	RateLimit   time.Duration
}

// Load reads configuration from the environment, loading .env first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		RESTPort:     getEnv("REST_PORT", "8080"),
		WSPort:       getEnv("WS_PORT", "8081"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabaseURL:  getEnv("DATABASE_URL", "sqlite://data/kitscout.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		PlacesAPIKey: getEnv("GOOGLE_PLACES_API_KEY", ""),
		RenderJS:     getBoolEnv("SCRAPE_RENDER_JS", false),
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 15*time.Second),
		Email: EmailConfig{
			Provider:       getEnv("EMAIL_PROVIDER", "sendgrid"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getIntEnv("SMTP_PORT", 587),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
			FromEmail:      getEnv("FROM_EMAIL", "hello@kitscout.io"),
			FromName:       getEnv("FROM_NAME", "Kitscout Team"),
			UnsubscribeURL: getEnv("UNSUBSCRIBE_URL", ""),
			CompanyAddress: getEnv("COMPANY_ADDRESS", "Kitscout | [Physical Address]"),
			RateLimit:      getRateEnv("EMAIL_RATE_LIMIT", 2*time.Second),
		},
		SMS: SMSConfig{
			AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			PhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
			RateLimit:   getRateEnv("SMS_RATE_LIMIT", time.Second),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getRateEnv accepts either a duration ("1.5s") or plain seconds ("2").
func getRateEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
