package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	qbSandboxAPIBase    = "https://sandbox-quickbooks.api.intuit.com"
	qbProductionAPIBase = "https://quickbooks.api.intuit.com"
)

type Config struct {
	Port string
	Env  string

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret          string
	JWTAccessExpiry    time.Duration
	RefreshTokenExpiry time.Duration
	RefreshCookieName  string
	CookieSecure       bool
	CookieSameSite     string
	FrontendURL        string

	QBClientID     string
	QBClientSecret string
	QBRedirectURI  string
	QBEnvironment  string
	QBAuthURL      string
	QBTokenURL     string
	QBAPIBaseURL   string
	QBRateLimitRPS float64

	AIProvider    string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	OllamaBaseURL string
	OllamaModel   string
	AITimeout     time.Duration
	AIMaxRetries  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	GmailSender       string

	FirebaseCredentials string
	GoogleProjectID     string
	PubSubTopic         string

	OtelEnabled     bool
	OtelEndpoint    string
	OtelInsecure    bool
	OtelServiceName string

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present), then the optional CONFIG_FILE, then the
// environment. Environment variables win over file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:               v.GetString("PORT"),
		Env:                v.GetString("ENV"),
		DatabaseDriver:     strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTAccessExpiry:    v.GetDuration("JWT_ACCESS_EXPIRY"),
		RefreshTokenExpiry: v.GetDuration("REFRESH_TOKEN_EXPIRY"),
		RefreshCookieName:  v.GetString("REFRESH_COOKIE_NAME"),
		CookieSecure:       v.GetBool("COOKIE_SECURE"),
		CookieSameSite:     strings.ToLower(v.GetString("COOKIE_SAME_SITE")),
		FrontendURL:        strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),

		QBClientID:     v.GetString("QB_CLIENT_ID"),
		QBClientSecret: v.GetString("QB_CLIENT_SECRET"),
		QBRedirectURI:  v.GetString("QB_REDIRECT_URI"),
		QBEnvironment:  strings.ToLower(v.GetString("QB_ENVIRONMENT")),
		QBAuthURL:      v.GetString("QB_AUTH_URL"),
		QBTokenURL:     v.GetString("QB_TOKEN_URL"),
		QBAPIBaseURL:   v.GetString("QB_API_BASE_URL"),
		QBRateLimitRPS: v.GetFloat64("QB_RATE_LIMIT_RPS"),

		AIProvider:    strings.ToLower(v.GetString("AI_PROVIDER")),
		OpenAIAPIKey:  v.GetString("OPENAI_API_KEY"),
		OpenAIModel:   v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
		GeminiAPIKey:  v.GetString("GEMINI_API_KEY"),
		OllamaBaseURL: v.GetString("OLLAMA_BASE_URL"),
		OllamaModel:   v.GetString("OLLAMA_MODEL"),
		AITimeout:     v.GetDuration("AI_TIMEOUT"),
		AIMaxRetries:  v.GetInt("AI_MAX_RETRIES"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		SchedulerEnabled:  v.GetBool("SCHEDULER_ENABLED"),
		SchedulerInterval: v.GetDuration("SCHEDULER_INTERVAL"),

		GmailClientID:     v.GetString("GMAIL_CLIENT_ID"),
		GmailClientSecret: v.GetString("GMAIL_CLIENT_SECRET"),
		GmailRefreshToken: v.GetString("GMAIL_REFRESH_TOKEN"),
		GmailSender:       v.GetString("GMAIL_SENDER"),

		FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS"),
		GoogleProjectID:     v.GetString("GOOGLE_PROJECT_ID"),
		PubSubTopic:         v.GetString("PUBSUB_TOPIC"),

		OtelEnabled:     v.GetBool("OTEL_ENABLED"),
		OtelEndpoint:    v.GetString("OTEL_ENDPOINT"),
		OtelInsecure:    v.GetBool("OTEL_INSECURE"),
		OtelServiceName: v.GetString("OTEL_SERVICE_NAME"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if cfg.QBEnvironment != EnvSandbox && cfg.QBEnvironment != EnvProduction {
		return nil, fmt.Errorf("QB_ENVIRONMENT must be %q or %q, got %q", EnvSandbox, EnvProduction, cfg.QBEnvironment)
	}
	if cfg.Env == "production" && cfg.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

const defaultJWTSecret = "change-me-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "app.db")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ACCESS_EXPIRY", "168h")
	v.SetDefault("REFRESH_TOKEN_EXPIRY", "720h")
	v.SetDefault("REFRESH_COOKIE_NAME", "refresh_token")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("COOKIE_SAME_SITE", "lax")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")

	v.SetDefault("QB_CLIENT_ID", "")
	v.SetDefault("QB_CLIENT_SECRET", "")
	v.SetDefault("QB_REDIRECT_URI", "http://localhost:8000/api/qb/callback")
	v.SetDefault("QB_ENVIRONMENT", EnvSandbox)
	v.SetDefault("QB_AUTH_URL", "https://appcenter.intuit.com/connect/oauth2")
	v.SetDefault("QB_TOKEN_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer")
	v.SetDefault("QB_API_BASE_URL", "")
	v.SetDefault("QB_RATE_LIMIT_RPS", 8)

	v.SetDefault("AI_PROVIDER", "auto")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("OLLAMA_BASE_URL", "")
	v.SetDefault("OLLAMA_MODEL", "")
	v.SetDefault("AI_TIMEOUT", "60s")
	v.SetDefault("AI_MAX_RETRIES", 2)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SCHEDULER_ENABLED", false)
	v.SetDefault("SCHEDULER_INTERVAL", "6h")

	v.SetDefault("GMAIL_CLIENT_ID", "")
	v.SetDefault("GMAIL_CLIENT_SECRET", "")
	v.SetDefault("GMAIL_REFRESH_TOKEN", "")
	v.SetDefault("GMAIL_SENDER", "")

	v.SetDefault("FIREBASE_CREDENTIALS", "")
	v.SetDefault("GOOGLE_PROJECT_ID", "")
	v.SetDefault("PUBSUB_TOPIC", "client-updates")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "client-update-agent")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// QBAPIBase returns the accounting API host for the configured environment.
func (c *Config) QBAPIBase() string {
	if c.QBAPIBaseURL != "" {
		return strings.TrimRight(c.QBAPIBaseURL, "/")
	}
	if c.QBEnvironment == EnvProduction {
		return qbProductionAPIBase
	}
	return qbSandboxAPIBase
}

func (c *Config) MailerEnabled() bool {
	return c.GmailClientID != "" && c.GmailClientSecret != "" && c.GmailRefreshToken != "" && c.GmailSender != ""
}
