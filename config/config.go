package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HSouheill/referral_backend/logger"
)

// AppConfig is everything the process reads from its environment. Services
// receive the pieces they need; nothing below main reads os.Getenv.
type AppConfig struct {
	Env           string
	Port          string
	PublicBaseURL string
	LogLevel      string
	LogFile       string

	MongoURI string
	DBName   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TaskQueueKey  string

	FirebaseCredentialsBase64 string
	FirebaseCredentialsFile   string
	FirebaseProjectID         string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	JWTSecret          string
	CORSAllowedOrigins []string

	PayoutAPIURL   string
	PayoutAPIKey   string
	PayoutCurrency string
	PayoutTimeout  time.Duration

	WorkerConcurrency    int
	PayoutMaxAttempts    int
	ReconcileInterval    time.Duration
	WebhookRatePerSecond float64
	WebhookRateBurst     int
}

// Load reads .env when present and then the process environment.
func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using process environment")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = os.Getenv("MONGODB_URI")
	}

	return &AppConfig{
		Env:           getEnv("ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       os.Getenv("LOG_FILE"),

		MongoURI: mongoURI,
		DBName:   getEnv("DB_NAME", "referrals"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		TaskQueueKey:  getEnv("TASK_QUEUE_KEY", "referrals:tasks"),

		FirebaseCredentialsBase64: os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		FirebaseCredentialsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FirebaseProjectID:         os.Getenv("FIREBASE_PROJECT_ID"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getEnvInt("SMTP_PORT", 2525),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: getEnv("MAIL_FROM", os.Getenv("SMTP_USER")),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		PayoutAPIURL:   os.Getenv("PAYOUT_API_URL"),
		PayoutAPIKey:   os.Getenv("PAYOUT_API_KEY"),
		PayoutCurrency: getEnv("PAYOUT_CURRENCY", "usd"),
		PayoutTimeout:  getEnvDuration("PAYOUT_TIMEOUT", 30*time.Second),

		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 4),
		PayoutMaxAttempts:    getEnvInt("PAYOUT_MAX_ATTEMPTS", 5),
		ReconcileInterval:    getEnvDuration("PAYOUT_RECONCILE_INTERVAL", 15*time.Minute),
		WebhookRatePerSecond: getEnvFloat("WEBHOOK_RATE_PER_SECOND", 50),
		WebhookRateBurst:     getEnvInt("WEBHOOK_RATE_BURST", 100),
	}
}

// IsDevelopment reports whether development fallbacks may be used.
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logger.Warn("invalid integer for %s: %q, using %d", key, v, def)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logger.Warn("invalid number for %s: %q, using %v", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logger.Warn("invalid duration for %s: %q, using %s", key, v, def)
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
