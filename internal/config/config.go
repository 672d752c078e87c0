package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string
	UploadsPath    string
	UploadMaxSize  int64

	LogLevel  string
	LogFormat string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	OpenAIAPIKey     string
	AITimeout        time.Duration
	MediaTimeout     time.Duration
	PipelineTimeout  time.Duration

	// Per-stage failure policy for the story pipeline.
	FallbackProfile  bool
	FallbackMessage  bool
	FallbackCompose  bool
	FallbackValidate bool

	RedisURL string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	GoogleClientID       string
	GoogleClientSecret   string
	OAuthRedirectBaseURL string

	CORSOrigins []string
}

// Load reads configuration from the environment, loading a .env file first when one exists
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("PORT", "8080"),
		DatabaseType:   getEnv("DB_TYPE", "sqlite"),
		DatabasePath:   getEnv("DB_PATH", "./atamind.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		UploadsPath:    getEnv("UPLOADS_PATH", "./uploads"),
		UploadMaxSize:  int64(envOrInt("UPLOAD_MAX_SIZE", 10*1024*1024)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		JWTIssuer: getEnv("JWT_ISSUER", "atamind"),
		TokenTTL:  envOrDuration("TOKEN_TTL", 24*time.Hour),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		AITimeout:        envOrDuration("AI_TIMEOUT", 7*time.Second),
		MediaTimeout:     envOrDuration("MEDIA_TIMEOUT", 60*time.Second),
		PipelineTimeout:  envOrDuration("PIPELINE_TIMEOUT", 240*time.Second),

		FallbackProfile:  envOrBool("PIPELINE_FALLBACK_PROFILE", true),
		FallbackMessage:  envOrBool("PIPELINE_FALLBACK_MESSAGE", false),
		FallbackCompose:  envOrBool("PIPELINE_FALLBACK_COMPOSE", false),
		FallbackValidate: envOrBool("PIPELINE_FALLBACK_VALIDATE", false),

		RedisURL: getEnv("REDIS_URL", ""),

		AWSRegion:    getEnv("AWS_REGION", "eu-central-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "AtaMind"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),

		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", ""),

		CORSOrigins: parseCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envOrInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func envOrBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// envOrDuration accepts Go duration strings ("7s") or a bare number of seconds.
func envOrDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func parseCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
