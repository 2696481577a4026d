package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderAlle   = "alle"
	ProviderGemini = "gemini"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	HTTPPort string
	LogLevel string
	LogMode  string

	AIProvider      string
	AlleAPIKey      string
	AlleBaseURL     string
	GeminiAPIKey    string
	ChatModel       string
	ProviderTimeout time.Duration

	StoreDriver string
	DatabaseURL string

	JWTSecret    string
	UploadDir    string
	MaxUploadMB  int
	RetentionCap int
	ExcerptChars int
	CORSOrigins  []string
}

var AppConfig Config

// LoadConfig reads .env (when present) and the process environment into AppConfig.
func LoadConfig() Config {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		HTTPPort: getEnv("HTTP_PORT", "3000"),
		LogLevel: strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogMode:  getEnv("LOG_MODE", "dev"),

		AIProvider:      strings.ToLower(getEnv("AI_PROVIDER", ProviderAlle)),
		AlleAPIKey:      getEnv("ALLEAI_API_KEY", ""),
		AlleBaseURL:     getEnv("ALLEAI_BASE_URL", "https://api.alle.ai"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", ""),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 60*time.Second),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL: getEnv("DATABASE_URL", "mentora.db"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 50),
		RetentionCap: getEnvAsInt("RETENTION_CAP", 20),
		ExcerptChars: getEnvAsInt("EXCERPT_CHARS", 1500),
		CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}

	if AppConfig.JWTSecret == "" {
		// Session tokens are opaque to clients and never a security boundary here.
		log.Println("JWT_SECRET not set, using a development secret for session tokens")
		AppConfig.JWTSecret = "mentora-dev-secret"
	}

	return AppConfig
}

// ProviderAPIKey returns the key for the selected completion provider.
func (c Config) ProviderAPIKey() string {
	if c.AIProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.AlleAPIKey
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
