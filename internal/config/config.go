package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv            string
	AppName           string
	APIPrefix         string
	AppPort           string
	DatabaseURL       string
	UseInMemoryStore  bool
	SeedPath          string
	RedisURL          string
	CacheChannel      string
	PatternCacheTTL   time.Duration
	PromptCacheTTL    time.Duration
	PromptName        string
	IntentDictionary  string
	JWTSecret         string
	JWTAlgorithm      string
	JWTAudience       string
	JWTIssuer         string
	CORSAllowOrigins  []string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAIMaxTokens   int
	OpenAITemperature float64
	AITimeoutSeconds  int
	UseMockGenerator  bool
	MaxMessageLength  int
	HistoryTurns      int
	ProductLimit      int
	MedicalPatterns   []string
	RxPatterns        []string
	EducationalMarks  []string
	LogLevel          string
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		AppEnv:           getEnv("APP_ENV", "local"),
		AppName:          getEnv("APP_NAME", "MIA Chatbot API"),
		APIPrefix:        getEnv("API_PREFIX", "/api"),
		AppPort:          getEnv("APP_PORT", "3001"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		UseInMemoryStore: getEnvBool("USE_IN_MEMORY_STORE", false),
		SeedPath:         getEnv("SEED_PATH", "seed/demo.yaml"),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheChannel:     getEnv("CACHE_INVALIDATION_CHANNEL", "mia:cache:invalidate"),
		PatternCacheTTL:  getEnvDuration("PATTERN_CACHE_TTL", 5*time.Minute),
		PromptCacheTTL:   getEnvDuration("PROMPT_CACHE_TTL", 5*time.Minute),
		PromptName:       getEnv("PROMPT_NAME", "main_assistant"),
		IntentDictionary: getEnv("INTENT_DICTIONARY_PATH", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAlgorithm:     getEnv("JWT_ALGORITHM", "HS256"),
		JWTAudience:      getEnv("JWT_AUDIENCE", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),
		CORSAllowOrigins: getEnvCSV(
			"CORS_ALLOW_ORIGINS",
			[]string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"},
		),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 800),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.4),
		AITimeoutSeconds:  getEnvInt("AI_TIMEOUT_SECONDS", 30),
		UseMockGenerator:  getEnvBool("USE_MOCK_GENERATOR", false),
		MaxMessageLength:  getEnvInt("MAX_MESSAGE_LENGTH", 2000),
		HistoryTurns:      getEnvInt("HISTORY_TURNS", 10),
		ProductLimit:      getEnvInt("PRODUCT_LIMIT", 5),
		MedicalPatterns:   getEnvCSV("MEDICAL_REQUEST_PATTERNS", nil),
		RxPatterns:        getEnvCSV("RX_PATTERNS", nil),
		EducationalMarks:  getEnvCSV("EDUCATIONAL_MARKERS", nil),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func (c Config) Validate() error {
	if !c.UseInMemoryStore && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required unless USE_IN_MEMORY_STORE is set")
	}
	secret := strings.TrimSpace(c.JWTSecret)
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if secret == "change-me-in-production" {
		return errors.New("JWT_SECRET must not use insecure default value")
	}
	if len(secret) < 16 {
		return errors.New("JWT_SECRET is too short; use at least 16 characters")
	}
	if strings.TrimSpace(c.JWTAlgorithm) == "" {
		return errors.New("JWT_ALGORITHM is required")
	}
	if !c.UseMockGenerator && strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return errors.New("OPENAI_API_KEY is required unless USE_MOCK_GENERATOR is set")
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		return errors.New("OPENAI_TEMPERATURE must be between 0 and 2")
	}
	if c.OpenAIMaxTokens <= 0 || c.MaxMessageLength <= 0 || c.HistoryTurns <= 0 || c.ProductLimit <= 0 {
		return errors.New("OPENAI_MAX_TOKENS, MAX_MESSAGE_LENGTH, HISTORY_TURNS and PRODUCT_LIMIT must be positive")
	}
	if c.PatternCacheTTL <= 0 || c.PromptCacheTTL <= 0 {
		return errors.New("PATTERN_CACHE_TTL and PROMPT_CACHE_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s", "5m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
