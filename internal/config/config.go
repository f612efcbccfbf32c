package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port             string
	Env              string
	LogLevel         string
	WriteTimeoutSecs int
	RateLimitPerMin  int

	// LLM providers
	GeminiAPIKey         string
	GeminiConcurrentReqs int
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	MockLLM              bool
	DefaultProvider      string
	ModelsFile           string

	// Redis (optional, shares chat events between instances)
	RedisURL string

	// Frontend & demo auth
	FrontendURL string
	AuthUsers   []string
}

// Load reads .env (or the given files) if present, then the environment.
func Load(envFiles ...string) *Config {
	godotenv.Load(envFiles...)

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		WriteTimeoutSecs:     getEnvAsIntOrDefault("HTTP_WRITE_TIMEOUT_SECONDS", 120),
		RateLimitPerMin:      getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OpenAIAPIKey:         getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnvOrDefault("OPENAI_BASE_URL", ""),
		MockLLM:              getEnvAsBoolOrDefault("LLM_MOCK", false),
		DefaultProvider:      getEnvOrDefault("DEFAULT_PROVIDER", "gemini"),
		ModelsFile:           getEnvOrDefault("MODELS_FILE", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "*"),
		AuthUsers:            getEnvAsListOrDefault("AUTH_USERS", []string{"richard", "gilfoyle", "dinesh"}),
	}

	return cfg
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" && !c.MockLLM {
		errs = append(errs, errors.New("no LLM provider configured: set GEMINI_API_KEY, OPENAI_API_KEY or LLM_MOCK=true"))
	}
	if c.GeminiConcurrentReqs < 1 {
		errs = append(errs, errors.New("GEMINI_CONCURRENT_REQUESTS must be at least 1"))
	}
	if len(c.AuthUsers) == 0 {
		errs = append(errs, errors.New("AUTH_USERS must name at least one user"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsListOrDefault splits a comma separated value, dropping blanks.
func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
