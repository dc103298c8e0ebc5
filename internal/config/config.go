// Package config loads the gateway configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// JWTSecret signs gateway access tokens.
	JWTSecret string
	TokenTTL  time.Duration

	// UpstreamURL is the websocket endpoint of the speech model.
	UpstreamURL string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string

	// GenAIAPIKey enables the model-backed knowledge retriever. Empty
	// falls back to the static document set.
	GenAIAPIKey string

	SystemPrompt string
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:      getDuration("TOKEN_TTL_MINUTES", 60) * time.Minute,
		UpstreamURL:   getEnv("UPSTREAM_URL", "ws://localhost:8081/speech"),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "voxstream"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		GenAIAPIKey:   getEnv("GENAI_API_KEY", ""),
		SystemPrompt:  getEnv("SYSTEM_PROMPT", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback)
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return time.Duration(fallback)
	}
	return time.Duration(minutes)
}
