package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PrettierCommand    []string
	PrettierPlugin     string
	PrettierParser     string
	WorkerCount        int
	DatabaseURL        string
	Neo4jURI           string
	Neo4jUser          string
	Neo4jPassword      string
	StrictPlaceholders bool
	WatchDebounce      time.Duration
	LogLevel           zerolog.Level
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		PrettierCommand:    strings.Fields(getEnv("PRETTIER_COMMAND", "npx prettier")),
		PrettierPlugin:     getEnv("PRETTIER_PLUGIN", "prettier-plugin-twig-melody"),
		PrettierParser:     getEnv("PRETTIER_PARSER", "melody"),
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Neo4jURI:           getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:          getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:      getEnv("NEO4J_PASSWORD", "password"),
		StrictPlaceholders: getEnvBool("STRICT_PLACEHOLDERS", false),
		WatchDebounce:      time.Duration(getEnvInt("WATCH_DEBOUNCE_MS", 300)) * time.Millisecond,
		LogLevel:           getEnvLevel("LOG_LEVEL", zerolog.InfoLevel),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvLevel(key string, fallback zerolog.Level) zerolog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	level, err := zerolog.ParseLevel(v)
	if err != nil {
		return fallback
	}
	return level
}
