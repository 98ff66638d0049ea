package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings holds all environment-driven configuration.
type Settings struct {
	Port             string
	DatabaseURL      string
	AnthropicModel   string
	MockGenerator    bool
	TimerEnabled     bool
	QuestionsPerGen  int
	MinPoolSize      int
	GenWorkerSeconds int
}

// Load reads .env (if present) and assembles Settings from the environment.
func Load() Settings {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return Settings{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		MockGenerator:    os.Getenv("MOCK_GENERATOR") == "true",
		TimerEnabled:     getEnv("TIMER_ENABLED", "true") != "false",
		QuestionsPerGen:  getEnvInt("QUESTIONS_PER_GEN", 25),
		MinPoolSize:      getEnvInt("MIN_POOL_SIZE", 10),
		GenWorkerSeconds: getEnvInt("GEN_WORKER_SECONDS", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
