package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides file settings with CHAMP_* environment variables
func ApplyEnv(cfg *LocalConfig) {
	cfg.User.ID = getEnv("CHAMP_USER_ID", cfg.User.ID)
	cfg.Daemon.Port = getEnvInt("CHAMP_PORT", cfg.Daemon.Port)
	cfg.Daemon.LogLevel = getEnv("CHAMP_LOG_LEVEL", cfg.Daemon.LogLevel)

	cfg.Storage.Backend = getEnv("CHAMP_STORAGE", cfg.Storage.Backend)

	cfg.Sync.DatabaseURL = getEnv("CHAMP_DATABASE_URL", cfg.Sync.DatabaseURL)
	cfg.Sync.RabbitMQURL = getEnv("CHAMP_RABBITMQ_URL", cfg.Sync.RabbitMQURL)
	cfg.Sync.RedisAddr = getEnv("CHAMP_REDIS_ADDR", cfg.Sync.RedisAddr)

	cfg.Generator.Mode = getEnv("CHAMP_GENERATOR", cfg.Generator.Mode)
	cfg.Generator.URL = getEnv("CHAMP_GENERATOR_URL", cfg.Generator.URL)
	cfg.Generator.APIKey = getEnv("CHAMP_GENERATOR_API_KEY", cfg.Generator.APIKey)

	cfg.Runner.Executor = getEnv("CHAMP_RUNNER", cfg.Runner.Executor)
	cfg.Runner.TimeoutSeconds = getEnvInt("CHAMP_RUNNER_TIMEOUT", cfg.Runner.TimeoutSeconds)
	cfg.Runner.Docker.CPULimit = getEnvFloat("CHAMP_RUNNER_CPU_LIMIT", cfg.Runner.Docker.CPULimit)
	cfg.Runner.Docker.NetworkOff = getEnvBool("CHAMP_RUNNER_NETWORK_OFF", cfg.Runner.Docker.NetworkOff)

	for name, env := range map[string]string{
		"claude": "ANTHROPIC_API_KEY",
		"openai": "OPENAI_API_KEY",
	} {
		if p, ok := cfg.LLM.Providers[name]; ok {
			p.APIKey = getEnv(env, p.APIKey)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
