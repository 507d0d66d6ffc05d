package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the local daemon and CLI
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	User      UserConfig      `yaml:"user"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Generator GeneratorConfig `yaml:"generator"`
	Runner    RunnerConfig    `yaml:"runner"`
	Sync      SyncConfig      `yaml:"sync"`
	Content   ContentConfig   `yaml:"content"`
	Sprint    SprintConfig    `yaml:"sprint"`
	Recap     RecapConfig     `yaml:"recap"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// UserConfig identifies the local learner
type UserConfig struct {
	ID string `yaml:"id"`
}

// StorageConfig selects the local snapshot backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite, file
	Path    string `yaml:"path,omitempty"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"` // For Ollama
	APIKey  string `yaml:"-"`             // Loaded from secrets.yaml
}

// GeneratorConfig selects how exercises are generated
type GeneratorConfig struct {
	Mode           string `yaml:"mode"` // llm, http, off
	URL            string `yaml:"url,omitempty"`
	APIKey         string `yaml:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ChunkSize      int    `yaml:"chunk_size"`
}

// RunnerConfig holds code execution settings
type RunnerConfig struct {
	Executor       string             `yaml:"executor"` // local, docker
	TimeoutSeconds int                `yaml:"timeout_seconds"`
	MaxOutputBytes int                `yaml:"max_output_bytes"`
	Docker         DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	Images     map[string]string `yaml:"images,omitempty"`
	MemoryMB   int               `yaml:"memory_mb"`
	CPULimit   float64           `yaml:"cpu_limit"`
	NetworkOff bool              `yaml:"network_off"`
}

// SyncConfig holds remote sync targets. Empty targets are disabled.
type SyncConfig struct {
	DatabaseURL string `yaml:"database_url,omitempty"`
	RabbitMQURL string `yaml:"rabbitmq_url,omitempty"`
	Queue       string `yaml:"queue"`
	RedisAddr   string `yaml:"redis_addr,omitempty"`
	RedisDB     int    `yaml:"redis_db"`
	Buffer      int    `yaml:"buffer"`
}

// ContentConfig points at lesson and module content on disk. Empty paths use
// the built-in content.
type ContentConfig struct {
	CoursesDir  string `yaml:"courses_dir,omitempty"`
	ModulesFile string `yaml:"modules_file,omitempty"`
}

// SprintConfig holds sprint awards and prefetch tuning
type SprintConfig struct {
	ExerciseXP        int `yaml:"exercise_xp"`
	CompletionBonusXP int `yaml:"completion_bonus_xp"`
	BatchSize         int `yaml:"batch_size"`
	LowWater          int `yaml:"low_water"`
}

// RecapConfig holds recap awards
type RecapConfig struct {
	XP int `yaml:"xp"`
}

// SecretsConfig holds API keys loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"providers"`
	Generator struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"generator"`
}

// ChampDir returns the path to ~/.champ
func ChampDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".champ"), nil
}

// EnsureChampDir creates ~/.champ and subdirectories if they don't exist
func EnsureChampDir() (string, error) {
	dir, err := ChampDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data", "cache"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		User: UserConfig{ID: "local"},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"claude": {
					Enabled: true,
					Model:   "claude-sonnet-4-20250514",
				},
				"openai": {
					Enabled: false,
					Model:   "gpt-4o",
				},
				"ollama": {
					Enabled: false,
					URL:     "http://localhost:11434",
					Model:   "llama3.1",
				},
			},
		},
		Generator: GeneratorConfig{
			Mode:           "llm",
			TimeoutSeconds: 60,
			ChunkSize:      3,
		},
		Runner: RunnerConfig{
			Executor:       "local",
			TimeoutSeconds: 10,
			MaxOutputBytes: 64 * 1024,
			Docker: DockerRunnerConfig{
				MemoryMB:   256,
				CPULimit:   0.5,
				NetworkOff: true,
			},
		},
		Sync: SyncConfig{
			Queue:  "champ.sync",
			Buffer: 256,
		},
		Sprint: SprintConfig{
			ExerciseXP:        10,
			CompletionBonusXP: 50,
			BatchSize:         3,
			LowWater:          2,
		},
		Recap: RecapConfig{XP: 15},
	}
}

// LoadLocalConfig loads ~/.champ/config.yaml over the defaults, then
// secrets and environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := ChampDir()
	if err != nil {
		return nil, err
	}
	cfg, err := loadFrom(dir)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

func loadFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()
	configPath := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	return cfg, nil
}

// loadSecrets loads API keys from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	data, err := os.ReadFile(secretsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	cfg.Generator.APIKey = secrets.Generator.APIKey
	return nil
}

// SaveLocalConfig saves configuration to ~/.champ/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureChampDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves provider API keys to ~/.champ/secrets.yaml
func SaveSecrets(secrets map[string]string) error {
	dir, err := EnsureChampDir()
	if err != nil {
		return err
	}

	var secretsCfg SecretsConfig
	secretsCfg.Providers = make(map[string]struct {
		APIKey string `yaml:"api_key"`
	})
	for name, key := range secrets {
		secretsCfg.Providers[name] = struct {
			APIKey string `yaml:"api_key"`
		}{APIKey: key}
	}

	data, err := yaml.Marshal(secretsCfg)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// owner read/write only
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}

// StoragePath returns where the snapshot backend keeps its data
func (c *LocalConfig) StoragePath(champDir string) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Backend == "file" {
		return filepath.Join(champDir, "data")
	}
	return filepath.Join(champDir, "data", "champ.db")
}
