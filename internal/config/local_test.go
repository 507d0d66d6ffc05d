package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChampDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := ChampDir()
	if err != nil {
		t.Fatalf("ChampDir() error = %v", err)
	}
	if dir != filepath.Join(home, ".champ") {
		t.Errorf("ChampDir() = %q", dir)
	}
}

func TestEnsureChampDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, err := EnsureChampDir()
	if err != nil {
		t.Fatalf("EnsureChampDir() error = %v", err)
	}
	for _, sub := range []string{"logs", "data", "cache"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("EnsureChampDir() should create %s: %v", sub, err)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if cfg.Daemon.Port != 7433 || cfg.Daemon.Bind != "127.0.0.1" {
		t.Errorf("Daemon = %+v", cfg.Daemon)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Runner.Executor != "local" {
		t.Errorf("Storage = %+v, Runner = %+v", cfg.Storage, cfg.Runner)
	}
	if cfg.Sprint.ExerciseXP != 10 || cfg.Sprint.CompletionBonusXP != 50 || cfg.Sprint.BatchSize != 3 || cfg.Sprint.LowWater != 2 {
		t.Errorf("Sprint = %+v", cfg.Sprint)
	}
	if cfg.Recap.XP != 15 {
		t.Errorf("Recap.XP = %d", cfg.Recap.XP)
	}
	if cfg.Sync.DatabaseURL != "" || cfg.Sync.RabbitMQURL != "" || cfg.Sync.RedisAddr != "" {
		t.Error("remote sync should be off by default")
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFrom_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := loadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}
	if cfg.Daemon.Port != DefaultLocalConfig().Daemon.Port {
		t.Errorf("Port = %d", cfg.Daemon.Port)
	}
}

func TestLoadFrom_ConfigAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
daemon:
  port: 9000
user:
  id: ada
runner:
  executor: docker
sync:
  redis_addr: localhost:6379
`)
	writeFile(t, filepath.Join(dir, "secrets.yaml"), `
providers:
  claude:
    api_key: sk-claude
  unknown:
    api_key: ignored
generator:
  api_key: gen-key
`)

	cfg, err := loadFrom(dir)
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}
	if cfg.Daemon.Port != 9000 || cfg.User.ID != "ada" || cfg.Runner.Executor != "docker" {
		t.Errorf("cfg = %+v", cfg)
	}
	// untouched sections keep their defaults
	if cfg.Daemon.Bind != "127.0.0.1" || cfg.Sprint.ExerciseXP != 10 {
		t.Error("defaults lost when merging config file")
	}
	if cfg.LLM.Providers["claude"].APIKey != "sk-claude" {
		t.Error("provider secret not applied")
	}
	if _, ok := cfg.LLM.Providers["unknown"]; ok {
		t.Error("secrets should not create providers")
	}
	if cfg.Generator.APIKey != "gen-key" {
		t.Errorf("Generator.APIKey = %q", cfg.Generator.APIKey)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "daemon: [not: a map")
	if _, err := loadFrom(dir); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("error = %v", err)
	}

	dir = t.TempDir()
	writeFile(t, filepath.Join(dir, "secrets.yaml"), "providers: [unclosed")
	if _, err := loadFrom(dir); err == nil || !strings.Contains(err.Error(), "secrets") {
		t.Errorf("error = %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHAMP_USER_ID", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := DefaultLocalConfig()
	cfg.User.ID = "grace"
	cfg.Content.CoursesDir = "/srv/courses"
	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}
	if err := SaveSecrets(map[string]string{"openai": "sk-openai"}); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	dir, _ := ChampDir()
	info, err := os.Stat(filepath.Join(dir, "secrets.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("secrets mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if loaded.User.ID != "grace" || loaded.Content.CoursesDir != "/srv/courses" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.LLM.Providers["openai"].APIKey != "sk-openai" {
		t.Error("saved secret not loaded")
	}
}

func TestStoragePath(t *testing.T) {
	tests := []struct {
		storage StorageConfig
		want    string
	}{
		{StorageConfig{Backend: "sqlite"}, filepath.Join("/home/u/.champ", "data", "champ.db")},
		{StorageConfig{Backend: "file"}, filepath.Join("/home/u/.champ", "data")},
		{StorageConfig{Backend: "sqlite", Path: "/tmp/x.db"}, "/tmp/x.db"},
	}
	for _, tt := range tests {
		cfg := &LocalConfig{Storage: tt.storage}
		if got := cfg.StoragePath("/home/u/.champ"); got != tt.want {
			t.Errorf("StoragePath(%+v) = %q, want %q", tt.storage, got, tt.want)
		}
	}
}
