package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/client"

	"github.com/felixgeelhaar/champ/internal/config"
)

// cmdInit initializes champ for first-time use
func cmdInit() error {
	fmt.Println("Champ - First-Time Setup")
	fmt.Println("========================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Creating ~/.champ directory structure... ")
	champDir, err := config.EnsureChampDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	configPath := filepath.Join(champDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	fmt.Println()
	fmt.Println("LLM Provider Setup")
	fmt.Println("------------------")
	fmt.Println("Exercises and recaps are generated by Claude, OpenAI or a local Ollama model.")
	fmt.Println()

	cfg, _ := config.LoadLocalConfig()
	if cfg != nil && cfg.LLM.Providers["claude"] != nil && cfg.LLM.Providers["claude"].APIKey != "" {
		fmt.Println("Claude API key: already configured ✓")
	} else {
		fmt.Print("Enter Claude API key (or press Enter to skip): ")
		key, _ := reader.ReadString('\n')
		key = strings.TrimSpace(key)
		if key != "" {
			if err := config.SaveSecrets(map[string]string{"claude": key}); err != nil {
				fmt.Printf("  ⚠ Failed to save: %v\n", err)
			} else {
				fmt.Println("  ✓ Saved")
			}
		}
	}

	fmt.Println()
	fmt.Print("Checking Docker... ")
	if err := checkDocker(); err != nil {
		fmt.Println("⚠ Not available (local execution will be used)")
	} else {
		fmt.Println("✓")
	}

	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. champ start   # Start the daemon")
	fmt.Println("  2. champ doctor  # Verify configuration")
	fmt.Println("  3. champ stats   # See your progress")
	fmt.Println()
	fmt.Println("For editor integration, configure MCP with the 'champ mcp' command.")

	return nil
}

// cmdDoctor checks system requirements
func cmdDoctor() error {
	fmt.Println("Checking system requirements...")

	allGood := true

	fmt.Print("Docker:    ")
	if err := checkDocker(); err != nil {
		fmt.Printf("✗ %v\n", err)
	} else {
		fmt.Println("✓ available")
	}

	fmt.Print("Directory: ")
	champDir, err := config.ChampDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(champDir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'champ init' to create)")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", champDir)
	}

	fmt.Print("Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Println("✓ loaded")

		fmt.Println("\nLLM Providers:")
		for _, name := range providerNames(cfg) {
			provider := cfg.LLM.Providers[name]
			if !provider.Enabled {
				continue
			}

			fmt.Printf("  %s: ", name)
			switch {
			case name == "ollama":
				if err := checkOllama(provider.URL); err != nil {
					fmt.Printf("✗ %v\n", err)
				} else {
					fmt.Printf("✓ available (model: %s)\n", provider.Model)
				}
			case provider.APIKey != "":
				fmt.Printf("✓ configured (model: %s)\n", provider.Model)
			default:
				fmt.Printf("✗ no API key (run 'champ provider set-key %s')\n", name)
			}
		}

		if cfg.Runner.Executor == "docker" {
			if err := checkDocker(); err != nil {
				fmt.Println("\nRunner:    ✗ executor is docker but Docker is unavailable")
				allGood = false
			}
		}
	}

	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("✗ not running (run 'champ start')")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}

	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Champ Configuration")

	fmt.Println("Daemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)
	fmt.Printf("  user: %s\n", cfg.User.ID)

	fmt.Println("\nStorage:")
	fmt.Printf("  backend: %s\n", cfg.Storage.Backend)
	if cfg.Storage.Path != "" {
		fmt.Printf("  path: %s\n", cfg.Storage.Path)
	}

	fmt.Println("\nLLM:")
	fmt.Printf("  default_provider: %s\n", cfg.LLM.DefaultProvider)
	for _, name := range providerNames(cfg) {
		provider := cfg.LLM.Providers[name]
		if !provider.Enabled {
			continue
		}
		keyStatus := "✗"
		if provider.APIKey != "" || name == "ollama" {
			keyStatus = "✓"
		}
		fmt.Printf("  %s: enabled=%t model=%s key=%s\n", name, provider.Enabled, provider.Model, keyStatus)
	}

	fmt.Println("\nGenerator:")
	fmt.Printf("  mode: %s\n", cfg.Generator.Mode)
	if cfg.Generator.Mode == "http" {
		fmt.Printf("  url: %s\n", cfg.Generator.URL)
	}
	fmt.Printf("  timeout: %ds\n", cfg.Generator.TimeoutSeconds)
	fmt.Printf("  chunk_size: %d\n", cfg.Generator.ChunkSize)

	fmt.Println("\nRunner:")
	fmt.Printf("  executor: %s\n", cfg.Runner.Executor)
	fmt.Printf("  timeout: %ds\n", cfg.Runner.TimeoutSeconds)
	if cfg.Runner.Executor == "docker" {
		fmt.Printf("  memory: %dMB\n", cfg.Runner.Docker.MemoryMB)
		fmt.Printf("  cpu_limit: %.2f\n", cfg.Runner.Docker.CPULimit)
		fmt.Printf("  network_off: %t\n", cfg.Runner.Docker.NetworkOff)
	}

	fmt.Println("\nSync:")
	fmt.Printf("  postgres: %s\n", onOff(cfg.Sync.DatabaseURL))
	fmt.Printf("  redis: %s\n", onOff(cfg.Sync.RedisAddr))
	fmt.Printf("  rabbitmq: %s (queue %s)\n", onOff(cfg.Sync.RabbitMQURL), cfg.Sync.Queue)

	fmt.Println("\nSprint:")
	fmt.Printf("  exercise_xp: %d\n", cfg.Sprint.ExerciseXP)
	fmt.Printf("  completion_bonus_xp: %d\n", cfg.Sprint.CompletionBonusXP)
	fmt.Printf("  batch_size: %d low_water: %d\n", cfg.Sprint.BatchSize, cfg.Sprint.LowWater)

	fmt.Println("\nRecap:")
	fmt.Printf("  xp: %d\n", cfg.Recap.XP)

	champDir, _ := config.ChampDir()
	fmt.Printf("\nConfig path: %s/config.yaml\n", champDir)

	return nil
}

// cmdProvider manages LLM provider API keys
func cmdProvider(args []string) error {
	if len(args) < 1 {
		fmt.Println(`Provider management commands:

  champ provider list              List configured providers
  champ provider set-key <name>    Set API key for a provider`)
		return nil
	}

	switch args[0] {
	case "list":
		return cmdProviderList()
	case "set-key":
		if len(args) < 2 {
			return fmt.Errorf("provider name required")
		}
		return cmdProviderSetKey(args[1])
	default:
		return fmt.Errorf("unknown provider command: %s", args[0])
	}
}

func cmdProviderList() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Configured LLM Providers:")
	for _, name := range providerNames(cfg) {
		provider := cfg.LLM.Providers[name]
		status := "disabled"
		if provider.Enabled {
			if provider.APIKey != "" || name == "ollama" {
				status = "ready"
			} else {
				status = "needs API key"
			}
		}

		isDefault := ""
		if name == cfg.LLM.DefaultProvider {
			isDefault = " (default)"
		}

		fmt.Printf("  %s%s\n", name, isDefault)
		fmt.Printf("    status: %s\n", status)
		fmt.Printf("    model:  %s\n", provider.Model)
		if name == "ollama" && provider.URL != "" {
			fmt.Printf("    url:    %s\n", provider.URL)
		}
		fmt.Println()
	}

	return nil
}

func cmdProviderSetKey(provider string) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, ok := cfg.LLM.Providers[provider]; !ok {
		return fmt.Errorf("unknown provider: %s (valid: claude, openai, ollama)", provider)
	}

	if provider == "ollama" {
		fmt.Println("Ollama doesn't require an API key.")
		return nil
	}

	fmt.Printf("Enter %s API key: ", provider)
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := config.SaveSecrets(map[string]string{provider: key}); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}

	fmt.Printf("✓ API key saved for %s\n", provider)
	fmt.Println("Restart the daemon for changes to take effect.")
	return nil
}

func providerNames(cfg *config.LocalConfig) []string {
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name, p := range cfg.LLM.Providers {
		if p != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func onOff(target string) string {
	if target == "" {
		return "off"
	}
	return "on"
}

// checkDocker pings the Docker daemon
func checkDocker() error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("not running")
	}
	return nil
}

// checkOllama checks if Ollama is reachable
func checkOllama(url string) error {
	if url == "" {
		url = "http://localhost:11434"
	}

	c := &http.Client{Timeout: 2 * time.Second}
	resp, err := c.Get(url + "/api/tags")
	if err != nil {
		return fmt.Errorf("not reachable at %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
