package app

import (
	"log/slog"

	"github.com/felixgeelhaar/champ/internal/config"
	"github.com/felixgeelhaar/champ/internal/llm"
)

// setupLLMProviders registers every enabled provider that has credentials
func setupLLMProviders(registry *llm.Registry, cfg config.LLMConfig, logger *slog.Logger) {
	for name, providerCfg := range cfg.Providers {
		if providerCfg == nil || !providerCfg.Enabled {
			continue
		}

		switch name {
		case "claude":
			if providerCfg.APIKey == "" {
				logger.Debug("Claude provider enabled but no API key set")
				continue
			}
			registry.Register(name, llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))

		case "openai":
			if providerCfg.APIKey == "" {
				logger.Debug("OpenAI provider enabled but no API key set")
				continue
			}
			registry.Register(name, llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))

		case "ollama":
			registry.Register(name, llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			}))

		default:
			logger.Warn("unknown LLM provider in config", "name", name)
			continue
		}
		logger.Info("registered LLM provider", "name", name, "model", providerCfg.Model)
	}

	if cfg.DefaultProvider != "" && cfg.DefaultProvider != "auto" {
		if err := registry.SetDefault(cfg.DefaultProvider); err != nil {
			logger.Warn("default LLM provider not registered", "name", cfg.DefaultProvider, "error", err)
		}
	}
}
