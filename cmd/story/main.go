package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/storycli/storycli/internal/config"
	"github.com/storycli/storycli/internal/engine"
	"github.com/storycli/storycli/internal/logger"
	"github.com/storycli/storycli/internal/services"
	"github.com/storycli/storycli/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default storycli.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg)

	var llm services.LLMService
	switch cfg.Provider {
	case config.ProviderOllama:
		llm = services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, cfg.RequestTimeout, log)
	case config.ProviderAnthropic:
		llm = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.RequestTimeout, log)
	case config.ProviderMock:
		llm = services.NewMockLLMService()
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider: %s\n", cfg.Provider)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := llm.InitModel(ctx, cfg.ModelName); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Model %q is not available: %v\n", cfg.ModelName, err)
		os.Exit(1)
	}
	cancel()

	var store storage.SaveStore
	if cfg.RedisURL != "" {
		store, err = storage.NewRedisStore(cfg.RedisURL, log)
	} else {
		store, err = storage.NewFileStore(cfg.SaveDir, log)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open save store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close() // Ignore error in defer
	}()

	eng := engine.New(cfg, llm, store, log)

	p := tea.NewProgram(NewGameUI(cfg, eng),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
