package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/champ/internal/app"
	"github.com/felixgeelhaar/champ/internal/config"
	mcpserver "github.com/felixgeelhaar/champ/internal/mcp"
)

// cmdMCP serves the learning tools over stdio for editor integration
func cmdMCP() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// stdout carries the protocol
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	a, err := app.New(ctx, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Progress: a.Progress,
		Practice: a.Practice,
		Sprints:  a.Sprints,
		Recap:    a.Recap,
		Sandbox:  a.Sandbox,
		Version:  Version,
	})
	return srv.ServeStdio(ctx)
}
