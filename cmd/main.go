package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hydraplus/hydra/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	shared.ApplyEnv(config)

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "hydra",
		Usage:    "Local coordination and enrichment backend for P2P music downloads",
		Version:  "1.0.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
