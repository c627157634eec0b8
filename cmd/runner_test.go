package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/hydraplus/hydra/internal/shared"
)

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(RunnerOpts{})
	if r.config == nil || r.logger == nil || r.output == nil {
		t.Fatal("defaults not applied")
	}
	if r.config.State.Port == r.config.Worker.Port {
		t.Error("default config must give the two services distinct ports")
	}
}

func TestSetupWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer
	r := NewRunner(RunnerOpts{Output: &out})

	cmd := &cli.Command{
		Flags:  []cli.Flag{&cli.StringFlag{Name: "config", Value: path}},
		Action: r.Setup,
	}
	if err := cmd.Run(context.Background(), []string{"setup"}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	loaded, err := shared.LoadConfig(path)
	if err != nil {
		t.Fatalf("written config unreadable: %v", err)
	}
	if loaded.State.Port != 3847 || loaded.Worker.Port != 3848 {
		t.Errorf("ports = %d/%d, want 3847/3848", loaded.State.Port, loaded.Worker.Port)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output %q does not mention the file", out.String())
	}

	t.Run("refuses to overwrite", func(t *testing.T) {
		if err := cmd.Run(context.Background(), []string{"setup"}); err == nil {
			t.Error("second setup should fail on an existing file")
		}
	})
}

func TestRegisterCoversBothServices(t *testing.T) {
	r := NewRunner(RunnerOpts{})
	names := map[string]bool{}
	for _, cmd := range r.register() {
		names[cmd.Name] = true
	}
	for _, want := range []string{"setup", "state", "worker"} {
		if !names[want] {
			t.Errorf("command %q missing", want)
		}
	}
}
