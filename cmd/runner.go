package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/oklog/run"
	"github.com/urfave/cli/v3"

	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/services"
	"github.com/hydraplus/hydra/internal/shared"
	"github.com/hydraplus/hydra/internal/state"
	"github.com/hydraplus/hydra/internal/worker"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, stateCommand, workerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// applyFlags overlays command-line flags onto the loaded config.
func (r *Runner) applyFlags(cmd *cli.Command) {
	if path := cmd.String("config"); path != "" && path != "config.toml" {
		if loaded, err := shared.LoadConfig(path); err == nil {
			r.config = loaded
			shared.ApplyEnv(r.config)
		} else {
			r.logger.Warn("config load failed, using defaults", "path", path, "error", err)
		}
	}
	if dir := cmd.String("data-dir"); dir != "" {
		r.config.Paths.DataDir = dir
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
}

// StateService runs the state plane until a signal or /restart stops it.
func (r *Runner) StateService(ctx context.Context, cmd *cli.Command) error {
	r.applyFlags(cmd)

	srv, err := state.NewServer(r.config.Paths.DataDir, r.logger)
	if err != nil {
		return fmt.Errorf("starting state service: %w", err)
	}

	return r.serve(ctx, "state", r.config.State.Addr(), srv.Handler(), srv.CleanupLoop, nil)
}

// WorkerService runs the data plane until a signal or /restart stops it.
func (r *Runner) WorkerService(ctx context.Context, cmd *cli.Command) error {
	r.applyFlags(cmd)
	if dir := cmd.String("download-dir"); dir != "" {
		r.config.Paths.DownloadDir = dir
	}

	spotify := services.NewSpotifyService(models.Credentials{
		ClientID:     r.config.Spotify.ClientID,
		ClientSecret: r.config.Spotify.ClientSecret,
	}, r.logger)

	srv, err := worker.NewServer(worker.Options{
		DataDir:     r.config.Paths.DataDir,
		DownloadDir: r.config.Paths.DownloadDir,
		Metadata:    spotify,
		StateURL:    "http://" + r.config.State.Addr(),
		Logger:      r.logger,
	})
	if err != nil {
		return fmt.Errorf("starting worker service: %w", err)
	}
	defer srv.Close()

	return r.serve(ctx, "worker", r.config.Worker.Addr(), srv.Handler(), srv.CleanupLoop, srv.WatchCredentials)
}

// serve wires the HTTP listener, the cleanup loop, an optional watcher, and
// signal handling into one actor group; when any actor stops, all stop.
func (r *Runner) serve(ctx context.Context, name, addr string, handler http.Handler,
	cleanup func(context.Context), watch func(context.Context) error) error {

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	httpServer := &http.Server{Handler: handler}
	groupCtx, cancel := context.WithCancel(ctx)

	var group run.Group
	group.Add(func() error {
		r.logger.Info("service listening", "service", name, "addr", addr)
		return httpServer.Serve(listener)
	}, func(error) {
		_ = httpServer.Shutdown(context.Background())
	})
	group.Add(func() error {
		cleanup(groupCtx)
		return nil
	}, func(error) {
		cancel()
	})
	if watch != nil {
		group.Add(func() error {
			return watch(groupCtx)
		}, func(error) {
			cancel()
		})
	}
	group.Add(run.SignalHandler(groupCtx, syscall.SIGINT, syscall.SIGTERM))

	err = group.Run()
	cancel()

	var sig run.SignalError
	if errors.As(err, &sig) || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		r.logger.Info("service stopped", "service", name)
		return nil
	}
	return err
}

// Setup writes a starter config.toml next to the binary.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlainln("Wrote %s", path)
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
