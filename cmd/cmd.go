// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory for the queue, credentials and history files",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// setupCommand writes a starter configuration file
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a starter config.toml",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// stateCommand runs the state service
func stateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "state",
		Usage:  "Run the state service (queue, events, progress)",
		Flags:  commonFlags(),
		Action: r.StateService,
	}
}

// workerCommand runs the worker service
func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the worker service (metadata, tags, file organization)",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:  "download-dir",
				Usage: "Directory where the P2P client drops finished files",
			},
		),
		Action: r.WorkerService,
	}
}
