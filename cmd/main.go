package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/shared"
)

const version = "1.0.0"

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	err := newApp(runner).Run(context.Background(), os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "error", cerr)
	}

	if err != nil {
		if errors.Is(err, errReported) {
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command. Global flags are read by every subcommand.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "listx",
		Usage:   "Manage categorized lists, their order and JSON backups",
		Version: version,
		Writer:  r.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("LISTX_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Override the configured log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LISTX_LOG_LEVEL"),
			},
		},
		Commands: r.register(),
	}
}
