package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "squadwrap",
		Usage:    "Build a shared Spotify playlist from your squad's Wrapped screenshots",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Before:   runner.Load,
		Commands: runner.register(),
	}

	err := app.Run(context.Background(), os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "err", cerr)
	}
	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("SQUADWRAP_CONFIG"),
		},
		&cli.StringSliceFlag{
			Name:  "env",
			Usage: "Dotenv files with SPOTIFY_* credential overrides",
			Value: []string{".env"},
		},
	}
}
