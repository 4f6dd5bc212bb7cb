// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the playlist API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

func parseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Normalize OCR text or a screenshot into a profile",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "layout",
				Aliases: []string{"l"},
				Usage:   "Screenshot layout: combined or dual",
				Value:   "combined",
			},
			&cli.StringFlag{
				Name:  "image",
				Usage: "Screenshot to run through tesseract",
			},
			&cli.StringFlag{
				Name:  "text",
				Usage: "File with OCR text for the combined layout (- for stdin)",
			},
			&cli.StringFlag{
				Name:  "left",
				Usage: "File with OCR text of the left column for the dual layout",
			},
			&cli.StringFlag{
				Name:  "right",
				Usage: "File with OCR text of the right column for the dual layout",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the profile as JSON",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit with an error when no profile could be recovered",
			},
		},
		Action: r.Parse,
	}
}

func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Create a playlist from profile JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    `Profiles as {"data": [...]} or a bare array (- for stdin)`,
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Playlist name (overrides engine.playlist_name)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve tracks without creating a playlist",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Also export the tracks: csv, markdown or text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Export path (defaults to the playlist ID)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
		},
		Action: r.Generate,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example config file",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "auth",
				Usage: "Authorize the playlist owner and save the refresh token",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultAuthTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.SetupAuth,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	limit := &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of rows (0 for all)",
		Value:   20,
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Inspect previously generated playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List generation runs, newest first",
				Flags:  []cli.Flag{limit},
				Action: r.HistoryList,
			},
			{
				Name:   "tracks",
				Usage:  "Show the most frequently resolved tracks",
				Flags:  []cli.Flag{limit},
				Action: r.HistoryTracks,
			},
			{
				Name:      "show",
				Usage:     "Print the tracks of one run",
				ArgsUsage: "<run-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Write an export instead: csv, markdown or text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Export path",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "delete",
				Usage:     "Delete a run",
				ArgsUsage: "<run-id>",
				Action:    r.HistoryDelete,
			},
		},
	}
}

func nowPlayingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "now-playing",
		Usage: "Show what the playlist owner is listening to",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.NowPlaying,
	}
}
