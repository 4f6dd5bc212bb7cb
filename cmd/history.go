package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anrath/SquadSpotifyWrapped/internal/formatter"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
	"github.com/anrath/SquadSpotifyWrapped/internal/ui"
)

// HistoryList prints stored generation runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	runs, err := repo.List(cmd.Int("limit"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.RenderHistory(runs))
}

// HistoryTracks prints the tracks profiles resolved to most often.
func (r *Runner) HistoryTracks(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	tracks, err := repo.TopTracks(cmd.Int("limit"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.RenderTopTracks(tracks))
}

// HistoryShow prints one run's tracks, or exports them with --format.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	repo, err := r.runRepository()
	if err != nil {
		return err
	}
	run, err := repo.Get(id)
	if err != nil {
		return err
	}

	export := formatter.FromRun(run, r.config.Engine.PlaylistName)
	if format := cmd.String("format"); format != "" {
		return r.export(export, format, cmd.String("output"))
	}

	text, err := formatter.ExportToText(export)
	if err != nil {
		return err
	}
	if run.Error != "" {
		r.writePlain("Error: %s\n", run.Error)
	}
	return r.writePlain("%s", text)
}

// HistoryDelete removes a run and its tracks.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	repo, err := r.runRepository()
	if err != nil {
		return err
	}
	if err := repo.Delete(id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted run %s\n", id)
}
