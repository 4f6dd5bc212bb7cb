package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/anrath/SquadSpotifyWrapped/internal/formatter"
	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/normalizer"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
	"github.com/anrath/SquadSpotifyWrapped/internal/tasks"
	"github.com/anrath/SquadSpotifyWrapped/internal/ui"
)

// Parse normalizes OCR text, read from files or extracted from a screenshot, into a profile.
func (r *Runner) Parse(ctx context.Context, cmd *cli.Command) error {
	layout, err := models.ParseLayout(cmd.String("layout"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	raw, err := r.rawExtraction(ctx, cmd, layout)
	if err != nil {
		return err
	}

	result := normalizer.Parse(raw)
	r.logger.Debug("parsed profile text", "layout", layout, "structured", result.IsStructured())

	profile, parseErr := normalizer.Require(result)
	if parseErr != nil {
		r.logger.Warn("profile text not structured", "layout", layout, "err", parseErr)
	}

	if cmd.Bool("json") {
		if parseErr != nil {
			err = r.writeJSON(map[string]any{"structured": false, "raw": result.Raw()}, true)
		} else {
			err = r.writeJSON(profile, true)
		}
	} else {
		err = r.writePlain("%s\n", ui.RenderParse(result))
	}
	if err != nil {
		return err
	}

	if cmd.Bool("strict") {
		return parseErr
	}
	return nil
}

func (r *Runner) rawExtraction(ctx context.Context, cmd *cli.Command, layout models.Layout) (models.RawExtraction, error) {
	if image := cmd.String("image"); image != "" {
		r.logger.Info("extracting text from screenshot", "image", image, "layout", layout)
		return r.ocrService().ExtractProfileText(ctx, image, layout)
	}

	raw := models.RawExtraction{Layout: layout}
	switch layout {
	case models.LayoutDual:
		left, right := cmd.String("left"), cmd.String("right")
		if left == "" || right == "" {
			return raw, fmt.Errorf("%w: --left and --right (or --image) are required for the dual layout", shared.ErrMissingArgument)
		}
		l, err := r.readSource(left)
		if err != nil {
			return raw, err
		}
		rt, err := r.readSource(right)
		if err != nil {
			return raw, err
		}
		raw.Text, raw.Right = string(l), string(rt)
	default:
		path := cmd.String("text")
		if path == "" {
			return raw, fmt.Errorf("%w: --text or --image is required", shared.ErrMissingArgument)
		}
		text, err := r.readSource(path)
		if err != nil {
			return raw, err
		}
		raw.Text = string(text)
	}
	return raw, nil
}

// Generate resolves the profiles in --input and creates the playlist, or
// only resolves them with --dry-run.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	profiles, err := r.readProfiles(cmd.String("input"))
	if err != nil {
		return err
	}

	catalog, err := r.catalogService()
	if err != nil {
		return err
	}

	opts := tasks.OptsFromConfig(r.config.Engine)
	if name := cmd.String("name"); name != "" {
		opts.PlaylistName = name
	}

	dryRun := cmd.Bool("dry-run")
	var recorder tasks.RunRecorder
	if !dryRun {
		if repo, err := r.runRepository(); err != nil {
			r.logger.Warn("run history unavailable", "err", err)
		} else {
			recorder = repo
		}
	}

	engine := tasks.NewPlaylistEngine(catalog, opts, r.logger, recorder)
	jsonOut := cmd.Bool("json")

	progress, wait := r.reportProgress(!jsonOut)
	export := &formatter.Export{Name: opts.PlaylistName, Description: opts.PlaylistDescription}

	if dryRun {
		agg, err := engine.Aggregate(ctx, profiles, progress)
		close(progress)
		wait()
		if err != nil {
			return err
		}
		export.Entries = agg.Entries
		if jsonOut {
			err = r.writeJSON(agg, true)
		} else {
			err = r.writePlain("\n%s\n", ui.RenderAggregate(agg))
		}
		if err != nil {
			return err
		}
		return r.export(export, cmd.String("format"), cmd.String("output"))
	}

	result, err := engine.Generate(ctx, profiles, progress)
	close(progress)
	wait()
	if err != nil {
		if !jsonOut {
			r.writePlain("\n%s\n", ui.RenderResult(nil, err))
		}
		return err
	}

	export.PlaylistID = result.PlaylistID
	export.Entries = result.Entries
	if jsonOut {
		err = r.writeJSON(result, true)
	} else {
		err = r.writePlain("\n%s\n", ui.RenderResult(result, nil))
	}
	if err != nil {
		return err
	}
	return r.export(export, cmd.String("format"), cmd.String("output"))
}

// readProfiles accepts {"data": [...]} or a bare array of profiles.
func (r *Runner) readProfiles(path string) ([]models.UserMusicProfile, error) {
	data, err := r.readSource(path)
	if err != nil {
		return nil, err
	}

	var profiles []models.UserMusicProfile
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &profiles)
	} else {
		var req models.PlaylistRequest
		err = json.Unmarshal(data, &req)
		profiles = req.Profiles
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrValidation, path, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no input data provided", shared.ErrValidation)
	}
	return profiles, nil
}

// reportProgress prints updates until the returned channel is closed. wait
// blocks until the last update has been written.
func (r *Runner) reportProgress(show bool) (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if show {
				r.writePlain("%s\n", ui.RenderProgress(update))
			}
		}
	}()
	return progress, wg.Wait
}

func (r *Runner) export(export *formatter.Export, format, output string) error {
	if format == "" {
		return nil
	}

	files, err := formatter.Write(export, format, output)
	if err != nil {
		return fmt.Errorf("failed to export playlist: %w", err)
	}
	for _, f := range files {
		r.logger.Info("exported playlist", "file", f)
	}
	return nil
}

// NowPlaying prints the playlist owner's current playback.
func (r *Runner) NowPlaying(ctx context.Context, cmd *cli.Command) error {
	player, err := r.playerService()
	if err != nil {
		return err
	}

	np, err := player.NowPlaying(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(np, false)
	}
	return r.writePlain("%s\n", ui.RenderNowPlaying(np))
}
