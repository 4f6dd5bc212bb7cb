package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/server"
	"github.com/anrath/SquadSpotifyWrapped/internal/services"
	"github.com/anrath/SquadSpotifyWrapped/internal/tasks"
)

// unavailableGenerator answers every request with the error that kept the
// catalog from starting.
type unavailableGenerator struct {
	err error
}

func (u unavailableGenerator) Generate(context.Context, []models.UserMusicProfile, chan<- tasks.ProgressUpdate) (*tasks.GenerateResult, error) {
	return nil, u.err
}

// Serve runs the playlist API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}

	api := server.NewAPI(r.generator(), r.optionalPlayer(), cfg.RequestTimeout.Duration, r.logger)
	srv := server.New(cfg, api, r.logger)

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, srv, l, r.logger)
}

// generator builds the engine for the server. Missing credentials do not
// stop the server; playlist requests report them instead.
func (r *Runner) generator() server.Generator {
	catalog, err := r.catalogService()
	if err != nil {
		r.logger.Warn("playlist generation disabled", "err", err)
		return unavailableGenerator{err: err}
	}

	var recorder tasks.RunRecorder
	if repo, err := r.runRepository(); err != nil {
		r.logger.Warn("run history unavailable", "err", err)
	} else {
		recorder = repo
	}

	return tasks.NewPlaylistEngine(catalog, tasks.OptsFromConfig(r.config.Engine), r.logger, recorder)
}

func (r *Runner) optionalPlayer() services.Player {
	player, err := r.playerService()
	if err != nil {
		r.logger.Debug("now playing disabled", "err", err)
		return nil
	}
	return player
}
