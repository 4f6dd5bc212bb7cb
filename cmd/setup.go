package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/anrath/SquadSpotifyWrapped/internal/server"
	"github.com/anrath/SquadSpotifyWrapped/internal/services"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const defaultAuthTimeout = 2 * time.Minute

var openBrowser = shared.OpenBrowser

// Setup writes the example config when none exists, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		if err := r.SetupConfig(ctx, cmd); err != nil {
			return err
		}
	}
	return r.SetupDatabase(ctx, cmd)
}

// SetupConfig writes the embedded example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("creating config file from template", "path", r.configPath)
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlain("Fill in credentials.spotify, then run 'squadwrap setup auth'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if _, err := r.database(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

// SetupAuth runs the authorization-code flow in the browser and stores the
// playlist owner's refresh token in the config file.
func (r *Runner) SetupAuth(ctx context.Context, cmd *cli.Command) error {
	auth, err := services.NewAuthenticator(r.config.Credentials.Spotify)
	if err != nil {
		return err
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, r.config.Credentials.Spotify.RedirectURI)
	}

	l, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	state := shared.GenerateID()
	token, err := r.doOAuth(ctx, auth, auth.AuthURL(state), state, l, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: authorization returned no refresh token", shared.ErrNoRefreshToken)
	}

	// Env overrides stay out of the saved file.
	config, err := shared.LoadConfig(r.configPath)
	if errors.Is(err, shared.ErrMissingConfig) {
		config = shared.DefaultConfig()
		config.Credentials.Spotify = r.config.Credentials.Spotify
	} else if err != nil {
		return err
	}
	config.Credentials.Spotify.RefreshToken = token.RefreshToken

	if err := shared.SaveConfig(r.configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.config.Credentials.Spotify.RefreshToken = token.RefreshToken

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Refresh token saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: squadwrap generate --input profiles.json\n")
	return nil
}

// doOAuth serves the callback on l until a token arrives or timeout passes.
// The listener is closed on return.
func (r *Runner) doOAuth(ctx context.Context, exchanger server.Exchanger, authURL, state string, l net.Listener, timeout time.Duration, browser bool) (*oauth2.Token, error) {
	handler := server.NewOAuthHandler(exchanger, state)
	router := server.NewBasicRouter()
	router.Handler(handler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	serveCtx, stop := context.WithCancel(ctx)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(serveCtx, httpServer, l, r.logger)
	}()
	defer func() {
		stop()
		<-serverErrors
	}()

	opened := false
	if browser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
		} else {
			opened = true
		}
	}
	if !opened {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err())
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
