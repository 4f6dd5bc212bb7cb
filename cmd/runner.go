package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/ocr"
	"github.com/anrath/SquadSpotifyWrapped/internal/repositories"
	"github.com/anrath/SquadSpotifyWrapped/internal/services"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

// Recognizer turns a screenshot into raw profile text. Implemented by [ocr.Recognizer].
type Recognizer interface {
	ExtractProfileText(ctx context.Context, imagePath string, layout models.Layout) (models.RawExtraction, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services left nil in [RunnerOpts] are built from the loaded config the
// first time a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	player     services.Player
	recognizer Recognizer
	db         *sql.DB
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Player     services.Player
	Recognizer Recognizer
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		player:     opts.Player,
		recognizer: opts.Recognizer,
		db:         opts.DB,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, parseCommand, generateCommand, setupCommand, historyCommand, nowPlayingCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads the config file named by --config, applies dotenv and
// environment overrides and sets the log level. A missing file falls back
// to the embedded defaults.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}

	if r.config == nil {
		config, err := shared.LoadConfig(r.configPath)
		switch {
		case errors.Is(err, shared.ErrMissingConfig):
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
			config = shared.DefaultConfig()
		case err != nil:
			return ctx, err
		}
		r.config = config
	}

	shared.ApplyEnv(r.config, cmd.StringSlice("env")...)

	if err := shared.SetLogLevel(r.logger, r.config.Log.Level); err != nil {
		r.logger.Warn("ignoring unknown log level", "level", r.config.Log.Level)
	}

	return ctx, r.config.Validate()
}

// catalogService returns the injected catalog or connects to Spotify.
func (r *Runner) catalogService() (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	svc, err := services.NewSpotifyService(services.OptsFromConfig(r.config, r.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	r.catalog = svc
	return svc, nil
}

// playerService returns the injected player, falling back to the catalog when it can report playback.
func (r *Runner) playerService() (services.Player, error) {
	if r.player != nil {
		return r.player, nil
	}

	catalog, err := r.catalogService()
	if err != nil {
		return nil, err
	}
	player, ok := catalog.(services.Player)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot report playback", shared.ErrInvalidConfig, catalog.Name())
	}
	r.player = player
	return player, nil
}

func (r *Runner) ocrService() Recognizer {
	if r.recognizer == nil {
		r.recognizer = ocr.FromConfig(r.config.OCR, r.logger)
	}
	return r.recognizer
}

// database opens the configured database and runs migrations once per process.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	return db, nil
}

func (r *Runner) runRepository() (*repositories.RunRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewRunRepository(db), nil
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// readSource returns the contents of path, or of the runner's input for "-".
func (r *Runner) readSource(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(r.input)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingArgument, err)
	}
	return data, nil
}
