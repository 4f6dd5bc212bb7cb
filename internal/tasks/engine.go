// package tasks resolves squad profiles into a deduplicated track list and
// assembles the playlist.
package tasks

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/services"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const (
	DefaultPlaylistName        = "Squad Spotify Wrapped Playlist"
	DefaultPlaylistDescription = "Generated with Squad Spotify Wrapped: spotify.kasralekan.com"
	DefaultWorkers             = 4
	// ArtistCap is the number of new tracks accepted per top artist.
	ArtistCap = 3
)

// EngineOpts tunes a [PlaylistEngine]. Zero values take the defaults.
type EngineOpts struct {
	Workers             int
	BatchSize           int
	PlaylistName        string
	PlaylistDescription string
}

// OptsFromConfig builds [EngineOpts] from the engine section of the config.
func OptsFromConfig(cfg shared.EngineConfig) EngineOpts {
	return EngineOpts{
		Workers:             cfg.Workers,
		BatchSize:           cfg.BatchSize,
		PlaylistName:        cfg.PlaylistName,
		PlaylistDescription: cfg.PlaylistDescription,
	}
}

// RunRecorder persists finished generations. Failures are logged and never
// fail the request.
type RunRecorder interface {
	RecordRun(run *models.Run) error
}

// SkippedItem is a profile entry that produced no track.
type SkippedItem struct {
	Profile int           `json:"profile"`
	Source  models.Source `json:"source"`
	Query   string        `json:"query"`
	Reason  string        `json:"reason"`
}

// AggregateResult is the ordered, deduplicated outcome of resolving every profile.
type AggregateResult struct {
	Entries         []models.PlaylistEntry `json:"entries"`
	SongCount       int                    `json:"songCount"`
	ArtistCount     int                    `json:"artistCount"`
	Skipped         []SkippedItem          `json:"skipped"`
	InvalidProfiles []int                  `json:"invalidProfiles"`
	ProfileCount    int                    `json:"profileCount"`
}

// URIs returns the accepted track URIs in playlist order.
func (r *AggregateResult) URIs() []string {
	uris := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		uris[i] = e.Track.URI
	}
	return uris
}

// GenerateResult is a created playlist together with how it was built.
type GenerateResult struct {
	RunID      string `json:"runId"`
	PlaylistID string `json:"playlistId"`
	*AggregateResult
}

// PlaylistEngine turns profiles into a playlist on a [services.Catalog].
type PlaylistEngine struct {
	catalog  services.Catalog
	resolver *Resolver
	opts     EngineOpts
	logger   *log.Logger
	recorder RunRecorder
}

// NewPlaylistEngine creates an engine. recorder may be nil.
func NewPlaylistEngine(catalog services.Catalog, opts EngineOpts, logger *log.Logger, recorder RunRecorder) *PlaylistEngine {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchSize < 1 || opts.BatchSize > services.MaxBatchSize {
		opts.BatchSize = services.MaxBatchSize
	}
	if opts.PlaylistName == "" {
		opts.PlaylistName = DefaultPlaylistName
	}
	if opts.PlaylistDescription == "" {
		opts.PlaylistDescription = DefaultPlaylistDescription
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &PlaylistEngine{
		catalog:  catalog,
		resolver: NewResolver(catalog, logger),
		opts:     opts,
		logger:   logger,
		recorder: recorder,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

type songJob struct {
	profile int
	song    string
	artists []string
}

type artistJob struct {
	profile int
	artist  string
}

type outcome struct {
	tracks []models.CandidateTrack
	err    error
}

// Aggregate resolves every valid profile into one ordered track list.
//
// All songs of all profiles are resolved first, then every top artist
// contributes at most [ArtistCap] tracks not already accepted. Within a
// phase lookups run concurrently; acceptance happens after the phase
// completes, in profile and rank order, so the output does not depend on
// scheduling. Rate limiting and timeouts abort the whole aggregation.
func (e *PlaylistEngine) Aggregate(ctx context.Context, profiles []models.UserMusicProfile, progress chan<- ProgressUpdate) (*AggregateResult, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no input data provided", shared.ErrValidation)
	}

	result := &AggregateResult{ProfileCount: len(profiles)}
	var songs []songJob
	var artists []artistJob
	for i, p := range profiles {
		if err := p.Validate(); err != nil {
			e.logger.Warn("skipping invalid profile", "profile", i, "err", err)
			e.sendProgress(progress, invalidProfileUpdate(i+1, len(profiles), err))
			result.InvalidProfiles = append(result.InvalidProfiles, i)
			continue
		}
		for _, s := range p.TopSongs {
			songs = append(songs, songJob{profile: i, song: s, artists: p.TopArtists})
		}
		for _, a := range p.TopArtists {
			artists = append(artists, artistJob{profile: i, artist: a})
		}
	}

	set := NewTrackSet()

	songOutcomes, err := e.fanOut(ctx, len(songs), func(ctx context.Context, i int) outcome {
		t, err := e.resolver.ResolveSong(ctx, songs[i].song, songs[i].artists)
		return outcome{tracks: []models.CandidateTrack{t}, err: err}
	}, func(step int, o outcome) ProgressUpdate {
		return songUpdate(step, len(songs), songs[step-1].song, o.err)
	}, progress)
	if err != nil {
		return nil, err
	}

	for i, o := range songOutcomes {
		job := songs[i]
		if o.err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{job.profile, models.SourceSong, job.song, o.err.Error()})
			continue
		}
		if t := o.tracks[0]; set.Add(t.ID) {
			result.Entries = append(result.Entries, models.PlaylistEntry{Track: t, Source: models.SourceSong, Query: job.song, Profile: job.profile})
			result.SongCount++
		}
	}

	artistOutcomes, err := e.fanOut(ctx, len(artists), func(ctx context.Context, i int) outcome {
		tracks, err := e.resolver.ResolveArtist(ctx, artists[i].artist)
		return outcome{tracks: tracks, err: err}
	}, func(step int, o outcome) ProgressUpdate {
		return artistUpdate(step, len(artists), artists[step-1].artist, len(o.tracks))
	}, progress)
	if err != nil {
		return nil, err
	}

	for i, o := range artistOutcomes {
		job := artists[i]
		if o.err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{job.profile, models.SourceArtist, job.artist, o.err.Error()})
			continue
		}
		accepted := 0
		for _, t := range o.tracks {
			if accepted == ArtistCap {
				break
			}
			if set.Add(t.ID) {
				result.Entries = append(result.Entries, models.PlaylistEntry{Track: t, Source: models.SourceArtist, Query: job.artist, Profile: job.profile})
				accepted++
			}
		}
		result.ArtistCount += accepted
	}

	e.logger.Info("aggregated profiles",
		"profiles", len(profiles), "invalid", len(result.InvalidProfiles),
		"songs", result.SongCount, "artist_tracks", result.ArtistCount, "skipped", len(result.Skipped))
	return result, nil
}

// fanOut runs resolve for indexes 0..n-1 on at most Workers goroutines and
// returns the outcomes by index. It fails only on a request-fatal error.
func (e *PlaylistEngine) fanOut(
	ctx context.Context,
	n int,
	resolve func(context.Context, int) outcome,
	update func(int, outcome) ProgressUpdate,
	progress chan<- ProgressUpdate,
) ([]outcome, error) {
	outcomes := make([]outcome, n)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range n {
		g.Go(func() error {
			o := resolve(gctx, i)
			if o.err != nil && shared.IsFatal(o.err) {
				return o.err
			}
			outcomes[i] = o
			step := int(done.Add(1))
			u := update(i+1, o)
			u.Step = step
			e.sendProgress(progress, u)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Generate aggregates profiles, creates the playlist and records the run.
func (e *PlaylistEngine) Generate(ctx context.Context, profiles []models.UserMusicProfile, progress chan<- ProgressUpdate) (*GenerateResult, error) {
	run := models.NewRun(shared.GenerateID())
	logger := shared.WithLogger(e.logger, "run", run.ID())

	agg, err := e.Aggregate(ctx, profiles, progress)
	var playlistID string
	if err == nil {
		playlistID, err = e.Assemble(ctx, agg.URIs(), progress)
	}

	e.record(logger, run, len(profiles), agg, playlistID, err)
	if err != nil {
		logger.Error("playlist generation failed", "err", err)
		return nil, err
	}

	e.sendProgress(progress, doneUpdate(playlistID, agg.Entries))
	logger.Info("playlist generated", "playlist", playlistID, "tracks", len(agg.Entries))
	return &GenerateResult{RunID: run.ID(), PlaylistID: playlistID, AggregateResult: agg}, nil
}

func (e *PlaylistEngine) record(logger *log.Logger, run *models.Run, profiles int, agg *AggregateResult, playlistID string, err error) {
	if e.recorder == nil {
		return
	}

	run.ProfileCount = profiles
	run.PlaylistID = playlistID
	run.Status = models.RunSucceeded
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
	}
	if agg != nil {
		run.SongCount = agg.SongCount
		run.ArtistCount = agg.ArtistCount
		run.SkippedCount = len(agg.Skipped)
		run.Tracks = agg.Entries
	}

	if rerr := e.recorder.RecordRun(run); rerr != nil {
		logger.Warn("failed to record run", "err", rerr)
	}
}
