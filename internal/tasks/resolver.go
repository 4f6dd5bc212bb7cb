package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/anrath/SquadSpotifyWrapped/internal/matcher"
	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/services"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const (
	// SearchLimit is the number of candidates requested per search.
	SearchLimit = 20
	// ArtistTopN is how many of an artist's top tracks are considered.
	ArtistTopN = 5
)

// Resolver maps profile entries to catalog tracks.
type Resolver struct {
	catalog services.Catalog
	logger  *log.Logger
}

func NewResolver(catalog services.Catalog, logger *log.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// ResolveSong searches for song and picks a candidate with [matcher.Best],
// preferring tracks credited to one of topArtists.
//
// Failures other than rate limiting and timeouts are reported as
// [shared.ErrNoMatch] so the caller can skip the song.
func (r *Resolver) ResolveSong(ctx context.Context, song string, topArtists []string) (models.CandidateTrack, error) {
	q := models.ParseSongQuery(song)
	if q.Title == "" {
		return models.CandidateTrack{}, fmt.Errorf("%w: empty song title", shared.ErrNoMatch)
	}

	candidates, err := r.catalog.SearchTracks(ctx, q.Title, SearchLimit)
	if err != nil {
		return models.CandidateTrack{}, r.degrade("song", song, err)
	}

	best, ok := matcher.Best(matcher.Score(q, candidates), topArtists)
	if !ok {
		return models.CandidateTrack{}, fmt.Errorf("%w: no results for song %q", shared.ErrNoMatch, song)
	}

	r.logger.Debug("resolved song",
		"song", song, "track", best.Track.Name, "id", best.Track.ID,
		"distance", best.Distance, "relevant", best.IsRelevant, "truncated", q.Truncated)
	return best.Track, nil
}

// ResolveArtist returns up to [ArtistTopN] top tracks of the first artist
// matching artist.
func (r *Resolver) ResolveArtist(ctx context.Context, artist string) ([]models.CandidateTrack, error) {
	name := strings.TrimSpace(artist)
	if name == "" {
		return nil, fmt.Errorf("%w: empty artist name", shared.ErrNoMatch)
	}

	artists, err := r.catalog.SearchArtists(ctx, "artist:"+name, SearchLimit)
	if err != nil {
		return nil, r.degrade("artist", artist, err)
	}
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: no results for artist %q", shared.ErrNoMatch, artist)
	}

	tracks, err := r.catalog.ArtistTopTracks(ctx, artists[0].ID)
	if err != nil {
		return nil, r.degrade("artist", artist, err)
	}

	r.logger.Debug("resolved artist", "artist", artist, "id", artists[0].ID, "tracks", len(tracks))
	return tracks[:min(ArtistTopN, len(tracks))], nil
}

// degrade keeps request-fatal errors and folds everything else into ErrNoMatch.
func (r *Resolver) degrade(kind, item string, err error) error {
	err = shared.Classify(err)
	if shared.IsFatal(err) {
		return err
	}
	r.logger.Warn("catalog lookup failed, skipping", kind, item, "err", err)
	return fmt.Errorf("%w: %s %q: %v", shared.ErrNoMatch, kind, item, err)
}
