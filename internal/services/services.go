// package services defines the catalog interfaces the playlist engine talks to
//
// Spotify (via github.com/zmb3/spotify/v2)
package services

import (
	"context"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
)

// MaxBatchSize is the largest number of tracks a single add call accepts.
const MaxBatchSize = 100

// Service is implemented by every catalog provider.
type Service interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Catalog is the search and playlist surface the engine needs.
//
// Errors are classified into the shared pipeline sentinels: rate limiting
// that outlasted retries is [shared.ErrRateLimited], an expired context is
// [shared.ErrTimeout], anything else is [shared.ErrExternalService].
type Catalog interface {
	Service

	// SearchTracks runs a free-text track search and returns at most limit hits in catalog order.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)

	// SearchArtists runs an artist search and returns at most limit hits in catalog order.
	SearchArtists(ctx context.Context, query string, limit int) ([]models.CandidateArtist, error)

	// ArtistTopTracks returns the artist's most popular tracks in the configured market.
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.CandidateTrack, error)

	// CreatePlaylist creates a public playlist and returns its ID.
	CreatePlaylist(ctx context.Context, name, description string) (string, error)

	// AddTracks appends up to [MaxBatchSize] track URIs to a playlist.
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// Player reports what the account is listening to.
type Player interface {
	NowPlaying(ctx context.Context) (*models.NowPlaying, error)
}
