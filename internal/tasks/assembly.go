package tasks

import (
	"context"
	"fmt"

	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

// Assemble creates the playlist and adds uris in batches of at most
// BatchSize, preserving order. An empty list fails with [shared.ErrNoTracks]
// before anything is created.
func (e *PlaylistEngine) Assemble(ctx context.Context, uris []string, progress chan<- ProgressUpdate) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: nothing to add to the playlist", shared.ErrNoTracks)
	}

	e.sendProgress(progress, createPlaylistUpdate(e.opts.PlaylistName))
	playlistID, err := e.catalog.CreatePlaylist(ctx, e.opts.PlaylistName, e.opts.PlaylistDescription)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", shared.Classify(err))
	}

	batches := Chunk(uris, e.opts.BatchSize)
	for i, batch := range batches {
		if err := e.catalog.AddTracks(ctx, playlistID, batch); err != nil {
			return "", fmt.Errorf("failed to add tracks to playlist %s (batch %d/%d): %w",
				playlistID, i+1, len(batches), shared.Classify(err))
		}
		e.sendProgress(progress, addTracksUpdate(i+1, len(batches), len(batch)))
	}

	e.logger.Info("playlist assembled", "playlist", playlistID, "tracks", len(uris), "batches", len(batches))
	return playlistID, nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
