package tasks

import (
	"fmt"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
)

// ProgressUpdate represents a progress event during playlist generation.
//
// Used to send real-time updates to the CLI or server logs for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ValidateProfiles Phase = iota
	ResolveSongs
	ResolveArtists
	CreatePlaylist
	AddTracks
	Done
)

func (p Phase) String() string {
	switch p {
	case ValidateProfiles:
		return "validate_profiles"
	case ResolveSongs:
		return "resolve_songs"
	case ResolveArtists:
		return "resolve_artists"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case Done:
		return "done"
	default:
		return ""
	}
}

func invalidProfileUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateProfiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] skipping profile: %v", step, total, err),
	}
}

func songUpdate(step, total int, song string, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s", step, total, song)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, song, err)
	}
	return ProgressUpdate{Phase: ResolveSongs, Step: step, Total: total, Message: msg}
}

func artistUpdate(step, total int, artist string, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%d top tracks)", step, total, artist, found),
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func addTracksUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] added %d tracks", step, total, count),
	}
}

func doneUpdate(playlistID string, entries []models.PlaylistEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist %s ready with %d tracks", playlistID, len(entries)),
		Data:    entries,
	}
}
