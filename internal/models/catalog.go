package models

import "strings"

var truncationMarkers = []string{"...", "…"}

// SongQuery is a profile song title prepared for catalog search.
type SongQuery struct {
	Title     string
	Truncated bool
}

// ParseSongQuery trims s and strips a trailing ellipsis, remembering that the
// title was cut off. Applying it to an already stripped title is a no-op.
func ParseSongQuery(s string) SongQuery {
	title := strings.TrimSpace(s)
	for _, marker := range truncationMarkers {
		if strings.HasSuffix(title, marker) {
			return SongQuery{Title: strings.TrimSpace(strings.TrimSuffix(title, marker)), Truncated: true}
		}
	}
	return SongQuery{Title: title}
}

type ArtistRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// CandidateTrack is a catalog search hit.
type CandidateTrack struct {
	ID      string      `json:"id"`
	URI     string      `json:"uri"`
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists"`
}

// ArtistNames returns the credited artist names in catalog order.
func (t CandidateTrack) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// HasArtist reports whether any credited artist equals one of names, ignoring case.
func (t CandidateTrack) HasArtist(names []string) bool {
	for _, a := range t.Artists {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(n)) {
				return true
			}
		}
	}
	return false
}

type CandidateArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatchResult is a candidate scored against a [SongQuery].
type MatchResult struct {
	Track      CandidateTrack
	Distance   int
	IsRelevant bool
}

// Source records which phase accepted a track.
type Source string

const (
	SourceSong   Source = "song"
	SourceArtist Source = "artist"
)

// PlaylistEntry is a track accepted into the aggregate, with the profile text it came from.
type PlaylistEntry struct {
	Track   CandidateTrack `json:"track"`
	Source  Source         `json:"source"`
	Query   string         `json:"query"`
	Profile int            `json:"profile"`
}

// NowPlaying describes the account's current playback.
type NowPlaying struct {
	IsPlaying     bool   `json:"isPlaying"`
	Title         string `json:"title,omitempty"`
	Artist        string `json:"artist,omitempty"`
	Album         string `json:"album,omitempty"`
	AlbumImageURL string `json:"albumImageUrl,omitempty"`
	SongURL       string `json:"songUrl,omitempty"`
}
