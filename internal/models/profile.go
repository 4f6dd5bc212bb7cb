package models

import (
	"fmt"
	"strings"
)

// ProfileSize is the number of artists and songs in a well-formed profile.
const ProfileSize = 5

// UserMusicProfile is one user's listening summary. Positions are ranks 1..5.
type UserMusicProfile struct {
	TopArtists []string `json:"Top Artists"`
	TopSongs   []string `json:"Top Songs"`
}

// Validate fails unless both lists hold exactly [ProfileSize] non-empty entries.
func (p UserMusicProfile) Validate() error {
	if len(p.TopArtists) != ProfileSize {
		return fmt.Errorf("expected %d top artists, got %d", ProfileSize, len(p.TopArtists))
	}
	if len(p.TopSongs) != ProfileSize {
		return fmt.Errorf("expected %d top songs, got %d", ProfileSize, len(p.TopSongs))
	}
	for i := range ProfileSize {
		if strings.TrimSpace(p.TopArtists[i]) == "" {
			return fmt.Errorf("top artist %d is empty", i+1)
		}
		if strings.TrimSpace(p.TopSongs[i]) == "" {
			return fmt.Errorf("top song %d is empty", i+1)
		}
	}
	return nil
}

// Layout identifies how a screenshot arranges the two lists.
type Layout int

const (
	// LayoutCombined has one region with a "Top Artists Top Songs" header and
	// each rank's artist and song on the same row.
	LayoutCombined Layout = iota
	// LayoutDual has two side-by-side regions headed "Top Artists" and "Top Songs".
	LayoutDual
)

func (l Layout) String() string {
	switch l {
	case LayoutCombined:
		return "combined"
	case LayoutDual:
		return "dual"
	default:
		return "unknown"
	}
}

// ParseLayout accepts the names produced by [Layout.String].
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "combined", "":
		return LayoutCombined, nil
	case "dual":
		return LayoutDual, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

// RawExtraction is OCR output for one screenshot. Right is only used by [LayoutDual].
type RawExtraction struct {
	Text   string
	Right  string
	Layout Layout
}

// ParseResult is either a structured profile or the cleaned raw text the
// normalizer could not structure. The zero value is an empty unstructured result.
type ParseResult struct {
	profile    UserMusicProfile
	raw        string
	structured bool
}

func Structured(p UserMusicProfile) ParseResult {
	return ParseResult{profile: p, structured: true}
}

func Unstructured(raw string) ParseResult {
	return ParseResult{raw: raw}
}

// Profile returns the structured profile, or false for an unstructured result.
func (r ParseResult) Profile() (UserMusicProfile, bool) {
	return r.profile, r.structured
}

// Raw returns the cleaned text of an unstructured result, or "" when structured.
func (r ParseResult) Raw() string {
	return r.raw
}

func (r ParseResult) IsStructured() bool {
	return r.structured
}

// PlaylistRequest is the inbound request body: {"data": [profile, ...]}.
type PlaylistRequest struct {
	Profiles []UserMusicProfile `json:"data"`
}
