// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
)

// FakeCatalog is an in-memory [services.Catalog] and [services.Player].
//
// Searches are answered from the maps keyed by the exact query; missing keys
// return no results. Every call is recorded in Calls.
type FakeCatalog struct {
	Tracks    map[string][]models.CandidateTrack  // track search query → results
	Artists   map[string][]models.CandidateArtist // artist search query → results
	TopTracks map[string][]models.CandidateTrack  // artist ID → top tracks
	Errors    map[string]error                    // query or artist ID → error

	PlaylistID string
	CreateErr  error
	AddErr     error
	Playing    *models.NowPlaying
	Delay      time.Duration // per search call, honors ctx

	mu          sync.Mutex
	Calls       []string
	Created     []string   // playlist names
	Batches     [][]string // AddTracks payloads in call order
	inFlight    int
	MaxInFlight int
}

func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{
		Tracks:     map[string][]models.CandidateTrack{},
		Artists:    map[string][]models.CandidateArtist{},
		TopTracks:  map[string][]models.CandidateTrack{},
		Errors:     map[string]error{},
		PlaylistID: "playlist-1",
	}
}

// Track builds a candidate with URI "spotify:track:<id>".
func Track(id, name string, artists ...string) models.CandidateTrack {
	refs := make([]models.ArtistRef, len(artists))
	for i, a := range artists {
		refs[i] = models.ArtistRef{Name: a}
	}
	return models.CandidateTrack{ID: id, URI: "spotify:track:" + id, Name: name, Artists: refs}
}

func (f *FakeCatalog) Name() string { return "fake" }

func (f *FakeCatalog) enter(ctx context.Context, call string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.inFlight++
	f.MaxInFlight = max(f.MaxInFlight, f.inFlight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	return ctx.Err()
}

func (f *FakeCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	if err := f.enter(ctx, "track:"+query); err != nil {
		return nil, err
	}
	if err := f.Errors[query]; err != nil {
		return nil, err
	}
	res := f.Tracks[query]
	return res[:min(limit, len(res))], nil
}

func (f *FakeCatalog) SearchArtists(ctx context.Context, query string, limit int) ([]models.CandidateArtist, error) {
	if err := f.enter(ctx, "artist:"+query); err != nil {
		return nil, err
	}
	if err := f.Errors[query]; err != nil {
		return nil, err
	}
	res := f.Artists[query]
	return res[:min(limit, len(res))], nil
}

func (f *FakeCatalog) ArtistTopTracks(ctx context.Context, artistID string) ([]models.CandidateTrack, error) {
	if err := f.enter(ctx, "top:"+artistID); err != nil {
		return nil, err
	}
	if err := f.Errors[artistID]; err != nil {
		return nil, err
	}
	return f.TopTracks[artistID], nil
}

func (f *FakeCatalog) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "create:"+name)
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.Created = append(f.Created, name)
	return f.PlaylistID, nil
}

func (f *FakeCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "add:"+playlistID)
	if f.AddErr != nil {
		return f.AddErr
	}
	f.Batches = append(f.Batches, append([]string(nil), uris...))
	return nil
}

func (f *FakeCatalog) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	if f.Playing == nil {
		return &models.NowPlaying{}, nil
	}
	return f.Playing, nil
}

// CallCount returns how many recorded calls start with prefix.
func (f *FakeCatalog) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
