package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
	tu "github.com/anrath/SquadSpotifyWrapped/internal/testing"
)

func profile(prefix string) models.UserMusicProfile {
	p := models.UserMusicProfile{}
	for i := 1; i <= models.ProfileSize; i++ {
		p.TopArtists = append(p.TopArtists, fmt.Sprintf("%s Artist %d", prefix, i))
		p.TopSongs = append(p.TopSongs, fmt.Sprintf("%s Song %d", prefix, i))
	}
	return p
}

// seed makes every song resolve to "song:<title>" and every artist to five
// top tracks "<artist>#1".."<artist>#5".
func seed(fc *tu.FakeCatalog, profiles ...models.UserMusicProfile) {
	for _, p := range profiles {
		for _, s := range p.TopSongs {
			fc.Tracks[s] = []models.CandidateTrack{tu.Track("song:"+s, s, "Someone")}
		}
		for _, a := range p.TopArtists {
			fc.Artists["artist:"+a] = []models.CandidateArtist{{ID: "id:" + a, Name: a}}
			var top []models.CandidateTrack
			for i := 1; i <= 5; i++ {
				top = append(top, tu.Track(fmt.Sprintf("%s#%d", a, i), fmt.Sprintf("%s hit %d", a, i), a))
			}
			fc.TopTracks["id:"+a] = top
		}
	}
}

func ids(entries []models.PlaylistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Track.ID
	}
	return out
}

type recorder struct {
	mu   sync.Mutex
	runs []*models.Run
	err  error
}

func (r *recorder) RecordRun(run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func newEngine(fc *tu.FakeCatalog, opts EngineOpts, rec RunRecorder) *PlaylistEngine {
	return NewPlaylistEngine(fc, opts, shared.NewLogger(io.Discard), rec)
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("songs before artist tracks in profile and rank order", func(t *testing.T) {
		a, b := profile("A"), profile("B")
		fc := tu.NewFakeCatalog()
		seed(fc, a, b)

		res, err := newEngine(fc, EngineOpts{Workers: 4}, nil).Aggregate(ctx, []models.UserMusicProfile{a, b}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var want []string
		for _, p := range []models.UserMusicProfile{a, b} {
			for _, s := range p.TopSongs {
				want = append(want, "song:"+s)
			}
		}
		for _, p := range []models.UserMusicProfile{a, b} {
			for _, art := range p.TopArtists {
				want = append(want, art+"#1", art+"#2", art+"#3")
			}
		}

		if got := ids(res.Entries); !slices.Equal(got, want) {
			t.Errorf("entries =\n%v\nwant\n%v", got, want)
		}
		if res.SongCount != 10 || res.ArtistCount != 30 || len(res.Skipped) != 0 {
			t.Errorf("unexpected counts %+v", res)
		}
		if res.Entries[0].Source != models.SourceSong || res.Entries[10].Source != models.SourceArtist {
			t.Error("expected entries to record their source phase")
		}
	})

	t.Run("deduplicates across users", func(t *testing.T) {
		a, b := profile("A"), profile("B")
		b.TopSongs[2] = a.TopSongs[0]
		b.TopArtists[4] = a.TopArtists[1]
		fc := tu.NewFakeCatalog()
		seed(fc, a, b)

		res, err := newEngine(fc, EngineOpts{}, nil).Aggregate(ctx, []models.UserMusicProfile{a, b}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		seen := map[string]bool{}
		for _, id := range ids(res.Entries) {
			if seen[id] {
				t.Errorf("duplicate track %s", id)
			}
			seen[id] = true
		}
		if res.SongCount != 9 {
			t.Errorf("expected 9 distinct songs, got %d", res.SongCount)
		}
		if res.ArtistCount != 29 {
			t.Errorf("expected 29 artist tracks, got %d", res.ArtistCount)
		}
	})

	t.Run("artist cap counts only new tracks", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		seed(fc, p)
		// the first two top tracks of artist 1 are also the user's top songs
		art := p.TopArtists[0]
		fc.TopTracks["id:"+art][0] = tu.Track("song:"+p.TopSongs[0], p.TopSongs[0], art)
		fc.TopTracks["id:"+art][1] = tu.Track("song:"+p.TopSongs[1], p.TopSongs[1], art)

		res, err := newEngine(fc, EngineOpts{}, nil).Aggregate(ctx, []models.UserMusicProfile{p}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := ids(res.Entries)[5:8]
		want := []string{art + "#3", art + "#4", art + "#5"}
		if !slices.Equal(got, want) {
			t.Errorf("artist tracks = %v, want %v", got, want)
		}
	})

	t.Run("output is independent of worker count", func(t *testing.T) {
		profiles := []models.UserMusicProfile{profile("A"), profile("B"), profile("C")}
		fc := tu.NewFakeCatalog()
		seed(fc, profiles...)

		serial, err := newEngine(fc, EngineOpts{Workers: 1}, nil).Aggregate(ctx, profiles, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		parallel, err := newEngine(fc, EngineOpts{Workers: 16}, nil).Aggregate(ctx, profiles, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !slices.Equal(ids(serial.Entries), ids(parallel.Entries)) {
			t.Error("worker count changed the output")
		}
	})

	t.Run("bounds concurrent lookups", func(t *testing.T) {
		profiles := []models.UserMusicProfile{profile("A"), profile("B")}
		fc := tu.NewFakeCatalog()
		fc.Delay = 5 * time.Millisecond
		seed(fc, profiles...)

		if _, err := newEngine(fc, EngineOpts{Workers: 3}, nil).Aggregate(ctx, profiles, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fc.MaxInFlight > 3 {
			t.Errorf("expected at most 3 concurrent lookups, saw %d", fc.MaxInFlight)
		}
	})

	t.Run("skips invalid profiles", func(t *testing.T) {
		good, bad := profile("A"), profile("B")
		bad.TopSongs = bad.TopSongs[:3]
		fc := tu.NewFakeCatalog()
		seed(fc, good, bad)

		res, err := newEngine(fc, EngineOpts{}, nil).Aggregate(ctx, []models.UserMusicProfile{bad, good}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(res.InvalidProfiles, []int{0}) {
			t.Errorf("expected profile 0 to be invalid, got %v", res.InvalidProfiles)
		}
		if res.SongCount != 5 || res.Entries[0].Profile != 1 {
			t.Errorf("unexpected result %+v", res)
		}
		if fc.CallCount("track:B") != 0 {
			t.Error("invalid profiles should not be searched")
		}
	})

	t.Run("skips unresolved entries", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		seed(fc, p)
		delete(fc.Tracks, p.TopSongs[3])
		fc.Errors[p.TopSongs[4]] = errors.New("upstream 500")
		delete(fc.Artists, "artist:"+p.TopArtists[0])

		res, err := newEngine(fc, EngineOpts{}, nil).Aggregate(ctx, []models.UserMusicProfile{p}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.SongCount != 3 || res.ArtistCount != 12 {
			t.Errorf("unexpected counts songs=%d artists=%d", res.SongCount, res.ArtistCount)
		}
		if len(res.Skipped) != 3 {
			t.Fatalf("expected 3 skipped entries, got %+v", res.Skipped)
		}
		if res.Skipped[0].Query != p.TopSongs[3] || res.Skipped[2].Source != models.SourceArtist {
			t.Errorf("unexpected skipped entries %+v", res.Skipped)
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := newEngine(tu.NewFakeCatalog(), EngineOpts{}, nil).Aggregate(ctx, nil, nil)
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rate limiting aborts", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		seed(fc, p)
		fc.Errors[p.TopSongs[2]] = fmt.Errorf("%w: gave up", shared.ErrRateLimited)

		_, err := newEngine(fc, EngineOpts{}, nil).Aggregate(ctx, []models.UserMusicProfile{p}, nil)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if fc.CallCount("artist:") != 0 {
			t.Error("artist phase should not start after a fatal error")
		}
	})

	t.Run("deadline aborts with timeout", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		fc.Delay = time.Second
		seed(fc, p)

		dctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := newEngine(fc, EngineOpts{}, nil).Aggregate(dctx, []models.UserMusicProfile{p}, nil)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("progress never blocks", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		seed(fc, p)
		progress := make(chan ProgressUpdate, 1)

		if _, err := newEngine(fc, EngineOpts{}, nil).Aggregate(ctx, []models.UserMusicProfile{p}, progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u := <-progress; u.Phase != ResolveSongs || u.Total != 5 {
			t.Errorf("unexpected first update %+v", u)
		}
	})
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()

	uris := make([]string, 250)
	for i := range uris {
		uris[i] = fmt.Sprintf("spotify:track:%d", i)
	}

	t.Run("creates then adds in batches", func(t *testing.T) {
		fc := tu.NewFakeCatalog()
		id, err := newEngine(fc, EngineOpts{}, nil).Assemble(ctx, uris, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "playlist-1" {
			t.Errorf("unexpected playlist id %q", id)
		}
		if !slices.Equal(fc.Created, []string{DefaultPlaylistName}) {
			t.Errorf("unexpected created playlists %v", fc.Created)
		}
		if len(fc.Batches) != 3 || len(fc.Batches[0]) != 100 || len(fc.Batches[2]) != 50 {
			t.Fatalf("unexpected batches %d", len(fc.Batches))
		}
		if !slices.Equal(slices.Concat(fc.Batches...), uris) {
			t.Error("batches should preserve order")
		}
		if fc.Calls[0] != "create:"+DefaultPlaylistName {
			t.Errorf("playlist must be created before adding, calls %v", fc.Calls[:2])
		}
	})

	t.Run("honors smaller batch size", func(t *testing.T) {
		fc := tu.NewFakeCatalog()
		if _, err := newEngine(fc, EngineOpts{BatchSize: 40}, nil).Assemble(ctx, uris[:100], nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fc.Batches) != 3 {
			t.Errorf("expected 3 batches of at most 40, got %d", len(fc.Batches))
		}
	})

	t.Run("empty list creates nothing", func(t *testing.T) {
		fc := tu.NewFakeCatalog()
		_, err := newEngine(fc, EngineOpts{}, nil).Assemble(ctx, nil, nil)
		if !errors.Is(err, shared.ErrNoTracks) {
			t.Errorf("expected ErrNoTracks, got %v", err)
		}
		if len(fc.Calls) != 0 {
			t.Errorf("expected no catalog calls, got %v", fc.Calls)
		}
	})

	t.Run("create failure is fatal", func(t *testing.T) {
		fc := tu.NewFakeCatalog()
		fc.CreateErr = errors.New("forbidden")
		_, err := newEngine(fc, EngineOpts{}, nil).Assemble(ctx, uris, nil)
		if !errors.Is(err, shared.ErrExternalService) {
			t.Errorf("expected ErrExternalService, got %v", err)
		}
		if len(fc.Batches) != 0 {
			t.Error("no tracks should be added without a playlist")
		}
	})

	t.Run("add failure is fatal", func(t *testing.T) {
		fc := tu.NewFakeCatalog()
		fc.AddErr = fmt.Errorf("%w: gave up", shared.ErrRateLimited)
		_, err := newEngine(fc, EngineOpts{}, nil).Assemble(ctx, uris, nil)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("records successful runs", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		seed(fc, p)
		rec := &recorder{}
		progress := make(chan ProgressUpdate, 100)

		res, err := newEngine(fc, EngineOpts{}, rec).Generate(ctx, []models.UserMusicProfile{p}, progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.PlaylistID != "playlist-1" || len(res.URIs()) != 20 || res.RunID == "" {
			t.Errorf("unexpected result %+v", res)
		}

		if len(rec.runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(rec.runs))
		}
		run := rec.runs[0]
		if run.ID() != res.RunID || run.Status != models.RunSucceeded || run.SongCount != 5 || len(run.Tracks) != 20 {
			t.Errorf("unexpected run %+v", run)
		}

		close(progress)
		var last ProgressUpdate
		for u := range progress {
			last = u
		}
		if last.Phase != Done {
			t.Errorf("expected final update to be done, got %v", last.Phase)
		}
	})

	t.Run("records failures and ignores recorder errors", func(t *testing.T) {
		p := profile("A")
		p.TopSongs = nil
		fc := tu.NewFakeCatalog()
		rec := &recorder{err: errors.New("disk full")}

		_, err := newEngine(fc, EngineOpts{}, rec).Generate(ctx, []models.UserMusicProfile{p}, nil)
		if !errors.Is(err, shared.ErrNoTracks) {
			t.Fatalf("expected ErrNoTracks, got %v", err)
		}
		if len(rec.runs) != 1 || rec.runs[0].Status != models.RunFailed || rec.runs[0].Error == "" {
			t.Errorf("expected failed run to be recorded, got %+v", rec.runs)
		}
		if len(fc.Created) != 0 {
			t.Error("no playlist should be created")
		}
	})

	t.Run("custom playlist name", func(t *testing.T) {
		p := profile("A")
		fc := tu.NewFakeCatalog()
		seed(fc, p)

		opts := OptsFromConfig(shared.EngineConfig{PlaylistName: "Friday Mix", Workers: 2})
		if _, err := newEngine(fc, opts, nil).Generate(ctx, []models.UserMusicProfile{p}, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(fc.Created, []string{"Friday Mix"}) {
			t.Errorf("unexpected created playlists %v", fc.Created)
		}
	})
}

func TestPhase(t *testing.T) {
	for p, want := range map[Phase]string{ResolveSongs: "resolve_songs", AddTracks: "add_tracks", Phase(99): ""} {
		if p.String() != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, p.String(), want)
		}
	}
}
