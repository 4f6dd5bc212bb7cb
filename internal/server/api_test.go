package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
	"github.com/anrath/SquadSpotifyWrapped/internal/tasks"
)

type fakeGenerator struct {
	mu       sync.Mutex
	profiles []models.UserMusicProfile
	deadline bool
	fn       func(ctx context.Context) (*tasks.GenerateResult, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, profiles []models.UserMusicProfile, _ chan<- tasks.ProgressUpdate) (*tasks.GenerateResult, error) {
	g.mu.Lock()
	g.profiles = profiles
	_, g.deadline = ctx.Deadline()
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(ctx)
	}
	return &tasks.GenerateResult{PlaylistID: "playlist-1", AggregateResult: &tasks.AggregateResult{}}, nil
}

type fakePlayer struct {
	np  *models.NowPlaying
	err error
}

func (p fakePlayer) NowPlaying(context.Context) (*models.NowPlaying, error) { return p.np, p.err }

func newTestServer(t *testing.T, gen Generator, player *fakePlayer, timeout time.Duration) *httptest.Server {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	var api *API
	if player != nil {
		api = NewAPI(gen, *player, timeout, logger)
	} else {
		api = NewAPI(gen, nil, timeout, logger)
	}
	srv := New(shared.ServerConfig{AllowedOrigins: []string{"*"}}, api, logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

const validBody = `{"data":[{"Top Artists":["A1","A2","A3","A4","A5"],"Top Songs":["S1","S2","S3","S4","S5"]}]}`

func TestCreatePlaylist(t *testing.T) {
	t.Run("returns playlist id", func(t *testing.T) {
		gen := &fakeGenerator{}
		ts := newTestServer(t, gen, nil, time.Minute)

		resp, err := http.Post(ts.URL+"/api/playlists", "application/json", strings.NewReader(validBody))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body := decode(t, resp); body["playlistId"] != "playlist-1" {
			t.Errorf("unexpected body %v", body)
		}
		gen.mu.Lock()
		defer gen.mu.Unlock()
		if len(gen.profiles) != 1 || gen.profiles[0].TopSongs[4] != "S5" {
			t.Errorf("profiles not passed through: %+v", gen.profiles)
		}
		if !gen.deadline {
			t.Error("expected request timeout to be applied")
		}
	})

	t.Run("rejects empty and malformed input", func(t *testing.T) {
		ts := newTestServer(t, &fakeGenerator{}, nil, 0)

		for name, body := range map[string]string{
			"empty data": `{"data":[]}`,
			"missing":    `{}`,
			"malformed":  `{"data":`,
		} {
			t.Run(name, func(t *testing.T) {
				resp, err := http.Post(ts.URL+"/api/playlists", "application/json", strings.NewReader(body))
				if err != nil {
					t.Fatalf("request failed: %v", err)
				}
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", resp.StatusCode)
				}
				if decode(t, resp)["error"] == nil {
					t.Error("expected error message")
				}
			})
		}
	})

	t.Run("maps errors to status codes", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			msg    string
		}{
			{fmt.Errorf("%w: gave up", shared.ErrRateLimited), http.StatusTooManyRequests, "try again in a minute"},
			{fmt.Errorf("%w: deadline", shared.ErrTimeout), http.StatusGatewayTimeout, "try again"},
			{fmt.Errorf("%w: nothing to add", shared.ErrNoTracks), http.StatusUnprocessableEntity, "no tracks resolved"},
			{fmt.Errorf("%w: 403", shared.ErrExternalService), http.StatusInternalServerError, "Failed to create playlist"},
		}

		for _, tc := range cases {
			t.Run(http.StatusText(tc.status), func(t *testing.T) {
				gen := &fakeGenerator{fn: func(context.Context) (*tasks.GenerateResult, error) { return nil, tc.err }}
				ts := newTestServer(t, gen, nil, 0)

				resp, err := http.Post(ts.URL+"/api/playlists", "application/json", strings.NewReader(validBody))
				if err != nil {
					t.Fatalf("request failed: %v", err)
				}
				if resp.StatusCode != tc.status {
					t.Errorf("expected %d, got %d", tc.status, resp.StatusCode)
				}
				msg, _ := decode(t, resp)["error"].(string)
				if !strings.Contains(msg, tc.msg) {
					t.Errorf("expected message containing %q, got %q", tc.msg, msg)
				}
			})
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		ts := newTestServer(t, &fakeGenerator{}, nil, 0)

		resp, err := http.Get(ts.URL + "/api/playlists")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("recovers from panics", func(t *testing.T) {
		gen := &fakeGenerator{fn: func(context.Context) (*tasks.GenerateResult, error) { panic("boom") }}
		ts := newTestServer(t, gen, nil, 0)

		resp, err := http.Post(ts.URL+"/api/playlists", "application/json", strings.NewReader(validBody))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})
}

func TestParseEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeGenerator{}, nil, 0)

	post := func(t *testing.T, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+"/api/parse", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp
	}

	t.Run("combined", func(t *testing.T) {
		text := "Top Artists Top Songs 1 Drake 1 One Dance 2 SZA 2 Kill Bill 3 Tame Impala 3 Let It Happen 4 Mitski 4 Nobody 5 Frank Ocean 5 Ivy Minutes Listened 12,345"
		body, _ := json.Marshal(map[string]string{"layout": "combined", "text": text})

		resp := post(t, string(body))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		got := decode(t, resp)
		if got["structured"] != true {
			t.Fatalf("expected structured result, got %v", got)
		}
		profile := got["profile"].(map[string]any)
		if songs := profile["Top Songs"].([]any); songs[4] != "Ivy" {
			t.Errorf("unexpected songs %v", songs)
		}
	})

	t.Run("unstructured", func(t *testing.T) {
		resp := post(t, `{"layout":"dual","left":"hello  world","right":"nothing"}`)
		got := decode(t, resp)
		if got["structured"] != false || got["profile"] != nil {
			t.Errorf("expected unstructured result, got %v", got)
		}
		if got["raw"] != "hello world\n\nnothing" {
			t.Errorf("unexpected raw text %q", got["raw"])
		}
	})

	t.Run("bad layout", func(t *testing.T) {
		resp := post(t, `{"layout":"diagonal","text":"x"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("no text", func(t *testing.T) {
		resp := post(t, `{"layout":"combined"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestNowPlayingEndpoint(t *testing.T) {
	get := func(t *testing.T, ts *httptest.Server) (*http.Response, map[string]any) {
		t.Helper()
		resp, err := http.Get(ts.URL + "/api/now-playing")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp, decode(t, resp)
	}

	t.Run("playing", func(t *testing.T) {
		np := &models.NowPlaying{IsPlaying: true, Title: "Ivy", Artist: "Frank Ocean", SongURL: "https://open.spotify.com/track/1"}
		ts := newTestServer(t, &fakeGenerator{}, &fakePlayer{np: np}, 0)

		resp, body := get(t, ts)
		if resp.StatusCode != http.StatusOK || body["isPlaying"] != true || body["title"] != "Ivy" || body["songUrl"] == nil {
			t.Errorf("unexpected response %d %v", resp.StatusCode, body)
		}
	})

	t.Run("upstream failure reports idle", func(t *testing.T) {
		ts := newTestServer(t, &fakeGenerator{}, &fakePlayer{err: fmt.Errorf("%w: 502", shared.ErrExternalService)}, 0)

		resp, body := get(t, ts)
		if resp.StatusCode != http.StatusOK || body["isPlaying"] != false {
			t.Errorf("unexpected response %d %v", resp.StatusCode, body)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		ts := newTestServer(t, &fakeGenerator{}, &fakePlayer{err: fmt.Errorf("%w: gave up", shared.ErrRateLimited)}, 0)

		resp, _ := get(t, ts)
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", resp.StatusCode)
		}
	})

	t.Run("no player", func(t *testing.T) {
		ts := newTestServer(t, &fakeGenerator{}, nil, 0)

		_, body := get(t, ts)
		if body["isPlaying"] != false {
			t.Errorf("unexpected body %v", body)
		}
	})
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer(t, &fakeGenerator{}, nil, 0)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if body := decode(t, resp); body["status"] != "ok" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/playlists", nil)
		req.Header.Set("Origin", "https://spotify.kasralekan.com")
		req.Header.Set("Access-Control-Request-Method", "POST")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected 204, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("unexpected allow origin %q", got)
		}
	})
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := CORS([]string{"https://allowed.example"})(next)

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://allowed.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example" {
			t.Errorf("unexpected allow origin %q", got)
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected request to reach handler, got %d", rec.Code)
		}
	})

	t.Run("other origins get no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow origin, got %q", got)
		}
	})
}

func TestErrorMessage(t *testing.T) {
	if msg := errorMessage(http.StatusServiceUnavailable, errors.New("x")); !strings.Contains(msg, "credentials") {
		t.Errorf("unexpected message %q", msg)
	}
}
