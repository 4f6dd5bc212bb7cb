package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/normalizer"
	"github.com/anrath/SquadSpotifyWrapped/internal/services"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
	"github.com/anrath/SquadSpotifyWrapped/internal/tasks"
)

const maxBodyBytes = 1 << 20

// Generator builds a playlist from profiles. Implemented by [tasks.PlaylistEngine].
type Generator interface {
	Generate(ctx context.Context, profiles []models.UserMusicProfile, progress chan<- tasks.ProgressUpdate) (*tasks.GenerateResult, error)
}

// API serves the playlist, parse, now-playing and health endpoints.
type API struct {
	generator Generator
	player    services.Player
	timeout   time.Duration
	logger    *log.Logger
}

// NewAPI creates the API. player may be nil, in which case now-playing
// always reports idle. A timeout of zero disables the per-request deadline.
func NewAPI(generator Generator, player services.Player, timeout time.Duration, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{generator: generator, player: player, timeout: timeout, logger: logger}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodPost, "/api/playlists", http.HandlerFunc(a.handleCreatePlaylist))
	r.Handle(http.MethodPost, "/api/parse", http.HandlerFunc(a.handleParse))
	r.Handle(http.MethodGet, "/api/now-playing", http.HandlerFunc(a.handleNowPlaying))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.handleHealth))
}

type playlistResponse struct {
	PlaylistID string `json:"playlistId"`
}

func (a *API) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req models.PlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.logger.Warn("rejected playlist request", "err", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Profiles) == 0 {
		writeError(w, http.StatusBadRequest, "No input data provided")
		return
	}

	ctx := r.Context()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := a.generator.Generate(ctx, req.Profiles, nil)
	if err != nil {
		status := shared.StatusCode(err)
		a.logger.Error("failed to create playlist", "status", status, "err", err)
		writeError(w, status, errorMessage(status, err))
		return
	}

	writeJSON(w, http.StatusOK, playlistResponse{PlaylistID: result.PlaylistID})
}

// errorMessage is the client-facing text for a failed generation.
func errorMessage(status int, err error) string {
	switch status {
	case http.StatusTooManyRequests:
		return "Spotify is rate limiting requests, try again in a minute"
	case http.StatusGatewayTimeout:
		return "Building the playlist took too long, try again in a minute"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "Spotify credentials are not configured"
	default:
		return "Failed to create playlist"
	}
}

type parseRequest struct {
	Layout string `json:"layout"`
	Text   string `json:"text"`
	Left   string `json:"left"`
	Right  string `json:"right"`
}

type parseResponse struct {
	Structured bool                     `json:"structured"`
	Profile    *models.UserMusicProfile `json:"profile"`
	Raw        string                   `json:"raw"`
}

func (a *API) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	layout, err := models.ParseLayout(req.Layout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw := models.RawExtraction{Text: req.Text, Layout: layout}
	if layout == models.LayoutDual {
		raw.Text, raw.Right = req.Left, req.Right
	}
	if raw.Text == "" && raw.Right == "" {
		writeError(w, http.StatusBadRequest, "No input data provided")
		return
	}

	result := normalizer.Parse(raw)
	resp := parseResponse{Structured: result.IsStructured(), Raw: result.Raw()}
	if p, err := normalizer.Require(result); err != nil {
		a.logger.Warn("profile text not structured", "layout", layout, "err", err)
	} else {
		resp.Profile = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	if a.player == nil {
		writeJSON(w, http.StatusOK, models.NowPlaying{})
		return
	}

	np, err := a.player.NowPlaying(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, np)
	case errors.Is(err, shared.ErrExternalService):
		a.logger.Warn("now playing unavailable", "err", err)
		writeJSON(w, http.StatusOK, models.NowPlaying{})
	default:
		status := shared.StatusCode(err)
		writeError(w, status, fmt.Sprintf("Failed to fetch now playing: %v", err))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
