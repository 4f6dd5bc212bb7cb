// Spotify implementation of [Catalog] and [Player]
//
// Requests go through github.com/zmb3/spotify/v2 over an HTTP client that
// injects OAuth2 bearer tokens, waits on a shared rate limiter and reports
// 429 responses as [RateLimitError].
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const (
	defaultMarket  = "US"
	trackURIPrefix = "spotify:track:"
)

// SpotifyOpts configures a [SpotifyService]. Zero values fall back to
// production endpoints and the package defaults. A negative MaxRetries
// disables retrying rate-limited requests.
type SpotifyOpts struct {
	Credentials shared.SpotifyConfig

	RateLimit  float64 // requests per second
	RateBurst  int
	MaxRetries int

	BaseURL    string       // API root with trailing slash
	TokenURL   string       // OAuth2 token endpoint
	HTTPClient *http.Client // used for both token and API requests
	Logger     *log.Logger

	sleep func(context.Context, time.Duration) error
}

// OptsFromConfig builds [SpotifyOpts] from the application config.
func OptsFromConfig(cfg *shared.Config, logger *log.Logger) SpotifyOpts {
	return SpotifyOpts{
		Credentials: cfg.Credentials.Spotify,
		RateLimit:   cfg.Engine.RateLimit,
		RateBurst:   cfg.Engine.RateBurst,
		MaxRetries:  cfg.Engine.MaxRetries,
		Logger:      logger,
	}
}

// SpotifyService implements [Catalog] and [Player] for the Spotify Web API.
//
// One token source backs every request, so the access token is fetched once
// and refreshed only when it expires.
type SpotifyService struct {
	client     *spotify.Client
	logger     *log.Logger
	market     string
	maxRetries int
	sleep      func(context.Context, time.Duration) error

	mu     sync.Mutex
	userID string
}

// NewSpotifyService creates a Spotify catalog client. A refresh token selects
// the user-scoped refresh-token grant; without one the client-credentials
// grant is used, which cannot create playlists.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	creds := opts.Credentials
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 8
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	switch {
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	if opts.sleep == nil {
		opts.sleep = sleepWithContext
	}

	base := http.DefaultTransport
	tokenCtx := context.Background()
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
	}

	var source oauth2.TokenSource
	if creds.RefreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		source = conf.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	} else {
		conf := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		source = oauth2.ReuseTokenSource(nil, conf.TokenSource(tokenCtx))
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: source,
			Base: &throttleTransport{
				base:    base,
				limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
			},
		},
	}

	var clientOpts []spotify.ClientOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(opts.BaseURL))
	}

	market := creds.Market
	if market == "" {
		market = defaultMarket
	}

	return &SpotifyService{
		client:     spotify.New(httpClient, clientOpts...),
		logger:     shared.WithLogger(opts.Logger, "service", "spotify"),
		market:     market,
		maxRetries: opts.MaxRetries,
		sleep:      opts.sleep,
		userID:     creds.UserID,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SearchTracks searches tracks by free text.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	var tracks []models.CandidateTrack
	err := s.invoke(ctx, "search tracks", func(ctx context.Context) error {
		res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
		if err != nil {
			return err
		}
		if res.Tracks != nil {
			tracks = toCandidates(res.Tracks.Tracks)
		}
		return nil
	})
	return tracks, err
}

// SearchArtists searches artists by free text, e.g. "artist:SZA".
func (s *SpotifyService) SearchArtists(ctx context.Context, query string, limit int) ([]models.CandidateArtist, error) {
	var artists []models.CandidateArtist
	err := s.invoke(ctx, "search artists", func(ctx context.Context) error {
		res, err := s.client.Search(ctx, query, spotify.SearchTypeArtist, spotify.Limit(limit))
		if err != nil {
			return err
		}
		if res.Artists == nil {
			return nil
		}
		for _, a := range res.Artists.Artists {
			artists = append(artists, models.CandidateArtist{ID: string(a.ID), Name: a.Name})
		}
		return nil
	})
	return artists, err
}

// ArtistTopTracks returns the artist's top tracks in the configured market.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.CandidateTrack, error) {
	var tracks []models.CandidateTrack
	err := s.invoke(ctx, "artist top tracks", func(ctx context.Context) error {
		res, err := s.client.GetArtistsTopTracks(ctx, spotify.ID(artistID), s.market)
		if err != nil {
			return err
		}
		tracks = toCandidates(res)
		return nil
	})
	return tracks, err
}

// CreatePlaylist creates a public, non-collaborative playlist owned by the
// configured user, looking the user up once when no ID is configured.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return "", err
	}

	var id string
	err = s.invoke(ctx, "create playlist", func(ctx context.Context) error {
		pl, err := s.client.CreatePlaylistForUser(ctx, userID, name, description, true, false)
		if err != nil {
			return err
		}
		id = string(pl.ID)
		return nil
	})
	return id, err
}

// AddTracks appends tracks to a playlist. uris must be "spotify:track:<id>".
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxBatchSize {
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrValidation, MaxBatchSize, len(uris))
	}

	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		if !strings.HasPrefix(uri, trackURIPrefix) {
			return fmt.Errorf("%w: not a track uri: %q", shared.ErrValidation, uri)
		}
		ids[i] = spotify.ID(strings.TrimPrefix(uri, trackURIPrefix))
	}

	return s.invoke(ctx, "add tracks", func(ctx context.Context) error {
		_, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
		return err
	})
}

// NowPlaying reports the current playback. An idle player is not an error.
func (s *SpotifyService) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	var playing *spotify.CurrentlyPlaying
	err := s.invoke(ctx, "now playing", func(ctx context.Context) error {
		var err error
		playing, err = s.client.PlayerCurrentlyPlaying(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if playing == nil || playing.Item == nil {
		return &models.NowPlaying{IsPlaying: false}, nil
	}

	item := playing.Item
	np := &models.NowPlaying{
		IsPlaying: playing.Playing,
		Title:     item.Name,
		Album:     item.Album.Name,
		SongURL:   item.ExternalURLs["spotify"],
	}
	names := make([]string, len(item.Artists))
	for i, a := range item.Artists {
		names[i] = a.Name
	}
	np.Artist = strings.Join(names, ", ")
	if len(item.Album.Images) > 0 {
		np.AlbumImageURL = item.Album.Images[0].URL
	}
	return np, nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != "" {
		return s.userID, nil
	}

	err := s.invoke(ctx, "current user", func(ctx context.Context) error {
		user, err := s.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		s.userID = user.ID
		return nil
	})
	return s.userID, err
}

func toCandidates(tracks []spotify.FullTrack) []models.CandidateTrack {
	out := make([]models.CandidateTrack, 0, len(tracks))
	for _, t := range tracks {
		c := models.CandidateTrack{ID: string(t.ID), URI: string(t.URI), Name: t.Name}
		for _, a := range t.Artists {
			c.Artists = append(c.Artists, models.ArtistRef{ID: string(a.ID), Name: a.Name})
		}
		out = append(out, c)
	}
	return out
}
