package services

import (
	"fmt"

	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

// Scopes are the permissions requested when authorizing the playlist owner.
var Scopes = []string{
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
}

// NewAuthenticator builds the authorization-code flow used to obtain a
// refresh token for the playlist owner.
func NewAuthenticator(creds shared.SpotifyConfig) (*spotifyauth.Authenticator, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect_uri is required", shared.ErrInvalidConfig)
	}

	return spotifyauth.New(
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
		spotifyauth.WithRedirectURL(creds.RedirectURI),
		spotifyauth.WithScopes(Scopes...),
	), nil
}
