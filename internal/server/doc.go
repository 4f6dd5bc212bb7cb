// Package server provides HTTP routing, middleware, the playlist API and OAuth handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Playlist API
//
// [API] registers the JSON endpoints served by the serve command:
//   - POST /api/playlists builds a playlist from {"data": [profile, ...]}
//   - POST /api/parse normalizes OCR text into a profile
//   - GET /api/now-playing reports the account's current track
//   - GET /health
//
// Errors are written as {"error": "..."} with the status from [shared.StatusCode].
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// When the user runs "setup auth", a temporary HTTP server starts on the configured address, handles the callback,
// and shuts down after receiving the OAuth token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
