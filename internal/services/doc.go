// Package services defines the [Catalog] interface the playlist engine searches and writes
// through, and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. Its HTTP client stacks three layers:
//
//  1. [oauth2.Transport] with a single reusable token source (refresh-token grant when a
//     refresh token is configured, client-credentials otherwise)
//  2. a [rate.Limiter] shared by every request
//  3. 429 detection that surfaces [RateLimitError]
//
// Rate-limited calls are retried with exponential backoff starting at [InitialBackoff] and
// capped at [MaxBackoff]; a Retry-After header lengthens the wait.
//
// # Error Handling
//
// Every method returns errors classified into the shared sentinels:
//   - [shared.ErrRateLimited] : still throttled after the configured retries
//   - [shared.ErrTimeout] : the caller's context expired or was canceled
//   - [shared.ErrAuthFailed] : the token endpoint rejected the credentials (also [shared.ErrExternalService])
//   - [shared.ErrExternalService] : any other failed request
//   - [shared.ErrValidation] : arguments the API would reject, such as oversized batches
//
// # Authorization
//
// [NewAuthenticator] builds the authorization-code flow the CLI uses once to obtain the
// playlist owner's refresh token.
package services
