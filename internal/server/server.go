// package server contains middleware & handlers for the squad playlist web service
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery and CORS.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own several routes.
// Implementations handle specific endpoints (OAuth callback, playlist API).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

const shutdownTimeout = 5 * time.Second

// New builds the HTTP server for the playlist API on cfg's address.
//
// Route handlers get logging and recovery; CORS wraps the whole router so
// preflight requests are answered before method matching.
func New(cfg shared.ServerConfig, api *API, logger *log.Logger) *http.Server {
	router := NewBasicRouter()
	router.Use(Logging(logger), Recover(logger))
	api.Register(router)

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           CORS(cfg.AllowedOrigins)(router),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve accepts connections on l until ctx is done, then shuts the server
// down gracefully.
func Serve(ctx context.Context, srv *http.Server, l net.Listener, logger *log.Logger) error {
	errs := make(chan error, 1)
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	logger.Info("server listening", "addr", l.Addr().String())

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down server", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
