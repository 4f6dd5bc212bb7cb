package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const (
	InitialBackoff    = 500 * time.Millisecond
	MaxBackoff        = 8 * time.Second
	DefaultMaxRetries = 4
)

// invoke runs op, retrying rate-limited attempts with exponential backoff.
// The returned error is always classified.
func (s *SpotifyService) invoke(ctx context.Context, name string, op func(context.Context) error) error {
	attempt := 0
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var limited *RateLimitError
		if !errors.As(err, &limited) {
			return classify(name, err)
		}
		if attempt >= s.maxRetries {
			return fmt.Errorf("%w: %s gave up after %d retries", shared.ErrRateLimited, name, attempt)
		}

		attempt++
		backoff := min(InitialBackoff*time.Duration(1<<uint(attempt-1)), MaxBackoff)
		if limited.RetryAfter > backoff {
			backoff = min(limited.RetryAfter, MaxBackoff)
		}

		s.logger.Warn("spotify rate limited, retrying",
			"op", name, "backoff", backoff, "attempt", attempt, "max_attempts", s.maxRetries)

		if err := s.sleep(ctx, backoff); err != nil {
			return classify(name, err)
		}
	}
}

func classify(name string, err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %w: %s: %v", shared.ErrExternalService, shared.ErrAuthFailed, name, err)
	}
	return fmt.Errorf("%s: %w", name, shared.Classify(err))
}

// sleepWithContext blocks for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
