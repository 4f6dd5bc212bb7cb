package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Pipeline errors
	ErrParseFailure    = fmt.Errorf("profile text could not be parsed")
	ErrNoMatch         = fmt.Errorf("no catalog match")
	ErrRateLimited     = fmt.Errorf("rate limited by catalog")
	ErrExternalService = fmt.Errorf("catalog request failed")
	ErrValidation      = fmt.Errorf("invalid input")
	ErrTimeout         = fmt.Errorf("operation timed out")
	ErrNoTracks        = fmt.Errorf("no tracks resolved")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// Classify folds an error from a catalog call into one of the pipeline
// sentinels. Errors already carrying a sentinel are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNoMatch), errors.Is(err, ErrExternalService),
		errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}
}

// IsFatal reports whether err must abort the whole request rather than skip
// a single item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// StatusCode maps an error to the HTTP status returned by the API.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrParseFailure):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoTracks):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrNoRefreshToken):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
