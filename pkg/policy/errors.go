package policy

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"retrolog/pkg/collection"
)

// Error kinds exposed to callers. All are recoverable: the engine
// degrades to a stale local view rather than crashing.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalid           = errors.New("invalid request")
	ErrRateLimited       = errors.New("rate limited")
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// RateLimitedError carries the remaining wait so callers can show it.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry in %s", e.Remaining.Round(time.Millisecond))
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// wrapRemote classifies transport failures from the collection.
func wrapRemote(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, collection.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return err
}

// HTTPStatus maps an engine error to a status code for the local API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRemoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
