package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FetchFailure is returned when a store could not be retrieved: a transport
// error, a timeout or a non-2xx answer without an authentication challenge.
type FetchFailure struct {
	URL    string
	Status int
	Err    error
}

func (f *FetchFailure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("fetch %s: bad status: %d %s", f.URL, f.Status, http.StatusText(f.Status))
	}
	return fmt.Sprintf("fetch %s: %v", f.URL, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// StatusCode returns the HTTP status of the failed answer or 0 when no answer
// was received.
func (f *FetchFailure) StatusCode() int {
	return f.Status
}

// Retryable reports whether repeating the fetch later may succeed.
func (f *FetchFailure) Retryable() bool {
	switch {
	case f.Status == 0:
		return !errors.Is(f.Err, context.Canceled)
	case f.Status == http.StatusTooManyRequests, f.Status == http.StatusRequestTimeout:
		return true
	default:
		return f.Status >= 500
	}
}
