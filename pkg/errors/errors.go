// Package errors defines the crawl error taxonomy. Every network failure is
// terminal for one feed or one article and is classified into a short
// outcome label used by logs, metrics and the crawl ledger.
package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnreachable           = errors.New("host unreachable")
	ErrUnexpectedStatus      = errors.New("unexpected response status")
	ErrTooManyRedirects      = errors.New("too many redirects")
	ErrMissingRedirectTarget = errors.New("redirect without location")
	ErrMalformedWord         = errors.New("malformed word")
)

// Outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeUnreachable  = "unreachable"
	OutcomeHTTPError    = "http_error"
	OutcomeRedirectLoop = "redirect_loop"
	OutcomeCanceled     = "canceled"
	OutcomeOther        = "error"
)

// FetchError describes a failed fetch of a single URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: %s (status %d)", e.URL, e.Err.Error(), e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %s", e.URL, e.Err.Error())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(url string, statusCode int, sentinel error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        sentinel,
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none
// (which is also the response class for an unreachable host).
func StatusCode(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}

// Outcome maps err to its outcome label. A nil error is OutcomeOK.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, ErrUnreachable):
		return OutcomeUnreachable
	case errors.Is(err, ErrTooManyRedirects):
		return OutcomeRedirectLoop
	case errors.Is(err, ErrUnexpectedStatus), errors.Is(err, ErrMissingRedirectTarget):
		return OutcomeHTTPError
	default:
		return OutcomeOther
	}
}
