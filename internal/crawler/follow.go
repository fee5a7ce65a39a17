package crawler

import (
	"context"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/fetch"
)

// DefaultMaxRedirects bounds a redirect chain; a loop fails after this many hops.
const DefaultMaxRedirects = 5

// FetchOutcome is the terminal result of one logical fetch.
type FetchOutcome struct {
	Kind       string
	URL        string
	FinalURL   string
	StatusCode int
	Outcome    string
	Redirects  int
	Duration   time.Duration
}

// OutcomeRecorder receives every terminal fetch outcome of a crawl.
type OutcomeRecorder interface {
	RecordFetch(ctx context.Context, o FetchOutcome) error
}

// hop describes where a redirect chain ended.
type hop struct {
	url        string
	statusCode int
	redirects  int
}

// follow fetches url and refetches redirect targets until a terminal
// response. Only 200 is success; its body is returned open. Any other
// status, a redirect without a target, or more than maxRedirects hops is an
// error carrying the last status seen.
func follow(ctx context.Context, f fetch.Fetcher, url string, maxRedirects int) (io.ReadCloser, hop, error) {
	h := hop{url: url}
	for {
		resp, err := f.Fetch(ctx, h.url)
		if err != nil {
			return nil, h, err
		}
		h.statusCode = resp.StatusCode

		switch {
		case resp.StatusCode == http.StatusOK:
			if resp.Body == nil {
				return io.NopCloser(http.NoBody), h, nil
			}
			return resp.Body, h, nil

		case fetch.IsRedirect(resp.StatusCode):
			if resp.RedirectTarget == "" {
				return nil, h, apperrors.NewFetchError(h.url, resp.StatusCode, apperrors.ErrMissingRedirectTarget)
			}
			if h.redirects >= maxRedirects {
				return nil, h, apperrors.NewFetchError(h.url, resp.StatusCode, apperrors.ErrTooManyRedirects)
			}
			h.redirects++
			h.url = resp.RedirectTarget

		default:
			if resp.Body != nil {
				resp.Body.Close()
			}
			return nil, h, apperrors.NewFetchError(h.url, resp.StatusCode, apperrors.ErrUnexpectedStatus)
		}
	}
}
