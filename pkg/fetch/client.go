// Package fetch performs single HTTP GETs and reports the response class
// without following redirects. Redirect policy belongs to the caller.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/errors"
)

// Response is the outcome of one request. Body is non-nil only for 200 and
// must be closed by the caller. RedirectTarget is the absolute Location of
// a 3xx response, empty when the server sent none.
type Response struct {
	StatusCode     int
	Body           io.ReadCloser
	RedirectTarget string
	ContentType    string
}

// Fetcher issues one request. A host that cannot be reached yields an error
// wrapping errors.ErrUnreachable (response class 0); every HTTP status,
// including errors, is returned as a Response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Transport         http.RoundTripper
}

// Client is the net/http Fetcher.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func NewClient(opts Options) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: opts.UserAgent,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewFetchError(url, 0, fmt.Errorf("%w: %v", apperrors.ErrUnreachable, err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, ctxErr)
		}
		return nil, apperrors.NewFetchError(url, 0, fmt.Errorf("%w: %v", apperrors.ErrUnreachable, err))
	}

	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode == http.StatusOK {
		out.Body = resp.Body
		return out, nil
	}

	if IsRedirect(resp.StatusCode) {
		if loc, err := resp.Location(); err == nil {
			out.RedirectTarget = loc.String()
		}
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return out, nil
}

// IsRedirect reports whether status asks the client to refetch elsewhere.
func IsRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
