package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"statuswatch/internal/monitor"
)

const maxBodyBytes = 4 << 20

// Client fetches JSON status documents.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

func NewClient(userAgent string) *Client {
	return &Client{
		HTTP: &http.Client{
			// Per-cycle deadlines come from the caller's context; this is a
			// backstop for callers without one.
			Timeout: time.Minute,
		},
		UserAgent: userAgent,
	}
}

// GetJSON fetches url and returns the parsed document. Network failures and
// non-2xx statuses are *monitor.FetchError, invalid JSON is
// *monitor.ParseError.
func (c *Client) GetJSON(ctx context.Context, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, &monitor.FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return gjson.Result{}, &monitor.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return gjson.Result{}, &monitor.FetchError{URL: url, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return gjson.Result{}, &monitor.FetchError{URL: url, Err: err}
	}
	if len(body) > maxBodyBytes {
		return gjson.Result{}, &monitor.ParseError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &monitor.ParseError{URL: url, Err: errors.New("invalid JSON")}
	}
	return gjson.ParseBytes(body), nil
}

func missing(url, path string) error {
	return &monitor.ParseError{URL: url, Err: fmt.Errorf("missing %s", path)}
}
