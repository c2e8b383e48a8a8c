// Package history is the thin REST collaborator for the reconciliation
// engine: paginated session/run queries, the remote cancel call, and the
// chunked run-stream request. Request construction lives here; the engine
// only consumes parsed bodies.
//
// Read failures propagate to the caller as errors; the engine does not
// retry and keeps serving last-known-good cached data. The client gates
// every request through a token bucket so background refreshes cannot
// stampede the backend.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/theanh9911/agno-ui-sub003/cancel"
	"github.com/theanh9911/agno-ui-sub003/run"
	"github.com/theanh9911/agno-ui-sub003/sessioncache"
	"github.com/theanh9911/agno-ui-sub003/stream"
)

type (
	// Options configures a Client.
	Options struct {
		// BaseURL is the backend base URL (for example
		// "https://os.example.com"). Required.
		BaseURL string
		// Token is the bearer token attached to every request. Optional.
		Token string
		// HTTPClient overrides the transport. Defaults to http.DefaultClient.
		HTTPClient *http.Client
		// RPS caps request throughput. Zero disables the limiter.
		RPS float64
		// Burst is the limiter burst size. Defaults to 1 when RPS is set.
		Burst int
	}

	// Client talks to one backend instance.
	Client struct {
		base    *url.URL
		token   string
		http    *http.Client
		limiter *rate.Limiter
	}

	// SessionsPage is one page of the paginated session list.
	SessionsPage struct {
		Data []sessioncache.SessionEntry `json:"data"`
		Meta sessioncache.PageMeta       `json:"meta"`
	}

	// RunsPage is one page of the paginated run history for a session.
	RunsPage struct {
		Data []run.Run             `json:"data"`
		Meta sessioncache.PageMeta `json:"meta"`
	}
)

// New constructs a Client for the given backend.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return &Client{base: base, token: opts.Token, http: httpClient, limiter: limiter}, nil
}

// ListSessions fetches one page of the session index.
func (c *Client) ListSessions(ctx context.Context, page, limit int) (SessionsPage, error) {
	var out SessionsPage
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if err := c.getJSON(ctx, "/sessions", q, &out); err != nil {
		return SessionsPage{}, err
	}
	return out, nil
}

// ListRuns fetches one page of the persisted run history for a session.
func (c *Client) ListRuns(ctx context.Context, sessionID string, page, limit int) (RunsPage, error) {
	if sessionID == "" {
		return RunsPage{}, errors.New("session id is required")
	}
	var out RunsPage
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if err := c.getJSON(ctx, "/sessions/"+url.PathEscape(sessionID)+"/runs", q, &out); err != nil {
		return RunsPage{}, err
	}
	return out, nil
}

// CancelRun implements cancel.API: POST the cancel endpoint for the entity
// kind. Only success/failure signaling matters; the response body is
// discarded.
func (c *Client) CancelRun(ctx context.Context, kind cancel.EntityKind, entityID, runID string) error {
	if entityID == "" || runID == "" {
		return errors.New("entity id and run id are required")
	}
	path := fmt.Sprintf("/%ss/%s/runs/%s/cancel", string(kind), url.PathEscape(entityID), url.PathEscape(runID))
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("cancel run status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// OpenRunStream starts a run and returns a Reader over the chunked response
// body. The caller owns the returned Reader and stops it via the cancel
// function handed out by Reader.Events.
func (c *Client) OpenRunStream(ctx context.Context, kind cancel.EntityKind, entityID string, input map[string]any, opts stream.ReaderOptions) (*stream.Reader, error) {
	if entityID == "" {
		return nil, errors.New("entity id is required")
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode run input: %w", err)
	}
	path := fmt.Sprintf("/%ss/%s/runs", string(kind), url.PathEscape(entityID))
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open run stream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return stream.NewReader(resp.Body, opts), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.http.Do(req)
}
