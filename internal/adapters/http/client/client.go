// Package client implements the session store contract over HTTP for devices.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/rally/internal/adapters/http/api"
	"github.com/okian/rally/internal/adapters/repository"
	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

const (
	defaultTimeout = 5 * time.Second
	defaultRate    = 20
	defaultBurst   = 10
	maxRedirects   = 3
)

// Client talks to a session API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     logger.Logger
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadURL, baseURL)
	}
	c := &Client{
		base:    u,
		limiter: rate.NewLimiter(rate.Limit(defaultRate), defaultBurst),
		timeout: defaultTimeout,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	return c, nil
}

// CreateSession implements collab.Store.
func (c *Client) CreateSession(ctx context.Context, meta types.SessionMeta) (types.Created, error) {
	var out types.Created
	err := c.do(ctx, http.MethodPost, "/v1/sessions", nil, meta, &out)
	return out, err
}

// JoinSession implements collab.Store.
func (c *Client) JoinSession(ctx context.Context, code, clientID string) (types.Joined, error) {
	var out types.Joined
	err := c.do(ctx, http.MethodPost, sessionPath(code, "join"), nil, api.JoinRequest{ClientID: clientID}, &out)
	return out, err
}

// UpsertScores implements collab.Store.
func (c *Client) UpsertScores(ctx context.Context, u types.ScoreUpsert) error {
	return c.do(ctx, http.MethodPut, sessionPath(u.ShareCode, "scores"), nil, u, nil)
}

// PollUpdates implements collab.Store.
func (c *Client) PollUpdates(ctx context.Context, code, clientID string, since int64) (types.PollResult, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	if clientID != "" {
		q.Set("client_id", clientID)
	}
	var out types.PollResult
	err := c.do(ctx, http.MethodGet, sessionPath(code, "updates"), q, nil, &out)
	return out, err
}

// FinishSession implements collab.Store.
func (c *Client) FinishSession(ctx context.Context, code, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(code, "finish"), nil, api.FinishRequest{SessionID: sessionID}, nil)
}

// Stats fetches the store counters.
func (c *Client) Stats(ctx context.Context) (types.Stats, error) {
	var out types.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("client", "transport")
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug(ctx, "request done",
		logger.String("method", method), logger.String("path", path),
		logger.Int("status", resp.StatusCode), logger.Duration("took", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeError maps an API error body back to the store's sentinels.
func decodeError(resp *http.Response) error {
	var body api.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&body)

	var kind error
	switch body.Code {
	case api.CodeNotFound:
		kind = repository.ErrNotFound
	case api.CodeFinished:
		kind = repository.ErrFinished
	case api.CodeSessionMismatch:
		kind = repository.ErrSessionMismatch
	case api.CodeInvalidScore:
		kind = repository.ErrInvalidScore
	default:
		switch resp.StatusCode {
		case http.StatusNotFound:
			kind = repository.ErrNotFound
		case http.StatusConflict:
			kind = repository.ErrFinished
		default:
			kind = ErrStatus
		}
	}
	return &StatusError{Status: resp.StatusCode, Code: body.Code, Message: body.Message, kind: kind}
}

func sessionPath(code, action string) string {
	return "/v1/sessions/" + url.PathEscape(strings.TrimSpace(code)) + "/" + action
}
