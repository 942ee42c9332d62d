// Package feed is the HTTP client for the external race programme feed.
package feed

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable wraps transport failures and non-2xx responses.
var ErrUnavailable = errors.New("feed: unavailable")

// DetailCache stores race details between passes. Implementations swallow
// their own errors; a cache miss only costs a request.
type DetailCache interface {
	GetDetail(ctx context.Context, id string) (*RaceDetail, bool)
	SetDetail(ctx context.Context, id string, d *RaceDetail)
}

// Config holds the connection settings for the feed.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Proxy   string
}

// Client fetches programmes and race details.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      DetailCache
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache makes RaceDetail consult and fill c.
func WithCache(c DetailCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(cl *Client) { cl.httpClient = hc }
}

// NewClient builds a Client. A zero Timeout defaults to 20 seconds.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: newHTTPClient(cfg, logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(cfg Config, logger *zap.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.Warn("invalid feed proxy, connecting directly", zap.String("proxy", cfg.Proxy), zap.Error(err))
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: &gzipTransport{next: transport, logger: logger}}
}

// gzipTransport asks for gzip and decodes it itself, so feeds that compress
// regardless of the request headers are still readable.
type gzipTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func (t *gzipTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return resp, nil
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.logger.Warn("feed: gzip body unreadable, returning it raw", zap.Error(err))
		return resp, nil
	}
	resp.Body = &gzipBody{Reader: zr, body: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Close() error {
	zerr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return zerr
}

// Programme returns the meetings the feed lists for date, filtered by the
// feed-specific venue token.
func (c *Client) Programme(ctx context.Context, date time.Time, venue string) ([]Meeting, error) {
	params := url.Values{}
	params.Set("date", date.Format(time.DateOnly))
	if venue != "" {
		params.Set("venue", venue)
	}

	body, err := c.doGet(ctx, "/programme", params)
	if err != nil {
		return nil, fmt.Errorf("feed: get programme: %w", err)
	}

	var p programme
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("feed: decode programme: %w", err)
	}
	return p.Meetings, nil
}

// RaceDetail returns prize, runners and temperature for one external race.
func (c *Client) RaceDetail(ctx context.Context, id string) (*RaceDetail, error) {
	if id == "" {
		return nil, errors.New("feed: race detail: empty id")
	}
	if c.cache != nil {
		if d, ok := c.cache.GetDetail(ctx, id); ok {
			return d, nil
		}
	}

	body, err := c.doGet(ctx, "/races/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("feed: get race %s: %w", id, err)
	}

	var d RaceDetail
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("feed: decode race %s: %w", id, err)
	}
	if c.cache != nil {
		c.cache.SetDetail(ctx, id, &d)
	}
	return &d, nil
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	c.logger.Debug("feed request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return body, nil
}
