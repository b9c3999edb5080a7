package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "tokenwatch/pkg/logx"
)

const (
	DefaultURL     = "https://api.jup.ag/tokens/v1/new"
	DefaultTimeout = 15 * time.Second

	// MaxLimit is the upstream page size cap.
	MaxLimit = 100

	maxBodyBytes = 8 << 20
)

// Config configures Client.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches the newest page of listed assets. It holds no state between calls.
type Client struct {
	url       string
	userAgent string
	http      *http.Client
	log       logx.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithLogger sets the logger used to report skipped page elements.
func WithLogger(log logx.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(cfg Config, opts ...ClientOption) *Client {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		u = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{url: u, userAgent: cfg.UserAgent, http: newHTTPClient(timeout)}
	for _, o := range opts {
		o(c)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	c.log = c.log.With(logx.String("comp", "feed"))
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// ClampLimit bounds limit to [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// FetchRecent returns one page of the most recently listed assets, newest first.
func (c *Client) FetchRecent(ctx context.Context, limit, offset int) ([]Record, error) {
	if offset < 0 {
		offset = 0
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(ClampLimit(limit)))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "get", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: "read body", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &TransportError{Op: "get", Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return c.decodeRecords(body)
}

// decodeRecords decodes each list element on its own. An element that does
// not decode is logged and skipped; only a body that is not a list fails.
func (c *Client) decodeRecords(body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &MalformedResponseError{Err: errors.New("body is not a JSON list")}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	out := make([]Record, 0, len(elems))
	for i, raw := range elems {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			c.log.Warn("feed record skipped", logx.Int("index", i), logx.Err(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
