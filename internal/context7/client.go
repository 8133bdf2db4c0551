// Package context7 is the client for the upstream Context7 documentation API.
package context7

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://context7.com/api"
	// DefaultTimeout bounds every upstream request.
	DefaultTimeout = 30 * time.Second

	sourceHeader   = "X-Context7-Source"
	sourceValue    = "mcp-server"
	maxBodyBytes   = 32 << 20
	docsResultType = "txt"
)

// ErrNoContent is returned when the upstream answers successfully but has no
// finalized documentation for the library.
var ErrNoContent = errors.New("no documentation content available")

// Op identifies which upstream operation failed.
type Op string

const (
	OpSearch Op = "search"
	OpDocs   Op = "docs"
)

// Error is an upstream failure. Message is phrased for the end user and is
// what tool handlers return verbatim.
type Error struct {
	Op      Op
	Status  int // zero for transport failures
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Config holds everything the client needs. It is resolved once at startup
// and passed in explicitly; the client never consults the environment.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	APIKey   string
	ProxyURL *url.URL
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for upstream request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient replaces the HTTP client. Config.ProxyURL is ignored when
// this option is used.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client talks to the Context7 API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	timeout time.Duration
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

// New builds a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", raw)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	}

	c := &Client{
		base:    base,
		timeout: timeout,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Transport: transport},
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchLibraries runs a free-text library search.
func (c *Client) SearchLibraries(ctx context.Context, query string) (*SearchResponse, error) {
	u := c.base.JoinPath("v1", "search")
	q := url.Values{}
	q.Set("query", query)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, OpSearch, u)
	if err != nil {
		return nil, err
	}
	var res SearchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &Error{Op: OpSearch, Message: "Error searching libraries: invalid response: " + err.Error(), Err: err}
	}
	return &res, nil
}

// DocsOptions narrows a documentation fetch.
type DocsOptions struct {
	Tokens  int
	Topic   string
	Folders string
}

// FetchLibraryDocumentation returns the documentation text for libraryID
// ("/org/project" or "/org/project/version"). ErrNoContent is returned when
// the library exists but has nothing to serve.
func (c *Client) FetchLibraryDocumentation(ctx context.Context, libraryID string, opts DocsOptions) (string, error) {
	id := strings.TrimPrefix(libraryID, "/")
	u := c.base.JoinPath(append([]string{"v1"}, strings.Split(id, "/")...)...)
	q := url.Values{}
	if opts.Tokens > 0 {
		q.Set("tokens", strconv.Itoa(opts.Tokens))
	}
	if opts.Topic != "" {
		q.Set("topic", opts.Topic)
	}
	if opts.Folders != "" {
		q.Set("folders", opts.Folders)
	}
	q.Set("type", docsResultType)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, OpDocs, u)
	if err != nil {
		return "", err
	}
	text := string(body)
	switch strings.TrimSpace(text) {
	case "", "No content available", "No context data available":
		return "", ErrNoContent
	}
	return text, nil
}

func (c *Client) get(ctx context.Context, op Op, u *url.URL) ([]byte, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, transportError(op, err)
	}
	req.Header.Set(sourceHeader, sourceValue)
	if key := c.keyFor(ctx); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		c.log.WarnContext(ctx, "upstream.request.fail", slog.String("op", string(op)), slog.String("err", err.Error()))
		return nil, transportError(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		c.log.WarnContext(ctx, "upstream.request.status", slog.String("op", string(op)), slog.Int("status", res.StatusCode), slog.Duration("dur", time.Since(start)))
		return nil, &Error{Op: op, Status: res.StatusCode, Message: statusMessage(op, res.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(op, err)
	}
	c.log.DebugContext(ctx, "upstream.request.ok", slog.String("op", string(op)), slog.Int("bytes", len(body)), slog.Duration("dur", time.Since(start)))
	return body, nil
}

func transportError(op Op, err error) *Error {
	prefix := "Error searching libraries: "
	if op == OpDocs {
		prefix = "Error fetching library documentation: "
	}
	return &Error{Op: op, Message: prefix + err.Error(), Err: err}
}

// statusMessage maps an upstream HTTP status to the text shown to users.
func statusMessage(op Op, status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "Rate limited due to too many requests. Please try again later."
	case http.StatusUnauthorized:
		return "Unauthorized. Please check your API key."
	case http.StatusForbidden:
		return "Access forbidden. Please check your API key permissions."
	case http.StatusInternalServerError:
		return "Context7 server error. Please try again later."
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "Context7 service temporarily unavailable. Please try again later."
	}
	if op == OpDocs {
		switch status {
		case http.StatusNotFound:
			return "The library you are trying to access does not exist. Please try with a different library ID."
		case http.StatusRequestEntityTooLarge:
			return "Library is too large to process. Try requesting fewer tokens or a specific topic."
		}
		return fmt.Sprintf("Failed to fetch documentation. Error code: %d", status)
	}
	return fmt.Sprintf("Failed to search libraries. Error code: %d", status)
}
