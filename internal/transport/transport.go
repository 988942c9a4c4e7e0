// Package transport implements the request contract the client core relies on:
//
//	Request(ctx, method, path, body, opts...) -> *Response | error
//
// A 2xx reply yields a Response. Any other status yields a *StatusError
// carrying the status code and raw body. Connection and encoding failures
// are transport-category errors.
package transport

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
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
)

const (
	// DefaultTimeout is applied when the request context has no deadline
	DefaultTimeout = 30 * time.Second

	// DefaultBaseURL is the SMODF backend development address
	DefaultBaseURL = "http://localhost:8000"

	defaultUserAgent = "smodf-client"

	// HeaderRequestID carries the per-request correlation id
	HeaderRequestID = "X-Request-ID"

	cacheBusterParam = "_t"
	componentName    = "transport"
)

// Config holds the client configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns the development defaults
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout, UserAgent: defaultUserAgent}
}

// ResponseHook observes every completed exchange. resp is nil when the
// request never got a reply.
type ResponseHook func(req *http.Request, resp *http.Response, elapsed time.Duration, err error)

// Client issues JSON requests against one base URL. Safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	timeout   time.Duration
	userAgent string
	log       logger.Logger
	now       func() time.Time

	hookMu sync.RWMutex
	hooks  []ResponseHook
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.log = l.Module(componentName) }
}

// WithClock overrides the time source used for the cache buster
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// New creates a client; zero Config fields fall back to DefaultConfig
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid base URL %q", cfg.BaseURL).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Client{
		base:      base,
		http:      &http.Client{},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		log:       logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.base.String()
}

// OnResponse registers a hook called after every exchange
func (c *Client) OnResponse(hook ResponseHook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Response is a successful reply
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.Newf("empty response body").
			Component(componentName).
			Category(errors.CategoryTransport).
			Build()
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.New(fmt.Errorf("failed to decode response: %w", err)).
			Component(componentName).
			Category(errors.CategoryTransport).
			Build()
	}
	return nil
}

// StatusError is returned for any non-2xx reply
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	msg := strings.TrimSpace(string(e.Body))
	if len(msg) > maxErrorBody {
		msg = truncateUTF8(msg, maxErrorBody) + "..."
	}
	if msg == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, msg)
}

// maxErrorBody bounds how much of a non-JSON error body goes into Error
const maxErrorBody = 200

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Message returns the "error" or "detail" field of a JSON error body
func (e *StatusError) Message() string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return strings.TrimSpace(payload.Error)
	}
	return strings.TrimSpace(payload.Detail)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 reply
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

type requestOptions struct {
	header http.Header
	query  url.Values
}

// RequestOption configures a single request
type RequestOption func(*requestOptions)

// WithHeader sets a request header
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.header.Set(key, value) }
}

// WithQuery adds a query parameter
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) { o.query.Add(key, value) }
}

// WithBearer sets an Authorization bearer token; empty tokens are ignored
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) {
		if token != "" {
			o.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// Request sends body (JSON-encoded unless it is nil, []byte or io.Reader)
// to path relative to the base URL
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(&ro)
	}

	target := c.resolve(path)
	q := target.Query()
	for k, vs := range ro.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if method == http.MethodGet {
		q.Set(cacheBusterParam, strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	target.RawQuery = q.Encode()

	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, errors.New(err).Component(componentName).Category(errors.CategoryTransport).
			Context("method", method).Context("path", path).Build()
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create request: %w", err)).
			Component(componentName).Category(errors.CategoryTransport).Build()
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set(HeaderRequestID, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range ro.header {
		req.Header[k] = vs
	}

	log := c.log.With(logger.String("method", method), logger.String("path", path), logger.String("request_id", requestID))
	log.Debug("sending request")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.notify(req, nil, elapsed, err)
		log.Error("no response from server", logger.Error(err))
		if ctx.Err() != nil {
			return nil, errors.New(ctx.Err()).Component(componentName).Category(errors.CategoryTransport).
				Context("request_id", requestID).Build()
		}
		return nil, errors.New(fmt.Errorf("%s %s: %w", method, path, err)).
			Component(componentName).Category(errors.CategoryTransport).
			Context("request_id", requestID).Build()
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.notify(req, resp, elapsed, err)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read response: %w", err)).
			Component(componentName).Category(errors.CategoryTransport).Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logStatus(log, resp.StatusCode, data)
		return nil, &StatusError{Method: method, URL: path, Status: resp.StatusCode, Body: data}
	}

	log.Debug("request succeeded", logger.Int("status", resp.StatusCode), logger.Duration("elapsed", elapsed))
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data, RequestID: requestID}, nil
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.base
	rel, err := url.Parse(path)
	if err != nil {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
		return &u
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return &u
}

func (c *Client) notify(req *http.Request, resp *http.Response, elapsed time.Duration, err error) {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	for _, hook := range c.hooks {
		hook(req, resp, elapsed, err)
	}
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	case io.Reader:
		return b, "application/octet-stream", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func logStatus(log logger.Logger, status int, body []byte) {
	fields := []logger.Field{logger.Int("status", status)}
	switch status {
	case http.StatusRequestEntityTooLarge:
		log.Error("payload too large", fields...)
	case http.StatusForbidden:
		log.Error("permission denied", append(fields, logger.String("body", string(body)))...)
	case http.StatusNotFound:
		log.Error("resource not found", fields...)
	case http.StatusInternalServerError:
		log.Error("server error", append(fields, logger.String("body", string(body)))...)
	default:
		log.Warn("request failed", fields...)
	}
}
