package httpclient

import (
	"bytes"
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

	"github.com/google/uuid"
	"github.com/open-sspm/resolvers/internal/metrics"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	DefaultTimeout  = 30 * time.Second
	UploadTimeout   = 120 * time.Second
	DownloadTimeout = 60 * time.Second

	maxBodySize   = 64 << 20
	maxRetryAfter = 60 * time.Second
	userAgent     = "open-sspm-resolvers"
)

var errNoBaseURL = errors.New("base url is not configured")

// Authorizer decorates an outgoing request with credentials.
type Authorizer interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Invalidator is implemented by authorizers whose cached credential can be dropped.
type Invalidator interface {
	Invalidate()
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, req *http.Request) error

func (f AuthorizerFunc) Apply(ctx context.Context, req *http.Request) error { return f(ctx, req) }

// Header returns an Authorizer that sets a fixed header.
func Header(key, value string) Authorizer {
	return AuthorizerFunc(func(_ context.Context, req *http.Request) error {
		req.Header.Set(key, value)
		return nil
	})
}

type Options struct {
	// Name is the connector kind, used in logs, metrics and error prefixes.
	Name    string
	BaseURL string
	Auth    Authorizer
	Timeout time.Duration
	Headers http.Header
	// BaseURLEnv names the setting(s) that configure BaseURL, for the error raised when it is empty.
	BaseURLEnv string

	// DecodeError lets a connector map a non-2xx body onto a vendor error.
	// Returning nil falls back to the generic http_status error.
	DecodeError func(status int, body []byte) *resolver.Error

	// RetryUnauthorized invalidates the credential and retries once on 401.
	RetryUnauthorized bool

	// MaxRetries bounds retries on 429/502/503/504. Zero disables them.
	MaxRetries int

	// MaxBodySize caps a buffered response. Larger bodies fail instead of
	// being truncated. Zero means 64 MiB.
	MaxBodySize int64

	Logger *slog.Logger
	HTTP   *http.Client
}

// Client is the shared vendor HTTP wrapper.
type Client struct {
	name              string
	baseURL           string
	baseURLEnv        string
	auth              Authorizer
	timeout           time.Duration
	headers           http.Header
	decodeError       func(int, []byte) *resolver.Error
	retryUnauthorized bool
	maxRetries        int
	maxBodySize       int64
	logger            *slog.Logger
	http              *http.Client
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = maxBodySize
	}
	return &Client{
		name:              strings.TrimSpace(opts.Name),
		baseURL:           strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		baseURLEnv:        strings.TrimSpace(opts.BaseURLEnv),
		auth:              opts.Auth,
		timeout:           timeout,
		headers:           opts.Headers.Clone(),
		decodeError:       opts.DecodeError,
		retryUnauthorized: opts.RetryUnauthorized,
		maxRetries:        opts.MaxRetries,
		maxBodySize:       maxBody,
		logger:            logger,
		http:              hc,
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTP returns the underlying http.Client.
func (c *Client) HTTP() *http.Client { return c.http }

// Request describes one vendor call. Path may be absolute or relative to the base URL.
// At most one of JSON, Form and Body is used.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	JSON        any
	Form        url.Values
	Body        []byte
	ContentType string

	Timeout time.Duration
	// Prefix overrides the "<connector> <method> <path>" error prefix.
	Prefix string
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the body into v. An empty body leaves v untouched.
func (r *Response) JSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return resolver.Vendorf("", "decode response: %v", err)
	}
	return nil
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.JSON(ctx, http.MethodGet, path, query, nil, out)
}

// JSON sends in (when non-nil) as a JSON body and decodes the response into out (when non-nil).
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	resp, err := c.Do(ctx, Request{Method: method, Path: path, Query: query, JSON: in})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

// Do sends req and returns the buffered response. Non-2xx responses become
// *resolver.Error values embedding the status and body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	endpoint, err := c.resolve(req.Path, req.Query)
	if errors.Is(err, errNoBaseURL) {
		if c.baseURLEnv != "" {
			return nil, resolver.Configf("%s base url is not configured: set %s", c.name, c.baseURLEnv)
		}
		return nil, resolver.Configf("%s base url is not configured", c.name)
	}
	if err != nil {
		return nil, resolver.Configf("%s: invalid url: %v", c.name, err)
	}
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, resolver.Validationf("%s: encode request body: %v", c.name, err)
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = fmt.Sprintf("%s %s %s", c.name, method, safeURL(endpoint))
	}

	unauthorizedRetried := false
	for attempt := 0; ; attempt++ {
		resp, err := c.once(ctx, method, endpoint, body, contentType, req)
		if err != nil {
			// Credential failures arrive already classified.
			var rerr *resolver.Error
			if errors.As(err, &rerr) {
				return nil, rerr
			}
			return nil, resolver.Network(prefix, err)
		}
		if resp.Status >= 200 && resp.Status < 300 {
			return resp, nil
		}

		if resp.Status == http.StatusUnauthorized && c.retryUnauthorized && !unauthorizedRetried {
			if inv, ok := c.auth.(Invalidator); ok {
				unauthorizedRetried = true
				inv.Invalidate()
				c.logger.Info("vendor returned 401, refreshing credential and retrying", "connector", c.name, "url", safeURL(endpoint))
				continue
			}
		}
		if attempt < c.maxRetries && shouldRetryStatus(resp.Status) {
			if err := sleepWithContext(ctx, retryDelay(resp.Header, attempt)); err != nil {
				return nil, resolver.Network(prefix, err)
			}
			continue
		}

		if c.decodeError != nil {
			if verr := c.decodeError(resp.Status, resp.Body); verr != nil {
				if verr.Status == 0 {
					verr.Status = resp.Status
				}
				if verr.Body == "" {
					verr.Body = resolver.EmbedBody(resp.Body)
				}
				return nil, verr
			}
		}
		return nil, resolver.HTTPStatus(prefix, resp.Status, resp.Body)
	}
}

func (c *Client) once(ctx context.Context, method, endpoint string, body []byte, contentType string, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-Id", requestID)
	for k, vs := range c.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if body != nil && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.auth != nil {
		if err := c.auth.Apply(ctx, httpReq); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	metrics.HTTPRequestDuration.WithLabelValues(c.name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(c.name, method, "error").Inc()
		c.logger.Warn("vendor request failed",
			"connector", c.name,
			"method", method,
			"url", safeURL(endpoint),
			"request_id", requestID,
			"network_error", ClassifyNetworkError(err),
			"duration", elapsed,
			"err", err,
		)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(c.name, method, "error").Inc()
		c.logger.Warn("vendor response read failed",
			"connector", c.name,
			"url", safeURL(endpoint),
			"request_id", requestID,
			"network_error", ClassifyNetworkError(err),
			"err", err,
		)
		return nil, err
	}
	metrics.HTTPRequestsTotal.WithLabelValues(c.name, method, strconv.Itoa(resp.StatusCode)).Inc()
	if int64(len(data)) > c.maxBodySize {
		c.logger.Warn("vendor response too large",
			"connector", c.name,
			"url", safeURL(endpoint),
			"request_id", requestID,
			"limit", c.maxBodySize,
		)
		verr := resolver.Vendorf(resolver.CodeTooLarge, "%s %s %s: response exceeds %d bytes", c.name, method, safeURL(endpoint), c.maxBodySize)
		verr.Status = resp.StatusCode
		return nil, verr
	}
	c.logger.Debug("vendor request",
		"connector", c.name,
		"method", method,
		"url", safeURL(endpoint),
		"status", resp.StatusCode,
		"duration", elapsed,
		"request_id", requestID,
		"bytes", len(data),
	)
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	path = strings.TrimSpace(path)
	var raw string
	switch {
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		raw = path
	case c.baseURL == "":
		return "", errNoBaseURL
	case path == "":
		raw = c.baseURL
	default:
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	case req.Form != nil:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		ct := req.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		return req.Body, ct, nil
	default:
		return nil, "", nil
	}
}

func safeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func shouldRetryStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryDelay(header http.Header, attempt int) time.Duration {
	if d := retryAfter(header); d > 0 {
		return d
	}
	return backoffDelay(attempt)
}

func retryAfter(header http.Header) time.Duration {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return min(time.Duration(secs)*time.Second, maxRetryAfter)
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return min(d, maxRetryAfter)
	}
	return 0
}

func backoffDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= 5*time.Second {
			return 5 * time.Second
		}
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
