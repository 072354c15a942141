package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/metrics"
)

// DefaultRequestTimeout bounds every request issued through Client.
const DefaultRequestTimeout = 5 * time.Second

// Client performs typed, validated requests against the dashboard backend.
// It is safe for concurrent use.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides DefaultRequestTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient returns a Client for the backend behind endpoints.
func NewClient(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{},
		timeout:    DefaultRequestTimeout,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints returns the resolver the client sends requests to.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Do issues exactly one request and decodes the response into out.
//
// A non-nil body is encoded as JSON and, when reqShape is set, validated
// before anything is sent; a failure returns *ValidationError. A transport
// failure, timeout or non-2xx status returns *TransportError. A 2xx body that
// is not JSON or does not satisfy respShape returns *SchemaError. When both
// respShape and out are nil the response body is ignored.
func (c *Client) Do(ctx context.Context, method, path string, body any, reqShape, respShape *Shape, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := encodeRequest(path, body, reqShape)
		if err != nil {
			c.metrics.ObserveRequest(method, metrics.OutcomeValidation, 0)
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.endpoints.Resolve(path), reqBody)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	raw, err := c.roundTrip(req, method, path)
	if err != nil {
		c.metrics.ObserveRequest(method, metrics.OutcomeTransport, time.Since(start))
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return err
	}

	if respShape == nil && out == nil {
		c.metrics.ObserveRequest(method, metrics.OutcomeOK, time.Since(start))
		return nil
	}

	if err := decodeResponse(path, raw, respShape, out); err != nil {
		c.metrics.ObserveRequest(method, metrics.OutcomeSchema, time.Since(start))
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("response failed validation")
		return err
	}

	c.metrics.ObserveRequest(method, metrics.OutcomeOK, time.Since(start))
	c.logger.Debug().Str("method", method).Str("path", path).Dur("elapsed", time.Since(start)).Msg("request ok")
	return nil
}

// roundTrip sends req and returns the body of a 2xx response.
func (c *Client) roundTrip(req *http.Request, method, path string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	return raw, nil
}

// Ping issues GET /ping and reports whether the backend answered with a 2xx
// status. The body is ignored.
func (c *Client) Ping(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, PingPath, nil, nil, nil, nil)
}

// Get issues a GET for path and returns the validated body as a T.
func Get[T any](ctx context.Context, c *Client, path string, shape *Shape) (T, error) {
	var out T
	if err := c.Do(ctx, http.MethodGet, path, nil, nil, shape, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Post issues a POST for path with body validated against shape. The
// response body is ignored.
func Post(ctx context.Context, c *Client, path string, body any, shape *Shape) error {
	return c.Do(ctx, http.MethodPost, path, body, shape, nil, nil)
}

func encodeRequest(path string, body any, shape *Shape) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ValidationError{Path: path, Violations: []string{err.Error()}, Err: err}
	}
	if shape != nil {
		if violations := shape.CheckBytes(payload); len(violations) > 0 {
			return nil, &ValidationError{Path: path, Violations: violations}
		}
	}
	return payload, nil
}

func decodeResponse(path string, raw []byte, shape *Shape, out any) error {
	if shape != nil {
		if violations := shape.CheckBytes(raw); len(violations) > 0 {
			return &SchemaError{Path: path, Violations: violations}
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaError{Path: path, Violations: []string{err.Error()}}
	}
	return nil
}

// statusText prefers the server's reason phrase over the canonical one.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
