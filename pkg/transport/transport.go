// Package transport performs the SDK's HTTP calls. Every request runs
// through retry.Do, and every failure is converted into a *failure.Error so
// that the retry classification applies uniformly.
package transport

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
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
	"go.uber.org/zap"
)

// HeaderRequestID carries the call ID. All attempts of one call share it.
const HeaderRequestID = "X-Request-ID"

// maxBody caps how much of a response is buffered.
const maxBody = 64 << 20

// NewHTTPClient returns an *http.Client whose dialer honours t.Connect and
// whose overall deadline is t.Request. Zero values take the defaults.
func NewHTTPClient(t config.Timeouts) *http.Client {
	t = t.WithDefaults()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{
		Timeout:   t.Connect,
		KeepAlive: 30 * time.Second,
	}).DialContext
	tr.TLSHandshakeTimeout = t.Connect
	return &http.Client{Transport: tr, Timeout: t.Request}
}

// Request describes one logical HTTP call. Body is replayed on every attempt.
type Request struct {
	// Op names the call in logs, events and errors.
	Op     string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Client sends Requests with retries.
type Client struct {
	http    *http.Client
	policy  retry.Policy
	timeout time.Duration
	apiKey  string
	scheme  string
	opts    []retry.Option
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey, c.scheme = key, "Bearer" }
}

// WithBasicAPIKey sends key under the Basic scheme, as the voice services
// expect.
func WithBasicAPIKey(key string) Option {
	return func(c *Client) { c.apiKey, c.scheme = key, "Basic" }
}

// WithHTTPClient replaces the HTTP client built from the timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryOptions passes options (observers, sleeper) to every retry.Do.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(c *Client) { c.opts = append(c.opts, opts...) }
}

// Derive returns a copy of c with opts applied on top, sharing the HTTP
// client and retry options.
func (c *Client) Derive(opts ...Option) *Client {
	cc := *c
	cc.opts = append([]retry.Option(nil), c.opts...)
	for _, opt := range opts {
		opt(&cc)
	}
	return &cc
}

// New builds a Client. Each attempt is bounded by timeouts.Request.
func New(policy retry.Policy, timeouts config.Timeouts, opts ...Option) *Client {
	timeouts = timeouts.WithDefaults()
	c := &Client{
		policy:  policy,
		timeout: timeouts.Request,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(timeouts)
	}
	return c
}

// HTTPClient returns the underlying HTTP client, for libraries that issue
// their own requests.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Policy returns the retry policy of c.
func (c *Client) Policy() retry.Policy { return c.policy }

// Timeout returns the per-attempt timeout of c.
func (c *Client) Timeout() time.Duration { return c.timeout }

// RetryOptions returns the retry options of c followed by extra.
func (c *Client) RetryOptions(extra ...retry.Option) []retry.Option {
	out := make([]retry.Option, 0, len(c.opts)+len(extra))
	out = append(out, c.opts...)
	return append(out, extra...)
}

// Do sends r and returns the response body of the first successful attempt.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	if r.Op == "" {
		r.Op = r.Method + " " + r.URL
	}
	id := uuid.NewString()
	return retry.Do(ctx, c.policy, c.timeout, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, r, id)
	}, c.RetryOptions(retry.WithOperation(r.Op))...)
}

// JSON sends in (if non-nil) as a JSON body and decodes the response into
// out (if non-nil). A body that does not decode is a
// failure.KindResponseInvalid error and is not retried.
func (c *Client) JSON(ctx context.Context, op, method, url string, in, out any) error {
	r := Request{Op: op, Method: method, URL: url, Header: http.Header{}}
	r.Header.Set("Accept", "application/json")
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return failure.InvalidInput(fmt.Sprintf("encode %s request: %v", op, err))
		}
		r.Body = b
		r.Header.Set("Content-Type", "application/json")
	}
	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return failure.Response(fmt.Sprintf("%s: %v", op, err), string(body))
	}
	return nil
}

func (c *Client) send(ctx context.Context, r Request, id string) ([]byte, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, failure.InvalidInput(fmt.Sprintf("%s: %v", r.Op, err))
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.scheme+" "+c.apiKey)
	}
	req.Header.Set(HeaderRequestID, id)

	zap.L().Debug("http request",
		zap.String("op", r.Op),
		zap.String("method", r.Method),
		zap.String("url", r.URL),
		zap.String("request_id", id))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Convert(r.Op, req.URL.Host, c.timeout, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			zap.L().Debug("failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, Convert(r.Op, req.URL.Host, c.timeout, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, failure.Status(resp.StatusCode, b)
	}
	return b, nil
}

// Convert maps a transport error from an HTTP call to host into the failure
// taxonomy. Caller cancellation is returned unchanged.
func Convert(op, host string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		return failure.Connection(host, err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return failure.Connection(host, err)
	case errors.Is(err, context.DeadlineExceeded):
		return failure.Timeout(op, timeout, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failure.Timeout(op, timeout, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return failure.Network(op, ue.Op+" "+redact(ue.URL)+" failed", err)
	}
	return failure.Network(op, err.Error(), err)
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
