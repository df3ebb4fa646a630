// Package api is the HTTP client for the ProductLogik API.
//
// Every operation returns either a decoded value or an *Error whose Message
// is safe to show to the user. Authenticated operations read the bearer
// token from a TokenProvider on each call and report 401 responses to the
// unauthorized handler so the session can be torn down.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/productlogik/plk/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the API origin used when none is configured.
	DefaultBaseURL = "http://127.0.0.1:8001/api"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	defaultRateLimit = 10
	defaultBurst     = 5

	instrumentationName = "github.com/productlogik/plk/internal/api"
)

// ErrNoSession is returned by authenticated operations when no token is held.
var ErrNoSession = errors.New("not logged in")

// TokenProvider supplies the current bearer token. An empty string means
// there is no session.
type TokenProvider interface {
	Token() string
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func() string

// Token implements TokenProvider.
func (f TokenFunc) Token() string { return f() }

// Client is the ProductLogik API client.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenProvider
	onUnauthorized func(ctx context.Context)
	limiter        *rate.Limiter
	logger         *logging.Logger
	metrics        *Metrics
	tracer         trace.Tracer
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the API base URL. A URL without a trailing /api has it
// appended.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = NormalizeBaseURL(url)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithTokenProvider sets where authenticated calls read the bearer token.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) {
		c.tokens = p
	}
}

// WithUnauthorizedHandler registers fn to run whenever an authenticated
// call receives a 401, before the error is returned to the caller.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// NewClient creates a new API client.
//
//	client := api.NewClient(
//	    api.WithBaseURL(cfg.API.BaseURL),
//	    api.WithTokenProvider(store),
//	    api.WithUnauthorizedHandler(store.HandleUnauthorized),
//	)
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		tokens:  TokenFunc(func() string { return "" }),
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:  logging.Nop(),
		metrics: NewMetrics(),
		tracer:  otel.Tracer(instrumentationName),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Copy so the caller's client is never mutated.
	hc := *c.httpClient
	hc.Transport = &requestIDTransport{base: hc.Transport}
	c.httpClient = &hc

	return c
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Origin returns the base URL without its /api suffix.
func (c *Client) Origin() string {
	return strings.TrimSuffix(c.baseURL, "/api")
}

// NormalizeBaseURL trims trailing slashes and ensures the URL ends in /api.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return DefaultBaseURL
	}
	if !strings.HasSuffix(u, "/api") {
		u += "/api"
	}
	return u
}

// requestIDTransport copies the request id from the context onto the
// X-Request-ID header, including requests made by the oauth2 package.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if id := logging.RequestIDFromContext(req.Context()); id != "" && req.Header.Get(headerRequestID) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(headerRequestID, id)
	}
	return base.RoundTrip(req)
}
