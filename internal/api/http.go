package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/productlogik/plk/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerUserAgent     = "User-Agent"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"
	userAgent           = "plk-go/1.0.0"

	maxResponseBytes = 64 << 20
)

// request describes one API call.
type request struct {
	op       string // operation name used for spans, logs and metrics
	method   string
	path     string
	query    url.Values
	body     io.Reader
	ctype    string
	auth     bool
	fallback string // message prefix when the error body has no detail
}

// instrument runs fn under a span, a request id, the rate limiter and the
// request metrics.
func (c *Client) instrument(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "plk.api."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	ctx = logging.WithOperation(ctx, op)
	span.SetAttributes(
		attribute.String("plk.operation", op),
		attribute.String("plk.request_id", requestID),
	)

	start := time.Now()
	err := c.limiter.Wait(ctx)
	if err != nil {
		err = transportError(fmt.Errorf("rate limiter: %w", err))
	} else {
		err = fn(ctx)
	}
	elapsed := time.Since(start)

	c.metrics.RequestsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
	c.metrics.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug(ctx, "api request failed",
			zap.Duration("duration", elapsed),
			zap.Int("status", StatusCode(err)),
			zap.Error(err),
		)
		return err
	}
	c.logger.Debug(ctx, "api request completed", zap.Duration("duration", elapsed))
	return nil
}

// do performs r and returns the raw success body.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	var out []byte
	err := c.instrument(ctx, r.op, func(ctx context.Context) error {
		body, err := c.roundTrip(ctx, r)
		out = body
		return err
	})
	return out, err
}

// doJSON performs r and decodes the success body into result.
func (c *Client) doJSON(ctx context.Context, r request, result interface{}) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return &Error{
				Kind:    KindDomain,
				Message: r.fallback + ": unexpected response from server",
				Err:     fmt.Errorf("failed to parse response: %w", err),
			}
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	token := ""
	if r.auth {
		token = c.tokens.Token()
		if token == "" {
			return nil, NoSession()
		}
	}

	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerUserAgent, userAgent)
	req.Header.Set(headerAccept, contentTypeJSON)
	if r.ctype != "" {
		req.Header.Set(headerContentType, r.ctype)
	}
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	c.logger.Trace(ctx, "api request", zap.String("method", r.method), zap.String("path", r.path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		apiErr := parseError(resp.StatusCode, body, r.fallback)
		if r.auth && resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized(ctx)
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	c.metrics.UnauthorizedTotal.Inc()
	c.logger.Info(ctx, "session rejected by server")
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
}

func jsonBody(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(b), nil
}
