package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/idctl/pkg/observability"
)

// RequestIDHeader carries the per-call correlation id
const RequestIDHeader = "X-Request-ID"

// ErrNoBaseURL is returned when the gateway has no identity service URL
var ErrNoBaseURL = errors.New("gateway: identity service URL is not configured")

// Request describes one call relative to the identity service base URL
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   io.Reader
}

// Options configures a Gateway
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *logrus.Logger
	Metrics   *observability.ClientMetrics
}

// Gateway is the single choke point for outbound identity calls. It attaches
// the bearer token and leaves status handling to the caller.
type Gateway struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
	metrics *observability.ClientMetrics
}

// New creates a gateway. A nil Transport uses http.DefaultTransport; either
// way the transport is wrapped for tracing.
func New(opts Options) *Gateway {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	return &Gateway{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		log:     log,
		metrics: opts.Metrics,
	}
}

// URL joins path onto the base URL
func (g *Gateway) URL(path string) (string, error) {
	if g.baseURL == "" {
		return "", ErrNoBaseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return g.baseURL + path, nil
}

// Call issues req with token as the bearer credential. An empty token sends
// the request without an Authorization header. The response is returned as
// is, whatever its status; network failures come back unchanged. The caller
// closes the response body.
func (g *Gateway) Call(ctx context.Context, req *Request, token string) (*http.Response, error) {
	target, err := g.URL(req.Path)
	if err != nil {
		return nil, err
	}
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	requestID := httpReq.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
		httpReq.Header.Set(RequestIDHeader, requestID)
	}

	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	log := observability.WithTraceContext(ctx, g.log).WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       req.Path,
	})

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.RecordRequest(method, 0, elapsed)
		log.WithError(err).Debug("request failed")
		return nil, err
	}

	g.metrics.RecordRequest(method, resp.StatusCode, elapsed)
	log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("request completed")

	return resp, nil
}
