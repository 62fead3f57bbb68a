package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"golang.org/x/time/rate"
)

// maxBodySize caps how much of a portal response is read.
const maxBodySize = 8 << 20

// ErrTransport marks network level failures (connection refused, reset, body read errors).
var ErrTransport = errors.New("transport failure")

// Request is one outbound portal request.
type Request struct {
	Method   string
	URL      string
	Form     url.Values
	Headers  http.Header
	Identity identity.Identity
}

// Response is a fully read portal response. Non-2xx statuses are returned as
// responses, not errors; adapters decide what they mean.
type Response struct {
	StatusCode int
	URL        *url.URL
	Header     http.Header
	Body       []byte
}

// Transport performs portal requests. Adapters and the captcha solver only ever
// talk to portals through it.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is a net/http backed transport with a token bucket per host.
type HTTPTransport struct {
	timeout time.Duration
	rps     float64
	logger  *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	clients  map[string]*http.Client
}

// NewHTTPTransport creates a transport. rps <= 0 disables proactive throttling.
func NewHTTPTransport(timeout time.Duration, rps float64, log *logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		timeout:  timeout,
		rps:      rps,
		logger:   log,
		limiters: make(map[string]*rate.Limiter),
		clients:  make(map[string]*http.Client),
	}
}

// SetHostRate overrides the request rate for one host.
func (t *HTTPTransport) SetHostRate(host string, rps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiters[host] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Do issues the request with the identity's user agent, cookie jar and proxy.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	target := req.URL
	if req.Form != nil {
		if method == http.MethodGet {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + req.Form.Encode()
		} else {
			body = strings.NewReader(req.Form.Encode())
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	userAgent := req.Identity.UserAgent
	if userAgent == "" {
		userAgent = identity.DefaultUserAgent
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if httpReq.Header.Get("Accept-Language") == "" {
		httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}

	if err := t.limiter(httpReq.URL.Host).Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// the limiter refuses up front when the next token falls after the deadline
		return nil, fmt.Errorf("rate limit wait for %s: %w", httpReq.URL.Host, context.DeadlineExceeded)
	}

	start := time.Now()
	resp, err := t.client(req.Identity).Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	t.logger.Debug("Portal request completed",
		"method", method,
		"url", httpReq.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(data),
		"identity", req.Identity.Name,
		"latency", time.Since(start).String(),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (t *HTTPTransport) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[host]
	if !ok {
		limit := rate.Inf
		if t.rps > 0 {
			limit = rate.Limit(t.rps)
		}
		l = rate.NewLimiter(limit, 1)
		t.limiters[host] = l
	}
	return l
}

// client returns one http.Client per identity so jars and proxies never mix.
func (t *HTTPTransport) client(id identity.Identity) *http.Client {
	key := id.Name
	if id.Proxy != nil {
		key += "|" + id.Proxy.String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[key]; ok && id.Name != "" {
		return c
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if id.Proxy != nil {
		base.Proxy = http.ProxyURL(id.Proxy)
	}

	c := &http.Client{
		Timeout:   t.timeout,
		Transport: base,
		Jar:       id.Jar,
	}
	if id.Name != "" {
		t.clients[key] = c
	}
	return c
}

// IsRateLimited reports whether a response is a rate-limit or blocking signal.
func IsRateLimited(resp *Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden)
}

// ResolveURL resolves ref against the response URL (or base when the response has none).
func ResolveURL(base string, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
