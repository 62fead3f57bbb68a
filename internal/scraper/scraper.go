package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// fetchScript runs a request from inside the portal origin so the browser's
// cookies and TLS fingerprint are used. The body is returned base64 encoded so
// captcha images survive the round trip.
const fetchScript = `async (url, method, body, headers) => {
	const resp = await fetch(url, {
		method: method,
		body: body === "" ? undefined : body,
		headers: headers,
		credentials: "include",
	});
	const buf = new Uint8Array(await resp.arrayBuffer());
	let bin = "";
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return {status: resp.status, url: resp.url, body: btoa(bin)};
}`

// BrowserOptions configures the headless browser transport.
type BrowserOptions struct {
	Headless    bool
	BrowserPath string
	Timeout     time.Duration
	Debug       bool
}

// BrowserTransport drives portals through a real Chromium instance. Each
// identity gets its own incognito context, and one page per origin is reused.
type BrowserTransport struct {
	opts    BrowserOptions
	browser *rod.Browser
	mu      sync.Mutex
	logger  *logger.Logger

	contexts map[string]*browserContext
	sessions map[string]*session
}

// browserContext is one identity's incognito context, created once.
type browserContext struct {
	once    sync.Once
	browser *rod.Browser
	err     error
}

// session is one identity's page on one origin. ready closes once the page
// has been opened, or failed to open.
type session struct {
	ready chan struct{}
	page  *rod.Page
	err   error
}

// NewBrowserTransport launches the browser.
func NewBrowserTransport(opts BrowserOptions, log *logger.Logger) (*BrowserTransport, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")

	if opts.BrowserPath != "" {
		l = l.Bin(opts.BrowserPath)
	}
	if opts.Debug {
		l = l.Devtools(true)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &BrowserTransport{
		opts:     opts,
		browser:  browser,
		logger:   log,
		contexts: make(map[string]*browserContext),
		sessions: make(map[string]*session),
	}, nil
}

// Close closes all pages and the browser.
func (b *BrowserTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, sess := range b.sessions {
		select {
		case <-sess.ready:
		default:
			continue
		}
		if sess.page == nil {
			continue
		}
		if err := sess.page.Close(); err != nil {
			b.logger.Warn("Failed to close page", "session", key, "error", err)
		}
	}
	b.sessions = make(map[string]*session)

	return b.browser.Close()
}

// Do performs the request with fetch() inside a page opened on the target origin.
func (b *BrowserTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body := ""
	headers := map[string]string{}
	for k := range req.Headers {
		headers[k] = req.Headers.Get(k)
	}
	if req.Form != nil {
		if method == http.MethodGet {
			target.RawQuery = req.Form.Encode()
		} else {
			body = req.Form.Encode()
			if _, ok := headers["Content-Type"]; !ok {
				headers["Content-Type"] = "application/x-www-form-urlencoded"
			}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	page, err := b.page(reqCtx, req, target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := page.Context(reqCtx).Eval(fetchScript, target.String(), method, body, headers)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.dropSession(req, target)
		return nil, fmt.Errorf("%w: browser fetch: %v", ErrTransport, err)
	}

	data, err := base64.StdEncoding.DecodeString(res.Value.Get("body").Str())
	if err != nil {
		return nil, fmt.Errorf("%w: decoding body: %v", ErrTransport, err)
	}

	finalURL, err := url.Parse(res.Value.Get("url").Str())
	if err != nil || finalURL.Host == "" {
		finalURL = target
	}

	status := res.Value.Get("status").Int()
	b.logger.Debug("Browser request completed",
		"method", method,
		"url", target.String(),
		"status", status,
		"bytes", len(data),
		"identity", req.Identity.Name,
		"latency", time.Since(start).String(),
	)

	return &Response{
		StatusCode: status,
		URL:        finalURL,
		Header:     http.Header{},
		Body:       data,
	}, nil
}

func sessionKey(req *Request, target *url.URL) string {
	return req.Identity.Name + "|" + target.Scheme + "://" + target.Host
}

// page returns the page for this identity and origin, opening and navigating
// it on first use. The lock only guards the session map; navigation runs
// outside it so other identities and origins are not held up. Concurrent
// callers for the same key wait for the first one to finish opening.
func (b *BrowserTransport) page(ctx context.Context, req *Request, target *url.URL) (*rod.Page, error) {
	key := sessionKey(req, target)

	b.mu.Lock()
	if sess, ok := b.sessions[key]; ok {
		b.mu.Unlock()
		select {
		case <-sess.ready:
			if sess.err != nil {
				return nil, sess.err
			}
			return sess.page, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sess := &session{ready: make(chan struct{})}
	b.sessions[key] = sess
	b.mu.Unlock()

	page, err := b.open(ctx, req, target)

	b.mu.Lock()
	sess.page, sess.err = page, err
	if err != nil && b.sessions[key] == sess {
		delete(b.sessions, key)
	}
	b.mu.Unlock()
	close(sess.ready)

	return page, err
}

func (b *BrowserTransport) open(ctx context.Context, req *Request, target *url.URL) (*rod.Page, error) {
	incognito, err := b.contextFor(req)
	if err != nil {
		return nil, err
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if ua := req.Identity.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	origin := target.Scheme + "://" + target.Host + "/"
	b.logger.Info("Opening portal session", "origin", origin, "identity", req.Identity.Name)
	if err := page.Context(ctx).Navigate(origin); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: navigate: %v", ErrTransport, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		// a partially loaded origin page is still usable for fetch()
		b.logger.Warn("Page load incomplete", "origin", origin, "error", err)
	}
	return page, nil
}

// contextFor returns the identity's incognito context, routed through the
// identity's proxy when it has one.
func (b *BrowserTransport) contextFor(req *Request) (*rod.Browser, error) {
	b.mu.Lock()
	bc, ok := b.contexts[req.Identity.Name]
	if !ok {
		bc = &browserContext{}
		b.contexts[req.Identity.Name] = bc
	}
	b.mu.Unlock()

	bc.once.Do(func() {
		create := proto.TargetCreateBrowserContext{}
		if proxy := req.Identity.Proxy; proxy != nil {
			create.ProxyServer = proxy.Scheme + "://" + proxy.Host
			if proxy.User != nil {
				b.logger.Warn("Proxy credentials are not supported in browser mode", "identity", req.Identity.Name)
			}
		}
		res, err := create.Call(b.browser)
		if err != nil {
			bc.err = fmt.Errorf("failed to create browser context: %w", err)
			return
		}
		incognito := b.browser.Context(b.browser.GetContext())
		incognito.BrowserContextID = res.BrowserContextID
		bc.browser = incognito
	})
	return bc.browser, bc.err
}

func (b *BrowserTransport) dropSession(req *Request, target *url.URL) {
	key := sessionKey(req, target)

	b.mu.Lock()
	sess, ok := b.sessions[key]
	if ok {
		select {
		case <-sess.ready:
			delete(b.sessions, key)
		default:
			// still opening; the opener owns it
			ok = false
		}
	}
	b.mu.Unlock()

	if ok && sess.page != nil {
		_ = sess.page.Close()
	}
}
