package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/ledongthuc/pdf"
)

// maxDocumentSize caps judgment downloads.
const maxDocumentSize = 64 << 20

var (
	ErrHostNotAllowed   = errors.New("document host not allowed")
	ErrDocumentFailed   = errors.New("document download failed")
	ErrDocumentTooLarge = errors.New("document too large")
)

// DocumentInfo describes a streamed document.
type DocumentInfo struct {
	ContentType string
	Size        int64
}

// Downloader streams judgment documents from portal hosts.
type Downloader struct {
	allowed map[string]bool
	client  *http.Client
	maxSize int64
	logger  *logger.Logger
}

// NewDownloader creates a downloader limited to the hosts of the given base URLs.
func NewDownloader(baseURLs []string, timeout time.Duration, log *logger.Logger) *Downloader {
	allowed := make(map[string]bool)
	for _, b := range baseURLs {
		if u, err := url.Parse(b); err == nil && u.Hostname() != "" {
			allowed[strings.ToLower(u.Hostname())] = true
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	d := &Downloader{
		allowed: allowed,
		maxSize: maxDocumentSize,
		logger:  log,
	}
	d.client = &http.Client{Timeout: timeout, CheckRedirect: d.checkRedirect}
	return d
}

// checkRedirect keeps redirects on portal hosts.
func (d *Downloader) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if !d.Allowed(req.URL.String()) {
		return fmt.Errorf("%w: redirect to %s", ErrHostNotAllowed, req.URL.Host)
	}
	return nil
}

// Allowed reports whether rawURL points at a configured portal host.
func (d *Downloader) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return d.allowed[strings.ToLower(u.Hostname())]
}

// Stream copies the document at rawURL into w. A document larger than the
// size limit fails with ErrDocumentTooLarge; when the portal does not declare
// the length up front, part of it may already have been written.
func (d *Downloader) Stream(ctx context.Context, rawURL string, w io.Writer) (*DocumentInfo, error) {
	if !d.Allowed(rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", identity.DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDocumentFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: bad status: %s", ErrDocumentFailed, resp.Status)
	}
	if resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, resp.ContentLength)
	}

	size, err := io.Copy(w, io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentFailed, err)
	}
	if size > d.maxSize {
		return nil, fmt.Errorf("%w: over %d bytes", ErrDocumentTooLarge, d.maxSize)
	}

	d.logger.Info("Document streamed", "url", rawURL, "size", size)

	return &DocumentInfo{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
	}, nil
}

// ExtractText returns the plain text of a PDF document.
func ExtractText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return CleanText(buf.String()), nil
}
