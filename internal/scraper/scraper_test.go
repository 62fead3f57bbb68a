package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBrowser starts a headless browser from a local install. The tests
// are skipped rather than downloading one.
func newTestBrowser(t *testing.T) *BrowserTransport {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no local chromium found")
	}
	b, err := NewBrowserTransport(BrowserOptions{
		Headless:    true,
		BrowserPath: bin,
		Timeout:     10 * time.Second,
	}, logger.NewNop())
	if err != nil {
		t.Skipf("browser did not start: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func originServer(slow <-chan struct{}) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if slow != nil {
			select {
			case <-slow:
			case <-r.Context().Done():
				return
			}
		}
		_, _ = w.Write([]byte("<html><body>portal</body></html>"))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(r.UserAgent() + "|" + r.Form.Get("case_no")))
	})
	return httptest.NewServer(mux)
}

func TestBrowserTransportFetchesWithIdentity(t *testing.T) {
	b := newTestBrowser(t)
	srv := originServer(nil)
	defer srv.Close()

	resp, err := b.Do(context.Background(), &Request{
		Method:   http.MethodPost,
		URL:      srv.URL + "/echo",
		Form:     map[string][]string{"case_no": {"1234"}},
		Identity: testIdentity(t, "browser-agent"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "browser-agent|1234", string(resp.Body))
	assert.Equal(t, "/echo", resp.URL.Path)
}

func TestBrowserTransportSlowOriginDoesNotBlockOthers(t *testing.T) {
	b := newTestBrowser(t)

	release := make(chan struct{})
	slow := originServer(release)
	defer slow.Close()
	defer close(release)
	fast := originServer(nil)
	defer fast.Close()

	id := testIdentity(t, "browser-agent")

	slowDone := make(chan error, 1)
	go func() {
		_, err := b.Do(context.Background(), &Request{URL: slow.URL + "/echo", Identity: id})
		slowDone <- err
	}()

	// let the slow origin's navigation start
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := b.Do(ctx, &Request{URL: fast.URL + "/echo", Identity: id})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case err := <-slowDone:
		t.Fatalf("slow origin finished before release: %v", err)
	default:
	}
}
