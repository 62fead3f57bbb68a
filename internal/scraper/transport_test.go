package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(t *testing.T, ua string) identity.Identity {
	t.Helper()
	pool, err := identity.NewPool([]identity.Spec{{UserAgent: ua}}, identity.RoundRobin)
	require.NoError(t, err)
	return pool.Next()
}

func TestHTTPTransportPostsFormWithIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-agent", r.UserAgent())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1234", r.PostForm.Get("case_no"))
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc"})
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(5*time.Second, 0, logger.NewNop())
	id := testIdentity(t, "test-agent")

	resp, err := tr.Do(context.Background(), &Request{
		Method:   http.MethodPost,
		URL:      srv.URL + "/search",
		Form:     url.Values{"case_no": {"1234"}},
		Identity: id,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))

	u, _ := url.Parse(srv.URL)
	cookies := id.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestHTTPTransportGetAppendsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "x", r.URL.Query().Get("a"))
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(5*time.Second, 0, logger.NewNop())
	resp, err := tr.Do(context.Background(), &Request{
		URL:  srv.URL + "/list?a=x",
		Form: url.Values{"year": {"2024"}},
	})
	require.NoError(t, err)
	assert.True(t, IsRateLimited(resp))
}

func TestHTTPTransportNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	tr := NewHTTPTransport(time.Second, 0, logger.NewNop())
	_, err := tr.Do(context.Background(), &Request{URL: addr})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestHTTPTransportHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr := NewHTTPTransport(5*time.Second, 0, logger.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Do(ctx, &Request{URL: srv.URL})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://portal.example/cases/orders/1.pdf",
		ResolveURL("https://portal.example/cases/view.php", "orders/1.pdf"))
	assert.Equal(t, "https://portal.example/a.pdf",
		ResolveURL("https://portal.example/cases/view.php", "/a.pdf"))
	assert.Equal(t, "", ResolveURL("https://portal.example/", "  "))
}

func TestHTTPTransportRateWaitPastDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(5*time.Second, 0.01, logger.NewNop())
	id := testIdentity(t, "test-agent")

	_, err := tr.Do(context.Background(), &Request{URL: srv.URL, Identity: id})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	_, err = tr.Do(ctx, &Request{URL: srv.URL, Identity: id})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "the limiter refuses without waiting for the deadline")
}
