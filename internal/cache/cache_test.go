package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, maxSize int) (*ResultCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	c := New(maxSize, time.Minute)
	c.SetClock(clock.Now)
	return c, clock
}

func TestCaseKeyNormalization(t *testing.T) {
	assert.Equal(t, Fingerprint("case:WP(C):1234:2024"), CaseKey(" wp (c) ", " 1234 ", 2024))
	assert.Equal(t, CaseKey("WP", "1234", 2024), CaseKey("wp", "1234", 2024))
	assert.NotEqual(t, CaseKey("WP", "1234", 2024), CaseKey("WP", "1234", 2023))
	assert.NotEqual(t, CaseKey("WP", "1234", 2024), CaseKey("WP", "12345", 2024))

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, Fingerprint("causelist:2024-03-15:all"), CauseListKey(date, ""))
	assert.Equal(t, Fingerprint("causelist:2024-03-15:court no. 5"), CauseListKey(date, "  Court No. 5 "))
}

func TestParseCaseFingerprint(t *testing.T) {
	typ, number, year, err := ParseCaseFingerprint(CaseKey("crl.a", "55", 2021))
	require.NoError(t, err)
	assert.Equal(t, "CRL.A", typ)
	assert.Equal(t, "55", number)
	assert.Equal(t, 2021, year)

	for _, bad := range []Fingerprint{"causelist:2024-03-15:all", "case:WP", "case:WP:1:abc", "case::1:2024", "case:WP::2024"} {
		_, _, _, err := ParseCaseFingerprint(bad)
		assert.Error(t, err, string(bad))
	}
}

func TestPutGetAndLazyExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10)
	key := CaseKey("WP", "1", 2024)

	_, ok := c.Get(key)
	assert.False(t, ok)

	put := c.Put(key, "value", 30*time.Minute)
	assert.Equal(t, FreshnessLive, put.Freshness)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "value", got.Value)
	assert.Equal(t, FreshnessCached, got.Freshness)
	assert.Equal(t, put.ExpiresAt, got.ExpiresAt)

	clock.Advance(30 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry must expire exactly at its ttl")

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(2), s.Misses)
	assert.Equal(t, 0, s.Size)
}

func TestPutReplacesWholesale(t *testing.T) {
	c, _ := newTestCache(t, 10)
	key := CaseKey("WP", "1", 2024)

	c.Put(key, "old", time.Hour)
	c.Put(key, "new", time.Hour)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "new", got.Value)

	c.Put(key, "ignored", 0)
	got, _ = c.Get(key)
	assert.Equal(t, "new", got.Value)
}

func TestSizeBoundEvictsSoonestExpiring(t *testing.T) {
	c, _ := newTestCache(t, 2)

	c.Put("a", 1, time.Hour)
	c.Put("b", 2, 10*time.Minute)
	c.Put("c", 3, 2*time.Hour)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestSingleFlightRegistry(t *testing.T) {
	c, _ := newTestCache(t, 10)
	key := CaseKey("WP", "1234", 2024)

	token, waiter := c.BeginInflight(key)
	require.NotNil(t, token)
	require.Nil(t, waiter)
	assert.True(t, c.IsInflight(key))

	const followers = 5
	var wg sync.WaitGroup
	results := make([]any, followers)
	for i := 0; i < followers; i++ {
		tok, w := c.BeginInflight(key)
		require.Nil(t, tok)
		require.NotNil(t, w)
		wg.Add(1)
		go func(i int, w *Waiter) {
			defer wg.Done()
			e, err := w.Wait(context.Background())
			if assert.NoError(t, err) {
				results[i] = e.Value
			}
		}(i, w)
	}

	entry := c.Put(key, "record", time.Hour)
	c.CompleteInflight(token, entry, nil)
	c.CompleteInflight(token, nil, errors.New("ignored"))
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "record", r)
	}
	assert.False(t, c.IsInflight(key))

	next, _ := c.BeginInflight(key)
	assert.NotNil(t, next, "a new extraction may start once the previous one completed")
	c.CompleteInflight(next, nil, nil)
}

func TestWaitersReceiveFailure(t *testing.T) {
	c, _ := newTestCache(t, 10)
	key := CaseKey("WP", "1", 2024)

	token, _ := c.BeginInflight(key)
	_, waiter := c.BeginInflight(key)

	boom := errors.New("all sources failed")
	c.CompleteInflight(token, nil, boom)

	_, err := waiter.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestWaiterHonoursContext(t *testing.T) {
	c, _ := newTestCache(t, 10)
	key := CaseKey("WP", "1", 2024)

	token, _ := c.BeginInflight(key)
	defer c.CompleteInflight(token, nil, nil)
	_, waiter := c.BeginInflight(key)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := waiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClearKeepsInflight(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Put("a", 1, time.Hour)
	token, _ := c.BeginInflight("b")

	c.Clear()
	s := c.Stats()
	assert.Equal(t, 0, s.Size)
	assert.Equal(t, 1, s.Inflight)
	c.CompleteInflight(token, nil, nil)
	assert.Equal(t, 0, c.Stats().Inflight)
}

func TestCauseListTTL(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	now := time.Date(2024, 3, 15, 18, 0, 0, 0, ist)
	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 6*time.Hour, CauseListTTL(now, today, ist, 24*time.Hour))
	assert.Equal(t, 30*time.Hour, CauseListTTL(now, today.AddDate(0, 0, 1), ist, 24*time.Hour))
	assert.Equal(t, 24*time.Hour, CauseListTTL(now, today.AddDate(0, 0, -1), ist, 24*time.Hour))
}
