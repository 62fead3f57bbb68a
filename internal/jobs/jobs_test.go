package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/database"
	"github.com/JustJay7/ecourts-extractor/internal/extractor"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	failOn map[string]bool
	dates  []string
}

func (f *fakeEngine) FetchCauseList(_ context.Context, date time.Time, court string) (*extractor.Result, error) {
	label := date.Format("2006-01-02")
	f.dates = append(f.dates, label)
	if f.failOn[label] {
		err := &extractor.Error{Kind: extractor.KindNotFound, Reason: extractor.ReasonSourcesUnavailable}
		return &extractor.Result{Reason: extractor.ReasonSourcesUnavailable, Message: "no portal answered"}, err
	}
	return &extractor.Result{
		Success: true,
		CauseList: &models.CauseList{
			HearingDate: date,
			Entries:     []models.CauseListEntry{{CaseType: "CS", CaseNumber: "1", CaseYear: 2024}, {CaseType: "CS", CaseNumber: "2", CaseYear: 2024}},
		},
	}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	saved     []time.Time
	logged    []database.ScrapingLog
	cleanedAt time.Time
	retention database.Retention
}

func (s *fakeStore) SaveCauseList(_ context.Context, list *models.CauseList) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, list.HearingDate)
	return len(list.Entries), nil
}

func (s *fakeStore) LogAttempt(_ context.Context, entry *database.ScrapingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logged = append(s.logged, *entry)
	return nil
}

func (s *fakeStore) Cleanup(_ context.Context, now time.Time, r database.Retention) (*database.CleanupResult, error) {
	s.cleanedAt, s.retention = now, r
	return &database.CleanupResult{CauseListRows: 4, Logs: 2}, nil
}

func TestRefreshCauseLists(t *testing.T) {
	engine := &fakeEngine{failOn: map[string]bool{"2024-03-16": true}}
	store := &fakeStore{}
	r := NewRunner(engine, store, time.UTC, database.DefaultRetention, logger.NewNop())

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	report, err := r.RefreshCauseLists(context.Background(), start, 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-15", "2024-03-16", "2024-03-17", "2024-03-18"}, engine.dates)
	assert.Equal(t, 4, report.Dates)
	assert.Equal(t, 6, report.Entries)
	assert.Equal(t, []string{"2024-03-16"}, report.FailedDates)
	assert.Len(t, store.saved, 3)

	require.Len(t, store.logged, 4)
	assert.Equal(t, "daily_cause_list", store.logged[0].Operation)
	assert.False(t, store.logged[1].Success)
	assert.Equal(t, "no portal answered", store.logged[1].ErrorMessage)
}

func TestRefreshCauseListsAllFailed(t *testing.T) {
	engine := &fakeEngine{failOn: map[string]bool{"2024-03-15": true}}
	r := NewRunner(engine, &fakeStore{}, time.UTC, database.Retention{}, logger.NewNop())

	report, err := r.RefreshCauseLists(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 0)
	require.Error(t, err)
	assert.Equal(t, 1, report.Dates, "at least one day is refreshed")
}

func TestRefreshUpcomingStartsToday(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	engine := &fakeEngine{}
	r := NewRunner(engine, &fakeStore{}, kolkata, database.Retention{}, logger.NewNop())
	// 20:00 UTC is already the next day in India
	r.now = func() time.Time { return time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC) }

	require.NoError(t, r.RefreshUpcoming(context.Background(), 2))
	assert.Equal(t, []string{"2024-03-16", "2024-03-17"}, engine.dates)
}

func TestCleanupUsesRetention(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(&fakeEngine{}, store, time.UTC, database.DefaultRetention, logger.NewNop())
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	res, err := r.Cleanup(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.CauseListRows)
	assert.Equal(t, now, store.cleanedAt)
	assert.Equal(t, database.DefaultRetention, store.retention)
}

func TestSchedulerRunsTasksUntilCancelled(t *testing.T) {
	var fast, failing, panicking atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(logger.NewNop(),
		Task{Name: "fast", Every: 5 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		Task{Name: "failing", Every: 5 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("portal down")
		}},
		Task{Name: "panicking", Every: 5 * time.Millisecond, Run: func(context.Context) error {
			panicking.Add(1)
			panic("bad row")
		}},
		Task{Name: "disabled", Run: func(context.Context) error {
			t.Error("task without an interval ran")
			return nil
		}},
	)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return fast.Load() >= 3 && failing.Load() >= 3 && panicking.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond, "failures do not stop a task's schedule")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(logger.NewNop(), Task{Name: "daily", Every: 24 * time.Hour, Run: func(context.Context) error {
		ran <- struct{}{}
		return nil
	}})
	go s.Run(ctx)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run at start")
	}
}
