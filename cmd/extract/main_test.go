package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/database"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cases.db")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")

	db, err := database.Initialize(dbPath)
	require.NoError(t, err)
	store := database.NewStore(db)
	ctx := context.Background()

	today := time.Now().UTC()
	for _, day := range []time.Time{today.AddDate(0, 0, -3), today} {
		_, err := store.SaveCauseList(ctx, &models.CauseList{
			HearingDate: day,
			Entries:     []models.CauseListEntry{{CaseType: "CS", CaseNumber: "1", CaseYear: 2024, CourtName: "Court No. 1", DataSource: "hc"}},
		})
		require.NoError(t, err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	root, r := newRootCmd()
	root.SetArgs([]string{"cleanup", "--days", "1"})
	err = root.Execute()
	r.close()
	require.NoError(t, err)

	db, err = database.Initialize(dbPath)
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	store = database.NewStore(db)

	old, err := store.CauseListRows(ctx, today.AddDate(0, 0, -3), "")
	require.NoError(t, err)
	assert.Empty(t, old)
	current, err := store.CauseListRows(ctx, today, "")
	require.NoError(t, err)
	assert.Len(t, current, 1)
}

func TestDayCount(t *testing.T) {
	assert.Equal(t, 48*time.Hour, dayCount(2))
	assert.Zero(t, dayCount(-5))
}
