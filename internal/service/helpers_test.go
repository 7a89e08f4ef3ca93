package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pacelab/internal/logging"
	"pacelab/internal/store"
)

var testBase = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

// openTestDB creates an in-memory SQLite database with migrations applied
func openTestDB(t *testing.T) *store.DB {
	t.Helper()

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

func int64Ptr(i int64) *int64 {
	return &i
}

// seedRun stores a run of km kilometres at pace min/km
func seedRun(t *testing.T, db *store.DB, id, userID int64, date time.Time, km, pace float64, avgHR, maxHR *float64) {
	t.Helper()

	a := &store.Activity{
		ID:           id,
		UserID:       userID,
		ActivityDate: date,
		ActivityType: "Run",
		DistanceM:    km * 1000,
		DurationS:    floatPtr(km * pace * 60),
		PaceMinPerKm: floatPtr(pace),
		AvgHR:        avgHR,
		MaxHR:        maxHR,
	}
	require.NoError(t, db.UpsertActivity(context.Background(), a))
}

var testLogger = logging.Discard()
