package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacelab/internal/analysis"
	"pacelab/internal/history"
	"pacelab/internal/store"
)

// seedClassifiable stores one run per cascade outcome for user 1 and a long run for user 2
func seedClassifiable(t *testing.T, db *store.DB) map[int64]string {
	t.Helper()
	ctx := context.Background()

	seedRun(t, db, 1, 1, testBase, 1, 15, nil, nil)
	seedRun(t, db, 2, 1, testBase.AddDate(0, 0, 1), 8, 4.6, floatPtr(170), floatPtr(200))
	seedRun(t, db, 3, 1, testBase.AddDate(0, 0, 2), 10, 6.0, floatPtr(140), floatPtr(200))
	seedRun(t, db, 4, 1, testBase.AddDate(0, 0, 3), 4, 7.0, floatPtr(110), floatPtr(200))
	seedRun(t, db, 5, 2, testBase.AddDate(0, 0, 1), 20, 5.5, floatPtr(156), floatPtr(200))

	require.NoError(t, db.UpsertActivity(ctx, &store.Activity{
		ID: 6, UserID: 1, ActivityDate: testBase, ActivityType: "Ride", DistanceM: 30000, DurationS: floatPtr(3600),
	}))

	require.NoError(t, db.UpsertVariation(ctx, &store.Variation{
		ActivityID: 3, UserID: 1, CVPace: floatPtr(0.05), CVHR: floatPtr(0.05), Status: analysis.StatusOK, ComputedAt: testBase,
	}))
	require.NoError(t, db.UpsertVariation(ctx, &store.Variation{
		ActivityID: 5, UserID: 2, CVPace: floatPtr(0.05), CVHR: floatPtr(0.04), Status: analysis.StatusOK, ComputedAt: testBase,
	}))

	return map[int64]string{
		1: string(analysis.WorkoutWalkOrInvalid),
		2: string(analysis.WorkoutTempo),
		3: string(analysis.WorkoutEasy),
		4: string(analysis.WorkoutRecovery),
		5: string(analysis.WorkoutLongRun),
	}
}

func newClassifier(history HistoryStore, labels LabelStore, variations VariationReader) *ClassificationService {
	return NewClassificationService(history, labels, variations,
		analysis.DefaultClassifierThresholds(), BatchOptions{PageSize: 2, Workers: 2}, testLogger)
}

func TestClassificationRun(t *testing.T) {
	db := openTestDB(t)
	want := seedClassifiable(t, db)
	ctx := context.Background()

	svc := newClassifier(db, db, db)
	res, err := svc.Run(ctx, ClassifyRequest{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Users)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 5, res.Updated)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.Errors)

	labels, err := db.GetWorkoutLabels(ctx, []int64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, want, labels)
	assert.Equal(t, 1, res.Labels[string(analysis.WorkoutLongRun)])
}

func TestClassificationRunIdempotent(t *testing.T) {
	db := openTestDB(t)
	want := seedClassifiable(t, db)
	ctx := context.Background()
	svc := newClassifier(db, db, db)

	_, err := svc.Run(ctx, ClassifyRequest{})
	require.NoError(t, err)

	again, err := svc.Run(ctx, ClassifyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, again.Skipped)
	assert.Zero(t, again.Processed)
	assert.Zero(t, again.Updated)

	forced, err := svc.Run(ctx, ClassifyRequest{Reclassify: true})
	require.NoError(t, err)
	assert.Equal(t, 5, forced.Processed)
	assert.Equal(t, 5, forced.Updated)

	labels, err := db.GetWorkoutLabels(ctx, []int64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, want, labels)
}

func TestClassificationRunSingleUser(t *testing.T) {
	db := openTestDB(t)
	seedClassifiable(t, db)

	res, err := newClassifier(db, db, db).Run(context.Background(), ClassifyRequest{UserID: int64Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Users)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, map[string]int{string(analysis.WorkoutLongRun): 1}, res.Labels)
}

func TestLabelCounts(t *testing.T) {
	db := openTestDB(t)
	seedClassifiable(t, db)
	ctx := context.Background()
	svc := newClassifier(db, db, db)

	counts, err := svc.LabelCounts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = svc.Run(ctx, ClassifyRequest{})
	require.NoError(t, err)

	counts, err = svc.LabelCounts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, counts, 5)

	user := int64(2)
	counts, err = svc.LabelCounts(ctx, &user)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{string(analysis.WorkoutLongRun): 1}, counts)
}

// cappedHistoryServer serves n runs for user 1 and returns at most three rows per request
func cappedHistoryServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		limit = min(limit, 3)

		acts := []map[string]any{}
		for i := offset; i < n && i < offset+limit; i++ {
			acts = append(acts, map[string]any{
				"id":              i + 1,
				"user_id":         1,
				"activity_date":   testBase.AddDate(0, 0, i),
				"activity_type":   "Run",
				"distance":        8000,
				"duration_s":      8 * 5.5 * 60,
				"pace_min_per_km": 5.5,
			})
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"activities": acts,
			"has_more":   offset+len(acts) < n,
		}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassificationReadsEveryRemotePage(t *testing.T) {
	db := openTestDB(t)
	srv := cappedHistoryServer(t, 7)
	remote := history.NewClient(srv.URL, srv.Client(), nil)

	svc := NewClassificationService(remote, db, db, analysis.DefaultClassifierThresholds(),
		BatchOptions{PageSize: 5, Workers: 1}, testLogger)
	res, err := svc.Run(context.Background(), ClassifyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Processed)
	assert.Equal(t, 7, res.Updated)
	assert.Empty(t, res.Errors)

	labels, err := db.GetWorkoutLabels(context.Background(), []int64{1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	assert.Len(t, labels, 7)
}

type failingLabels struct {
	*store.DB
	failUser int64
}

func (f failingLabels) UpsertWorkoutLabel(ctx context.Context, userID, activityID int64, label string) error {
	if userID == f.failUser {
		return errors.New("disk I/O error")
	}
	return f.DB.UpsertWorkoutLabel(ctx, userID, activityID, label)
}

func TestClassificationCollectsPerUserErrors(t *testing.T) {
	db := openTestDB(t)
	seedClassifiable(t, db)
	ctx := context.Background()

	res, err := newClassifier(db, failingLabels{DB: db, failUser: 2}, db).Run(ctx, ClassifyRequest{})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(2), res.Errors[0].UserID)
	assert.Equal(t, int64(5), res.Errors[0].ActivityID)
	assert.Equal(t, StageWrite, res.Errors[0].Stage)
	assert.Equal(t, 4, res.Updated)

	labels, err := db.GetWorkoutLabels(ctx, []int64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Len(t, labels, 4)
	assert.NotContains(t, labels, int64(5))
}

type failingHistory struct{}

func (failingHistory) ListActivities(context.Context, store.ActivityQuery) ([]store.Activity, error) {
	return nil, errors.New("connection refused")
}

func TestClassificationAbortsWhenHistoryUnavailable(t *testing.T) {
	db := openTestDB(t)

	res, err := newClassifier(failingHistory{}, db, db).Run(context.Background(), ClassifyRequest{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "connection refused")
}
