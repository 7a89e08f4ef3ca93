package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func floatPtr(v float64) *float64 { return &v }

func testActivity(id, userID int64, date time.Time, typ string, km float64) *Activity {
	return &Activity{
		ID:           id,
		UserID:       userID,
		ActivityDate: date,
		ActivityType: typ,
		DistanceM:    km * 1000,
		DurationS:    floatPtr(km * 330),
		PaceMinPerKm: floatPtr(5.5),
		AvgHR:        floatPtr(150),
		MaxHR:        floatPtr(185),
	}
}

var day0 = time.Date(2026, 4, 1, 7, 30, 0, 0, time.UTC)

func seedActivities(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	acts := []*Activity{
		testActivity(1, 10, day0, "Run", 5),
		testActivity(2, 10, day0.AddDate(0, 0, 1), "Ride", 30),
		testActivity(3, 11, day0.AddDate(0, 0, 2), "TrailRun", 12),
		testActivity(4, 10, day0.AddDate(0, 0, 3), "Run", 8),
		testActivity(5, 11, day0.AddDate(0, 0, -40), "Run", 10),
	}
	for _, a := range acts {
		require.NoError(t, db.UpsertActivity(ctx, a))
	}
}

func TestActivityRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedActivities(t, db)

	acts, err := db.ListActivities(ctx, ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, acts, 5)

	a := acts[1]
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(10), a.UserID)
	assert.Equal(t, day0, a.ActivityDate)
	assert.Equal(t, 5.0, a.DistanceKm())
	require.NotNil(t, a.PaceMinPerKm)
	assert.Equal(t, 5.5, *a.PaceMinPerKm)
	assert.Nil(t, a.DurationMin)
	assert.Nil(t, a.DetectedWorkoutType)
}

func TestListActivities(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedActivities(t, db)

	user := int64(10)
	tests := []struct {
		name    string
		query   ActivityQuery
		wantIDs []int64
	}{
		{"all in date order", ActivityQuery{}, []int64{5, 1, 2, 3, 4}},
		{"runs only", ActivityQuery{RunsOnly: true}, []int64{5, 1, 3, 4}},
		{"per user", ActivityQuery{UserID: &user}, []int64{1, 2, 4}},
		{"window", ActivityQuery{From: day0, To: day0.AddDate(0, 0, 3)}, []int64{1, 2, 3}},
		{"page", ActivityQuery{Limit: 2, Offset: 1}, []int64{1, 2}},
		{"past the end", ActivityQuery{Limit: 2, Offset: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts, err := db.ListActivities(ctx, tt.query)
			require.NoError(t, err)
			var ids []int64
			for _, a := range acts {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestWorkoutLabels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedActivities(t, db)

	require.NoError(t, db.UpsertWorkoutLabel(ctx, 10, 1, "easy_run"))
	require.NoError(t, db.UpsertWorkoutLabel(ctx, 11, 3, "long_run"))
	require.NoError(t, db.UpsertWorkoutLabel(ctx, 10, 1, "tempo_run"))

	labels, err := db.GetWorkoutLabels(ctx, []int64{1, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "tempo_run", 3: "long_run"}, labels)

	user := int64(10)
	acts, err := db.ListActivities(ctx, ActivityQuery{UserID: &user, Limit: 1})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.NotNil(t, acts[0].DetectedWorkoutType)
	assert.Equal(t, "tempo_run", *acts[0].DetectedWorkoutType)

	counts, err := db.CountWorkoutLabels(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tempo_run": 1, "long_run": 1}, counts)

	user = 11
	counts, err = db.CountWorkoutLabels(ctx, &user)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"long_run": 1}, counts)

	empty, err := db.GetWorkoutLabels(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStreams(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedActivities(t, db)

	hr := 150
	points := []StreamPoint{
		{TimeOffset: 1, VelocitySmooth: floatPtr(3.1), Heartrate: &hr},
		{TimeOffset: 0, VelocitySmooth: floatPtr(3.0)},
	}
	require.NoError(t, db.SaveStreams(ctx, 1, points))

	got, err := db.GetStreams(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].TimeOffset)
	assert.Nil(t, got[0].Heartrate)
	require.NotNil(t, got[1].Heartrate)
	assert.Equal(t, 150, *got[1].Heartrate)

	// saving again replaces
	require.NoError(t, db.SaveStreams(ctx, 1, points[:1]))
	got, err = db.GetStreams(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestVariations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	computed := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpsertVariation(ctx, &Variation{
		ActivityID: 1, UserID: 10, CVPace: floatPtr(0.05), CVHR: floatPtr(0.04),
		SampleCount: 600, Status: "ok", ComputedAt: computed,
	}))
	require.NoError(t, db.UpsertVariation(ctx, &Variation{
		ActivityID: 2, UserID: 10, SampleCount: 1, Status: "insufficient_data", ComputedAt: computed,
	}))

	rows, err := db.GetVariations(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].CVPace)
	assert.Equal(t, 0.05, *rows[1].CVPace)
	assert.Equal(t, computed, rows[1].ComputedAt)
	assert.Nil(t, rows[2].CVPace)
	assert.Equal(t, "insufficient_data", rows[2].Status)
}

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	bd := time.Date(1988, 9, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpsertUser(ctx, &User{ID: 10, Name: "alex", BirthDate: &bd}))
	require.NoError(t, db.UpsertUser(ctx, &User{ID: 11, Name: "kim"}))

	u, err := db.GetUser(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, u.BirthDate)
	assert.Equal(t, bd, *u.BirthDate)

	u, err = db.GetUser(ctx, 11)
	require.NoError(t, err)
	assert.Nil(t, u.BirthDate)

	_, err = db.GetUser(ctx, 12)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPlans(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePlan(ctx, &Plan{UserID: 10, Name: "10k build"}, []PlanWorkout{
		{Day: 3, WorkoutType: "tempo", TargetPace: floatPtr(4.8), DurationMin: floatPtr(50)},
		{Day: 1, WorkoutType: "easy", TargetPace: floatPtr(5.9), DurationMin: floatPtr(40)},
		{Day: 5, WorkoutType: "rest"},
	})
	require.NoError(t, err)

	plan, err := db.GetPlan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "10k build", plan.Name)

	workouts, err := db.ListPlanWorkouts(ctx, id)
	require.NoError(t, err)
	require.Len(t, workouts, 3)
	assert.Equal(t, "easy", workouts[0].WorkoutType)
	assert.Nil(t, workouts[2].TargetPace)

	w := workouts[1]
	w.DurationMin = floatPtr(30)
	require.NoError(t, db.UpdatePlanWorkout(ctx, &w))
	workouts, err = db.ListPlanWorkouts(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 30.0, *workouts[1].DurationMin)

	w.PlanID = id + 1
	assert.ErrorIs(t, db.UpdatePlanWorkout(ctx, &w), ErrPlanNotFound)

	_, err = db.GetPlan(ctx, id+1)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}
