package service

import (
	"context"

	"pacelab/internal/store"
)

// HistoryStore is the read side of the activity history.
// Implemented by *store.DB and *history.Client.
type HistoryStore interface {
	ListActivities(ctx context.Context, q store.ActivityQuery) ([]store.Activity, error)
}

// StreamSource supplies per-sample activity streams.
type StreamSource interface {
	GetStreams(ctx context.Context, activityID int64) ([]store.StreamPoint, error)
}

// UserStore supplies athlete profiles.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// VariationReader reads per-activity variation rows.
type VariationReader interface {
	GetVariations(ctx context.Context, activityIDs []int64) (map[int64]*store.Variation, error)
}

// VariationStore reads and writes per-activity variation rows.
type VariationStore interface {
	VariationReader
	UpsertVariation(ctx context.Context, v *store.Variation) error
}

// LabelStore reads and writes derived workout labels keyed by (user_id, activity_id).
type LabelStore interface {
	GetWorkoutLabels(ctx context.Context, activityIDs []int64) (map[int64]string, error)
	UpsertWorkoutLabel(ctx context.Context, userID, activityID int64, label string) error
	CountWorkoutLabels(ctx context.Context, userID *int64) (map[string]int, error)
}

// PlanStore reads and rewrites training plans.
type PlanStore interface {
	GetPlan(ctx context.Context, id int64) (*store.Plan, error)
	ListPlanWorkouts(ctx context.Context, planID int64) ([]store.PlanWorkout, error)
	UpdatePlanWorkout(ctx context.Context, w *store.PlanWorkout) error
}
