package store

import "time"

// Activity is one activity summary as held by the activity history store.
type Activity struct {
	ID                  int64     `db:"id" json:"id"`
	UserID              int64     `db:"user_id" json:"user_id"`
	ActivityDate        time.Time `db:"activity_date" json:"activity_date"`
	ActivityType        string    `db:"activity_type" json:"activity_type"`
	DistanceM           float64   `db:"distance_m" json:"distance_m"`
	DurationS           *float64  `db:"duration_s" json:"duration_s,omitempty"`           // nullable
	DurationMin         *float64  `db:"duration_min" json:"duration_min,omitempty"`       // nullable
	PaceMinPerKm        *float64  `db:"pace_min_per_km" json:"pace_min_per_km,omitempty"` // nullable
	AvgHR               *float64  `db:"avg_hr" json:"avg_hr,omitempty"`                   // nullable
	MaxHR               *float64  `db:"max_hr" json:"max_hr,omitempty"`                   // nullable
	DetectedWorkoutType *string   `db:"detected_workout_type" json:"detected_workout_type,omitempty"`
}

// DistanceKm returns the activity distance in kilometers.
func (a Activity) DistanceKm() float64 {
	return a.DistanceM / 1000
}

// StreamPoint is a single sample from an activity's time series.
type StreamPoint struct {
	ActivityID     int64    `db:"activity_id"`
	TimeOffset     int      `db:"time_offset"`     // seconds
	VelocitySmooth *float64 `db:"velocity_smooth"` // m/s
	Heartrate      *int     `db:"heartrate"`       // bpm
	Distance       *float64 `db:"distance"`        // cumulative meters
}

// Variation holds the per-activity coefficients of variation for pace and heart rate.
type Variation struct {
	ActivityID  int64     `db:"activity_id" json:"activity_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CVPace      *float64  `db:"cv_pace" json:"cv_pace"`
	CVHR        *float64  `db:"cv_hr" json:"cv_hr"`
	PaceMean    *float64  `db:"pace_mean" json:"pace_mean,omitempty"`
	HRMean      *float64  `db:"hr_mean" json:"hr_mean,omitempty"`
	SampleCount int       `db:"sample_count" json:"sample_count"`
	Status      string    `db:"status" json:"status"` // "ok", "partial", "insufficient_data"
	ComputedAt  time.Time `db:"computed_at" json:"computed_at"`
}

// User carries the athlete profile fields the analytics need.
type User struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
}

// Plan is a training plan owned by a user.
type Plan struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlanWorkout is a single prescribed workout within a plan.
type PlanWorkout struct {
	ID          int64    `db:"id" json:"id"`
	PlanID      int64    `db:"plan_id" json:"plan_id"`
	Day         int      `db:"day" json:"day"`
	WorkoutType string   `db:"workout_type" json:"workout_type"`
	TargetPace  *float64 `db:"target_pace" json:"target_pace,omitempty"`   // min/km
	DurationMin *float64 `db:"duration_min" json:"duration_min,omitempty"` // minutes
	Notes       string   `db:"notes" json:"notes,omitempty"`
}
