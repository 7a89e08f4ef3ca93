package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ActivityQuery selects activities from the history store.
// Zero-valued fields do not filter.
type ActivityQuery struct {
	UserID   *int64
	From     time.Time // inclusive
	To       time.Time // exclusive
	RunsOnly bool
	Limit    int
	Offset   int
}

const activityColumns = `a.id, a.user_id, a.activity_date, a.activity_type, a.distance_m,
	a.duration_s, a.duration_min, a.pace_min_per_km, a.avg_hr, a.max_hr, l.label`

// UpsertActivity inserts or updates an activity
func (db *DB) UpsertActivity(ctx context.Context, a *Activity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (
			id, user_id, activity_date, activity_type, distance_m,
			duration_s, duration_min, pace_min_per_km, avg_hr, max_hr, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			activity_date = excluded.activity_date,
			activity_type = excluded.activity_type,
			distance_m = excluded.distance_m,
			duration_s = excluded.duration_s,
			duration_min = excluded.duration_min,
			pace_min_per_km = excluded.pace_min_per_km,
			avg_hr = excluded.avg_hr,
			max_hr = excluded.max_hr,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.UserID, formatTime(a.ActivityDate), a.ActivityType, a.DistanceM,
		a.DurationS, a.DurationMin, a.PaceMinPerKm, a.AvgHR, a.MaxHR,
	)
	return err
}

// ListActivities returns activities matching q ordered by date then ID, so
// consecutive Limit/Offset pages are stable.
func (db *DB) ListActivities(ctx context.Context, q ActivityQuery) ([]Activity, error) {
	var where []string
	var args []interface{}

	if q.UserID != nil {
		where = append(where, "a.user_id = ?")
		args = append(args, *q.UserID)
	}
	if !q.From.IsZero() {
		where = append(where, "a.activity_date >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "a.activity_date < ?")
		args = append(args, formatTime(q.To))
	}
	if q.RunsOnly {
		where = append(where, "LOWER(a.activity_type) LIKE '%run%'")
	}

	query := `SELECT ` + activityColumns + `
		FROM activities a
		LEFT JOIN workout_labels l ON l.user_id = a.user_id AND l.activity_id = a.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.activity_date, a.id"
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanActivity scans a single activity from a row
func scanActivity(row rowScanner) (*Activity, error) {
	var a Activity
	var activityDate string
	var label sql.NullString

	err := row.Scan(
		&a.ID, &a.UserID, &activityDate, &a.ActivityType, &a.DistanceM,
		&a.DurationS, &a.DurationMin, &a.PaceMinPerKm, &a.AvgHR, &a.MaxHR, &label,
	)
	if err != nil {
		return nil, err
	}

	a.ActivityDate, err = time.Parse(time.RFC3339, activityDate)
	if err != nil {
		return nil, fmt.Errorf("parsing activity_date %q: %w", activityDate, err)
	}
	if label.Valid {
		a.DetectedWorkoutType = &label.String
	}

	return &a, nil
}

// formatTime renders timestamps in UTC so that string comparison in SQL is chronological.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
