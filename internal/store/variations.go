package store

import (
	"context"
	"fmt"
	"time"
)

// UpsertVariation stores the variation statistics for an activity
func (db *DB) UpsertVariation(ctx context.Context, v *Variation) error {
	computedAt := v.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO activity_variation (
			activity_id, user_id, cv_pace, cv_hr, pace_mean, hr_mean,
			sample_count, status, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			user_id = excluded.user_id,
			cv_pace = excluded.cv_pace,
			cv_hr = excluded.cv_hr,
			pace_mean = excluded.pace_mean,
			hr_mean = excluded.hr_mean,
			sample_count = excluded.sample_count,
			status = excluded.status,
			computed_at = excluded.computed_at
	`,
		v.ActivityID, v.UserID, v.CVPace, v.CVHR, v.PaceMean, v.HRMean,
		v.SampleCount, v.Status, formatTime(computedAt),
	)
	return err
}

// GetVariations returns variation rows for the given activities, keyed by activity ID.
func (db *DB) GetVariations(ctx context.Context, activityIDs []int64) (map[int64]*Variation, error) {
	result := make(map[int64]*Variation, len(activityIDs))
	if len(activityIDs) == 0 {
		return result, nil
	}

	placeholders, args := int64Placeholders(activityIDs)
	rows, err := db.QueryContext(ctx, `
		SELECT activity_id, user_id, cv_pace, cv_hr, pace_mean, hr_mean,
			sample_count, status, computed_at
		FROM activity_variation
		WHERE activity_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v Variation
		var computedAt string
		if err := rows.Scan(
			&v.ActivityID, &v.UserID, &v.CVPace, &v.CVHR, &v.PaceMean, &v.HRMean,
			&v.SampleCount, &v.Status, &computedAt,
		); err != nil {
			return nil, err
		}
		v.ComputedAt, err = time.Parse(time.RFC3339, computedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing computed_at %q: %w", computedAt, err)
		}
		result[v.ActivityID] = &v
	}
	return result, rows.Err()
}
