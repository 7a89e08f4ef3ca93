package store

import (
	"context"
	"strings"
)

// UpsertWorkoutLabel writes the detected workout type for an activity.
func (db *DB) UpsertWorkoutLabel(ctx context.Context, userID, activityID int64, label string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO workout_labels (user_id, activity_id, label, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, activity_id) DO UPDATE SET
			label = excluded.label,
			updated_at = CURRENT_TIMESTAMP
	`, userID, activityID, label)
	return err
}

// GetWorkoutLabels returns the stored labels for the given activities, keyed by activity ID.
// Activities without a label are absent from the map.
func (db *DB) GetWorkoutLabels(ctx context.Context, activityIDs []int64) (map[int64]string, error) {
	labels := make(map[int64]string, len(activityIDs))
	if len(activityIDs) == 0 {
		return labels, nil
	}

	placeholders, args := int64Placeholders(activityIDs)
	rows, err := db.QueryContext(ctx, `
		SELECT activity_id, label FROM workout_labels
		WHERE activity_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		labels[id] = label
	}
	return labels, rows.Err()
}

// CountWorkoutLabels returns label frequencies, optionally for a single user.
func (db *DB) CountWorkoutLabels(ctx context.Context, userID *int64) (map[string]int, error) {
	query := "SELECT label, COUNT(*) FROM workout_labels"
	var args []interface{}
	if userID != nil {
		query += " WHERE user_id = ?"
		args = append(args, *userID)
	}
	query += " GROUP BY label"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

func int64Placeholders(ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
