package store

import (
	"context"
	"fmt"
)

// SaveStreams saves stream data for an activity
// It replaces any existing stream data for the activity
func (db *DB) SaveStreams(ctx context.Context, activityID int64, points []StreamPoint) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete existing streams for this activity
	if _, err := tx.ExecContext(ctx, "DELETE FROM streams WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("deleting existing streams: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO streams (activity_id, time_offset, velocity_smooth, heartrate, distance)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, activityID, p.TimeOffset, p.VelocitySmooth, p.Heartrate, p.Distance); err != nil {
			return fmt.Errorf("inserting stream point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetStreams retrieves all stream points for an activity
func (db *DB) GetStreams(ctx context.Context, activityID int64) ([]StreamPoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT activity_id, time_offset, velocity_smooth, heartrate, distance
		FROM streams
		WHERE activity_id = ?
		ORDER BY time_offset
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []StreamPoint
	for rows.Next() {
		var p StreamPoint
		if err := rows.Scan(&p.ActivityID, &p.TimeOffset, &p.VelocitySmooth, &p.Heartrate, &p.Distance); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
