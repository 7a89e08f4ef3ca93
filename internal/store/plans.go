package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreatePlan inserts a plan and its workouts in one transaction and returns the plan ID.
func (db *DB) CreatePlan(ctx context.Context, p *Plan, workouts []PlanWorkout) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var res sql.Result
	if p.ID != 0 {
		res, err = tx.ExecContext(ctx, `INSERT INTO training_plans (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.UserID, p.Name, formatTime(createdAt))
	} else {
		res, err = tx.ExecContext(ctx, `INSERT INTO training_plans (user_id, name, created_at) VALUES (?, ?, ?)`,
			p.UserID, p.Name, formatTime(createdAt))
	}
	if err != nil {
		return 0, fmt.Errorf("inserting plan: %w", err)
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, w := range workouts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plan_workouts (plan_id, day, workout_type, target_pace, duration_min, notes)
			VALUES (?, ?, ?, ?, ?, ?)
		`, planID, w.Day, w.WorkoutType, w.TargetPace, w.DurationMin, w.Notes); err != nil {
			return 0, fmt.Errorf("inserting workout: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return planID, nil
}

// GetPlan retrieves a plan by ID
func (db *DB) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	var p Plan
	var createdAt string
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM training_plans WHERE id = ?
	`, id).Scan(&p.ID, &p.UserID, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	return &p, nil
}

// ListPlanWorkouts returns a plan's workouts ordered by day
func (db *DB) ListPlanWorkouts(ctx context.Context, planID int64) ([]PlanWorkout, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, plan_id, day, workout_type, target_pace, duration_min, notes
		FROM plan_workouts
		WHERE plan_id = ?
		ORDER BY day, id
	`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []PlanWorkout
	for rows.Next() {
		var w PlanWorkout
		if err := rows.Scan(&w.ID, &w.PlanID, &w.Day, &w.WorkoutType, &w.TargetPace, &w.DurationMin, &w.Notes); err != nil {
			return nil, err
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}

// UpdatePlanWorkout rewrites the prescription fields of a workout
func (db *DB) UpdatePlanWorkout(ctx context.Context, w *PlanWorkout) error {
	result, err := db.ExecContext(ctx, `
		UPDATE plan_workouts
		SET target_pace = ?, duration_min = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND plan_id = ?
	`, w.TargetPace, w.DurationMin, w.Notes, w.ID, w.PlanID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	return nil
}
