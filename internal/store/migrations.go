package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			birth_date TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activity history (summary rows supplied by the ingestion pipeline)
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			activity_date TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			distance_m REAL NOT NULL,
			duration_s REAL,
			duration_min REAL,
			pace_min_per_km REAL,
			avg_hr REAL,
			max_hr REAL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_user_date ON activities(user_id, activity_date)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(activity_date)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type)`,

		// Streams (per-sample time series)
		`CREATE TABLE IF NOT EXISTS streams (
			activity_id INTEGER NOT NULL,
			time_offset INTEGER NOT NULL,
			velocity_smooth REAL,
			heartrate INTEGER,
			distance REAL,
			PRIMARY KEY (activity_id, time_offset),
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_streams_activity ON streams(activity_id)`,

		// Per-activity variation statistics
		`CREATE TABLE IF NOT EXISTS activity_variation (
			activity_id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			cv_pace REAL,
			cv_hr REAL,
			pace_mean REAL,
			hr_mean REAL,
			sample_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			computed_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activity_variation_user ON activity_variation(user_id)`,

		// Derived workout labels, keyed by (user_id, activity_id)
		`CREATE TABLE IF NOT EXISTS workout_labels (
			user_id INTEGER NOT NULL,
			activity_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, activity_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_workout_labels_activity ON workout_labels(activity_id)`,

		// Training plans
		`CREATE TABLE IF NOT EXISTS training_plans (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS plan_workouts (
			id INTEGER PRIMARY KEY,
			plan_id INTEGER NOT NULL,
			day INTEGER NOT NULL,
			workout_type TEXT NOT NULL,
			target_pace REAL,
			duration_min REAL,
			notes TEXT NOT NULL DEFAULT '',
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (plan_id) REFERENCES training_plans(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_plan_workouts_plan ON plan_workouts(plan_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
