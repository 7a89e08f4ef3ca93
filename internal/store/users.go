package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const birthDateLayout = "2006-01-02"

// UpsertUser inserts or updates a user profile
func (db *DB) UpsertUser(ctx context.Context, u *User) error {
	var birth interface{}
	if u.BirthDate != nil {
		birth = u.BirthDate.Format(birthDateLayout)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, birth_date, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			birth_date = excluded.birth_date,
			updated_at = CURRENT_TIMESTAMP
	`, u.ID, u.Name, birth)
	return err
}

// GetUser retrieves a user by ID
func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	var birth sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, name, birth_date FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &birth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if birth.Valid && birth.String != "" {
		t, err := time.Parse(birthDateLayout, birth.String)
		if err != nil {
			return nil, fmt.Errorf("parsing birth_date %q: %w", birth.String, err)
		}
		u.BirthDate = &t
	}
	return &u, nil
}
