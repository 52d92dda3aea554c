package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrSlotNotFound is returned when a reminder has no slot with the id
	ErrSlotNotFound = errors.New("time slot not found")
	// ErrSlotExists is returned when a slot id is already used by the reminder
	ErrSlotExists = errors.New("time slot already exists")
	// ErrSlotLimit is returned when a reminder already holds the maximum number of slots
	ErrSlotLimit = errors.New("time slot limit reached")
)

const schema = `
CREATE TABLE IF NOT EXISTS reminders (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	scheduled_time TIMESTAMPTZ NOT NULL,
	time_slots JSONB NOT NULL DEFAULT '[]'::jsonb,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_reminders_user_id_created_at ON reminders (user_id, created_at);
`

// DB wraps the Postgres connection pool
type DB struct {
	*sql.DB
}

// New opens a connection pool, verifies it and applies the schema
func New(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the tables the repositories use if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the connection for health probes
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
