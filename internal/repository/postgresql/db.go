package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func NewDB(cfg *config.Config) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)

	db, err := sql.Open("pgx", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables the service needs if they are missing.
// Statuses are plain text columns; the valid values live in the domain
// package, not in database enums, so adding a status never needs a migration.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subscribers (
			code       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT,
			phone      TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS parking_spots (
			id         INTEGER PRIMARY KEY,
			status     TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS parking_sessions (
			id                 SERIAL PRIMARY KEY,
			subscriber_code    TEXT NOT NULL REFERENCES subscribers(code),
			spot_id            INTEGER NOT NULL REFERENCES parking_spots(id),
			parking_code       TEXT NOT NULL,
			entry_time         TIMESTAMPTZ NOT NULL,
			expected_exit_time TIMESTAMPTZ NOT NULL,
			exit_time          TIMESTAMPTZ,
			extended           BOOLEAN NOT NULL DEFAULT FALSE,
			late               BOOLEAN NOT NULL DEFAULT FALSE,
			status             TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS parking_sessions_open_subscriber_key
			ON parking_sessions (subscriber_code) WHERE status = 'open'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS parking_sessions_open_spot_key
			ON parking_sessions (spot_id) WHERE status = 'open'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS parking_sessions_open_code_key
			ON parking_sessions (parking_code) WHERE status = 'open'`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id                SERIAL PRIMARY KEY,
			subscriber_code   TEXT NOT NULL REFERENCES subscribers(code),
			confirmation_code TEXT NOT NULL UNIQUE,
			start_time        TIMESTAMPTZ NOT NULL,
			end_time          TIMESTAMPTZ NOT NULL,
			spot_id           INTEGER REFERENCES parking_spots(id),
			status            TEXT NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS parking_history (
			id              SERIAL PRIMARY KEY,
			subscriber_code TEXT NOT NULL,
			spot_id         INTEGER NOT NULL,
			entry_time      TIMESTAMPTZ NOT NULL,
			exit_time       TIMESTAMPTZ NOT NULL,
			extended        BOOLEAN NOT NULL,
			late            BOOLEAN NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS parking_history_entry_time_idx
			ON parking_history (entry_time)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
