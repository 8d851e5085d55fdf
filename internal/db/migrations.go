package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		licence_plate   TEXT NOT NULL,
		street_name     TEXT NOT NULL,
		registered_at   TIMESTAMPTZ NOT NULL,
		deregistered_at TIMESTAMPTZ,
		status          TEXT NOT NULL DEFAULT 'Registered',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT chk_parking_sessions_status CHECK (status IN ('Registered', 'DeRegistered')),
		CONSTRAINT chk_parking_sessions_order CHECK (deregistered_at IS NULL OR deregistered_at >= registered_at)
	);`,
	// At most one open session per plate.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_sessions_active_plate
		ON parking_sessions(licence_plate) WHERE status = 'Registered';`,
	`CREATE INDEX IF NOT EXISTS idx_parking_sessions_registered_at ON parking_sessions(registered_at);`,

	`CREATE TABLE IF NOT EXISTS parking_street_rates (
		street_name     TEXT PRIMARY KEY,
		rate_per_minute NUMERIC(12,4) NOT NULL CHECK (rate_per_minute >= 0),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`INSERT INTO parking_street_rates (street_name, rate_per_minute) VALUES
		('Java', 3),
		('Azure', 8),
		('Jakarta', 10)
	ON CONFLICT (street_name) DO NOTHING;`,

	`CREATE TABLE IF NOT EXISTS parking_observations (
		id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		licence_plate TEXT NOT NULL,
		street_name   TEXT NOT NULL,
		observed_at   TIMESTAMPTZ NOT NULL,
		metadata      JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_observations_observed_at ON parking_observations(observed_at);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_observations_plate_time ON parking_observations(licence_plate, observed_at DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
