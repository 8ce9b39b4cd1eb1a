package venues

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"venuemap.taipeimusic.org/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id TEXT PRIMARY KEY,
		position INT NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		scenario TEXT[] NOT NULL DEFAULT '{}',
		original_review TEXT NOT NULL DEFAULT '',
		is_canary BOOLEAN NOT NULL DEFAULT false,
		address TEXT,
		opening_hours TEXT,
		minimum_charge TEXT,
		phone TEXT,
		website TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_venues_position ON venues(position, id)`,
	`CREATE TABLE IF NOT EXISTS venue_collection (
		singleton BOOLEAN PRIMARY KEY DEFAULT true CHECK (singleton),
		version TEXT NOT NULL,
		last_updated TEXT NOT NULL
	)`,
}

// EnsureSchema creates the tables PostgresSource reads, if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Import replaces the stored collection with c in one transaction. Venue
// order is kept through the position column. Canary venues are stored too
// so the database mirrors the file it came from.
func Import(ctx context.Context, db *sql.DB, c *models.VenueCollection) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM venues`); err != nil {
		return fmt.Errorf("failed to clear venues: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO venues (id, position, name, lng, lat, tags, scenario,
		original_review, is_canary, address, opening_hours, minimum_charge, phone, website)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range c.Venues {
		_, err := stmt.ExecContext(ctx, v.ID, i, v.Name, v.Lng(), v.Lat(),
			pq.Array(labels(v.Tags)), pq.Array(labels(v.Scenario)), v.OriginalReview, v.IsCanary,
			nullString(v.Address), nullString(v.OpeningHours), nullString(v.MinimumCharge),
			nullString(v.Phone), nullString(v.Website))
		if err != nil {
			return fmt.Errorf("failed to insert venue %q: %w", v.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO venue_collection (singleton, version, last_updated)
		VALUES (true, $1, $2)
		ON CONFLICT (singleton) DO UPDATE SET version = EXCLUDED.version, last_updated = EXCLUDED.last_updated`,
		c.Version, c.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to store collection metadata: %w", err)
	}
	return tx.Commit()
}

// labels keeps nil slices out of the NOT NULL array columns.
func labels(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
