package venues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/models"
)

const venueColumns = `id, name, lng, lat, tags, scenario, original_review, is_canary,
	address, opening_hours, minimum_charge, phone, website`

// PostgresSource reads the collection from a venues table and the optional
// single-row venue_collection table holding version metadata.
type PostgresSource struct {
	DB *sql.DB
}

// OpenPostgres opens a connection pool for dsn and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &PostgresSource{DB: db}, nil
}

func (p *PostgresSource) Describe() string { return "postgres" }

func (p *PostgresSource) Close() error { return p.DB.Close() }

func (p *PostgresSource) Load(ctx context.Context) (*models.VenueCollection, error) {
	collection := &models.VenueCollection{}

	err := p.DB.QueryRowContext(ctx,
		`SELECT version, last_updated FROM venue_collection LIMIT 1`,
	).Scan(&collection.Version, &collection.LastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		var pqErr *pq.Error
		// undefined_table: metadata is optional
		if !errors.As(err, &pqErr) || pqErr.Code != "42P01" {
			return nil, fmt.Errorf("failed to read collection metadata: %w", err)
		}
	}

	rows, err := p.DB.QueryContext(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE is_canary = false ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		collection.Venues = append(collection.Venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read venues: %w", err)
	}
	return collection, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(row rowScanner) (models.Venue, error) {
	var (
		v                                      models.Venue
		lng, lat                               float64
		address, hours, charge, phone, website sql.NullString
	)
	err := row.Scan(&v.ID, &v.Name, &lng, &lat,
		pq.Array(&v.Tags), pq.Array(&v.Scenario),
		&v.OriginalReview, &v.IsCanary,
		&address, &hours, &charge, &phone, &website)
	if err != nil {
		return models.Venue{}, fmt.Errorf("failed to scan venue: %w", err)
	}
	v.Coordinates = orb.Point{lng, lat}
	v.Address = address.String
	v.OpeningHours = hours.String
	v.MinimumCharge = charge.String
	v.Phone = phone.String
	v.Website = website.String
	return v, nil
}
