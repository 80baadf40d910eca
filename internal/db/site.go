package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/overflight.report/internal/geo"
)

var (
	// ErrSiteNotFound is returned when no site matches the lookup.
	ErrSiteNotFound = errors.New("site not found")
	// ErrSiteExists is returned when a site name is already registered.
	ErrSiteExists = errors.New("site name already exists")
)

// Site is a registered observation site.
type Site struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	Radius      float64   `json:"radius"`
	MaxAltitude float64   `json:"max_altitude"`
	NoiseHigh   *float64  `json:"noise_high"`
	NoiseMedium *float64  `json:"noise_medium"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GeoSite returns the site as used by the prediction pipeline.
func (s Site) GeoSite() geo.Site {
	g := geo.Site{
		Name:        s.Name,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		Altitude:    s.Altitude,
		Radius:      s.Radius,
		MaxAltitude: s.MaxAltitude,
	}
	if s.NoiseHigh != nil || s.NoiseMedium != nil {
		g.Noise = &geo.NoiseThresholds{}
		if s.NoiseHigh != nil {
			g.Noise.High = *s.NoiseHigh
		}
		if s.NoiseMedium != nil {
			g.Noise.Medium = *s.NoiseMedium
		}
	}
	return g
}

// SiteFromGeo builds a registry row from a pipeline site.
func SiteFromGeo(g geo.Site) *Site {
	s := &Site{
		Name:        g.Name,
		Latitude:    g.Latitude,
		Longitude:   g.Longitude,
		Altitude:    g.Altitude,
		Radius:      g.Radius,
		MaxAltitude: g.MaxAltitude,
	}
	if g.Noise != nil {
		high, medium := g.Noise.High, g.Noise.Medium
		s.NoiseHigh = &high
		s.NoiseMedium = &medium
	}
	return s
}

const siteColumns = `
	id, name, latitude, longitude, altitude, radius, max_altitude,
	noise_high, noise_medium, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*Site, error) {
	var site Site
	var createdAtUnix, updatedAtUnix int64
	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.Latitude,
		&site.Longitude,
		&site.Altitude,
		&site.Radius,
		&site.MaxAltitude,
		&site.NoiseHigh,
		&site.NoiseMedium,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err != nil {
		return nil, err
	}
	site.CreatedAt = time.Unix(createdAtUnix, 0)
	site.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &site, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateSite inserts site and sets its ID.
func (db *DB) CreateSite(site *Site) error {
	if err := site.GeoSite().Validate(); err != nil {
		return fmt.Errorf("invalid site: %w", err)
	}

	result, err := db.Exec(`
		INSERT INTO site (
			name, latitude, longitude, altitude, radius, max_altitude,
			noise_high, noise_medium
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		site.Name,
		site.Latitude,
		site.Longitude,
		site.Altitude,
		site.Radius,
		site.MaxAltitude,
		site.NoiseHigh,
		site.NoiseMedium,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", ErrSiteExists, site.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	site.ID = id
	return nil
}

// GetSite retrieves a site by ID.
func (db *DB) GetSite(id int64) (*Site, error) {
	site, err := scanSite(db.QueryRow(`SELECT `+siteColumns+` FROM site WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrSiteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// GetSiteByName retrieves a site by its unique name.
func (db *DB) GetSiteByName(name string) (*Site, error) {
	site, err := scanSite(db.QueryRow(`SELECT `+siteColumns+` FROM site WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSiteNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// ListSites returns every site ordered by name.
func (db *DB) ListSites() ([]Site, error) {
	rows, err := db.Query(`SELECT ` + siteColumns + ` FROM site ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	sites := []Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sites: %w", err)
	}
	return sites, nil
}

// UpdateSite overwrites the stored site with the same ID.
func (db *DB) UpdateSite(site *Site) error {
	if err := site.GeoSite().Validate(); err != nil {
		return fmt.Errorf("invalid site: %w", err)
	}

	result, err := db.Exec(`
		UPDATE site SET
			name = ?,
			latitude = ?,
			longitude = ?,
			altitude = ?,
			radius = ?,
			max_altitude = ?,
			noise_high = ?,
			noise_medium = ?,
			updated_at = CAST(strftime('%s', 'now') AS INTEGER)
		WHERE id = ?`,
		site.Name,
		site.Latitude,
		site.Longitude,
		site.Altitude,
		site.Radius,
		site.MaxAltitude,
		site.NoiseHigh,
		site.NoiseMedium,
		site.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", ErrSiteExists, site.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	return expectOneRow(result, site.ID)
}

// DeleteSite removes a site by ID.
func (db *DB) DeleteSite(id int64) error {
	result, err := db.Exec(`DELETE FROM site WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrSiteNotFound, id)
	}
	return nil
}
