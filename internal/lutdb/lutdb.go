// Package lutdb stores atmospheric lookup tables in a sqlite database
// so batch runs can share precomputed radiative-transfer results
// instead of regenerating them per invocation.
package lutdb

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/treeview-data/eosim/internal/atmosphere"
	"github.com/treeview-data/eosim/internal/monitoring"
)

// ErrNotFound reports a lookup table name with no stored entry.
var ErrNotFound = errors.New("lookup table not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the lookup-table database at path
// and applies any pending schema migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	ldb := &DB{db}
	if err := ldb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return ldb, nil
}

// Entry summarises one stored lookup table.
type Entry struct {
	ID      string
	Name    string
	Created time.Time
}

// SaveLUT stores a lookup table under name, replacing any previous
// table with that name. It returns the stored table's ID.
func (db *DB) SaveLUT(name string, lut *atmosphere.LUT) (string, error) {
	if name == "" {
		return "", fmt.Errorf("lookup table name must not be empty")
	}
	wl, err := json.Marshal(lut.Wavelength)
	if err != nil {
		return "", fmt.Errorf("failed to encode wavelengths: %w", err)
	}
	rho, err := json.Marshal(lut.Rho)
	if err != nil {
		return "", fmt.Errorf("failed to encode reflectances: %w", err)
	}
	rad, err := json.Marshal(lut.Radiance)
	if err != nil {
		return "", fmt.Errorf("failed to encode radiance grid: %w", err)
	}
	meta, err := json.Marshal(lut.Meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	id := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO luts (lut_id, name, wavelengths, reflectances, radiance, meta)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			lut_id       = excluded.lut_id,
			wavelengths  = excluded.wavelengths,
			reflectances = excluded.reflectances,
			radiance     = excluded.radiance,
			meta         = excluded.meta,
			created      = CURRENT_TIMESTAMP`,
		id, name, string(wl), string(rho), string(rad), string(meta),
	)
	if err != nil {
		return "", fmt.Errorf("failed to store lookup table %q: %w", name, err)
	}
	return id, nil
}

// LoadLUT retrieves the lookup table stored under name.
func (db *DB) LoadLUT(name string) (*atmosphere.LUT, error) {
	var wl, rho, rad, meta string
	err := db.QueryRow(
		`SELECT wavelengths, reflectances, radiance, meta FROM luts WHERE name = ?`,
		name,
	).Scan(&wl, &rho, &rad, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lookup table %q: %w", name, err)
	}

	var wavelengths, reflectances []float64
	var radiance [][]float64
	metadata := map[string]string{}
	if err := json.Unmarshal([]byte(wl), &wavelengths); err != nil {
		return nil, fmt.Errorf("corrupt wavelength grid for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(rho), &reflectances); err != nil {
		return nil, fmt.Errorf("corrupt reflectance grid for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(rad), &radiance); err != nil {
		return nil, fmt.Errorf("corrupt radiance grid for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %q: %w", name, err)
	}
	return atmosphere.NewLUT(wavelengths, reflectances, radiance, metadata)
}

// ListLUTs returns the stored lookup tables, newest first.
func (db *DB) ListLUTs() ([]Entry, error) {
	rows, err := db.Query(`SELECT lut_id, name, created FROM luts ORDER BY created DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lookup tables: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.Created); err != nil {
			return nil, fmt.Errorf("failed to scan lookup table row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteLUT removes the lookup table stored under name.
func (db *DB) DeleteLUT(name string) error {
	res, err := db.Exec(`DELETE FROM luts WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete lookup table %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

// migrateUp applies all pending migrations from the embedded set.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Not closed here: closing would also close the underlying DB
	// connection.
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger on the package diagnostics
// channel.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
