package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"
)

const sqlCreateOptions = `
CREATE TABLE IF NOT EXISTS pixelflow_options (
	site_id      TEXT NOT NULL,
	option_name  TEXT NOT NULL,
	option_value TEXT NOT NULL,
	updated_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (site_id, option_name)
)
`

const sqlGetOption = `
SELECT option_value FROM pixelflow_options WHERE site_id = ? AND option_name = ?
`

const sqlPutOption = `
INSERT INTO pixelflow_options (site_id, option_name, option_value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (site_id, option_name)
DO UPDATE SET option_value = excluded.option_value, updated_at = excluded.updated_at
`

const sqlDeleteOptions = `
DELETE FROM pixelflow_options WHERE site_id = ? AND option_name IN (?)
`

const sqlListSites = `
SELECT DISTINCT site_id FROM pixelflow_options ORDER BY site_id
`

// SQLStore keeps records in a pixelflow_options table.
type SQLStore struct {
	db *sqlx.DB
}

func openSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, sqlCreateOptions); err != nil {
		db.Close()
		return nil, fmt.Errorf("create options table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// DB returns the underlying database connection.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Get returns the stored value or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, site, name string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(sqlGetOption), site, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get option %s: %w", name, err)
	}
	return []byte(value), nil
}

// Put inserts or replaces a record.
func (s *SQLStore) Put(ctx context.Context, site, name string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(sqlPutOption), site, name, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put option %s: %w", name, err)
	}
	return nil
}

// Delete removes the named records of one site. Missing records are not an error.
func (s *SQLStore) Delete(ctx context.Context, site string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	query, args, err := sqlx.In(sqlDeleteOptions, site, names)
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	return nil
}

// Sites lists every site with at least one record.
func (s *SQLStore) Sites(ctx context.Context) ([]string, error) {
	var sites []string
	if err := s.db.SelectContext(ctx, &sites, sqlListSites); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
