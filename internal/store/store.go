// Package store persists plugin option records, one JSON value per
// (site, option name) pair. Writes are last-write-wins.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for a record that was never written.
var ErrNotFound = errors.New("not found")

// Store is the option record persistence the settings service depends on.
type Store interface {
	Get(ctx context.Context, site, name string) ([]byte, error)
	Put(ctx context.Context, site, name string, value []byte) error
	Delete(ctx context.Context, site string, names ...string) error
	Sites(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns the store for a DATABASE_URL:
//
//	memory:                  in-process, lost on restart
//	file:pixelflow.db        SQLite (modernc, no cgo)
//	sqlite:///var/lib/pf.db  SQLite
//	postgres://user@host/db  PostgreSQL (pgx)
func Open(ctx context.Context, databaseURL string) (Store, error) {
	var driver, dsn string
	switch {
	case databaseURL == "" || databaseURL == "memory:":
		return NewMemory(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		driver, dsn = driverPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		driver, dsn = driverSQLite, strings.TrimPrefix(databaseURL, "sqlite://")
	case strings.HasPrefix(databaseURL, "file:"):
		driver, dsn = driverSQLite, databaseURL
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}

	s, err := openSQL(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}
