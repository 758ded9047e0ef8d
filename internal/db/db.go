// Package db manages database connections and schema migrations for the
// plugin registry. It wraps lib/pq connection pooling and golang-migrate for
// schema versioning. Migrations are embedded in the binary so the server can
// apply schema changes on startup without external tooling.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool bundles the write handle with an optional read replica handle.
// When no replica is configured both fields point at the same pool.
// Read returns the handle query-only paths should use.
type Pool struct {
	Write   *sqlx.DB
	Replica *sqlx.DB
}

// Read returns the replica handle, falling back to the primary.
func (p *Pool) Read() *sqlx.DB {
	if p.Replica != nil {
		return p.Replica
	}
	return p.Write
}

// Close closes both handles, ignoring the replica when it aliases the primary.
func (p *Pool) Close() error {
	if p.Replica != nil && p.Replica != p.Write {
		p.Replica.Close()
	}
	return p.Write.Close()
}

// Connect establishes a connection pool to the PostgreSQL database.
func Connect(dsn string, maxConnections, minIdleConnections int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConnections)
	db.SetMaxIdleConns(minIdleConnections)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConnectPool opens the primary pool and, when readDSN differs from dsn,
// a second read-only pool against the replica.
func ConnectPool(dsn, readDSN string, maxConnections, minIdleConnections int) (*Pool, error) {
	write, err := Connect(dsn, maxConnections, minIdleConnections)
	if err != nil {
		return nil, err
	}

	pool := &Pool{Write: write}
	if readDSN != "" && readDSN != dsn {
		replica, err := Connect(readDSN, maxConnections, minIdleConnections)
		if err != nil {
			write.Close()
			return nil, fmt.Errorf("failed to connect read replica: %w", err)
		}
		pool.Replica = replica
	}

	return pool, nil
}

// RunMigrations runs database migrations in the given direction.
func RunMigrations(db *sql.DB, direction string) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}
	default:
		return fmt.Errorf("invalid migration direction: %s (must be 'up' or 'down')", direction)
	}

	return nil
}

// GetMigrationVersion returns the current migration version.
func GetMigrationVersion(db *sql.DB) (version uint, dirty bool, err error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
}
