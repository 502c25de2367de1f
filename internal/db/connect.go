package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:hireflow.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/hireflow?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := Migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates missing tables. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  candidat_id INTEGER NOT NULL DEFAULT 0,
  offre_id INTEGER NOT NULL,
  email TEXT NOT NULL,
  nom TEXT NOT NULL DEFAULT '',
  prenom TEXT NOT NULL DEFAULT '',
  pays TEXT NOT NULL DEFAULT '',
  ville TEXT NOT NULL DEFAULT '',
  code_postal TEXT NOT NULL DEFAULT '',
  tel TEXT NOT NULL DEFAULT '',
  niveau_etude TEXT NOT NULL DEFAULT '',
  niveau_experience TEXT NOT NULL DEFAULT '',
  resume_key TEXT NOT NULL DEFAULT '',
  already_applied INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS applications_candidate ON applications (candidat_id, offre_id);

CREATE TABLE IF NOT EXISTS test_results (
  session_id TEXT PRIMARY KEY,
  candidat_id INTEGER NOT NULL,
  offre_id INTEGER NOT NULL,
  stage TEXT NOT NULL,
  score REAL NOT NULL DEFAULT 0,
  answered INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  submitted INTEGER NOT NULL DEFAULT 0,
  attempts INTEGER NOT NULL DEFAULT 0,
  violations_json TEXT NOT NULL DEFAULT '{}',
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  kind TEXT NOT NULL,                        -- e.g. violation, stage
  session_id TEXT NOT NULL,
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS event_log_session ON event_log (session_id, seq);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  candidat_id BIGINT NOT NULL DEFAULT 0,
  offre_id BIGINT NOT NULL,
  email TEXT NOT NULL,
  nom TEXT NOT NULL DEFAULT '',
  prenom TEXT NOT NULL DEFAULT '',
  pays TEXT NOT NULL DEFAULT '',
  ville TEXT NOT NULL DEFAULT '',
  code_postal TEXT NOT NULL DEFAULT '',
  tel TEXT NOT NULL DEFAULT '',
  niveau_etude TEXT NOT NULL DEFAULT '',
  niveau_experience TEXT NOT NULL DEFAULT '',
  resume_key TEXT NOT NULL DEFAULT '',
  already_applied INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS applications_candidate ON applications (candidat_id, offre_id);

CREATE TABLE IF NOT EXISTS test_results (
  session_id TEXT PRIMARY KEY,
  candidat_id BIGINT NOT NULL,
  offre_id BIGINT NOT NULL,
  stage TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  answered INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  submitted INTEGER NOT NULL DEFAULT 0,
  attempts INTEGER NOT NULL DEFAULT 0,
  violations_json TEXT NOT NULL DEFAULT '{}',
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  kind TEXT NOT NULL,
  session_id TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS event_log_session ON event_log (session_id, seq);
`
