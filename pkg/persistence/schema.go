package persistence

import (
	"database/sql"
	"errors"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 2

// initializeSchemaWithMigrations ensures the database schema is at the current version.
func (s *Store) initializeSchemaWithMigrations() error {
	currentVersion, err := s.GetSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	if currentVersion == CurrentSchemaVersion {
		return nil
	}
	if currentVersion > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	}
	return s.runMigrations(currentVersion, CurrentSchemaVersion)
}

// runMigrations applies database migrations from current version to target version.
func (s *Store) runMigrations(fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := s.runMigration(version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := s.setSchemaVersion(version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

// runMigration applies a specific version migration.
func (s *Store) runMigration(version int) error {
	switch version {
	case 1:
		return s.exec(migrationV1)
	case 2:
		return s.exec(migrationV2)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrationV1 creates interview records and the resume analyses they draw context from.
//
//nolint:gochecknoglobals // migration DDL
var migrationV1 = []string{
	`CREATE TABLE IF NOT EXISTS interview_records (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		interview_type TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		transcript TEXT NOT NULL,
		report TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interview_records_candidate ON interview_records(candidate_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS resume_analyses (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		predicted_field TEXT NOT NULL,
		experience_level TEXT NOT NULL,
		skills TEXT NOT NULL,
		summary TEXT NOT NULL,
		uploaded_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resume_analyses_candidate ON resume_analyses(candidate_id, uploaded_at)`,
}

// migrationV2 adds the ledgers written by post-interview hooks.
//
//nolint:gochecknoglobals // migration DDL
var migrationV2 = []string{
	`CREATE TABLE IF NOT EXISTS xp_events (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quest_events (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		action TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_candidate ON notifications(candidate_id, created_at)`,
}

func (s *Store) exec(statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %s: %w", stmt, err)
		}
	}
	return nil
}

// setSchemaVersion records the current schema version.
func (s *Store) setSchemaVersion(version int) error {
	_, err := s.db.Exec(s.rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`),
		version, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the current schema version from the database.
func (s *Store) GetSchemaVersion() (int, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err = s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}
