package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is recorded in meta after a successful migration.
const SchemaVersion = "2"

// migrate creates all tables if they don't exist, converts the legacy
// layouts written by earlier ingestion paths, and records the schema version.
func (s *SQLiteStore) migrate() error {
	if err := s.runBootstrapDDL(); err != nil {
		return err
	}

	// Legacy: one ingestion path keyed speeches by a "datetime" column.
	if err := s.migrateSpeechDTColumn(); err != nil {
		return fmt.Errorf("migrating speeches.dt column: %w", err)
	}

	// Legacy: chunk_metrics with a surrogate autoincrement id, which allowed
	// several metric rows per chunk.
	if err := s.migrateChunkMetricsKey(); err != nil {
		return fmt.Errorf("migrating chunk_metrics key: %w", err)
	}

	if err := s.createIndexes(); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	if _, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, SchemaVersion,
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

const chunkMetricsDDL = `CREATE TABLE IF NOT EXISTS %s (
	chunk_id     INTEGER PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
	pm_term_id   TEXT NOT NULL,
	date         TEXT NOT NULL,
	category     TEXT NOT NULL,
	depth_level  INTEGER NOT NULL CHECK(depth_level BETWEEN 0 AND 3),
	origin_phase REAL NOT NULL CHECK(origin_phase >= 0.0 AND origin_phase <= 1.0),
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
)`

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pm_terms (
			pm_term_id      TEXT PRIMARY KEY,
			pm_name         TEXT NOT NULL,
			term_start_date TEXT NOT NULL,
			term_end_date   TEXT,
			note            TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS speeches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			pm_term_id  TEXT NOT NULL REFERENCES pm_terms(pm_term_id),
			pm_name     TEXT NOT NULL,
			dt          TEXT NOT NULL,
			title       TEXT,
			context     TEXT,
			raw_text    TEXT,
			source_url  TEXT UNIQUE,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS chunks (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			speech_id       INTEGER NOT NULL REFERENCES speeches(id) ON DELETE CASCADE,
			text            TEXT NOT NULL,
			order_in_speech INTEGER NOT NULL,
			UNIQUE(speech_id, order_in_speech)
		)`,

		fmt.Sprintf(chunkMetricsDDL, "chunk_metrics"),

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing bootstrap DDL: %w\nStatement: %s", err, stmt)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) createIndexes() error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_speeches_term ON speeches(pm_term_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_speech ON chunks(speech_id, order_in_speech)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_metrics_term ON chunk_metrics(pm_term_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_metrics_category ON chunk_metrics(category)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w\nStatement: %s", err, stmt)
		}
	}
	return nil
}

func (s *SQLiteStore) migrateSpeechDTColumn() error {
	hasDT, err := s.columnExists("speeches", "dt")
	if err != nil {
		return err
	}
	if hasDT {
		return nil
	}
	hasDatetime, err := s.columnExists("speeches", "datetime")
	if err != nil {
		return err
	}
	if !hasDatetime {
		return fmt.Errorf("speeches table has neither dt nor datetime column")
	}
	_, err = s.db.Exec(`ALTER TABLE speeches RENAME COLUMN datetime TO dt`)
	return err
}

// migrateChunkMetricsKey rebuilds a legacy chunk_metrics table around
// chunk_id, keeping the newest row of each chunk and dropping rows whose
// chunk no longer exists.
func (s *SQLiteStore) migrateChunkMetricsKey() error {
	legacy, err := s.columnExists("chunk_metrics", "id")
	if err != nil {
		return err
	}
	if !legacy {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []string{
		fmt.Sprintf(chunkMetricsDDL, "chunk_metrics_v2"),
		`INSERT INTO chunk_metrics_v2 (chunk_id, pm_term_id, date, category, depth_level, origin_phase, created_at)
		 SELECT chunk_id, pm_term_id, SUBSTR(date, 1, 10), category,
		        MIN(MAX(depth_level, 0), 3), MIN(MAX(origin_phase, 0.0), 1.0), created_at
		 FROM chunk_metrics
		 WHERE id IN (SELECT MAX(id) FROM chunk_metrics GROUP BY chunk_id)
		   AND chunk_id IN (SELECT id FROM chunks)`,
		`DROP TABLE chunk_metrics`,
		`ALTER TABLE chunk_metrics_v2 RENAME TO chunk_metrics`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w\nStatement: %s", err, stmt)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) columnExists(table, column string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("checking %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// schemaVersion reads the recorded schema version.
func (s *SQLiteStore) schemaVersion() (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
