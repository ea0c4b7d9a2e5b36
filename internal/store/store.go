// Package store provides the SQLite storage layer for polr.
//
// The whole corpus lives in one SQLite database file:
// - pm_terms: political terms with start and optional end dates
// - speeches: ingested transcripts with provenance
// - chunks: ordered, noise-filtered fragments of each speech
// - chunk_metrics: the derived category/depth/phase annotation, one per chunk
//
// chunk_metrics is never authoritative; it can always be rebuilt from chunk
// text and term dates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.polr/db/pm_speeches.db"

// DefaultBusyRetry bounds how long a transaction is retried while another
// process holds the write lock.
const DefaultBusyRetry = 10 * time.Second

// WholeSpeechOrdinal is the ordinal of a chunk holding an entire speech
// that was stored without segmentation.
const WholeSpeechOrdinal = 0

// ErrTermNotFound is returned by operations that require an existing term.
var ErrTermNotFound = errors.New("term not found")

// ErrInvalidDate is returned when a term date is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("invalid calendar date")

// Term is one contiguous tenure of an office-holder.
type Term struct {
	ID        string `json:"pm_term_id"`
	Name      string `json:"pm_name"`
	StartDate string `json:"start_date"`         // YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"` // empty while the term is ongoing
	Note      string `json:"note,omitempty"`
}

// Ongoing reports whether the term has no end date yet.
func (t *Term) Ongoing() bool { return strings.TrimSpace(t.EndDate) == "" }

// Speech is one ingested transcript.
type Speech struct {
	ID        int64  `json:"id"`
	TermID    string `json:"pm_term_id"`
	Name      string `json:"pm_name"`
	DT        string `json:"dt"` // "YYYY-MM-DD" or "YYYY-MM-DD HH:MM"
	Title     string `json:"title"`
	Context   string `json:"context"`
	RawText   string `json:"raw_text"`
	SourceURL string `json:"source_url,omitempty"` // empty when unknown; unique otherwise
}

// Chunk is one ordered fragment of a speech.
type Chunk struct {
	ID       int64  `json:"id"`
	SpeechID int64  `json:"speech_id"`
	Text     string `json:"text"`
	Ordinal  int    `json:"order_in_speech"`
}

// ChunkMetric is the derived annotation of exactly one chunk.
type ChunkMetric struct {
	ChunkID     int64     `json:"chunk_id"`
	TermID      string    `json:"pm_term_id"`
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	DepthLevel  int       `json:"depth_level"`
	OriginPhase float64   `json:"origin_phase"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChunkSource is a chunk joined with the speech fields metrics need.
type ChunkSource struct {
	ChunkID  int64
	SpeechID int64
	Ordinal  int
	Text     string
	TermID   string
	DT       string
}

// ChunkWrite describes one chunk write phase.
type ChunkWrite struct {
	// Rebuild deletes every metric and chunk before inserting.
	Rebuild bool
	Chunks  []*Chunk
}

// MetricWrite describes one metric write phase.
type MetricWrite struct {
	// Rebuild deletes every metric before upserting.
	Rebuild bool
	Metrics []*ChunkMetric
}

// WriteResult reports what a write phase changed.
type WriteResult struct {
	ChunksDeleted  int64
	MetricsDeleted int64
	Written        int
}

// MetricFilter narrows ListMetrics.
type MetricFilter struct {
	TermID   string
	Category string
	Limit    int
	Offset   int
}

// StoreStats holds corpus counts.
type StoreStats struct {
	TermCount   int64 `json:"terms"`
	SpeechCount int64 `json:"speeches"`
	ChunkCount  int64 `json:"chunks"`
	MetricCount int64 `json:"chunk_metrics"`
	DBSizeBytes int64 `json:"db_size_bytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath    string
	BusyRetry time.Duration
}

// Store defines the corpus storage interface.
type Store interface {
	// Terms
	AddTerm(ctx context.Context, t *Term) (bool, error)
	GetTerm(ctx context.Context, id string) (*Term, error)
	ListTerms(ctx context.Context) ([]*Term, error)
	SetTermEnd(ctx context.Context, id, endDate string) error

	// Speeches
	AddSpeech(ctx context.Context, sp *Speech) (int64, error)
	AddSpeechWithChunks(ctx context.Context, sp *Speech, chunks []*Chunk, metrics []*ChunkMetric) (int64, error)
	GetSpeech(ctx context.Context, id int64) (*Speech, error)
	ListSpeeches(ctx context.Context) ([]*Speech, error)
	SpeechExistsBySource(ctx context.Context, sourceURL string) (bool, error)
	CountSpeeches(ctx context.Context) (int64, error)

	// Chunks
	ListChunks(ctx context.Context, speechID int64) ([]*Chunk, error)
	ChunkedSpeechIDs(ctx context.Context) (map[int64]bool, error)
	CountChunks(ctx context.Context) (int64, error)
	WriteChunks(ctx context.Context, w ChunkWrite) (*WriteResult, error)

	// Metrics
	ListChunkSources(ctx context.Context) ([]*ChunkSource, error)
	GetChunkSource(ctx context.Context, chunkID int64) (*ChunkSource, error)
	GetMetric(ctx context.Context, chunkID int64) (*ChunkMetric, error)
	ListMetrics(ctx context.Context, f MetricFilter) ([]*ChunkMetric, error)
	CountMetrics(ctx context.Context) (int64, error)
	UpsertMetric(ctx context.Context, m *ChunkMetric) error
	WriteMetrics(ctx context.Context, w MetricWrite) (*WriteResult, error)

	// Queries
	CategoryCounts(ctx context.Context, termID string) ([]CategoryCount, error)
	PhaseMatrix(ctx context.Context, termID string, exclude []string) (*PhaseMatrix, error)
	DepthPivot(ctx context.Context, termID string) ([]DepthCount, error)
	ChunkDetail(ctx context.Context, chunkID int64) (*ChunkDetail, error)
	ExportRows(ctx context.Context, termID string) ([]*ExportRow, error)
	ShowTable(ctx context.Context, table string, limit int) (*TableDump, error)
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	busyRetry time.Duration
}

// NewStore creates a new SQLite-backed Store and migrates its schema.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}
	if cfg.BusyRetry <= 0 {
		cfg.BusyRetry = DefaultBusyRetry
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer is assumed, and pragmas and :memory: databases are
	// per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		dbPath:    cfg.DBPath,
		busyRetry: cfg.BusyRetry,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Vacuum runs VACUUM on the database. Manual only.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// withTx runs fn in one transaction. The whole transaction is retried
// with exponential backoff while SQLite reports the database as busy; any
// other error rolls back and is returned as is.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	op := func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classifyTxErr(fmt.Errorf("beginning transaction: %w", err))
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return classifyTxErr(err)
		}
		if err := tx.Commit(); err != nil {
			return classifyTxErr(fmt.Errorf("committing transaction: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = s.busyRetry
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func classifyTxErr(err error) error {
	if isBusy(err) {
		return err
	}
	return backoff.Permanent(err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func nullString(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
