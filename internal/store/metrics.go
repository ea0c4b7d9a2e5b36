package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const chunkSourceQuery = `SELECT c.id, c.speech_id, c.order_in_speech, c.text, s.pm_term_id, s.dt
	FROM chunks c JOIN speeches s ON s.id = c.speech_id`

const upsertMetricSQL = `INSERT INTO chunk_metrics
	(chunk_id, pm_term_id, date, category, depth_level, origin_phase, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chunk_id) DO UPDATE SET
		pm_term_id   = excluded.pm_term_id,
		date         = excluded.date,
		category     = excluded.category,
		depth_level  = excluded.depth_level,
		origin_phase = excluded.origin_phase,
		created_at   = excluded.created_at`

// ListChunkSources returns every chunk joined with its speech's term and
// timestamp, in chunk ID order.
func (s *SQLiteStore) ListChunkSources(ctx context.Context) ([]*ChunkSource, error) {
	rows, err := s.db.QueryContext(ctx, chunkSourceQuery+` ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("listing chunk sources: %w", err)
	}
	defer rows.Close()

	var sources []*ChunkSource
	for rows.Next() {
		cs, err := scanChunkSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk source: %w", err)
		}
		sources = append(sources, cs)
	}
	return sources, rows.Err()
}

// GetChunkSource returns one chunk joined with its speech. Returns nil, nil
// if the chunk does not exist.
func (s *SQLiteStore) GetChunkSource(ctx context.Context, chunkID int64) (*ChunkSource, error) {
	cs, err := scanChunkSource(s.db.QueryRowContext(ctx, chunkSourceQuery+` WHERE c.id = ?`, chunkID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk %d: %w", chunkID, err)
	}
	return cs, nil
}

func scanChunkSource(r rowScanner) (*ChunkSource, error) {
	cs := &ChunkSource{}
	if err := r.Scan(&cs.ChunkID, &cs.SpeechID, &cs.Ordinal, &cs.Text, &cs.TermID, &cs.DT); err != nil {
		return nil, err
	}
	return cs, nil
}

// GetMetric returns the metric of one chunk. Returns nil, nil if absent.
func (s *SQLiteStore) GetMetric(ctx context.Context, chunkID int64) (*ChunkMetric, error) {
	m, err := scanMetric(s.db.QueryRowContext(ctx,
		`SELECT chunk_id, pm_term_id, date, category, depth_level, origin_phase, created_at
		 FROM chunk_metrics WHERE chunk_id = ?`, chunkID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting metric of chunk %d: %w", chunkID, err)
	}
	return m, nil
}

// ListMetrics returns metrics in chunk ID order, optionally filtered.
func (s *SQLiteStore) ListMetrics(ctx context.Context, f MetricFilter) ([]*ChunkMetric, error) {
	query := `SELECT chunk_id, pm_term_id, date, category, depth_level, origin_phase, created_at
		FROM chunk_metrics`
	var where []string
	var args []interface{}
	if f.TermID != "" {
		where = append(where, "pm_term_id = ?")
		args = append(args, f.TermID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY chunk_id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*ChunkMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// CountMetrics returns the number of stored chunk metrics.
func (s *SQLiteStore) CountMetrics(ctx context.Context) (int64, error) {
	return s.count(ctx, "chunk_metrics")
}

// UpsertMetric inserts or replaces the metric of one chunk.
func (s *SQLiteStore) UpsertMetric(ctx context.Context, m *ChunkMetric) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertMetricSQL)
		if err != nil {
			return fmt.Errorf("preparing metric upsert: %w", err)
		}
		defer stmt.Close()
		return upsertMetric(ctx, stmt, m)
	})
}

// WriteMetrics runs one metric write phase in a single transaction.
// With Rebuild, every metric is deleted first. Each metric is upserted by
// chunk ID, so no chunk ever ends up with two rows.
func (s *SQLiteStore) WriteMetrics(ctx context.Context, w MetricWrite) (*WriteResult, error) {
	var result *WriteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = &WriteResult{}
		if w.Rebuild {
			n, err := execAffected(ctx, tx, `DELETE FROM chunk_metrics`)
			if err != nil {
				return fmt.Errorf("clearing chunk_metrics: %w", err)
			}
			result.MetricsDeleted = n
		}
		if len(w.Metrics) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, upsertMetricSQL)
		if err != nil {
			return fmt.Errorf("preparing metric upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range w.Metrics {
			if err := upsertMetric(ctx, stmt, m); err != nil {
				return err
			}
		}
		result.Written = len(w.Metrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func upsertMetric(ctx context.Context, stmt *sql.Stmt, m *ChunkMetric) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := stmt.ExecContext(ctx,
		m.ChunkID, m.TermID, m.Date, m.Category, m.DepthLevel, m.OriginPhase, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting metric of chunk %d: %w", m.ChunkID, err)
	}
	return nil
}

func scanMetric(r rowScanner) (*ChunkMetric, error) {
	m := &ChunkMetric{}
	var created sqliteTime
	if err := r.Scan(&m.ChunkID, &m.TermID, &m.Date, &m.Category, &m.DepthLevel, &m.OriginPhase, &created); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Time(created)
	return m, nil
}

// sqliteTime scans DATETIME columns written either by the driver or by
// CURRENT_TIMESTAMP defaults in older databases.
type sqliteTime time.Time

var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *sqliteTime) Scan(v interface{}) error {
	switch x := v.(type) {
	case nil:
		*t = sqliteTime{}
	case time.Time:
		*t = sqliteTime(x)
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("unsupported time value %T", v)
	}
	return nil
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = sqliteTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}
