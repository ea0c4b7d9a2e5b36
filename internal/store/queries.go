package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// PhaseBins labels the five origin-phase bins. The last bin includes 1.0.
var PhaseBins = []string{"0-20%", "20-40%", "40-60%", "60-80%", "80-100%"}

// PhaseBin returns the index into PhaseBins for an origin phase.
func PhaseBin(phase float64) int {
	switch {
	case phase < 0.2:
		return 0
	case phase < 0.4:
		return 1
	case phase < 0.6:
		return 2
	case phase < 0.8:
		return 3
	default:
		return 4
	}
}

// CategoryCount is the number of chunks in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// PhaseMatrix counts chunks per category and phase bin.
type PhaseMatrix struct {
	Bins       []string           `json:"bins"`
	Categories []string           `json:"categories"` // by total count, descending
	Counts     map[string][]int64 `json:"counts"`     // category -> per-bin counts
}

// DepthCount is the number of chunks with one depth level in one category.
type DepthCount struct {
	Category   string `json:"category"`
	DepthLevel int    `json:"depth_level"`
	Count      int64  `json:"count"`
}

// ChunkContext is one chunk shown next to a selected chunk.
type ChunkContext struct {
	ChunkID int64  `json:"chunk_id"`
	Ordinal int    `json:"order_in_speech"`
	Text    string `json:"text"`
}

// ChunkDetail is a chunk with its metric, its speech and the chunks around it.
type ChunkDetail struct {
	Chunk     *Chunk         `json:"chunk"`
	Metric    *ChunkMetric   `json:"metric,omitempty"`
	Speech    *Speech        `json:"speech"`
	Neighbors []ChunkContext `json:"neighbors"`
}

// ExportRow is one chunk metric joined with its chunk, speech and term.
type ExportRow struct {
	ChunkID     int64   `json:"chunk_id"`
	SpeechID    int64   `json:"speech_id"`
	Ordinal     int     `json:"order_in_speech"`
	TermID      string  `json:"pm_term_id"`
	Name        string  `json:"pm_name"`
	Title       string  `json:"title"`
	DT          string  `json:"dt"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	DepthLevel  int     `json:"depth_level"`
	OriginPhase float64 `json:"origin_phase"`
	Text        string  `json:"text"`
}

// TableDump is the raw content of one table.
type TableDump struct {
	Table   string
	Total   int64
	Columns []string
	Rows    [][]string
}

// ShowTables lists the tables ShowTable accepts, in display order.
var ShowTables = []string{"pm_terms", "speeches", "chunks", "chunk_metrics"}

// NeighborRadius is how many chunks on each side ChunkDetail includes.
const NeighborRadius = 2

func termFilter(termID, column string) (string, []interface{}) {
	if termID == "" {
		return "", nil
	}
	return " WHERE " + column + " = ?", []interface{}{termID}
}

// CategoryCounts returns chunk counts per category, largest first.
// An empty termID counts all terms.
func (s *SQLiteStore) CategoryCounts(ctx context.Context, termID string) ([]CategoryCount, error) {
	where, args := termFilter(termID, "pm_term_id")
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) AS cnt FROM chunk_metrics`+where+
			` GROUP BY category ORDER BY cnt DESC, category`, args...)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// PhaseMatrix bins every chunk metric by origin phase and category,
// skipping the excluded categories.
func (s *SQLiteStore) PhaseMatrix(ctx context.Context, termID string, exclude []string) (*PhaseMatrix, error) {
	where, args := termFilter(termID, "pm_term_id")
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, origin_phase FROM chunk_metrics`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying phase matrix: %w", err)
	}
	defer rows.Close()

	skip := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		skip[c] = true
	}

	m := &PhaseMatrix{
		Bins:   append([]string(nil), PhaseBins...),
		Counts: make(map[string][]int64),
	}
	totals := make(map[string]int64)
	for rows.Next() {
		var category string
		var phase float64
		if err := rows.Scan(&category, &phase); err != nil {
			return nil, err
		}
		if skip[category] {
			continue
		}
		bins, ok := m.Counts[category]
		if !ok {
			bins = make([]int64, len(PhaseBins))
			m.Counts[category] = bins
		}
		bins[PhaseBin(phase)]++
		totals[category]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for c := range m.Counts {
		m.Categories = append(m.Categories, c)
	}
	sort.Slice(m.Categories, func(i, j int) bool {
		a, b := m.Categories[i], m.Categories[j]
		if totals[a] != totals[b] {
			return totals[a] > totals[b]
		}
		return a < b
	})
	return m, nil
}

// DepthPivot counts chunk metrics per category and depth level.
func (s *SQLiteStore) DepthPivot(ctx context.Context, termID string) ([]DepthCount, error) {
	where, args := termFilter(termID, "pm_term_id")
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, depth_level, COUNT(*) FROM chunk_metrics`+where+
			` GROUP BY category, depth_level ORDER BY category, depth_level`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying depth pivot: %w", err)
	}
	defer rows.Close()

	var out []DepthCount
	for rows.Next() {
		var d DepthCount
		if err := rows.Scan(&d.Category, &d.DepthLevel, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ChunkDetail returns a chunk with its metric, speech and up to
// NeighborRadius chunks on either side (the chunk itself included).
// Returns nil, nil if the chunk does not exist.
func (s *SQLiteStore) ChunkDetail(ctx context.Context, chunkID int64) (*ChunkDetail, error) {
	c := &Chunk{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, speech_id, text, order_in_speech FROM chunks WHERE id = ?`, chunkID,
	).Scan(&c.ID, &c.SpeechID, &c.Text, &c.Ordinal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk %d: %w", chunkID, err)
	}

	detail := &ChunkDetail{Chunk: c}
	if detail.Metric, err = s.GetMetric(ctx, chunkID); err != nil {
		return nil, err
	}
	if detail.Speech, err = s.GetSpeech(ctx, c.SpeechID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_in_speech, text FROM chunks
		 WHERE speech_id = ? AND order_in_speech BETWEEN ? AND ?
		 ORDER BY order_in_speech`,
		c.SpeechID, c.Ordinal-NeighborRadius, c.Ordinal+NeighborRadius)
	if err != nil {
		return nil, fmt.Errorf("listing neighbors of chunk %d: %w", chunkID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var n ChunkContext
		if err := rows.Scan(&n.ChunkID, &n.Ordinal, &n.Text); err != nil {
			return nil, err
		}
		detail.Neighbors = append(detail.Neighbors, n)
	}
	return detail, rows.Err()
}

// ExportRows returns every chunk metric joined with chunk and speech,
// ordered by speech timestamp and ordinal.
func (s *SQLiteStore) ExportRows(ctx context.Context, termID string) ([]*ExportRow, error) {
	where, args := termFilter(termID, "m.pm_term_id")
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.chunk_id, c.speech_id, c.order_in_speech, m.pm_term_id, s.pm_name,
		        COALESCE(s.title, ''), s.dt, m.date, m.category, m.depth_level, m.origin_phase, c.text
		 FROM chunk_metrics m
		 JOIN chunks c ON c.id = m.chunk_id
		 JOIN speeches s ON s.id = c.speech_id`+where+`
		 ORDER BY s.dt, c.speech_id, c.order_in_speech`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}
	defer rows.Close()

	var out []*ExportRow
	for rows.Next() {
		r := &ExportRow{}
		if err := rows.Scan(&r.ChunkID, &r.SpeechID, &r.Ordinal, &r.TermID, &r.Name,
			&r.Title, &r.DT, &r.Date, &r.Category, &r.DepthLevel, &r.OriginPhase, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ShowTable returns the row count and up to limit rows of one corpus table,
// every value rendered as text.
func (s *SQLiteStore) ShowTable(ctx context.Context, table string, limit int) (*TableDump, error) {
	known := false
	for _, t := range ShowTables {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown table %q (want one of %s)", table, strings.Join(ShowTables, ", "))
	}
	if limit <= 0 {
		limit = 50
	}

	dump := &TableDump{Table: table}
	var err error
	if dump.Total, err = s.count(ctx, table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+table+` LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	if dump.Columns, err = rows.Columns(); err != nil {
		return nil, err
	}
	for rows.Next() {
		values := make([]sql.NullString, len(dump.Columns))
		dest := make([]interface{}, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		dump.Rows = append(dump.Rows, row)
	}
	return dump, rows.Err()
}

// Stats returns corpus counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM pm_terms", &stats.TermCount},
		{"SELECT COUNT(*) FROM speeches", &stats.SpeechCount},
		{"SELECT COUNT(*) FROM chunks", &stats.ChunkCount},
		{"SELECT COUNT(*) FROM chunk_metrics", &stats.MetricCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// Get DB size (only works for file-based DBs)
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}
