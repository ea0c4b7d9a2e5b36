package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const speechColumns = `id, pm_term_id, pm_name, dt, title, context, raw_text, source_url`

// AddSpeech inserts a speech and returns its ID.
// The owning term must already exist.
func (s *SQLiteStore) AddSpeech(ctx context.Context, sp *Speech) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertSpeech(ctx, tx, sp)
		return err
	})
	if err != nil {
		return 0, err
	}
	sp.ID = id
	return id, nil
}

// AddSpeechWithChunks inserts a speech, its chunks and optionally their
// metrics in one transaction. metrics is nil or parallel to chunks; each
// metric gets the ID of its chunk. Chunk SpeechID and ID fields are filled in.
func (s *SQLiteStore) AddSpeechWithChunks(ctx context.Context, sp *Speech, chunks []*Chunk, metrics []*ChunkMetric) (int64, error) {
	if metrics != nil && len(metrics) != len(chunks) {
		return 0, fmt.Errorf("speech has %d chunks but %d metrics", len(chunks), len(metrics))
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertSpeech(ctx, tx, sp)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			c.SpeechID = id
		}
		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		if len(metrics) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, upsertMetricSQL)
		if err != nil {
			return fmt.Errorf("preparing metric upsert: %w", err)
		}
		defer stmt.Close()
		for i, m := range metrics {
			m.ChunkID = chunks[i].ID
			if err := upsertMetric(ctx, stmt, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	sp.ID = id
	return id, nil
}

func insertSpeech(ctx context.Context, tx *sql.Tx, sp *Speech) (int64, error) {
	if strings.TrimSpace(sp.TermID) == "" {
		return 0, fmt.Errorf("speech term id is required")
	}
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pm_terms WHERE pm_term_id = ?`, sp.TermID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking term %s: %w", sp.TermID, err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("speech term %s: %w", sp.TermID, ErrTermNotFound)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO speeches (pm_term_id, pm_name, dt, title, context, raw_text, source_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sp.TermID, sp.Name, sp.DT, nullString(sp.Title), nullString(sp.Context),
		sp.RawText, nullString(sp.SourceURL),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting speech: %w", err)
	}
	return res.LastInsertId()
}

// GetSpeech retrieves a speech by ID. Returns nil, nil if not found.
func (s *SQLiteStore) GetSpeech(ctx context.Context, id int64) (*Speech, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+speechColumns+` FROM speeches WHERE id = ?`, id)
	sp, err := scanSpeech(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting speech %d: %w", id, err)
	}
	return sp, nil
}

// ListSpeeches returns every speech in ID order.
func (s *SQLiteStore) ListSpeeches(ctx context.Context) ([]*Speech, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+speechColumns+` FROM speeches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing speeches: %w", err)
	}
	defer rows.Close()

	var speeches []*Speech
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning speech: %w", err)
		}
		speeches = append(speeches, sp)
	}
	return speeches, rows.Err()
}

// SpeechExistsBySource reports whether a speech with the given source
// locator is already stored. An empty locator never matches.
func (s *SQLiteStore) SpeechExistsBySource(ctx context.Context, sourceURL string) (bool, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM speeches WHERE source_url = ?`, sourceURL).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking source %s: %w", sourceURL, err)
	}
	return n > 0, nil
}

// CountSpeeches returns the number of stored speeches.
func (s *SQLiteStore) CountSpeeches(ctx context.Context) (int64, error) {
	return s.count(ctx, "speeches")
}

func (s *SQLiteStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

func scanSpeech(r rowScanner) (*Speech, error) {
	sp := &Speech{}
	var title, note, raw, source sql.NullString
	if err := r.Scan(&sp.ID, &sp.TermID, &sp.Name, &sp.DT, &title, &note, &raw, &source); err != nil {
		return nil, err
	}
	sp.Title = title.String
	sp.Context = note.String
	sp.RawText = raw.String
	sp.SourceURL = source.String
	return sp, nil
}
