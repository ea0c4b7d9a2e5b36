package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ListChunks returns the chunks of one speech in ordinal order.
func (s *SQLiteStore) ListChunks(ctx context.Context, speechID int64) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, speech_id, text, order_in_speech
		 FROM chunks WHERE speech_id = ? ORDER BY order_in_speech`, speechID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks of speech %d: %w", speechID, err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.SpeechID, &c.Text, &c.Ordinal); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ChunkedSpeechIDs returns the set of speech IDs that already have chunks.
func (s *SQLiteStore) ChunkedSpeechIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT speech_id FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("listing chunked speeches: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	return s.count(ctx, "chunks")
}

// WriteChunks runs one chunk write phase in a single transaction.
// With Rebuild, every metric and chunk is deleted first. Inserted chunks
// get their IDs filled in. A failure leaves the corpus unchanged.
func (s *SQLiteStore) WriteChunks(ctx context.Context, w ChunkWrite) (*WriteResult, error) {
	var result *WriteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = &WriteResult{}
		if w.Rebuild {
			n, err := execAffected(ctx, tx, `DELETE FROM chunk_metrics`)
			if err != nil {
				return fmt.Errorf("clearing chunk_metrics: %w", err)
			}
			result.MetricsDeleted = n
			n, err = execAffected(ctx, tx, `DELETE FROM chunks`)
			if err != nil {
				return fmt.Errorf("clearing chunks: %w", err)
			}
			result.ChunksDeleted = n
		}
		if err := insertChunks(ctx, tx, w.Chunks); err != nil {
			return err
		}
		result.Written = len(w.Chunks)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (speech_id, text, order_in_speech) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx, c.SpeechID, c.Text, c.Ordinal)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of speech %d: %w", c.Ordinal, c.SpeechID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = id
	}
	return nil
}

func execAffected(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
