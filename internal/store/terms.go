package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddTerm inserts a term if no term with the same ID exists.
// Returns true when a row was created. Existing terms are never modified.
func (s *SQLiteStore) AddTerm(ctx context.Context, t *Term) (bool, error) {
	if strings.TrimSpace(t.ID) == "" {
		return false, fmt.Errorf("term id is required")
	}
	if strings.TrimSpace(t.StartDate) == "" {
		return false, fmt.Errorf("term %s: start date is required", t.ID)
	}
	if err := checkDate(t.StartDate); err != nil {
		return false, fmt.Errorf("term %s start: %w", t.ID, err)
	}
	if strings.TrimSpace(t.EndDate) != "" {
		if err := checkDate(t.EndDate); err != nil {
			return false, fmt.Errorf("term %s end: %w", t.ID, err)
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pm_terms (pm_term_id, pm_name, term_start_date, term_end_date, note)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.StartDate, nullString(t.EndDate), nullString(t.Note),
	)
	if err != nil {
		return false, fmt.Errorf("inserting term %s: %w", t.ID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetTerm retrieves a term by ID. Returns nil, nil if not found.
func (s *SQLiteStore) GetTerm(ctx context.Context, id string) (*Term, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pm_term_id, pm_name, term_start_date, term_end_date, note
		 FROM pm_terms WHERE pm_term_id = ?`, id)
	t, err := scanTerm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting term %s: %w", id, err)
	}
	return t, nil
}

// ListTerms returns all terms ordered by start date.
func (s *SQLiteStore) ListTerms(ctx context.Context) ([]*Term, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pm_term_id, pm_name, term_start_date, term_end_date, note
		 FROM pm_terms ORDER BY term_start_date, pm_term_id`)
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	defer rows.Close()

	var terms []*Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// SetTermEnd records the end date of a concluded term.
func (s *SQLiteStore) SetTermEnd(ctx context.Context, id, endDate string) error {
	if strings.TrimSpace(endDate) != "" {
		if err := checkDate(endDate); err != nil {
			return fmt.Errorf("term %s end: %w", id, err)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pm_terms SET term_end_date = ? WHERE pm_term_id = ?`,
		nullString(endDate), id)
	if err != nil {
		return fmt.Errorf("setting end date of term %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("term %s: %w", id, ErrTermNotFound)
	}
	return nil
}

// checkDate accepts a YYYY-MM-DD date, optionally followed by a time of day.
func checkDate(s string) error {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if _, err := time.Parse(dateLayout, s[:len(dateLayout)]); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return nil
}

const dateLayout = "2006-01-02"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTerm(r rowScanner) (*Term, error) {
	t := &Term{}
	var end, note sql.NullString
	if err := r.Scan(&t.ID, &t.Name, &t.StartDate, &end, &note); err != nil {
		return nil, err
	}
	t.EndDate = end.String
	t.Note = note.String
	return t, nil
}
