package phase

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/politicsradar/polr/internal/logging"
	"github.com/politicsradar/polr/internal/store"
)

// DefaultBoundsTTL is how long resolved term bounds stay cached.
const DefaultBoundsTTL = 10 * time.Minute

// TermSource looks up terms by ID. GetTerm returns nil, nil for unknown IDs.
type TermSource interface {
	GetTerm(ctx context.Context, id string) (*store.Term, error)
}

type bounds struct {
	start time.Time
	end   *time.Time
}

// Resolver computes origin phases by term ID, caching parsed term bounds.
// Unknown terms resolve to 0 and are not cached, so a term added later
// is picked up on the next lookup.
type Resolver struct {
	terms TermSource
	calc  *Calculator
	cache *gocache.Cache
	log   *logging.Logger
}

// NewResolver returns a Resolver over terms. A nil calc uses the system
// clock and a nil logger discards.
func NewResolver(terms TermSource, calc *Calculator, log *logging.Logger) *Resolver {
	if calc == nil {
		calc = NewCalculator(nil)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{
		terms: terms,
		calc:  calc,
		cache: gocache.New(DefaultBoundsTTL, 2*DefaultBoundsTTL),
		log:   log.Component("phase"),
	}
}

// PhaseFor returns the origin phase of date within term termID.
// A term that does not exist yields 0 with no error. Malformed term or
// target dates yield an error wrapping ErrMalformedDate.
func (r *Resolver) PhaseFor(ctx context.Context, termID, date string) (float64, error) {
	b, ok, err := r.bounds(ctx, termID)
	if err != nil {
		return 0, err
	}
	if !ok {
		r.log.With(map[string]interface{}{"term_id": termID}).Debug("unknown term, phase 0")
		return 0, nil
	}
	target, err := ParseDate(date)
	if err != nil {
		return 0, fmt.Errorf("target date: %w", err)
	}
	return r.calc.Phase(b.start, b.end, target), nil
}

func (r *Resolver) bounds(ctx context.Context, termID string) (bounds, bool, error) {
	if v, found := r.cache.Get(termID); found {
		return v.(bounds), true, nil
	}

	term, err := r.terms.GetTerm(ctx, termID)
	if err != nil {
		return bounds{}, false, fmt.Errorf("looking up term %s: %w", termID, err)
	}
	if term == nil {
		return bounds{}, false, nil
	}

	start, err := ParseDate(term.StartDate)
	if err != nil {
		return bounds{}, false, fmt.Errorf("term %s start: %w", termID, err)
	}
	b := bounds{start: start}
	if !term.Ongoing() {
		end, err := ParseDate(term.EndDate)
		if err != nil {
			return bounds{}, false, fmt.Errorf("term %s end: %w", termID, err)
		}
		b.end = &end
	}

	r.cache.SetDefault(termID, b)
	return b, true, nil
}

// Invalidate drops the cached bounds of one term, e.g. after its end date
// has been set.
func (r *Resolver) Invalidate(termID string) {
	r.cache.Delete(termID)
}

// Flush drops every cached term.
func (r *Resolver) Flush() {
	r.cache.Flush()
}
