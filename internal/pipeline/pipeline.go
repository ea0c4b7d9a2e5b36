// Package pipeline runs the corpus build steps: segmenting speeches into
// chunks, deriving chunk metrics, and ingesting single speeches end to end.
//
// Each step is one write phase against the store. A failed step leaves the
// corpus as it was before the step started.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/politicsradar/polr/internal/classify"
	"github.com/politicsradar/polr/internal/logging"
	"github.com/politicsradar/polr/internal/phase"
	"github.com/politicsradar/polr/internal/store"
)

// DefaultWorkers is the segmentation concurrency when none is configured.
const DefaultWorkers = 4

var (
	// ErrEmptyCorpus is returned when a rebuild has nothing to read.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrChunkNotFound is returned by UpsertChunkMetric for unknown chunks.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrSpeechBeforeTerm is returned by IngestSpeech for a speech dated
	// before the start of its term.
	ErrSpeechBeforeTerm = errors.New("speech predates its term")
)

// Pipeline wires the segmenter, classifier and phase resolver to a store.
type Pipeline struct {
	store      store.Store
	classifier *classify.Classifier
	calc       *phase.Calculator
	resolver   *phase.Resolver
	log        *logging.Logger
	workers    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClassifier replaces the default rule chain.
func WithClassifier(c *classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithClock sets the clock used for open terms and missing dates.
func WithClock(c phase.Clock) Option {
	return func(p *Pipeline) { p.calc = phase.NewCalculator(c) }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithWorkers bounds segmentation concurrency. Values below 1 use
// DefaultWorkers.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// New returns a Pipeline over s.
func New(s store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      s,
		classifier: classify.Default(),
		calc:       phase.NewCalculator(nil),
		log:        logging.Discard(),
		workers:    DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = DefaultWorkers
	}
	if p.log == nil {
		p.log = logging.Discard()
	}
	p.log = p.log.Component("pipeline")
	p.resolver = phase.NewResolver(s, p.calc, p.log)
	return p
}

// Classifier returns the classifier in use.
func (p *Pipeline) Classifier() *classify.Classifier { return p.classifier }

func newRunID() string { return uuid.New().String() }

// AddTerm validates and inserts a term if absent. Dates are normalized to
// YYYY-MM-DD. Returns true when the term was created.
func (p *Pipeline) AddTerm(ctx context.Context, t *store.Term) (bool, error) {
	if strings.TrimSpace(t.ID) == "" {
		return false, fmt.Errorf("term id is required")
	}
	start, err := phase.NormalizeDate(t.StartDate)
	if err != nil {
		return false, fmt.Errorf("term %s start: %w", t.ID, err)
	}
	t.StartDate = start
	if strings.TrimSpace(t.EndDate) != "" {
		end, err := phase.NormalizeDate(t.EndDate)
		if err != nil {
			return false, fmt.Errorf("term %s end: %w", t.ID, err)
		}
		t.EndDate = end
	}
	created, err := p.store.AddTerm(ctx, t)
	if err != nil {
		return false, err
	}
	if created {
		p.resolver.Invalidate(t.ID)
		p.log.With(map[string]interface{}{"term_id": t.ID}).Info("term added")
	}
	return created, nil
}

// EndTerm records the end date of a term and drops its cached bounds.
func (p *Pipeline) EndTerm(ctx context.Context, termID, endDate string) error {
	end, err := phase.NormalizeDate(endDate)
	if err != nil {
		return fmt.Errorf("term %s end: %w", termID, err)
	}
	if err := p.store.SetTermEnd(ctx, termID, end); err != nil {
		return err
	}
	p.resolver.Invalidate(termID)
	return nil
}

// metricFor derives the metric of one chunk. The date is the speech
// timestamp's date part, or today when the timestamp is empty.
func (p *Pipeline) metricFor(ctx context.Context, cs *store.ChunkSource) (*store.ChunkMetric, classify.Result, error) {
	date := phase.DatePrefix(cs.DT)
	if date == "" {
		date = phase.TodayString(p.calc.Clock)
	} else if _, err := phase.ParseDate(date); err != nil {
		return nil, classify.Result{}, fmt.Errorf("speech %d dt: %w", cs.SpeechID, err)
	}

	res := p.classifier.Classify(cs.Text)
	origin, err := p.resolver.PhaseFor(ctx, cs.TermID, date)
	if err != nil {
		return nil, res, err
	}

	return &store.ChunkMetric{
		ChunkID:     cs.ChunkID,
		TermID:      cs.TermID,
		Date:        date,
		Category:    res.Category.String(),
		DepthLevel:  res.Depth,
		OriginPhase: origin,
	}, res, nil
}
