package pipeline

import (
	"context"
	"fmt"

	"github.com/politicsradar/polr/internal/store"
)

// MetricOptions configures BuildMetrics.
type MetricOptions struct {
	Rebuild bool // delete every metric first
	DryRun  bool // compute and report, write nothing
}

// MetricResult reports a BuildMetrics run.
type MetricResult struct {
	RunID          string
	Metrics        int
	MetricsDeleted int64
	Categories     map[string]int
	DryRun         bool
}

// BuildMetrics derives one metric per chunk in one write phase.
//
// Every metric is computed before anything is written; a malformed date
// aborts the run with no writes. Metrics are upserted by chunk ID, so
// running without Rebuild refreshes existing rows instead of duplicating
// them. An empty chunk corpus returns ErrEmptyCorpus before any write.
func (p *Pipeline) BuildMetrics(ctx context.Context, opts MetricOptions) (*MetricResult, error) {
	result := &MetricResult{
		RunID:      newRunID(),
		Categories: make(map[string]int),
		DryRun:     opts.DryRun,
	}
	log := p.log.With(map[string]interface{}{"run_id": result.RunID, "step": "metrics"})

	n, err := p.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no chunks to annotate: %w", ErrEmptyCorpus)
	}

	sources, err := p.store.ListChunkSources(ctx)
	if err != nil {
		return nil, err
	}

	metrics := make([]*store.ChunkMetric, 0, len(sources))
	for _, cs := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, res, err := p.metricFor(ctx, cs)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", cs.ChunkID, err)
		}
		log.WithField("chunk_id", cs.ChunkID).WithField("rule", res.Rule).Debug("classified")
		metrics = append(metrics, m)
		result.Categories[m.Category]++
	}
	result.Metrics = len(metrics)

	if opts.DryRun {
		if opts.Rebuild {
			if result.MetricsDeleted, err = p.store.CountMetrics(ctx); err != nil {
				return nil, err
			}
		}
		log.WithField("metrics", result.Metrics).Info("dry run, nothing written")
		return result, nil
	}

	wr, err := p.store.WriteMetrics(ctx, store.MetricWrite{Rebuild: opts.Rebuild, Metrics: metrics})
	if err != nil {
		return nil, fmt.Errorf("writing metrics: %w", err)
	}
	result.MetricsDeleted = wr.MetricsDeleted

	log.WithField("metrics", result.Metrics).Info("metrics built")
	return result, nil
}

// UpsertChunkMetric recomputes and stores the metric of one chunk.
// Unknown chunks return ErrChunkNotFound. With dryRun the metric is
// returned but not stored.
func (p *Pipeline) UpsertChunkMetric(ctx context.Context, chunkID int64, dryRun bool) (*store.ChunkMetric, error) {
	cs, err := p.store.GetChunkSource(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		return nil, fmt.Errorf("chunk %d: %w", chunkID, ErrChunkNotFound)
	}

	m, _, err := p.metricFor(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", chunkID, err)
	}
	if dryRun {
		return m, nil
	}
	if err := p.store.UpsertMetric(ctx, m); err != nil {
		return nil, err
	}
	p.log.WithField("chunk_id", chunkID).WithField("category", m.Category).Debug("metric upserted")
	return m, nil
}
