package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/politicsradar/polr/internal/segment"
	"github.com/politicsradar/polr/internal/store"
)

// ChunkOptions configures BuildChunks.
type ChunkOptions struct {
	MaxLength int  // fragment length bound; 0 means segment.DefaultMaxLength
	Rebuild   bool // delete every chunk and metric first
	DryRun    bool // compute and report, write nothing
}

// ChunkResult reports a BuildChunks run.
type ChunkResult struct {
	RunID           string
	Speeches        int // speeches segmented
	SpeechesSkipped int // speeches that already had chunks
	Chunks          int // chunks written (or that would be)
	ChunksDeleted   int64
	MetricsDeleted  int64
	DryRun          bool
}

// BuildChunks segments speeches into chunks in one write phase.
//
// With Rebuild every existing chunk and metric is replaced. Without it only
// speeches that have no chunks yet are segmented. An empty speech corpus
// returns ErrEmptyCorpus before anything is written.
func (p *Pipeline) BuildChunks(ctx context.Context, opts ChunkOptions) (*ChunkResult, error) {
	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = segment.DefaultMaxLength
	}
	if err := segment.ValidateMaxLength(maxLen); err != nil {
		return nil, err
	}

	result := &ChunkResult{RunID: newRunID(), DryRun: opts.DryRun}
	log := p.log.With(map[string]interface{}{"run_id": result.RunID, "step": "chunks"})

	n, err := p.store.CountSpeeches(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no speeches to chunk: %w", ErrEmptyCorpus)
	}

	speeches, err := p.store.ListSpeeches(ctx)
	if err != nil {
		return nil, err
	}

	if !opts.Rebuild {
		chunked, err := p.store.ChunkedSpeechIDs(ctx)
		if err != nil {
			return nil, err
		}
		pending := speeches[:0]
		for _, sp := range speeches {
			if chunked[sp.ID] {
				result.SpeechesSkipped++
				continue
			}
			pending = append(pending, sp)
		}
		speeches = pending
	}

	perSpeech, err := p.segmentAll(ctx, speeches, maxLen)
	if err != nil {
		return nil, err
	}

	var chunks []*store.Chunk
	for i, sp := range speeches {
		for _, f := range perSpeech[i] {
			chunks = append(chunks, &store.Chunk{SpeechID: sp.ID, Text: f.Text, Ordinal: f.Ordinal})
		}
	}
	result.Speeches = len(speeches)
	result.Chunks = len(chunks)

	if opts.DryRun {
		if opts.Rebuild {
			if result.ChunksDeleted, err = p.store.CountChunks(ctx); err != nil {
				return nil, err
			}
			if result.MetricsDeleted, err = p.store.CountMetrics(ctx); err != nil {
				return nil, err
			}
		}
		log.WithField("chunks", result.Chunks).Info("dry run, nothing written")
		return result, nil
	}

	wr, err := p.store.WriteChunks(ctx, store.ChunkWrite{Rebuild: opts.Rebuild, Chunks: chunks})
	if err != nil {
		return nil, fmt.Errorf("writing chunks: %w", err)
	}
	result.ChunksDeleted = wr.ChunksDeleted
	result.MetricsDeleted = wr.MetricsDeleted

	log.WithField("speeches", result.Speeches).
		WithField("chunks", result.Chunks).
		WithField("skipped", result.SpeechesSkipped).
		Info("chunks built")
	return result, nil
}

// segmentAll segments speeches concurrently. The result is indexed like
// speeches, so write order does not depend on scheduling.
func (p *Pipeline) segmentAll(ctx context.Context, speeches []*store.Speech, maxLen int) ([][]segment.Fragment, error) {
	out := make([][]segment.Fragment, len(speeches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, sp := range speeches {
		i, sp := i, sp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = segment.Fragments(sp.RawText, maxLen)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
