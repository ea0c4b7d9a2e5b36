package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/politicsradar/polr/internal/phase"
	"github.com/politicsradar/polr/internal/segment"
	"github.com/politicsradar/polr/internal/store"
)

// SpeechInput is one speech to ingest, with the term it belongs to.
type SpeechInput struct {
	TermID    string
	TermName  string // used when the term is created
	TermStart string // YYYY-MM-DD; required when the term does not exist yet
	TermEnd   string

	Name      string // holder name; defaults to TermName
	DT        string // YYYY-MM-DD[ HH:MM]; empty means today
	Title     string
	Context   string
	Text      string
	SourceURL string
}

// IngestOptions configures IngestSpeech.
type IngestOptions struct {
	MaxLength   int  // 0 means segment.DefaultMaxLength
	SingleChunk bool // store the whole text as one chunk
	DryRun      bool
}

// IngestResult reports one IngestSpeech call.
type IngestResult struct {
	RunID       string
	SpeechID    int64
	TermCreated bool
	Skipped     bool // source already stored
	Chunks      int
	Metrics     int
	Categories  map[string]int
	DryRun      bool
}

// IngestSpeech stores one speech with its chunks and metrics.
//
// The term is inserted if absent. A speech dated before the term start is
// rejected with ErrSpeechBeforeTerm. A speech whose source locator is
// already stored is skipped, which is not an error. Metrics are computed
// before anything is written, then the speech, its chunks and their
// metrics are written in one transaction.
func (p *Pipeline) IngestSpeech(ctx context.Context, in SpeechInput, opts IngestOptions) (*IngestResult, error) {
	result := &IngestResult{RunID: newRunID(), Categories: make(map[string]int), DryRun: opts.DryRun}
	log := p.log.With(map[string]interface{}{"run_id": result.RunID, "step": "ingest", "term_id": in.TermID})

	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = segment.DefaultMaxLength
	}
	if err := segment.ValidateMaxLength(maxLen); err != nil {
		return nil, err
	}

	in.TermID = strings.TrimSpace(in.TermID)
	if in.TermID == "" {
		return nil, fmt.Errorf("speech term id is required")
	}
	if strings.TrimSpace(in.DT) == "" {
		in.DT = phase.TodayString(p.calc.Clock)
	} else if _, err := phase.ParseDate(in.DT); err != nil {
		return nil, fmt.Errorf("speech dt: %w", err)
	}
	if in.Name == "" {
		in.Name = in.TermName
	}

	if err := p.ensureTerm(ctx, in, opts.DryRun, result); err != nil {
		return nil, err
	}

	dup, err := p.store.SpeechExistsBySource(ctx, in.SourceURL)
	if err != nil {
		return nil, err
	}
	if dup {
		result.Skipped = true
		log.WithField("source", in.SourceURL).Info("source already stored, skipping")
		return result, nil
	}

	chunks := p.chunksFor(in.Text, maxLen, opts.SingleChunk)
	result.Chunks = len(chunks)

	sp := &store.Speech{
		TermID:    in.TermID,
		Name:      in.Name,
		DT:        in.DT,
		Title:     in.Title,
		Context:   in.Context,
		RawText:   in.Text,
		SourceURL: in.SourceURL,
	}

	metrics := make([]*store.ChunkMetric, 0, len(chunks))
	for _, c := range chunks {
		m, _, err := p.metricFor(ctx, &store.ChunkSource{Text: c.Text, TermID: in.TermID, DT: in.DT, Ordinal: c.Ordinal})
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", c.Ordinal, err)
		}
		metrics = append(metrics, m)
		result.Categories[m.Category]++
	}
	result.Metrics = len(metrics)
	if opts.DryRun {
		return result, nil
	}

	speechID, err := p.store.AddSpeechWithChunks(ctx, sp, chunks, metrics)
	if err != nil {
		return nil, fmt.Errorf("storing speech: %w", err)
	}
	result.SpeechID = speechID

	log.WithField("speech_id", speechID).WithField("chunks", result.Chunks).Info("speech ingested")
	return result, nil
}

// ensureTerm checks the speech date against the term start and inserts
// the term if absent.
func (p *Pipeline) ensureTerm(ctx context.Context, in SpeechInput, dryRun bool, result *IngestResult) error {
	existing, err := p.store.GetTerm(ctx, in.TermID)
	if err != nil {
		return err
	}
	start := in.TermStart
	if existing != nil {
		start = existing.StartDate
	} else if strings.TrimSpace(start) == "" {
		return fmt.Errorf("term %s has no start date: %w", in.TermID, store.ErrTermNotFound)
	}

	startDate, err := phase.ParseDate(start)
	if err != nil {
		return fmt.Errorf("term %s start: %w", in.TermID, err)
	}
	speechDate, err := phase.ParseDate(in.DT)
	if err != nil {
		return fmt.Errorf("speech dt: %w", err)
	}
	if speechDate.Before(startDate) {
		return fmt.Errorf("speech dated %s, term %s starts %s: %w",
			phase.DatePrefix(in.DT), in.TermID, startDate.Format(phase.DateLayout), ErrSpeechBeforeTerm)
	}

	if existing != nil {
		return nil
	}
	if dryRun {
		result.TermCreated = true
		return nil
	}
	name := in.TermName
	if name == "" {
		name = in.Name
	}
	created, err := p.AddTerm(ctx, &store.Term{ID: in.TermID, Name: name, StartDate: in.TermStart, EndDate: in.TermEnd})
	if err != nil {
		return err
	}
	result.TermCreated = created
	return nil
}

// chunksFor segments text, or keeps it whole under WholeSpeechOrdinal.
func (p *Pipeline) chunksFor(text string, maxLen int, single bool) []*store.Chunk {
	if single {
		whole := strings.TrimSpace(text)
		if whole == "" {
			return nil
		}
		return []*store.Chunk{{Text: whole, Ordinal: store.WholeSpeechOrdinal}}
	}
	frags := segment.Fragments(text, maxLen)
	chunks := make([]*store.Chunk, len(frags))
	for i, f := range frags {
		chunks[i] = &store.Chunk{Text: f.Text, Ordinal: f.Ordinal}
	}
	return chunks
}
