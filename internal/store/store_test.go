package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedSpeech stores a term and one speech with the given chunk texts.
func seedSpeech(t *testing.T, s Store, termID, dt, source string, texts ...string) (int64, []*Chunk) {
	t.Helper()
	ctx := context.Background()
	_, err := s.AddTerm(ctx, &Term{ID: termID, Name: "Holder " + termID, StartDate: "2025-01-01", EndDate: "2025-12-31"})
	require.NoError(t, err)

	chunks := make([]*Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &Chunk{Text: text, Ordinal: i + 1}
	}
	id, err := s.AddSpeechWithChunks(ctx, &Speech{
		TermID: termID, Name: "Holder " + termID, DT: dt, Title: "title", SourceURL: source,
	}, chunks, nil)
	require.NoError(t, err)
	return id, chunks
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)

	for _, table := range []string{"pm_terms", "speeches", "chunks", "chunk_metrics", "meta"} {
		var name string
		err := ss.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}

	v, err := ss.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestNewStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db", "pm_speeches.db")
	s, err := NewStore(StoreConfig{DBPath: path})
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
	assert.Equal(t, path, s.(*SQLiteStore).Path())
}

func TestForeignKeysEnabled(t *testing.T) {
	ss := newTestStore(t).(*SQLiteStore)
	var fk int
	require.NoError(t, ss.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestAddTerm(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddTerm(ctx, &Term{ID: "ishiba", Name: "Ishiba", StartDate: "2024-10-01"})
	require.NoError(t, err)
	assert.True(t, created)

	// Insert-if-absent never overwrites.
	created, err = s.AddTerm(ctx, &Term{ID: "ishiba", Name: "Other", StartDate: "2020-01-01"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetTerm(ctx, "ishiba")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ishiba", got.Name)
	assert.Equal(t, "2024-10-01", got.StartDate)
	assert.True(t, got.Ongoing())

	_, err = s.AddTerm(ctx, &Term{ID: "nostart", Name: "x"})
	assert.Error(t, err)
}

func TestAddTermRejectsMalformedDates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, term := range []*Term{
		{ID: "slash", StartDate: "2025/01/01"},
		{ID: "short", StartDate: "2025-1-1"},
		{ID: "month", StartDate: "2025-13-01"},
		{ID: "end", StartDate: "2025-01-01", EndDate: "someday"},
	} {
		_, err := s.AddTerm(ctx, term)
		assert.ErrorIs(t, err, ErrInvalidDate, term.ID)
	}

	created, err := s.AddTerm(ctx, &Term{ID: "timed", StartDate: "2025-01-01 09:00"})
	require.NoError(t, err)
	assert.True(t, created, "a time of day after the date is accepted")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TermCount)

	err = s.SetTermEnd(ctx, "timed", "2025.12.31")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestGetTermMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetTerm(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetTermEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddTerm(ctx, &Term{ID: "kishida", Name: "Kishida", StartDate: "2021-10-04"})
	require.NoError(t, err)

	require.NoError(t, s.SetTermEnd(ctx, "kishida", "2024-10-01"))
	got, err := s.GetTerm(ctx, "kishida")
	require.NoError(t, err)
	assert.Equal(t, "2024-10-01", got.EndDate)
	assert.False(t, got.Ongoing())

	err = s.SetTermEnd(ctx, "missing", "2024-10-01")
	assert.ErrorIs(t, err, ErrTermNotFound)
}

func TestListTermsOrderedByStart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, term := range []*Term{
		{ID: "b", Name: "B", StartDate: "2024-10-01"},
		{ID: "a", Name: "A", StartDate: "2021-10-04", EndDate: "2024-10-01"},
	} {
		_, err := s.AddTerm(ctx, term)
		require.NoError(t, err)
	}

	terms, err := s.ListTerms(ctx)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "a", terms[0].ID)
	assert.Equal(t, "b", terms[1].ID)
}

func TestAddSpeechWithChunksWritesMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddTerm(ctx, &Term{ID: "t2025", Name: "Holder", StartDate: "2025-01-01"})
	require.NoError(t, err)

	chunks := []*Chunk{{Text: "経済", Ordinal: 1}, {Text: "防衛", Ordinal: 2}}
	metrics := []*ChunkMetric{
		{TermID: "t2025", Date: "2025-07-02", Category: "経済・財政", OriginPhase: 0.5},
		{TermID: "t2025", Date: "2025-07-02", Category: "外交・安全保障", OriginPhase: 0.5},
	}
	id, err := s.AddSpeechWithChunks(ctx, &Speech{TermID: "t2025", Name: "Holder", DT: "2025-07-02"}, chunks, metrics)
	require.NoError(t, err)
	assert.NotZero(t, id)

	for i, c := range chunks {
		assert.Equal(t, c.ID, metrics[i].ChunkID)
		m, err := s.GetMetric(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, metrics[i].Category, m.Category)
	}
}

func TestAddSpeechWithChunksIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddTerm(ctx, &Term{ID: "t2025", Name: "Holder", StartDate: "2025-01-01"})
	require.NoError(t, err)

	chunks := []*Chunk{{Text: "経済", Ordinal: 1}, {Text: "防衛", Ordinal: 2}}
	metrics := []*ChunkMetric{
		{TermID: "t2025", Date: "2025-07-02", Category: "経済・財政"},
		{TermID: "t2025", Date: "2025-07-02", Category: "外交・安全保障", DepthLevel: 9},
	}
	_, err = s.AddSpeechWithChunks(ctx, &Speech{TermID: "t2025", Name: "Holder", DT: "2025-07-02", SourceURL: "bad-metric"}, chunks, metrics)
	require.Error(t, err, "depth outside 0..3 fails the metric insert")

	_, err = s.AddSpeechWithChunks(ctx, &Speech{TermID: "t2025", Name: "Holder", DT: "2025-07-02"}, chunks[:1], metrics)
	require.Error(t, err, "metrics must be parallel to chunks")

	exists, err := s.SpeechExistsBySource(ctx, "bad-metric")
	require.NoError(t, err)
	assert.False(t, exists, "a retry is not mistaken for a duplicate")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SpeechCount)
	assert.Zero(t, stats.ChunkCount)
	assert.Zero(t, stats.MetricCount)
}

func TestAddSpeechRequiresTerm(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddSpeech(context.Background(), &Speech{TermID: "ghost", Name: "x", DT: "2025-01-01"})
	assert.ErrorIs(t, err, ErrTermNotFound)

	n, err := s.CountSpeeches(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpeechSourceUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddTerm(ctx, &Term{ID: "t", Name: "T", StartDate: "2025-01-01"})
	require.NoError(t, err)

	id, err := s.AddSpeech(ctx, &Speech{TermID: "t", Name: "T", DT: "2025-02-01 10:00", RawText: "body", SourceURL: "https://example.jp/a"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	exists, err := s.SpeechExistsBySource(ctx, "https://example.jp/a")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.AddSpeech(ctx, &Speech{TermID: "t", Name: "T", DT: "2025-02-02", SourceURL: "https://example.jp/a"})
	assert.Error(t, err, "duplicate source must be rejected")

	// Empty sources are stored as NULL and never collide.
	for i := 0; i < 2; i++ {
		_, err = s.AddSpeech(ctx, &Speech{TermID: "t", Name: "T", DT: "2025-02-03"})
		require.NoError(t, err)
	}
	exists, err = s.SpeechExistsBySource(ctx, "")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := s.GetSpeech(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01 10:00", got.DT)
	assert.Equal(t, "body", got.RawText)

	speeches, err := s.ListSpeeches(ctx)
	require.NoError(t, err)
	assert.Len(t, speeches, 3)
}

func TestWriteChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	speechID, _ := seedSpeech(t, s, "t", "2025-03-01", "")

	res, err := s.WriteChunks(ctx, ChunkWrite{Chunks: []*Chunk{
		{SpeechID: speechID, Text: "one", Ordinal: 1},
		{SpeechID: speechID, Text: "two", Ordinal: 2},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)

	chunks, err := s.ListChunks(ctx, speechID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one", chunks[0].Text)
	assert.NotZero(t, chunks[0].ID)

	chunked, err := s.ChunkedSpeechIDs(ctx)
	require.NoError(t, err)
	assert.True(t, chunked[speechID])
}

func TestWriteChunksDuplicateOrdinalRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	speechID, _ := seedSpeech(t, s, "t", "2025-03-01", "", "existing")

	_, err := s.WriteChunks(ctx, ChunkWrite{Rebuild: true, Chunks: []*Chunk{
		{SpeechID: speechID, Text: "a", Ordinal: 1},
		{SpeechID: speechID, Text: "b", Ordinal: 1},
	}})
	require.Error(t, err)

	// The rebuild delete was rolled back too.
	chunks, err := s.ListChunks(ctx, speechID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "existing", chunks[0].Text)
}

func TestWriteChunksRebuildClearsMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	speechID, chunks := seedSpeech(t, s, "t", "2025-03-01", "", "a", "b")
	require.NoError(t, s.UpsertMetric(ctx, &ChunkMetric{
		ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "その他", OriginPhase: 0.2,
	}))

	res, err := s.WriteChunks(ctx, ChunkWrite{Rebuild: true, Chunks: []*Chunk{
		{SpeechID: speechID, Text: "c", Ordinal: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MetricsDeleted)
	assert.Equal(t, int64(2), res.ChunksDeleted)

	n, err := s.CountMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpsertMetricTwiceKeepsOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, chunks := seedSpeech(t, s, "t", "2025-03-01", "", "a")

	m := &ChunkMetric{ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "その他", DepthLevel: 0, OriginPhase: 0.1}
	require.NoError(t, s.UpsertMetric(ctx, m))
	m2 := &ChunkMetric{ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "経済・財政", DepthLevel: 2, OriginPhase: 0.3}
	require.NoError(t, s.UpsertMetric(ctx, m2))

	n, err := s.CountMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetMetric(ctx, chunks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "経済・財政", got.Category)
	assert.Equal(t, 2, got.DepthLevel)
	assert.InDelta(t, 0.3, got.OriginPhase, 1e-9)
}

func TestMetricConstraints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, chunks := seedSpeech(t, s, "t", "2025-03-01", "", "a")

	tests := []struct {
		name string
		m    *ChunkMetric
	}{
		{"depth above range", &ChunkMetric{ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "x", DepthLevel: 4}},
		{"phase above range", &ChunkMetric{ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "x", OriginPhase: 1.5}},
		{"unknown chunk", &ChunkMetric{ChunkID: 9999, TermID: "t", Date: "2025-03-01", Category: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.UpsertMetric(ctx, tt.m))
		})
	}
}

func TestWriteMetricsRebuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, chunks := seedSpeech(t, s, "t", "2025-03-01", "", "a", "b")

	metrics := []*ChunkMetric{
		{ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "その他"},
		{ChunkID: chunks[1].ID, TermID: "t", Date: "2025-03-01", Category: "その他"},
	}
	res, err := s.WriteMetrics(ctx, MetricWrite{Metrics: metrics})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)

	res, err = s.WriteMetrics(ctx, MetricWrite{Rebuild: true, Metrics: metrics[:1]})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.MetricsDeleted)

	list, err := s.ListMetrics(ctx, MetricFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, chunks[0].ID, list[0].ChunkID)
}

func TestDeletingSpeechCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	speechID, chunks := seedSpeech(t, s, "t", "2025-03-01", "", "a")
	require.NoError(t, s.UpsertMetric(ctx, &ChunkMetric{ChunkID: chunks[0].ID, TermID: "t", Date: "2025-03-01", Category: "その他"}))

	ss := s.(*SQLiteStore)
	_, err := ss.db.Exec("DELETE FROM speeches WHERE id = ?", speechID)
	require.NoError(t, err)

	n, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, chunks := seedSpeech(t, s, "t", "2025-03-01 18:30", "", "a", "b")

	sources, err := s.ListChunkSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "t", sources[0].TermID)
	assert.Equal(t, "2025-03-01 18:30", sources[0].DT)
	assert.Equal(t, 2, sources[1].Ordinal)

	cs, err := s.GetChunkSource(ctx, chunks[1].ID)
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, "b", cs.Text)

	cs, err = s.GetChunkSource(ctx, 424242)
	require.NoError(t, err)
	assert.Nil(t, cs)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, isBusy(assert.AnError))
	assert.True(t, isBusy(errString("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isBusy(nil))
}

type errString string

func (e errString) Error() string { return string(e) }
