package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/politicsradar/polr/internal/classify"
	"github.com/politicsradar/polr/internal/store"
)

func sampleRows() []*store.ExportRow {
	return []*store.ExportRow{
		{ChunkID: 1, SpeechID: 1, Ordinal: 1, TermID: "t1", Name: "Holder", Title: "会見", DT: "2025-07-02 10:00",
			Date: "2025-07-02", Category: classify.CategoryEconomy.String(), DepthLevel: 2, OriginPhase: 0.5, Text: "賃上げを後押しします。"},
		{ChunkID: 2, SpeechID: 1, Ordinal: 2, TermID: "t1", Name: "Holder", Title: "会見", DT: "2025-07-02 10:00",
			Date: "2025-07-02", Category: classify.CategoryQA.String(), DepthLevel: 1, OriginPhase: 0.5, Text: "（記者）伺います。"},
		{ChunkID: 3, SpeechID: 1, Ordinal: 3, TermID: "t1", Name: "Holder", Title: "会見", DT: "2025-07-02 10:00",
			Date: "2025-07-02", Category: classify.CategoryEconomy.String(), DepthLevel: 2, OriginPhase: 0.5, Text: "物価高への対策です。"},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetMetrics, SheetDepth}, f.GetSheetList())

	rows, err := f.GetRows(SheetMetrics)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "chunk_id", rows[0][0])
	assert.Equal(t, "text", rows[0][11])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, classify.CategoryEconomy.String(), rows[1][8])
	assert.Equal(t, "0.5", rows[1][10])
	assert.Equal(t, "賃上げを後押しします。", rows[1][11])

	pivot, err := f.GetRows(SheetDepth)
	require.NoError(t, err)
	require.Len(t, pivot, 3)
	assert.Equal(t, []string{"category", "depth_0", "depth_1", "depth_2", "depth_3", "total"}, pivot[0])
	assert.Equal(t, []string{classify.CategoryEconomy.String(), "0", "0", "2", "0", "2"}, pivot[1])
	assert.Equal(t, []string{classify.CategoryQA.String(), "0", "1", "0", "0", "1"}, pivot[2])
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetMetrics)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRows()))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "t1", decoded[0]["pm_term_id"])
	assert.Equal(t, float64(2), decoded[0]["depth_level"])
	assert.Contains(t, buf.String(), "Q&A・記者質問", "HTML characters are not escaped")
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestDepthPivot_Order(t *testing.T) {
	rows := []*store.ExportRow{
		{Category: "zzz"},
		{Category: classify.CategoryOther.String(), DepthLevel: 0},
		{Category: classify.CategoryEconomy.String(), DepthLevel: 3},
		{Category: "aaa", DepthLevel: 7},
	}
	pivot := DepthPivot(rows)
	require.Len(t, pivot, 4)
	assert.Equal(t, classify.CategoryEconomy.String(), pivot[0].Category)
	assert.Equal(t, classify.CategoryOther.String(), pivot[1].Category)
	assert.Equal(t, "aaa", pivot[2].Category)
	assert.Equal(t, 1, pivot[2].Counts[MaxDepth], "out of range depth is clamped")
	assert.Equal(t, "zzz", pivot[3].Category)
}
