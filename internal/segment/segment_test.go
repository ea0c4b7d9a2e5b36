package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `関連リンク

１　始めに
本日は、我が国経済の現状と今後の財政運営についてご説明いたします。

第104代

まず、物価高に苦しむ皆様への支援策として、政府として追加の対策を講じてまいります。



更新日：2025年10月24日`

func TestSegment_ParagraphsAndNoise(t *testing.T) {
	got := Segment(sampleTranscript, DefaultMaxLength)
	want := []string{
		"１　始めに\n本日は、我が国経済の現状と今後の財政運営についてご説明いたします。",
		"まず、物価高に苦しむ皆様への支援策として、政府として追加の対策を講じてまいります。",
	}
	assert.Equal(t, want, got)
}

func TestSegment_Deterministic(t *testing.T) {
	first := Segment(sampleTranscript, 20)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Segment(sampleTranscript, 20))
	}
}

func TestSegment_FixedWidthWindows(t *testing.T) {
	para := strings.Repeat("あ", 25)
	got := Segment(para, 10)
	require.Len(t, got, 3)
	assert.Equal(t, strings.Repeat("あ", 10), got[0])
	assert.Equal(t, strings.Repeat("あ", 10), got[1])
	assert.Equal(t, strings.Repeat("あ", 5), got[2])
}

func TestSegment_WindowTooShortIsDropped(t *testing.T) {
	// 12 characters with maxLen 10 leaves a 2-character tail, which is noise.
	got := Segment(strings.Repeat("い", 12), 10)
	assert.Equal(t, []string{strings.Repeat("い", 10)}, got)
}

func TestSegment_LengthBound(t *testing.T) {
	text := strings.Repeat("経済財政の運営について説明します。", 40) + "\n\n" + "短い段落の本文です。"
	for _, maxLen := range []int{7, 50, 120, 600} {
		for _, frag := range Segment(text, maxLen) {
			assert.LessOrEqual(t, utf8.RuneCountInString(frag), maxLen)
		}
	}
}

func TestSegment_UnderLimitParagraphKeptWhole(t *testing.T) {
	para := "財政健全化に向けた取組を着実に進めてまいります。"
	got := Segment(para, utf8.RuneCountInString(para))
	assert.Equal(t, []string{para}, got)
}

func TestSegment_CRLF(t *testing.T) {
	got := Segment("一つ目の段落です。\r\n\r\n二つ目の段落です。", DefaultMaxLength)
	assert.Equal(t, []string{"一つ目の段落です。", "二つ目の段落です。"}, got)
}

func TestSegment_Empty(t *testing.T) {
	got := Segment("\n\n関連リンク\n\n   \n\n", DefaultMaxLength)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSegment_InvalidMaxLengthFallsBack(t *testing.T) {
	para := strings.Repeat("う", DefaultMaxLength+1)
	got := Segment(para, 0)
	require.Len(t, got, 1, "1-character tail is noise")
	assert.Equal(t, DefaultMaxLength, utf8.RuneCountInString(got[0]))
}

func TestValidateMaxLength(t *testing.T) {
	assert.ErrorIs(t, ValidateMaxLength(0), ErrInvalidMaxLength)
	assert.ErrorIs(t, ValidateMaxLength(-3), ErrInvalidMaxLength)
	assert.NoError(t, ValidateMaxLength(1))
}

func TestFragments_Ordinals(t *testing.T) {
	frags := Fragments(sampleTranscript, 20)
	require.NotEmpty(t, frags)
	for i, f := range frags {
		assert.Equal(t, i+1, f.Ordinal)
	}
}
