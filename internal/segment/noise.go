package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinContentLength is the longest trimmed fragment (in characters) that is
// still treated as breadcrumb noise.
const MinContentLength = 3

// maxNameCaptionLength bounds the isolated-name rule so that real sentences
// made of two kanji runs are not dropped.
const maxNameCaptionLength = 10

// NavigationLabels are standalone UI labels from statement pages.
var NavigationLabels = []string{
	"関連リンク",
	"開く",
	"閉じる",
}

// NavigationBlockTokens must all appear in one fragment for it to be a
// collapsed site-navigation block ("第103代\n石破 茂\n開く\n閉じる").
var NavigationBlockTokens = []string{"開く", "閉じる", "第", "代"}

// BoilerplatePhrases mark page chrome rather than speech content.
var BoilerplatePhrases = []string{
	"当サイトではJavaScriptを使用しております",
	"ブラウザの設定でJavaScriptを有効",
	"総理の演説・記者会見など",
	"首相官邸ホームページ",
	"動画が再生できない方は",
	"政府広報オンライン",
	"ツイート",
	"更新日：",
}

var (
	ordinalTitleRE = regexp.MustCompile(`^第[0-9０-９]+代$`)
	eraYearRE      = regexp.MustCompile(`^令和[0-9０-９]+年$`)
	nameCaptionRE  = regexp.MustCompile(`^[一-龥]{2,}[\s\x{3000}]+[一-龥]{2,}$`)
)

// IsNoise reports whether a fragment is boilerplate or navigation rather
// than speech content.
func IsNoise(fragment string) bool {
	t := strings.TrimSpace(fragment)
	if t == "" {
		return true
	}

	if containsAll(t, NavigationBlockTokens) {
		return true
	}

	for _, label := range NavigationLabels {
		if t == label {
			return true
		}
	}
	if ordinalTitleRE.MatchString(t) || eraYearRE.MatchString(t) {
		return true
	}

	n := utf8.RuneCountInString(t)
	if n <= maxNameCaptionLength && nameCaptionRE.MatchString(t) {
		return true
	}

	for _, p := range BoilerplatePhrases {
		if strings.Contains(t, p) {
			return true
		}
	}

	return n <= MinContentLength
}

func containsAll(s string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(s, tok) {
			return false
		}
	}
	return true
}
