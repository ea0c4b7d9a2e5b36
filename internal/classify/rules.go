package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Rule maps a predicate over trimmed fragment text to a category.
type Rule struct {
	Name     string
	Category Category
	Match    func(text string) bool
}

// Structural markers.
var (
	QAMarkers           = []string{"【質疑応答】", "（記者）", "（司会）"}
	ReporterPrefix      = "（記者"
	SelfIntroPhrase     = "と申します"
	PressOutletKeywords = []string{"通信", "新聞", "テレビ", "放送", "共同", "時事", "NHK", "ロイター", "Reuters"}
	InterjectionPhrases = []string{"どうぞ", "大丈夫です", "お願いいたします", "ありがとうございます"}
)

// MaxInterjectionLength is the longest fragment still treated as a
// procedural interjection.
const MaxInterjectionLength = 30

var speakerTagRE = regexp.MustCompile(`^（[^）]{1,12}）$`)

// Topic keyword tables.
var (
	EconomyKeywords = []string{"景気", "物価", "GDP", "成長", "税", "財政", "賃上げ", "投資", "金融"}

	PublicSafetyKeywords = []string{
		"治安", "犯罪", "テロ", "詐欺", "闇バイト", "ストーカー", "DV", "配偶者からの暴力",
		"性犯罪", "児童虐待", "被害者", "加害者", "暴力", "取り締まり", "検挙",
		"法規制", "規制強化",
	}

	DomesticKeywords = []string{
		"国会", "委員会", "法案", "改正", "制度", "政党", "選挙", "公職選挙法",
		"政治改革", "行政改革", "統治機構", "憲法", "内閣", "閣議", "与党", "野党",
	}

	DisasterKeywords = []string{"地震", "災害", "台風", "被災", "復旧", "危機", "感染症"}

	WelfareKeywords = []string{"年金", "介護", "医療", "社会保障", "生活保護", "福祉"}

	EducationKeywords = []string{"教育", "学校", "子育て", "保育", "少子化", "奨学金"}

	ScienceTechKeywords = []string{"デジタル", "AI", "DX", "科学技術", "研究開発", "半導体"}

	SecurityKeywords = []string{"防衛", "安全保障", "自衛隊", "安保", "抑止", "ミサイル", "侵略"}

	SummitKeywords = []string{
		"首脳", "首脳会談", "会談", "会合", "国際会議", "サミット",
		"訪問", "外遊", "共同声明", "首相", "大統領", "国家主席", "外相",
		"ＡＰＥＣ", "APEC", "Ｇ７", "G7", "Ｇ２０", "G20", "国連", "UN",
		"ＡＳＥＡＮ", "ASEAN", "ＥＵ", "EU",
	}
)

// DefaultRules is the priority order. Structural markers come first so
// topic keywords never capture Q&A scaffolding, and the specific policy
// domains come before the broad governance vocabulary.
var DefaultRules = []Rule{
	{Name: "qna-marker", Category: CategoryQA, Match: isQAMarker},
	{Name: "speaker-tag", Category: CategoryStructure, Match: speakerTagRE.MatchString},
	{Name: "press-self-intro", Category: CategoryQA, Match: isPressSelfIntro},
	{Name: "procedural-interjection", Category: CategoryStructure, Match: isInterjection},
	{Name: "economy", Category: CategoryEconomy, Match: containsAny(EconomyKeywords)},
	{Name: "public-safety", Category: CategoryPublicSafety, Match: containsAny(PublicSafetyKeywords)},
	{Name: "domestic-governance", Category: CategoryDomestic, Match: containsAny(DomesticKeywords)},
	{Name: "disaster", Category: CategoryDisaster, Match: containsAny(DisasterKeywords)},
	{Name: "welfare", Category: CategoryWelfare, Match: containsAny(WelfareKeywords)},
	{Name: "education", Category: CategoryEducation, Match: containsAny(EducationKeywords)},
	{Name: "science-tech", Category: CategoryScienceTech, Match: containsAny(ScienceTechKeywords)},
	{Name: "security", Category: CategorySecurity, Match: containsAny(SecurityKeywords)},
	{Name: "summit", Category: CategorySummit, Match: containsAny(SummitKeywords)},
}

func isQAMarker(t string) bool {
	return strings.HasPrefix(t, ReporterPrefix) || containsAny(QAMarkers)(t)
}

func isPressSelfIntro(t string) bool {
	return strings.Contains(t, SelfIntroPhrase) && containsAny(PressOutletKeywords)(t)
}

func isInterjection(t string) bool {
	return utf8.RuneCountInString(t) <= MaxInterjectionLength && containsAny(InterjectionPhrases)(t)
}

func containsAny(keywords []string) func(string) bool {
	return func(t string) bool {
		for _, k := range keywords {
			if strings.Contains(t, k) {
				return true
			}
		}
		return false
	}
}
