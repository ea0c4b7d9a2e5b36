package classify

// Category is a fixed-vocabulary topical label. Labels are descriptive
// only and carry no ranking.
type Category string

const (
	CategoryQA           Category = "Q&A・記者質問"
	CategoryStructure    Category = "構造・見出し"
	CategoryEconomy      Category = "経済・財政"
	CategoryPublicSafety Category = "治安・犯罪対策"
	CategoryDomestic     Category = "国内政治・制度"
	CategoryDisaster     Category = "災害・危機対応"
	CategoryWelfare      Category = "福祉・社会保障"
	CategoryEducation    Category = "教育・子育て"
	CategoryScienceTech  Category = "科学技術・デジタル"
	CategorySecurity     Category = "外交・安全保障"
	CategorySummit       Category = "外交・首脳外交"
	CategoryOther        Category = "その他"
)

// Categories lists the whole vocabulary, fallback last.
var Categories = []Category{
	CategoryEconomy,
	CategoryPublicSafety,
	CategorySecurity,
	CategorySummit,
	CategoryWelfare,
	CategoryEducation,
	CategoryDomestic,
	CategoryDisaster,
	CategoryScienceTech,
	CategoryQA,
	CategoryStructure,
	CategoryOther,
}

// StructuralCategories are labels for transcript scaffolding rather than
// topics. Aggregations usually leave them out.
var StructuralCategories = []Category{CategoryStructure, CategoryQA}

// Valid reports whether c belongs to the vocabulary.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }
