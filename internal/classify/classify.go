// Package classify assigns a topical category and a depth level to a
// transcript fragment.
//
// Categories come from an ordered rule chain evaluated first-match: the
// order of DefaultRules is the priority and is part of the contract. Depth
// is a coarse length band, a proxy for structural complexity only.
package classify

import (
	"strings"
	"unicode/utf8"
)

// Depth band upper bounds (exclusive), in characters.
const (
	depthShallow = 80
	depthMedium  = 250
	depthLong    = 600
)

// MaxDepth is the deepest level Depth returns.
const MaxDepth = 3

// FallbackRule names the implicit last rule that yields CategoryOther.
const FallbackRule = "fallback"

// Result is the outcome of classifying one fragment.
type Result struct {
	Category Category
	Depth    int
	Rule     string // name of the rule that matched
}

// Classifier evaluates an ordered rule chain.
type Classifier struct {
	rules []Rule
}

// New builds a Classifier over rules in the given order. With no rules it
// uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}
}

// Default returns a Classifier using DefaultRules.
func Default() *Classifier { return New() }

// Rules returns the chain in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the category of the first matching rule, or
// CategoryOther, and the depth of the untrimmed fragment.
func (c *Classifier) Classify(fragment string) Result {
	t := strings.TrimSpace(fragment)

	res := Result{Category: CategoryOther, Rule: FallbackRule}
	for _, r := range c.rules {
		if r.Match(t) {
			res.Category = r.Category
			res.Rule = r.Name
			break
		}
	}
	res.Depth = Depth(fragment)
	return res
}

// Depth maps a fragment's character count to a level in 0..MaxDepth.
func Depth(fragment string) int {
	return DepthForLength(utf8.RuneCountInString(fragment))
}

// DepthForLength is Depth for a precomputed length.
func DepthForLength(n int) int {
	switch {
	case n < depthShallow:
		return 0
	case n < depthMedium:
		return 1
	case n < depthLong:
		return 2
	default:
		return MaxDepth
	}
}
