package tomi

import "strings"

// Classification is the outcome of mapping a raw question-type token.
// TomOrder is nil for control questions and unrecognized families.
type Classification struct {
	RequiresTom bool
	TomOrder    *int
	BaseType    string
}

// controlTypes are questions about objective state (memory/reality). They are
// never ToM-required and are excluded from contrastive grouping.
var controlTypes = map[string]bool{
	"memory":  true,
	"reality": true,
}

// IsControl reports whether a base question type is a control question.
func IsControl(baseType string) bool {
	return controlTypes[baseType]
}

// orderFamilies is the ordered rule table for known question-type families.
// A new family is added here rather than by growing conditionals.
var orderFamilies = []struct {
	marker   string
	order    int
	zeroBase string
	restBase string
}{
	{marker: "first_order", order: 1, zeroBase: "first_order_0", restBase: "first_order_1"},
	{marker: "second_order", order: 2, zeroBase: "second_order_0", restBase: "second_order_1"},
}

// Classify maps a raw question-type token to its ToM requirement, belief
// order, and normalized base type. Tokens outside the known families pass
// through verbatim as their own base type.
func Classify(questionType string) Classification {
	if controlTypes[questionType] {
		return Classification{BaseType: questionType}
	}

	// "_no_tom" also ends in "_tom", so the narrower suffix must be
	// excluded before the broad one counts.
	requires := strings.HasSuffix(questionType, "_tom") && !strings.HasSuffix(questionType, "_no_tom")

	for _, family := range orderFamilies {
		if !strings.Contains(questionType, family.marker) {
			continue
		}
		order := family.order
		base := family.restBase
		if strings.Contains(questionType, "_0_") {
			base = family.zeroBase
		}
		return Classification{RequiresTom: requires, TomOrder: &order, BaseType: base}
	}

	return Classification{RequiresTom: requires, BaseType: questionType}
}
