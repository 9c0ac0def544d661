package stylist

import "math"

// Rule weights. All rules are independent and additive; the sum is clamped at the end.
const (
	monochromeBonus    = 0.3
	complementaryBonus = 0.5
	analogousBonus     = 0.4

	casualFabricBonus = 0.3
	officeTopBonus    = 0.2
	officeBottomBonus = 0.2
	partyTopBonus     = 0.3
	formalTopBonus    = 0.3
	formalBottomBonus = 0.3

	shoeMatchBonus  = 0.2
	formalShoeBonus = 0.3
	casualShoeBonus = 0.2

	embeddingWeight = 0.3
)

type colorPair [2]string

var complementaryPairs = []colorPair{
	{"red", "green"},
	{"blue", "orange"},
	{"yellow", "purple"},
	{"pink", "green"},
	{"black", "white"},
	{"navy", "khaki"},
}

// Neutrals sit in two-color groups so black and white count as contrast, not as analogous.
var analogousGroups = [][]string{
	{"red", "pink", "orange"},
	{"blue", "purple", "pink"},
	{"green", "blue", "teal"},
	{"yellow", "orange", "red"},
	{"navy", "blue", "light blue"},
	{"black", "gray"},
	{"gray", "white"},
	{"beige", "cream", "khaki", "brown"},
}

type Rule string

const (
	RuleMonochrome    Rule = "monochrome"
	RuleComplementary Rule = "complementary"
	RuleAnalogous     Rule = "analogous"
	RuleCasualFabric  Rule = "casual_fabric"
	RuleOfficeTop     Rule = "office_top"
	RuleOfficeBottom  Rule = "office_bottom"
	RulePartyTop      Rule = "party_top"
	RuleFormalTop     Rule = "formal_top"
	RuleFormalBottom  Rule = "formal_bottom"
	RuleShoeMatch     Rule = "shoe_match"
	RuleFormalShoe    Rule = "formal_shoe"
	RuleCasualShoe    Rule = "casual_shoe"
	RuleEmbedding     Rule = "embedding"
)

type Contribution struct {
	Rule   Rule
	Points float64
}

// Evaluation is a score together with the rules that produced it.
type Evaluation struct {
	Score         float64
	Contributions []Contribution
}

func (e Evaluation) Has(rule Rule) bool {
	for _, c := range e.Contributions {
		if c.Rule == rule {
			return true
		}
	}
	return false
}

// Score rates a combination in [0,1].
func Score(top, bottom Item, shoe, accessory *Item, occasion Occasion) float64 {
	return Evaluate(top, bottom, shoe, accessory, occasion).Score
}

// Evaluate runs every rule against the combination. The accessory is accepted
// for symmetry with the generator but no rule reads it.
func Evaluate(top, bottom Item, shoe, accessory *Item, occasion Occasion) Evaluation {
	var eval Evaluation
	add := func(rule Rule, points float64) {
		eval.Contributions = append(eval.Contributions, Contribution{Rule: rule, Points: points})
	}

	if top.Color != "" && top.Color == bottom.Color {
		add(RuleMonochrome, monochromeBonus)
	}
	if isComplementary(top.Color, bottom.Color) {
		add(RuleComplementary, complementaryBonus)
	}
	if isAnalogous(top.Color, bottom.Color) {
		add(RuleAnalogous, analogousBonus)
	}

	switch occasion {
	case Casual:
		if top.Material == "cotton" && bottom.Material == "denim" {
			add(RuleCasualFabric, casualFabricBonus)
		}
	case Office:
		if oneOf(top.Color, "white", "blue") {
			add(RuleOfficeTop, officeTopBonus)
		}
		if oneOf(bottom.Color, "black", "gray") {
			add(RuleOfficeBottom, officeBottomBonus)
		}
	case Party:
		if oneOf(top.Color, "black", "red") {
			add(RulePartyTop, partyTopBonus)
		}
	case Formal:
		if oneOf(top.Color, "white", "black") {
			add(RuleFormalTop, formalTopBonus)
		}
		if oneOf(bottom.Color, "black", "gray") {
			add(RuleFormalBottom, formalBottomBonus)
		}
	}

	if shoe != nil {
		if shoe.Color != "" && (shoe.Color == top.Color || shoe.Color == bottom.Color) {
			add(RuleShoeMatch, shoeMatchBonus)
		}
		if occasion == Formal && shoe.Color == "black" {
			add(RuleFormalShoe, formalShoeBonus)
		}
		if occasion == Casual && oneOf(shoe.Color, "white", "brown") {
			add(RuleCasualShoe, casualShoeBonus)
		}
	}

	if len(top.Embedding) > 0 && len(bottom.Embedding) > 0 {
		if sim := CosineSimilarity(top.Embedding, bottom.Embedding); sim > 0 {
			add(RuleEmbedding, sim*embeddingWeight)
		}
	}

	sum := 0.0
	for _, c := range eval.Contributions {
		sum += c.Points
	}
	eval.Score = math.Min(sum, 1)
	return eval
}

func isComplementary(a, b string) bool {
	for _, p := range complementaryPairs {
		if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
			return true
		}
	}
	return false
}

// isAnalogous needs two different colors of one group; equal colors are monochrome.
func isAnalogous(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	for _, group := range analogousGroups {
		if oneOf(a, group...) && oneOf(b, group...) {
			return true
		}
	}
	return false
}

func oneOf(value string, options ...string) bool {
	for _, o := range options {
		if value == o {
			return true
		}
	}
	return false
}
