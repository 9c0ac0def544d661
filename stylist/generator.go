package stylist

import (
	"fmt"
	"sort"
	"strings"
)

const DefaultMaxResults = 20

// Generator assembles outfits from a wardrobe snapshot. It holds no state
// between calls and is safe for concurrent use.
type Generator struct {
	MaxResults int
}

func NewGenerator(maxResults int) Generator {
	return Generator{MaxResults: maxResults}
}

type wardrobe struct {
	tops, bottoms, shoes, accessories []Item
}

func partition(items []Item) wardrobe {
	var w wardrobe
	for _, item := range items {
		switch item.Category {
		case Top:
			w.tops = append(w.tops, item)
		case Bottom:
			w.bottoms = append(w.bottoms, item)
		case Shoe:
			w.shoes = append(w.shoes, item)
		case Accessory:
			w.accessories = append(w.accessories, item)
		}
	}
	return w
}

// Candidates scores every top and bottom pair with its best shoe and accessory.
// The result is sorted by score, ties keep generation order.
func (g Generator) Candidates(items []Item, occasion Occasion) []Candidate {
	w := partition(items)
	if len(w.tops) == 0 || len(w.bottoms) == 0 {
		return []Candidate{}
	}

	candidates := make([]Candidate, 0, len(w.tops)*len(w.bottoms))
	seen := make(map[string]bool, cap(candidates))
	for _, top := range w.tops {
		for _, bottom := range w.bottoms {
			shoe := best(w.shoes, func(s *Item) float64 {
				return Score(top, bottom, s, nil, occasion)
			})
			accessory := best(w.accessories, func(a *Item) float64 {
				return Score(top, bottom, nil, a, occasion)
			})
			c := Candidate{
				Top:       top,
				Bottom:    bottom,
				Shoe:      shoe,
				Accessory: accessory,
				Occasion:  occasion,
			}
			// a wardrobe listing the same piece twice yields the combination once
			if seen[c.key()] {
				continue
			}
			seen[c.key()] = true
			c.Score = Score(top, bottom, shoe, accessory, occasion)
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// best returns the first item with the highest strictly positive score.
func best(items []Item, score func(*Item) float64) *Item {
	var chosen *Item
	bestScore := 0.0
	for i := range items {
		item := &items[i]
		if s := score(item); s > bestScore {
			chosen, bestScore = item, s
		}
	}
	if chosen == nil {
		return nil
	}
	c := *chosen
	return &c
}

// Generate returns at most MaxResults recommendations on the 0-100 scale.
func (g Generator) Generate(items []Item, occasion Occasion) []Recommendation {
	limit := g.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	candidates := g.Candidates(items, occasion)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	recs := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, Describe(c))
	}
	return recs
}

// Describe turns a scored candidate into a recommendation record.
func Describe(c Candidate) Recommendation {
	eval := Evaluate(c.Top, c.Bottom, c.Shoe, c.Accessory, c.Occasion)
	rec := Recommendation{
		OutfitID:    c.OutfitID(),
		Top:         c.Top.ID,
		Bottom:      c.Bottom.ID,
		Score:       ToPercent(c.Score),
		Reasoning:   reasoning(c, eval),
		Occasion:    string(c.Occasion),
		ColorScheme: colorScheme(eval),
		StyleNotes:  styleNotes(eval),
		Confidence:  c.Score,
	}
	if c.Shoe != nil {
		rec.Shoe = c.Shoe.ID
	}
	if c.Accessory != nil {
		rec.Accessory = c.Accessory.ID
	}
	return rec
}

func colorScheme(eval Evaluation) string {
	for _, rule := range []Rule{RuleMonochrome, RuleComplementary, RuleAnalogous} {
		if eval.Has(rule) {
			return string(rule)
		}
	}
	return DefaultColorScheme
}

var ruleNotes = map[Rule]string{
	RuleMonochrome:    "Matching colors give a clean monochrome look",
	RuleComplementary: "Complementary colors add contrast",
	RuleAnalogous:     "Neighbouring shades keep the palette calm",
	RuleCasualFabric:  "Cotton over denim is an easy casual pairing",
	RuleOfficeTop:     "The top color reads well in an office",
	RuleOfficeBottom:  "A dark neutral bottom keeps it professional",
	RulePartyTop:      "A bold top works for a party",
	RuleFormalTop:     "A classic top color suits formal dress",
	RuleFormalBottom:  "A dark bottom anchors the formal look",
	RuleShoeMatch:     "The shoes repeat a color from the outfit",
	RuleFormalShoe:    "Black shoes finish a formal outfit",
	RuleCasualShoe:    "Light or brown shoes keep it relaxed",
	RuleEmbedding:     "The pieces share a similar visual style",
}

func styleNotes(eval Evaluation) []string {
	notes := make([]string, 0, len(eval.Contributions))
	for _, c := range eval.Contributions {
		if c.Points <= 0 {
			continue
		}
		if note, ok := ruleNotes[c.Rule]; ok {
			notes = append(notes, note)
		}
	}
	if len(notes) == 0 {
		return []string{DefaultStyleNote}
	}
	return notes
}

func reasoning(c Candidate, eval Evaluation) string {
	pieces := []string{describeItem(c.Top), describeItem(c.Bottom)}
	if c.Shoe != nil {
		pieces = append(pieces, describeItem(*c.Shoe))
	}
	if c.Accessory != nil {
		pieces = append(pieces, describeItem(*c.Accessory))
	}
	text := fmt.Sprintf("%s for a %s occasion", strings.Join(pieces, ", "), c.Occasion)
	if eval.Score == 0 {
		return text + "."
	}
	return fmt.Sprintf("%s, with a %s color scheme.", text, colorScheme(eval))
}

func describeItem(item Item) string {
	color := item.Color
	if color == "" {
		color = "neutral"
	}
	return titleCase(color) + " " + string(item.Category)
}
