package stylist

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

const (
	DefaultScore       = 70.0
	DefaultConfidence  = 0.8
	DefaultColorScheme = "balanced"
	DefaultReasoning   = "A versatile combination from your wardrobe."
	DefaultStyleNote   = "Adjust accessories to taste"
)

// ValidateRecommendation normalizes one loosely typed record. It never fails:
// every field falls back to a default and numbers are clamped.
func ValidateRecommendation(candidate map[string]any, index int, requested Occasion) Recommendation {
	rec := Recommendation{
		OutfitID:    fmt.Sprintf("outfit_%d", index+1),
		Top:         stringField(candidate, "top"),
		Bottom:      stringField(candidate, "bottom"),
		Shoe:        stringField(candidate, "shoe"),
		Accessory:   stringField(candidate, "accessory"),
		Score:       DefaultScore,
		Reasoning:   DefaultReasoning,
		Occasion:    string(requested),
		ColorScheme: DefaultColorScheme,
		StyleNotes:  []string{DefaultStyleNote},
		Confidence:  DefaultConfidence,
	}

	for _, key := range []string{"outfitId", "id"} {
		if id := stringField(candidate, key); id != "" {
			rec.OutfitID = id
			break
		}
	}
	if score, ok := numberField(candidate, "score"); ok {
		rec.Score = clamp(score, 0, 100)
	}
	if reasoning := stringField(candidate, "reasoning"); reasoning != "" {
		rec.Reasoning = reasoning
	}
	if occasion, ok := ParseOccasion(stringField(candidate, "occasion")); ok {
		rec.Occasion = string(occasion)
	}
	if scheme := stringField(candidate, "colorScheme"); scheme != "" {
		rec.ColorScheme = scheme
	}
	if notes, ok := stringsField(candidate, "styleNotes"); ok {
		rec.StyleNotes = notes
	}
	if confidence, ok := numberField(candidate, "confidence"); ok {
		rec.Confidence = clamp(confidence, 0, 1)
	}
	return rec
}

// ValidateRecommendations validates every element of an extracted array.
// Elements that are not objects validate as empty records.
func ValidateRecommendations(value any, requested Occasion) []Recommendation {
	list, ok := value.([]any)
	if !ok {
		return []Recommendation{}
	}
	recs := make([]Recommendation, 0, len(list))
	for i, element := range list {
		record, _ := element.(map[string]any)
		recs = append(recs, ValidateRecommendation(record, i, requested))
	}
	return recs
}

// Reconcile keeps only records that reference real wardrobe pieces in the right slots.
// Unknown shoes and accessories are cleared rather than dropping the outfit, and
// repeated ids get a numeric suffix.
func Reconcile(recs []Recommendation, items []Item) []Recommendation {
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	inSlot := func(id string, category Category) bool {
		item, ok := byID[id]
		return ok && item.Category == category
	}

	seen := map[string]int{}
	out := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Top == rec.Bottom || !inSlot(rec.Top, Top) || !inSlot(rec.Bottom, Bottom) {
			continue
		}
		if rec.Shoe != "" && !inSlot(rec.Shoe, Shoe) {
			rec.Shoe = ""
		}
		if rec.Accessory != "" && !inSlot(rec.Accessory, Accessory) {
			rec.Accessory = ""
		}
		seen[rec.OutfitID]++
		if n := seen[rec.OutfitID]; n > 1 {
			rec.OutfitID = fmt.Sprintf("%s_%d", rec.OutfitID, n)
		}
		out = append(out, rec)
	}
	return out
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch v.(type) {
	case bool, map[string]any, []any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// numberField accepts numbers and numeric strings. Booleans and NaN are rejected.
func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
		if v == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func stringsField(m map[string]any, key string) ([]string, bool) {
	switch v := m[key].(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, element := range v {
			if s, err := cast.ToStringE(element); err == nil && s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
