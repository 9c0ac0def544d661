package stylist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecommendationDefaults(t *testing.T) {
	rec := ValidateRecommendation(nil, 2, Office)

	assert.Equal(t, Recommendation{
		OutfitID:    "outfit_3",
		Score:       DefaultScore,
		Reasoning:   DefaultReasoning,
		Occasion:    "office",
		ColorScheme: DefaultColorScheme,
		StyleNotes:  []string{DefaultStyleNote},
		Confidence:  DefaultConfidence,
	}, rec)
}

func TestValidateRecommendationFields(t *testing.T) {
	rec := ValidateRecommendation(map[string]any{
		"id":          "look-1",
		"top":         "t1",
		"bottom":      float64(12),
		"shoe":        "s1",
		"score":       "85",
		"reasoning":   "Sharp",
		"occasion":    "Party",
		"colorScheme": "contrast",
		"styleNotes":  []any{"roll the sleeves", "tuck in"},
		"confidence":  0.55,
	}, 0, Casual)

	assert.Equal(t, "look-1", rec.OutfitID)
	assert.Equal(t, "t1", rec.Top)
	assert.Equal(t, "12", rec.Bottom)
	assert.Equal(t, "s1", rec.Shoe)
	assert.Empty(t, rec.Accessory)
	assert.Equal(t, 85.0, rec.Score)
	assert.Equal(t, "Sharp", rec.Reasoning)
	assert.Equal(t, "party", rec.Occasion)
	assert.Equal(t, "contrast", rec.ColorScheme)
	assert.Equal(t, []string{"roll the sleeves", "tuck in"}, rec.StyleNotes)
	assert.Equal(t, 0.55, rec.Confidence)
}

func TestValidateRecommendationClamps(t *testing.T) {
	cases := []struct {
		score, confidence         any
		wantScore, wantConfidence float64
	}{
		{150.0, 1.5, 100, 1},
		{-5.0, -0.1, 0, 0},
		{true, false, DefaultScore, DefaultConfidence},
		{"NaN", "high", DefaultScore, DefaultConfidence},
		{"", nil, DefaultScore, DefaultConfidence},
		{"42.5", "0.25", 42.5, 0.25},
	}
	for _, c := range cases {
		rec := ValidateRecommendation(map[string]any{"score": c.score, "confidence": c.confidence}, 0, Casual)
		assert.Equal(t, c.wantScore, rec.Score, "score %v", c.score)
		assert.Equal(t, c.wantConfidence, rec.Confidence, "confidence %v", c.confidence)
	}
}

func TestValidateRecommendationRejectsBadShapes(t *testing.T) {
	rec := ValidateRecommendation(map[string]any{
		"outfitId":   "",
		"reasoning":  "   ",
		"occasion":   "brunch",
		"styleNotes": "just one",
		"top":        map[string]any{"id": "t1"},
	}, 4, Formal)

	assert.Equal(t, "outfit_5", rec.OutfitID)
	assert.Equal(t, DefaultReasoning, rec.Reasoning)
	assert.Equal(t, "formal", rec.Occasion)
	assert.Equal(t, []string{DefaultStyleNote}, rec.StyleNotes)
	assert.Empty(t, rec.Top)
}

func TestValidateRecommendations(t *testing.T) {
	recs := ValidateRecommendations([]any{
		map[string]any{"top": "t1", "bottom": "b1"},
		"garbage",
	}, Casual)
	require.Len(t, recs, 2)
	assert.Equal(t, "outfit_1", recs[0].OutfitID)
	assert.Equal(t, "outfit_2", recs[1].OutfitID)
	assert.Empty(t, recs[1].Top)

	assert.Empty(t, ValidateRecommendations(map[string]any{}, Casual))
}

func TestReconcile(t *testing.T) {
	wardrobe := []Item{
		NewItem("t1", Top, "white", "", nil),
		NewItem("b1", Bottom, "black", "", nil),
		NewItem("s1", Shoe, "black", "", nil),
		NewItem("a1", Accessory, "gold", "", nil),
	}
	recs := []Recommendation{
		{OutfitID: "o1", Top: "t1", Bottom: "b1", Shoe: "s1", Accessory: "a1"},
		{OutfitID: "o1", Top: "t1", Bottom: "b1", Shoe: "a1", Accessory: "missing"},
		{OutfitID: "o2", Top: "b1", Bottom: "t1"},
		{OutfitID: "o3", Top: "t1", Bottom: "t1"},
		{OutfitID: "o4", Top: "t9", Bottom: "b1"},
		{OutfitID: "o5", Top: "", Bottom: ""},
	}

	out := Reconcile(recs, wardrobe)
	require.Len(t, out, 2)
	assert.Equal(t, "o1", out[0].OutfitID)
	assert.Equal(t, "s1", out[0].Shoe)
	assert.Equal(t, "a1", out[0].Accessory)
	assert.Equal(t, "o1_2", out[1].OutfitID)
	assert.Empty(t, out[1].Shoe)
	assert.Empty(t, out[1].Accessory)
}
