package services

import (
	"fmt"
	"strings"

	"wardrobeapi/stylist"
)

const ClothingAnalysisPrompt = `You are a fashion stylist looking at a single clothing photo.
Return only a JSON object with these fields:
  "category": one of "top", "bottom", "shoe", "accessory"
  "color": the dominant color as a plain lower case name (e.g. "navy", "beige")
  "secondary_colors": up to two other visible colors
  "material": the most likely fabric (e.g. "denim", "cotton", "leather")
  "style": one word such as "casual", "formal", "sporty", "elegant"
  "name": a short product-like name, at most five words
  "confidence": a number between 0 and 1
Do not add commentary or markdown.`

// BuildOutfitPrompt lists the wardrobe so the generator can only pick known ids.
func BuildOutfitPrompt(items []stylist.Item, occasion stylist.Occasion, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal stylist. Suggest up to %d outfits for a %s occasion using only the wardrobe below.\n", limit, occasion)
	b.WriteString("Each outfit needs exactly one top and one bottom; shoe and accessory are optional.\n\n")
	b.WriteString("Wardrobe (id | category | color | material):\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s | %s | %s | %s\n", item.ID, item.Category, orUnknown(item.Color), orUnknown(item.Material))
	}
	b.WriteString(`
Return only a JSON array. Each element:
{"outfitId": string, "top": id, "bottom": id, "shoe": id or "", "accessory": id or "",
 "score": 0-100, "reasoning": string, "occasion": "` + string(occasion) + `",
 "colorScheme": string, "styleNotes": [string], "confidence": 0-1}`)
	return b.String()
}

// EmbeddingText is the description embedded for similarity scoring.
func EmbeddingText(category, color, material, style, name string) string {
	parts := []string{}
	for _, p := range []string{color, material, style, category, name} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
