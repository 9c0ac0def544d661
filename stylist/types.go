package stylist

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Category string

const (
	Top       Category = "top"
	Bottom    Category = "bottom"
	Shoe      Category = "shoe"
	Accessory Category = "accessory"
)

// ParseCategory accepts the storage spelling "shoes" as well.
func ParseCategory(value string) (Category, bool) {
	switch Normalize(value) {
	case "top":
		return Top, true
	case "bottom":
		return Bottom, true
	case "shoe", "shoes":
		return Shoe, true
	case "accessory":
		return Accessory, true
	}
	return "", false
}

type Occasion string

const (
	Casual Occasion = "casual"
	Office Occasion = "office"
	Party  Occasion = "party"
	Formal Occasion = "formal"
)

var Occasions = []Occasion{Casual, Office, Party, Formal}

func ParseOccasion(value string) (Occasion, bool) {
	o := Occasion(Normalize(value))
	for _, known := range Occasions {
		if o == known {
			return o, true
		}
	}
	return o, false
}

// Normalize lower-cases and trims a vocabulary value (color, material, tag).
// Casers keep state, so one is built per call.
func Normalize(value string) string {
	return strings.TrimSpace(cases.Lower(language.English).String(value))
}

func titleCase(value string) string {
	return cases.Title(language.English).String(value)
}

// Item is a read-only snapshot of a wardrobe piece.
type Item struct {
	ID        string
	Category  Category
	Color     string
	Material  string
	Embedding []float64
}

func NewItem(id string, category Category, color, material string, embedding []float64) Item {
	return Item{
		ID:        id,
		Category:  category,
		Color:     Normalize(color),
		Material:  Normalize(material),
		Embedding: embedding,
	}
}

// Candidate is a scored combination produced during generation.
type Candidate struct {
	Top       Item
	Bottom    Item
	Shoe      *Item
	Accessory *Item
	Occasion  Occasion
	Score     float64
}

const (
	noShoeID      = "no-shoe"
	noAccessoryID = "no-accessory"
)

// OutfitID is derived from the four slots so equal combinations share an id.
func (c Candidate) OutfitID() string {
	shoe, accessory := noShoeID, noAccessoryID
	if c.Shoe != nil {
		shoe = c.Shoe.ID
	}
	if c.Accessory != nil {
		accessory = c.Accessory.ID
	}
	return "outfit_" + c.Top.ID + "_" + c.Bottom.ID + "_" + shoe + "_" + accessory
}

func (c Candidate) key() string {
	return c.OutfitID() + "@" + string(c.Occasion)
}

// Recommendation is the validated outfit record. Score is on the 0-100 scale.
type Recommendation struct {
	OutfitID    string   `json:"outfitId"`
	Top         string   `json:"top"`
	Bottom      string   `json:"bottom"`
	Shoe        string   `json:"shoe,omitempty"`
	Accessory   string   `json:"accessory,omitempty"`
	Score       float64  `json:"score"`
	Reasoning   string   `json:"reasoning"`
	Occasion    string   `json:"occasion"`
	ColorScheme string   `json:"colorScheme,omitempty"`
	StyleNotes  []string `json:"styleNotes,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// ToPercent converts a scorer value in [0,1] to the 0-100 recommendation scale.
func ToPercent(score float64) float64 {
	return score * 100
}
