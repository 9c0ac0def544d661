package stylist

import (
	"math"
	"sort"
)

type RGB struct {
	R, G, B uint8
}

type namedColor struct {
	name string
	rgb  RGB
}

// fashionColors is the fixed vocabulary the local classifier snaps pixels to.
// Order matters: it breaks frequency ties.
var fashionColors = []namedColor{
	{"black", RGB{0, 0, 0}},
	{"white", RGB{255, 255, 255}},
	{"gray", RGB{128, 128, 128}},
	{"navy", RGB{0, 0, 128}},
	{"blue", RGB{0, 0, 255}},
	{"light blue", RGB{173, 216, 230}},
	{"red", RGB{255, 0, 0}},
	{"burgundy", RGB{128, 0, 32}},
	{"pink", RGB{255, 192, 203}},
	{"orange", RGB{255, 165, 0}},
	{"yellow", RGB{255, 255, 0}},
	{"green", RGB{0, 128, 0}},
	{"olive", RGB{128, 128, 0}},
	{"teal", RGB{0, 128, 128}},
	{"purple", RGB{128, 0, 128}},
	{"brown", RGB{139, 69, 19}},
	{"beige", RGB{245, 245, 220}},
	{"khaki", RGB{195, 176, 145}},
	{"cream", RGB{255, 253, 208}},
}

var colorMaterials = map[string]string{
	"blue":       "denim",
	"navy":       "denim",
	"light blue": "denim",
	"black":      "leather",
	"brown":      "leather",
	"white":      "cotton",
	"gray":       "wool",
	"beige":      "linen",
	"cream":      "linen",
	"khaki":      "cotton",
	"burgundy":   "velvet",
	"purple":     "velvet",
	"pink":       "silk",
	"red":        "silk",
	"olive":      "canvas",
}

const (
	DefaultColor           = "black"
	DefaultMaterial        = "cotton"
	DefaultColorConfidence = 0.3

	backgroundThreshold = 240
	paletteSize         = 5
	secondaryCount      = 2
)

type ColorAnalysis struct {
	DominantColor   string   `json:"dominant_color"`
	SecondaryColors []string `json:"secondary_colors"`
	Palette         []string `json:"palette"`
	Material        string   `json:"material"`
	Confidence      float64  `json:"confidence"`
}

// DefaultColorAnalysis is returned whenever there is nothing usable to classify.
func DefaultColorAnalysis() ColorAnalysis {
	return ColorAnalysis{
		DominantColor:   DefaultColor,
		SecondaryColors: []string{},
		Palette:         []string{DefaultColor},
		Material:        DefaultMaterial,
		Confidence:      DefaultColorConfidence,
	}
}

// MaterialForColor guesses a material from a color name.
func MaterialForColor(color string) string {
	if material, ok := colorMaterials[Normalize(color)]; ok {
		return material
	}
	return DefaultMaterial
}

func NearestColor(px RGB) string {
	return fashionColors[nearestIndex(px)].name
}

func distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func isBackground(px RGB) bool {
	return px.R > backgroundThreshold && px.G > backgroundThreshold && px.B > backgroundThreshold
}

// ClassifyColors tallies the nearest named color of every non-background sample.
// Confidence only reflects palette diversity: min(distinct/5, 1).
func ClassifyColors(samples []RGB) ColorAnalysis {
	counts := make([]int, len(fashionColors))
	seen := 0
	for _, px := range samples {
		if isBackground(px) {
			continue
		}
		counts[nearestIndex(px)]++
		seen++
	}
	if seen == 0 {
		return DefaultColorAnalysis()
	}

	type tally struct {
		name  string
		count int
	}
	var tallies []tally
	for i, n := range counts {
		if n > 0 {
			tallies = append(tallies, tally{fashionColors[i].name, n})
		}
	}
	sort.SliceStable(tallies, func(i, j int) bool { return tallies[i].count > tallies[j].count })

	names := make([]string, len(tallies))
	for i, t := range tallies {
		names[i] = t.name
	}
	dominant := names[0]
	secondary := names[1:min(len(names), 1+secondaryCount)]
	palette := names[:min(len(names), paletteSize)]

	return ColorAnalysis{
		DominantColor:   dominant,
		SecondaryColors: append([]string{}, secondary...),
		Palette:         append([]string{}, palette...),
		Material:        MaterialForColor(dominant),
		Confidence:      math.Min(float64(len(names))/paletteSize, 1),
	}
}

func nearestIndex(px RGB) int {
	best := 0
	bestDistance := math.MaxFloat64
	for i, c := range fashionColors {
		if d := distance(px, c.rgb); d < bestDistance {
			best, bestDistance = i, d
		}
	}
	return best
}
