package llmjson

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		strategy string
		want     map[string]any
	}{
		{
			name:     "plain",
			text:     `{"category": "top", "color": "navy"}`,
			strategy: "direct",
			want:     map[string]any{"category": "top", "color": "navy"},
		},
		{
			name:     "fenced",
			text:     "```json\n{\"category\": \"top\", \"color\": \"navy blue\"}\n```",
			strategy: "markdown",
			want:     map[string]any{"category": "top", "color": "navy blue"},
		},
		{
			name:     "missing closing brace",
			text:     `{"category": "top", "color": "navy"`,
			strategy: "repair",
			want:     map[string]any{"category": "top", "color": "navy"},
		},
		{
			name:     "wrapped in prose",
			text:     `Sure! Here is the analysis: {"category": "bottom", "color": "khaki"} Hope it helps.`,
			strategy: "regex",
			want:     map[string]any{"category": "bottom", "color": "khaki"},
		},
		{
			name:     "trailing commas",
			text:     `Result: {"category": "top", "tags": ["a", "b",],}`,
			strategy: "repair",
			want:     map[string]any{"category": "top", "tags": []any{"a", "b"}},
		},
		{
			name:     "bare keys",
			text:     `{category: "shoe", color: "white"}`,
			strategy: "repair",
			want:     map[string]any{"category": "shoe", "color": "white"},
		},
		{
			name:     "truncated string",
			text:     `{"category": "top", "notes": "cut off mid`,
			strategy: "repair",
			want:     map[string]any{"category": "top", "notes": "cut off mid"},
		},
		{
			name:     "dangling key",
			text:     `{"category": "top", "color"`,
			strategy: "repair",
			want:     map[string]any{"category": "top", "color": nil},
		},
		{
			name:     "mismatched closer",
			text:     `{"a": [1, 2}`,
			strategy: "repair",
			want:     map[string]any{"a": []any{1.0, 2.0}},
		},
		{
			name:     "single quotes",
			text:     `{'category': 'accessory', 'color': 'gold'}`,
			strategy: "aggressive",
			want:     map[string]any{"category": "accessory", "color": "gold"},
		},
		{
			name:     "bare values",
			text:     `{category: top, color: navy blue, confidence: 0.9}`,
			strategy: "aggressive",
			want:     map[string]any{"category": "top", "color": "navy blue", "confidence": 0.9},
		},
		{
			name:     "no braces",
			text:     `category: top`,
			strategy: "aggressive",
			want:     map[string]any{"category": "top"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := Extract(c.text, Object)
			assert.Equal(t, c.strategy, result.Strategy)
			assert.Equal(t, c.want, result.Value)
			assert.False(t, result.Fallback())
		})
	}
}

func TestExtractArray(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		strategy string
		want     []any
	}{
		{
			name:     "plain",
			text:     `[{"top": "t1", "bottom": "b1"}]`,
			strategy: "direct",
			want:     []any{map[string]any{"top": "t1", "bottom": "b1"}},
		},
		{
			name:     "wrapped in object",
			text:     `{"outfits": [{"top": "t1", "bottom": "b1"}]}`,
			strategy: "direct",
			want:     []any{map[string]any{"top": "t1", "bottom": "b1"}},
		},
		{
			name:     "fence without language",
			text:     "Here you go:\n```\n[{\"top\": \"t1\", \"bottom\": \"b1\", \"score\": 88}]\n```",
			strategy: "markdown",
			want:     []any{map[string]any{"top": "t1", "bottom": "b1", "score": 88.0}},
		},
		{
			name:     "truncated second element",
			text:     `[{"top": "t1", "bottom": "b1"}, {"top": "t2"`,
			strategy: "repair",
			want: []any{
				map[string]any{"top": "t1", "bottom": "b1"},
				map[string]any{"top": "t2"},
			},
		},
		{
			name:     "bare elements",
			text:     `[red, blue, green]`,
			strategy: "aggressive",
			want:     []any{"red", "blue", "green"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := Extract(c.text, Array)
			assert.Equal(t, c.strategy, result.Strategy)
			assert.Equal(t, c.want, result.Value)
		})
	}
}

func TestExtractFallback(t *testing.T) {
	for _, text := range []string{"", "   ", "null", "hello world", "}}}{{{", `"\`} {
		result := Extract(text, Object)
		assert.True(t, result.Fallback(), text)
		assert.Equal(t, Default(Object), result.Value)
	}

	result := Extract("", Array)
	require.True(t, result.Fallback())
	list, ok := result.Value.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)

	// a lone object is wrapped rather than rejected in array mode
	result = Extract(`{"a": 1, "b": 2}`, Array)
	assert.Equal(t, "aggressive", result.Strategy)
	assert.Equal(t, []any{map[string]any{"a": 1.0, "b": 2.0}}, result.Value)
}

func TestDefaultIsFresh(t *testing.T) {
	first := Default(Object).(map[string]any)
	first["color"] = "red"
	assert.Equal(t, "black", Default(Object).(map[string]any)["color"])
}

func TestExtractRoundTrip(t *testing.T) {
	record := map[string]any{
		"outfitId":   "outfit_t1_b1_no-shoe_no-accessory",
		"top":        "t1",
		"bottom":     "b1",
		"score":      80.0,
		"reasoning":  `Contrast with a "pop" of color, {braces} and [brackets]`,
		"styleNotes": []any{"Roll the sleeves", "Add a belt"},
		"nested":     map[string]any{"ok": true, "none": nil},
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)

	result := Extract(string(raw), Object)
	assert.Equal(t, "direct", result.Strategy)
	assert.Equal(t, record, result.Value)
}

func TestExtractIsTotal(t *testing.T) {
	seeds := []string{
		"", "{", "[", "}", "]", `"`, `\`, "```", "```json", "```json\n{", "{{{{", "[[[[", "{[}]",
		`{"a":`, `{"a": [`, `{"a": "b`, `{'a': 'b`, `[1, 2,`, `{,}`, `{:}`, `[,]`, "\x00\xff\xfe",
		`{"a": 1}}}}`, `{a: b: c}`, `[{"a": {"b": [{"c": "`, `{"a": "\u12"}`, "NaN", "-", "1e999",
	}
	r := rand.New(rand.NewSource(7))
	alphabet := []byte("{}[]\":,'` \\\nabc123.-tfn")
	for i := 0; i < 300; i++ {
		n := r.Intn(40)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[r.Intn(len(alphabet))])
		}
		seeds = append(seeds, b.String())
	}

	for _, text := range seeds {
		for _, shape := range []Shape{Object, Array} {
			var result Result
			require.NotPanics(t, func() { result = Extract(text, shape) }, "%q", text)
			require.NotNil(t, result.Value, "%q", text)
			if shape == Object {
				_, ok := result.Value.(map[string]any)
				assert.True(t, ok, "%q", text)
			} else {
				_, ok := result.Value.([]any)
				assert.True(t, ok, "%q", text)
			}
		}
	}
}
