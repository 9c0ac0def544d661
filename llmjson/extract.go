// Package llmjson recovers JSON values from free text returned by a text generator.
//
// Extract tries an ordered list of strategies and returns the first value that
// parses and matches the expected shape. When every strategy fails it returns a
// fixed default, so callers always receive a usable value.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"wardrobeapi/metrics"
)

type Shape int

const (
	Object Shape = iota
	Array
)

func (s Shape) String() string {
	if s == Array {
		return "array"
	}
	return "object"
}

func (s Shape) delimiters() (open, close byte) {
	if s == Array {
		return '[', ']'
	}
	return '{', '}'
}

// Strategy is one independent attempt at turning text into a value.
type Strategy struct {
	Name  string
	Parse func(text string, shape Shape) (any, error)
}

const StrategyFallback = "fallback"

// Strategies is the ordered chain used by Extract.
var Strategies = []Strategy{
	{Name: "direct", Parse: parseDirect},
	{Name: "markdown", Parse: parseMarkdown},
	{Name: "regex", Parse: parseRegex},
	{Name: "repair", Parse: parseRepaired},
	{Name: "aggressive", Parse: parseAggressive},
}

type Result struct {
	Value    any
	Strategy string
}

// Fallback reports whether no strategy recovered a value from the text.
func (r Result) Fallback() bool {
	return r.Strategy == StrategyFallback
}

// Object returns the value as a map, or nil for array results.
func (r Result) Object() map[string]any {
	m, _ := r.Value.(map[string]any)
	return m
}

func Extract(text string, shape Shape) Result {
	for _, strategy := range Strategies {
		value, err := strategy.Parse(text, shape)
		if err == nil && value != nil {
			metrics.ExtractionStrategy.WithLabelValues(strategy.Name, shape.String()).Inc()
			return Result{Value: value, Strategy: strategy.Name}
		}
	}
	log.Printf("[LLMJSON] no strategy recovered a %s from %d bytes, using default", shape, len(text))
	metrics.ExtractionStrategy.WithLabelValues(StrategyFallback, shape.String()).Inc()
	return Result{Value: Default(shape), Strategy: StrategyFallback}
}

// Default is the value returned when nothing could be recovered. A fresh copy
// is built on every call.
func Default(shape Shape) any {
	if shape == Array {
		return []any{
			map[string]any{
				"outfitId":   "outfit_1",
				"top":        "",
				"bottom":     "",
				"reasoning":  "No recommendation could be read from the response.",
				"score":      0.0,
				"confidence": 0.0,
			},
		}
	}
	return map[string]any{
		"category":   "top",
		"color":      "black",
		"material":   "cotton",
		"style":      "casual",
		"confidence": 0.3,
	}
}

var (
	errShape    = errors.New("value does not match expected shape")
	errNotFound = errors.New("no json delimiters found")
)

func decode(text string, shape Shape) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}
	return conform(value, shape)
}

// conform checks the decoded value against the shape. An object wrapping a
// single array, like {"outfits": [...]}, is accepted in array mode.
func conform(value any, shape Shape) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if shape == Object {
			return v, nil
		}
		var found []any
		count := 0
		for _, field := range v {
			if list, ok := field.([]any); ok {
				found = list
				count++
			}
		}
		if count == 1 {
			return found, nil
		}
	case []any:
		if shape == Array {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: want %s, got %T", errShape, shape, value)
}

func parseDirect(text string, shape Shape) (any, error) {
	return decode(strings.TrimSpace(text), shape)
}

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*?)```")

// stripFences returns the first fenced block, or the text with stray fence markers removed.
func stripFences(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func parseMarkdown(text string, shape Shape) (any, error) {
	return decode(stripFences(text), shape)
}

var (
	objectGreedy = regexp.MustCompile(`\{[\s\S]*\}`)
	objectLazy   = regexp.MustCompile(`\{[\s\S]*?\}`)
	arrayGreedy  = regexp.MustCompile(`\[[\s\S]*\]`)
	arrayLazy    = regexp.MustCompile(`\[[\s\S]*?\]`)
)

// candidates lists substrings that may hold the value, widest first.
func candidates(text string, shape Shape) []string {
	greedy, lazy := objectGreedy, objectLazy
	if shape == Array {
		greedy, lazy = arrayGreedy, arrayLazy
	}
	var out []string
	if m := greedy.FindString(text); m != "" {
		out = append(out, m)
	}
	if m := balancedPrefix(text, shape); m != "" {
		out = append(out, m)
	}
	if m := lazy.FindString(text); m != "" {
		out = append(out, m)
	}
	return out
}

func parseRegex(text string, shape Shape) (any, error) {
	lastErr := errNotFound
	for _, candidate := range candidates(stripFences(text), shape) {
		value, err := decode(candidate, shape)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// fragment is the region holding the value: from the first opener to its
// matching closer, or to the end of the text when the closer never arrives.
func fragment(text string, shape Shape) (string, bool) {
	if m := balancedPrefix(text, shape); m != "" {
		return m, true
	}
	open, _ := shape.delimiters()
	if i := strings.IndexByte(text, open); i >= 0 {
		return strings.TrimSpace(text[i:]), true
	}
	return "", false
}

func parseRepaired(text string, shape Shape) (any, error) {
	frag, ok := fragment(stripFences(text), shape)
	if !ok {
		return nil, errNotFound
	}
	return decode(Repair(frag), shape)
}

// parseAggressive normalizes quoting before locating the value, then applies
// the aggressive repair. Text without any opener is wrapped in the shape's
// delimiters.
func parseAggressive(text string, shape Shape) (any, error) {
	body := convertSingleQuotes(stripFences(text))
	frag, ok := fragment(body, shape)
	if !ok {
		if strings.TrimSpace(body) == "" {
			return nil, errNotFound
		}
		open, close := shape.delimiters()
		frag = string(open) + strings.TrimSpace(body) + string(close)
	}
	return decode(RepairAggressive(frag), shape)
}
