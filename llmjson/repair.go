package llmjson

import (
	"regexp"
	"strings"
)

// Repair fixes the structural damage typical of generator output, in order:
// unbalanced delimiters, trailing commas, unquoted keys.
func Repair(text string) string {
	text = balance(text)
	text = stripTrailingCommas(text)
	return quoteKeys(text)
}

// RepairAggressive also converts single-quoted strings and quotes bare scalar values.
func RepairAggressive(text string) string {
	text = balance(convertSingleQuotes(text))
	text = stripTrailingCommas(text)
	text = quoteKeys(text)
	return quoteBareValues(text)
}

func closerFor(open byte) byte {
	if open == '[' {
		return ']'
	}
	return '}'
}

// balancedPrefix returns the text from the first opener of the shape to the
// closer that balances it, or "" when the value is truncated or malformed.
func balancedPrefix(text string, shape Shape) string {
	open, _ := shape.delimiters()
	start := strings.IndexByte(text, open)
	if start < 0 {
		return ""
	}
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 || closerFor(stack[len(stack)-1]) != c {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// balance drops stray closers, terminates an open string, completes a dangling
// key or colon with null and appends the missing closers.
func balance(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)

	var stack []byte
	inString, escaped := false, false
	lastStringStart := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = true
			lastStringStart = b.Len()
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 || closerFor(stack[len(stack)-1]) != c {
				continue
			}
			stack = stack[:len(stack)-1]
		}
		b.WriteByte(c)
	}

	out := b.String()
	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}
	if len(stack) == 0 {
		return out
	}

	out = strings.TrimRight(out, " \t\r\n")
	switch {
	case strings.HasSuffix(out, ":"):
		out += " null"
	case stack[len(stack)-1] == '{' && strings.HasSuffix(out, `"`) && danglingKey(out, lastStringStart):
		out += ": null"
	}
	closers := make([]byte, len(stack))
	for i := range stack {
		closers[len(stack)-1-i] = closerFor(stack[i])
	}
	return out + string(closers)
}

// danglingKey reports whether the string starting at start sits in key position.
func danglingKey(text string, start int) bool {
	if start <= 0 || start >= len(text) {
		return false
	}
	before := strings.TrimRight(text[:start], " \t\r\n")
	return strings.HasSuffix(before, "{") || strings.HasSuffix(before, ",")
}

// outsideStrings applies fn to every region of text that is not inside a
// double-quoted string. String literals are copied unchanged.
func outsideStrings(text string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(text))
	segStart := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '"' {
			continue
		}
		b.WriteString(fn(text[segStart:i]))
		j := i + 1
		for j < len(text) {
			if text[j] == '\\' {
				j += 2
				continue
			}
			if text[j] == '"' {
				break
			}
			j++
		}
		end := min(j+1, len(text))
		b.WriteString(text[i:end])
		i = end - 1
		segStart = end
	}
	if segStart < len(text) {
		b.WriteString(fn(text[segStart:]))
	}
	return b.String()
}

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][\w$-]*)(\s*:)`)
	bareValue     = regexp.MustCompile(`(:\s*)([^\s"{}\[\],:][^"{}\[\],:\n]*)`)
	bareElement   = regexp.MustCompile(`([\[,]\s*)([A-Za-z_][^"{}\[\],:\n]*?)(\s*[,\]])`)
	jsonNumber    = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)
)

func stripTrailingCommas(text string) string {
	return outsideStrings(text, func(s string) string {
		return trailingComma.ReplaceAllString(s, "$1")
	})
}

func quoteKeys(text string) string {
	return outsideStrings(text, func(s string) string {
		return bareKey.ReplaceAllString(s, `$1"$2"$3`)
	})
}

func isLiteral(value string) bool {
	switch value {
	case "true", "false", "null":
		return true
	}
	return jsonNumber.MatchString(value)
}

func quote(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

func quoteBareValues(text string) string {
	text = outsideStrings(text, func(s string) string {
		return bareValue.ReplaceAllStringFunc(s, func(m string) string {
			parts := bareValue.FindStringSubmatch(m)
			value := strings.TrimRight(parts[2], " \t\r")
			if isLiteral(value) {
				return m
			}
			return parts[1] + quote(value) + parts[2][len(value):]
		})
	})
	// Consecutive elements share a comma, so repeat until nothing changes.
	for i := 0; i < len(text); i++ {
		next := outsideStrings(text, func(s string) string {
			return bareElement.ReplaceAllStringFunc(s, func(m string) string {
				parts := bareElement.FindStringSubmatch(m)
				if isLiteral(parts[2]) {
					return m
				}
				return parts[1] + quote(parts[2]) + parts[3]
			})
		})
		if next == text {
			break
		}
		text = next
	}
	return text
}

// convertSingleQuotes rewrites 'single quoted' strings as JSON strings. A quote
// only opens a string where a value or key may start, so apostrophes in words survive.
func convertSingleQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev byte // last non-space byte written outside strings
	inDouble, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inDouble {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inDouble = false
				prev = c
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inDouble = true
			b.WriteByte(c)
			continue
		}
		if c != '\'' || !valueStart(prev) {
			b.WriteByte(c)
			if !isSpace(c) {
				prev = c
			}
			continue
		}
		b.WriteByte('"')
		j := i + 1
		for ; j < len(text) && text[j] != '\''; j++ {
			switch {
			case text[j] == '\\' && j+1 < len(text) && text[j+1] == '\'':
				b.WriteByte('\'')
				j++
			case text[j] == '"':
				b.WriteString(`\"`)
			default:
				b.WriteByte(text[j])
			}
		}
		b.WriteByte('"')
		prev = '"'
		i = j
	}
	return b.String()
}

func valueStart(prev byte) bool {
	switch prev {
	case 0, '{', '[', ',', ':':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
