// Package reflow rewrites the layout of Twig constructs the formatter leaves
// on a single line: component tags, merge expressions and path() parameters.
//
// Every pass is a pure text-to-text function and is idempotent.
package reflow

import (
	"regexp"
	"sort"
	"strings"
)

// Style carries the layout settings the passes need.
type Style struct {
	// Indent is one indentation level.
	Indent string
}

// DefaultStyle indents with four spaces.
func DefaultStyle() Style {
	return Style{Indent: "    "}
}

func (s Style) levels(base string, n int) string {
	unit := s.Indent
	if unit == "" {
		unit = DefaultStyle().Indent
	}
	return base + strings.Repeat(unit, n)
}

// unquotedKey matches a hash property whose key is a bare name or number.
var unquotedKey = regexp.MustCompile(`(?s)^([A-Za-z0-9_$]+)\s*:\s*(.*)$`)

// QuoteKey wraps a bare hash key in single quotes: "id: 1" becomes "'id': 1".
// Properties with quoted, computed or no keys are returned unchanged.
func QuoteKey(prop string) string {
	m := unquotedKey.FindStringSubmatch(prop)
	if m == nil {
		return prop
	}
	return "'" + m[1] + "': " + m[2]
}

// SplitProperties splits the interior of a hash literal on top-level commas.
// Commas inside strings, parentheses and brackets do not split. Items are
// trimmed and empty items dropped.
func SplitProperties(body string) []string {
	var (
		props []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				props = appendProp(props, body[start:i])
				start = i + 1
			}
		}
	}
	return appendProp(props, body[start:])
}

func appendProp(props []string, raw string) []string {
	if p := strings.TrimSpace(raw); p != "" {
		props = append(props, p)
	}
	return props
}

// renderProperties quotes every property and puts each on its own line.
func renderProperties(props []string, indent string) string {
	lines := make([]string, len(props))
	for i, p := range props {
		lines[i] = indent + QuoteKey(p)
	}
	return strings.Join(lines, ",\n")
}

// edit replaces text[start:end] with replacement.
type edit struct {
	start, end  int
	replacement string
}

// applyEdits applies non-overlapping edits right to left so earlier offsets
// stay valid.
func applyEdits(text string, edits []edit) string {
	if len(edits) == 0 {
		return text
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		text = text[:e.start] + e.replacement + text[e.end:]
	}
	return text
}
