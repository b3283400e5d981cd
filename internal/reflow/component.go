package reflow

import (
	"regexp"
	"strings"

	"twig-cs-formatter/internal/textutil"
)

const componentOpen = "<twig:"

// componentName captures the local name of a component open tag.
var componentName = regexp.MustCompile(`^<twig:([A-Za-z][\w:.-]*)`)

// componentAnywhere finds component open tags at any position.
var componentAnywhere = regexp.MustCompile(`<twig:([A-Za-z][\w:.-]*)`)

// Attribute is one token of a component open tag. Value is empty for bare
// attributes and for {{ }} / {% %} spreads, which are kept in Name.
type Attribute struct {
	Name  string
	Value string
}

// HasValue reports whether the token is a name=value pair.
func (a Attribute) HasValue() bool { return a.Value != "" }

func (a Attribute) String() string {
	if !a.HasValue() {
		return a.Name
	}
	return a.Name + "=" + a.Value
}

// Component is a component open tag found in a document.
type Component struct {
	Name       string
	Attributes []Attribute
	// Line is the 1-based line of the open tag.
	Line int
}

// componentTag is a fully scanned open tag spanning one or more lines.
type componentTag struct {
	indent string
	name   string
	attrs  []Attribute
	marker string
	tail   string
}

func (t componentTag) valued() int {
	n := 0
	for _, a := range t.attrs {
		if a.HasValue() {
			n++
		}
	}
	return n
}

func (t componentTag) render(style Style) []string {
	lines := make([]string, 0, len(t.attrs)+2)
	lines = append(lines, t.indent+componentOpen+t.name)
	for _, a := range t.attrs {
		lines = append(lines, style.levels(t.indent, 1)+a.String())
	}
	return append(lines, t.indent+t.marker+t.tail)
}

// Components rewrites component open tags with more than one attribute into
// one attribute per line:
//
//	<twig:Card
//	    title="A"
//	    subtitle="B"
//	/>
//
// Tags with zero or one attribute, unterminated tags and tags followed by
// content other than their own closing tag are left as they are.
func Components(text string, style Style) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, componentOpen) || !strings.Contains(trimmed, "=") {
			out = append(out, lines[i])
			i++
			continue
		}

		tag, end, ok := scanComponentTag(lines, i)
		if !ok {
			out = append(out, lines[i])
			i++
			continue
		}

		if tag.valued() > 1 {
			out = append(out, tag.render(style)...)
		} else {
			out = append(out, lines[i:end+1]...)
		}
		i = end + 1
	}

	return strings.Join(out, "\n")
}

// scanComponentTag collects the lines of the open tag starting at lines[start]
// and returns the index of its last line.
func scanComponentTag(lines []string, start int) (componentTag, int, bool) {
	first := strings.TrimSpace(lines[start])
	m := componentName.FindStringSubmatch(first)
	if m == nil {
		return componentTag{}, 0, false
	}
	name := m[1]
	nameEnd := len(m[0])

	parts := make([]string, 0, 4)
	for j := start; j < len(lines); j++ {
		parts = append(parts, strings.TrimSpace(lines[j]))

		line := strings.TrimRight(lines[j], " \t\r")
		if !strings.Contains(line, "/>") && !strings.HasSuffix(line, ">") {
			continue
		}

		joined := strings.Join(parts, " ")
		body, marker, rest, found := splitOpenTag(joined, nameEnd)
		if !found {
			// The ">" belonged to an expression; keep extending.
			continue
		}

		tail := strings.TrimSpace(rest)
		if tail != "" && tail != "</twig:"+name+">" {
			return componentTag{}, 0, false
		}

		return componentTag{
			indent: textutil.Indentation(lines[start]),
			name:   name,
			attrs:  tokenizeAttributes(body),
			marker: marker,
			tail:   tail,
		}, j, true
	}

	return componentTag{}, 0, false
}

// splitOpenTag finds the end of the open tag in s, scanning from pos. It
// returns the attribute body, the closing marker ("/>" or ">") and whatever
// follows the marker.
func splitOpenTag(s string, pos int) (body, marker, rest string, found bool) {
	for i := pos; i < len(s); {
		switch {
		case s[i] == '"' || s[i] == '\'':
			i = skipQuoted(s, i)
		case strings.HasPrefix(s[i:], "{{"):
			i = skipDelimited(s, i, "}}")
		case strings.HasPrefix(s[i:], "{%"):
			i = skipDelimited(s, i, "%}")
		case strings.HasPrefix(s[i:], "/>"):
			return s[pos:i], "/>", s[i+2:], true
		case s[i] == '>':
			return s[pos:i], ">", s[i+1:], true
		default:
			i++
		}
	}
	return "", "", "", false
}

// tokenizeAttributes splits an open tag body into attributes, in order.
// Values made of embedded expressions have their whitespace collapsed.
func tokenizeAttributes(body string) []Attribute {
	var attrs []Attribute
	for i := 0; i < len(body); {
		if isSpace(body[i]) {
			i++
			continue
		}

		if strings.HasPrefix(body[i:], "{{") || strings.HasPrefix(body[i:], "{%") {
			closing := "}}"
			if body[i+1] == '%' {
				closing = "%}"
			}
			end := skipDelimited(body, i, closing)
			attrs = append(attrs, Attribute{Name: textutil.CollapseSpaces(body[i:end])})
			i = end
			continue
		}

		j := i
		for j < len(body) && !isSpace(body[j]) && body[j] != '=' {
			j++
		}
		name := body[i:j]

		k := j
		for k < len(body) && isSpace(body[k]) {
			k++
		}
		if name == "" || k >= len(body) || body[k] != '=' {
			if name == "" {
				// A stray "=" with no name.
				name, j = body[i:i+1], i+1
			}
			attrs = append(attrs, Attribute{Name: name})
			i = j
			continue
		}

		k++
		for k < len(body) && isSpace(body[k]) {
			k++
		}
		end := valueEnd(body, k)
		value := body[k:end]
		if strings.Contains(value, "{{") || strings.Contains(value, "{%") {
			value = textutil.CollapseSpaces(value)
		}
		if value == "" {
			attrs = append(attrs, Attribute{Name: name + "="})
		} else {
			attrs = append(attrs, Attribute{Name: name, Value: value})
		}
		i = end
	}
	return attrs
}

func valueEnd(s string, i int) int {
	switch {
	case i >= len(s):
		return i
	case s[i] == '"' || s[i] == '\'':
		return skipQuoted(s, i)
	case strings.HasPrefix(s[i:], "{{"):
		return skipDelimited(s, i, "}}")
	}
	for i < len(s) && !isSpace(s[i]) {
		i++
	}
	return i
}

// skipQuoted returns the offset just past the string literal opening at i.
// An unterminated literal runs to the end of s.
func skipQuoted(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] == quote {
			return j + 1
		}
	}
	return len(s)
}

// skipDelimited returns the offset just past closing, for the {{ or {% block
// opening at i. Quoted strings inside the block are skipped whole.
func skipDelimited(s string, i int, closing string) int {
	for j := i + 2; j < len(s); {
		switch {
		case s[j] == '"' || s[j] == '\'':
			j = skipQuoted(s, j)
		case strings.HasPrefix(s[j:], closing):
			return j + len(closing)
		default:
			j++
		}
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// ScanComponents lists every component open tag in text with its attributes.
func ScanComponents(text string) []Component {
	var components []Component
	for _, loc := range componentAnywhere.FindAllStringSubmatchIndex(text, -1) {
		body, _, _, found := splitOpenTag(text, loc[1])
		if !found {
			continue
		}
		components = append(components, Component{
			Name:       text[loc[2]:loc[3]],
			Attributes: tokenizeAttributes(body),
			Line:       strings.Count(text[:loc[0]], "\n") + 1,
		})
	}
	return components
}
