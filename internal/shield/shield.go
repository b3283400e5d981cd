// Package shield hides fragile template fragments from the external formatter.
//
// A shield pass swaps every matching fragment for an opaque token and records
// the token in a Table; the Table later puts the originals back. Tables are
// created per formatting request and never shared.
package shield

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ComponentPrefix marks tags of the custom component namespace.
const ComponentPrefix = "twig:"

// Kind names what a Table protects. It is embedded in every token.
type Kind string

const (
	KindComment Kind = "COMMENT"
	KindInline  Kind = "INLINE"
)

// Entry maps one placeholder token to the text it replaced.
type Entry struct {
	Token    string
	Original string
	Index    int
}

// Table is the side table of a single shield pass.
type Table struct {
	kind    Kind
	entries []Entry
}

// Kind reports what the table protects.
func (t *Table) Kind() Kind { return t.kind }

// Len returns the number of shielded fragments.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the recorded entries in document order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Restore puts every original fragment back in place of its token.
// Tokens the text no longer contains are dropped without error.
func (t *Table) Restore(text string) string {
	if t == nil {
		return text
	}
	for _, e := range t.entries {
		text = strings.ReplaceAll(text, e.Token, e.Original)
	}
	return text
}

// Missing lists the entries whose token does not occur in text.
func (t *Table) Missing(text string) []Entry {
	if t == nil {
		return nil
	}
	var missing []Entry
	for _, e := range t.entries {
		if !strings.Contains(text, e.Token) {
			missing = append(missing, e)
		}
	}
	return missing
}

// commentPattern matches a template comment; the first closing marker wins.
var commentPattern = regexp.MustCompile(`(?s)\{#.*?#\}`)

// inlinePattern matches a one-line element whose content holds no markup.
// Go regexps have no back-references, so the closing name is checked by hand.
var inlinePattern = regexp.MustCompile(`<([A-Za-z][\w:.-]*)(\s[^<>\n]*)?>([^<>\n]*)</([A-Za-z][\w:.-]*)\s*>`)

// Comments replaces every template comment with a placeholder.
func Comments(text string) (string, *Table) {
	return defaultShielder.Comments(text)
}

// InlineElements replaces short single-line elements with placeholders.
// Elements wider than width and component tags are left in place.
func InlineElements(text string, width int) (string, *Table) {
	return defaultShielder.InlineElements(text, width)
}

// Shielder produces shield tables using its token source.
type Shielder struct {
	tokens *TokenSource
}

var defaultShielder = NewShielder(nil)

// NewShielder creates a Shielder. A nil source uses random suffixes.
func NewShielder(tokens *TokenSource) *Shielder {
	if tokens == nil {
		tokens = NewTokenSource(nil)
	}
	return &Shielder{tokens: tokens}
}

// Comments replaces every template comment with a placeholder.
func (s *Shielder) Comments(text string) (string, *Table) {
	table := &Table{kind: KindComment}
	shielded := commentPattern.ReplaceAllStringFunc(text, func(match string) string {
		return s.record(table, text, match)
	})
	return shielded, table
}

// InlineElements replaces short single-line elements with placeholders.
func (s *Shielder) InlineElements(text string, width int) (string, *Table) {
	table := &Table{kind: KindInline}
	locs := inlinePattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, table
	}

	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		match := text[loc[0]:loc[1]]
		open := text[loc[2]:loc[3]]
		content := text[loc[6]:loc[7]]
		closing := text[loc[8]:loc[9]]

		if open != closing ||
			strings.HasPrefix(open, ComponentPrefix) ||
			strings.TrimSpace(content) == "" ||
			runewidth.StringWidth(match) > width {
			continue
		}

		sb.WriteString(text[last:loc[0]])
		sb.WriteString(s.record(table, text, match))
		last = loc[1]
	}
	sb.WriteString(text[last:])

	return sb.String(), table
}

func (s *Shielder) record(table *Table, source, original string) string {
	index := len(table.entries)
	token := s.tokens.Next(table.kind, index, source)
	table.entries = append(table.entries, Entry{
		Token:    token,
		Original: original,
		Index:    index,
	})
	return token
}
