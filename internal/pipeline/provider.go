package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// LanguageID is the editor language the provider formats.
const LanguageID = "twig"

// Position is a zero-based line and UTF-16 character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range spans Start up to End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit replaces Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Document is an editor buffer to format.
type Document struct {
	Text          string
	Path          string
	WorkspaceRoot string
	LanguageID    string
}

// DocumentFormatter formats a whole document.
type DocumentFormatter interface {
	Format(ctx context.Context, req Request) (string, error)
}

// Notifier shows a message to the user.
type Notifier interface {
	NotifyError(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// NotifyError calls f(message).
func (f NotifierFunc) NotifyError(message string) { f(message) }

// Provider turns formatting results into editor edits. It is the single
// place where formatting errors are caught.
type Provider struct {
	formatter DocumentFormatter
	notifier  Notifier
}

// NewProvider creates a Provider. A nil notifier only logs.
func NewProvider(formatter DocumentFormatter, notifier Notifier) *Provider {
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Provider{formatter: formatter, notifier: notifier}
}

// Edits returns one edit replacing the whole document, or no edits when
// formatting failed. Failures are logged and reported to the user once.
func (p *Provider) Edits(ctx context.Context, doc Document) []TextEdit {
	formatted, err := p.formatter.Format(ctx, Request{
		Text:          doc.Text,
		Path:          doc.Path,
		WorkspaceRoot: doc.WorkspaceRoot,
	})
	if err != nil {
		log.Error().Err(err).Str("file", doc.Path).Msg("Formatting error")
		p.notifier.NotifyError(fmt.Sprintf("Error formatting Twig file: %v", err))
		return []TextEdit{}
	}

	return []TextEdit{{
		Range:   FullRange(doc.Text),
		NewText: formatted,
	}}
}

// FullRange spans text from its first to past its last character.
func FullRange(text string) Range {
	return Range{End: EndPosition(text)}
}

// EndPosition is the position just past the last character of text.
func EndPosition(text string) Position {
	line := strings.Count(text, "\n")
	last := text[strings.LastIndexByte(text, '\n')+1:]

	character := 0
	for len(last) > 0 {
		r, size := utf8.DecodeRuneInString(last)
		if r > 0xFFFF {
			character += 2
		} else {
			character++
		}
		last = last[size:]
	}
	return Position{Line: line, Character: character}
}
