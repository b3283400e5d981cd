// Package pipeline runs a Twig document through the shield, prettier,
// restore and reflow stages in their fixed order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"twig-cs-formatter/internal/prettier"
	"twig-cs-formatter/internal/reflow"
	"twig-cs-formatter/internal/shield"
	"twig-cs-formatter/internal/textutil"

	"github.com/rs/zerolog/log"
)

// Version identifies the stage rules. Bump it whenever a stage changes its
// output so that cached results are not reused.
const Version = "1"

// ErrPlaceholderLost is returned in strict mode when prettier dropped a
// shielded fragment.
var ErrPlaceholderLost = errors.New("placeholder lost during formatting")

// Request is one document to format.
type Request struct {
	Text string
	// Path locates the project configuration and selects the dialect.
	Path string
	// WorkspaceRoot is used for configuration lookup when Path is empty.
	WorkspaceRoot string
}

// Options configures a Formatter.
type Options struct {
	Plugin string
	Parser string
	// Strict turns dropped placeholders into ErrPlaceholderLost.
	Strict bool
}

// Formatter formats whole documents. It holds no per-document state and may
// be shared between requests.
type Formatter struct {
	engine   prettier.Engine
	resolver prettier.Resolver
	shielder *shield.Shielder
	opts     Options
}

// New creates a Formatter.
func New(engine prettier.Engine, resolver prettier.Resolver, opts Options) *Formatter {
	return &Formatter{
		engine:   engine,
		resolver: resolver,
		shielder: shield.NewShielder(nil),
		opts:     opts,
	}
}

// Fingerprint identifies everything besides the text and the prettier
// configuration that affects the result of Format.
func (f *Formatter) Fingerprint() string {
	return fmt.Sprintf("pipeline=%s;plugin=%s;parser=%s;strict=%t",
		Version, f.opts.Plugin, f.opts.Parser, f.opts.Strict)
}

// Config returns the merged prettier configuration used for req.
func (f *Formatter) Config(req Request) (prettier.Config, error) {
	target := req.Path
	if target == "" && req.WorkspaceRoot != "" {
		target = filepath.Join(req.WorkspaceRoot, "untitled.twig")
	}

	resolved, err := f.resolver.Resolve(target)
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	return prettier.Merge(resolved, prettier.Overrides(f.opts.Plugin, f.opts.Parser, req.Path)), nil
}

// Format returns the fully formatted document. Either the whole pipeline
// succeeds or an error is returned; there is no partial result.
func (f *Formatter) Format(ctx context.Context, req Request) (string, error) {
	cfg, err := f.Config(req)
	if err != nil {
		return "", err
	}
	style := reflow.Style{Indent: prettier.IndentUnit(cfg)}
	width := cfg.Int("printWidth", prettier.PrintWidth)

	text, comments := f.shielder.Comments(req.Text)
	text, inline := f.shielder.InlineElements(text, width)

	log.Debug().
		Str("file", req.Path).
		Int("comments", comments.Len()).
		Int("inline", inline.Len()).
		Msg("Shielded document")

	formatted, err := f.engine.Format(ctx, text, cfg)
	if err != nil {
		return "", fmt.Errorf("format %s: %w", req.Path, err)
	}

	if err := f.verify(inline, formatted, req.Path); err != nil {
		return "", err
	}
	text = inline.Restore(formatted)

	text = reflow.Components(text, style)
	text = reflow.Merges(text, style)
	text = reflow.PathParams(text, style)

	if err := f.verify(comments, text, req.Path); err != nil {
		return "", err
	}
	return comments.Restore(text), nil
}

// verify reports shielded fragments whose token vanished from text.
func (f *Formatter) verify(table *shield.Table, text, path string) error {
	missing := table.Missing(text)
	if len(missing) == 0 {
		return nil
	}

	for _, e := range missing {
		log.Warn().
			Str("file", path).
			Str("kind", string(table.Kind())).
			Str("fragment", textutil.Truncate(e.Original, 40)).
			Msg("Shielded fragment dropped by formatter")
	}

	if f.opts.Strict {
		return fmt.Errorf("%w: %d %s fragment(s) in %s", ErrPlaceholderLost, len(missing), table.Kind(), path)
	}
	return nil
}
