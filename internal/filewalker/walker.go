package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedExtensions lists file types handled by the tool.
var SupportedExtensions = map[string]bool{
	".twig": true,
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"var":          true,
}

// SkipDir reports whether a directory with this base name is never
// searched for templates.
func SkipDir(name string) bool {
	return skipDirs[name]
}

// Walker discovers Twig templates.
type Walker struct{}

// NewWalker creates a Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// FileEntry represents a discovered template ready for formatting.
type FileEntry struct {
	Path string
	// Root is the directory the entry was discovered from.
	Root string
}

// IsTemplate reports whether path has a supported extension.
func IsTemplate(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Collect resolves a mix of files and directories into template entries.
// Explicitly named files are kept even without a template extension.
func (w *Walker) Collect(paths []string) ([]FileEntry, error) {
	var entries []FileEntry
	seen := make(map[string]bool)

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve path %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		var found []FileEntry
		if info.IsDir() {
			found, err = w.Walk(abs)
			if err != nil {
				return nil, err
			}
		} else {
			found = []FileEntry{{Path: abs, Root: filepath.Dir(abs)}}
		}

		for _, e := range found {
			if !seen[e.Path] {
				seen[e.Path] = true
				entries = append(entries, e)
			}
		}
	}

	return entries, nil
}

// Walk discovers all templates under the given root directory.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}

		if info.IsDir() {
			if path != root && skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if IsTemplate(path) {
			entries = append(entries, FileEntry{Path: path, Root: root})
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered templates")
	return entries, nil
}
