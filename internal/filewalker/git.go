package filewalker

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ChangedSince lists templates under folder that differ between ref and the
// working tree, skipping deleted files.
func (w *Walker) ChangedSince(ctx context.Context, repoRoot, ref, folder string) ([]FileEntry, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", "--diff-filter=ACMR", ref, "--", folder)
	cmd.Dir = repoRoot

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --name-only: %w", err)
	}

	// git prints paths relative to the top level, not to cmd.Dir.
	top, err := gitTopLevel(ctx, repoRoot)
	if err != nil {
		return nil, err
	}

	entries := parseNameOnly(string(output), top)
	log.Info().Int("count", len(entries)).Str("ref", ref).Msg("Discovered changed templates")
	return entries, nil
}

func gitTopLevel(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse --show-toplevel: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// parseNameOnly turns `git diff --name-only` output into template entries.
func parseNameOnly(output, top string) []FileEntry {
	var entries []FileEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !IsTemplate(line) {
			continue
		}
		entries = append(entries, FileEntry{
			Path: filepath.Join(top, filepath.FromSlash(line)),
			Root: top,
		})
	}
	return entries
}
