package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"twig-cs-formatter/internal/filewalker"
	"twig-cs-formatter/internal/pipeline"
	"twig-cs-formatter/internal/worker"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	changedColor = color.New(color.FgGreen)
	checkColor   = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

var (
	errFormatFailed    = errors.New("format: failed to format some files")
	errChangesRequired = errors.New("format: formatting changes required")
)

// formatOptions controls what happens with formatted output.
type formatOptions struct {
	Check  bool
	Stdout bool
}

// fileResult is the outcome for one template.
type fileResult struct {
	Path      string
	Formatted string
	Changed   bool
}

func formatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format [flags] [path...]",
		Short: "Format Twig templates in place",
		Long: `Formats the given templates, or every .twig file under the given directories.
Without paths the current directory is formatted.`,
		RunE: runFormat,
	}

	cmd.Flags().Bool("check", false, "list files that need formatting without writing them")
	cmd.Flags().Bool("stdout", false, "print formatted output instead of rewriting files")
	cmd.Flags().String("format", "text", "output format (text|json)")
	cmd.Flags().String("since", "", "only format templates changed since this git ref")
	cmd.Flags().Bool("cache", false, "reuse results for unchanged input and configuration")

	return cmd
}

func runFormat(cmd *cobra.Command, args []string) error {
	check, _ := cmd.Flags().GetBool("check")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	outputFormat, _ := cmd.Flags().GetString("format")
	since, _ := cmd.Flags().GetString("since")
	useCache, _ := cmd.Flags().GetBool("cache")

	if toStdout && check {
		return fmt.Errorf("format: --stdout cannot be used with --check")
	}
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("format: unsupported output format %q", outputFormat)
	}
	if toStdout && outputFormat != "text" {
		return fmt.Errorf("format: --stdout is only supported with text output")
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	entries, err := collectEntries(ctx, root, args, since)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Warn().Msg("No templates to format")
		return nil
	}

	var formatter pipeline.DocumentFormatter = newFormatter(cfg)
	if useCache {
		cached, cleanup, err := newCachedFormatter(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		formatter = cached
	}

	results := formatFiles(ctx, formatter, root, entries, formatOptions{Check: check, Stdout: toStdout}, cfg.WorkerCount)

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	switch {
	case toStdout:
		return renderStdout(out, errOut, results)
	case outputFormat == "json":
		if err := renderJSON(out, results, check); err != nil {
			return err
		}
		return summarize(results, check)
	default:
		renderText(out, errOut, results, check)
		return summarize(results, check)
	}
}

func collectEntries(ctx context.Context, root string, args []string, since string) ([]filewalker.FileEntry, error) {
	w := filewalker.NewWalker()
	if since == "" {
		return w.Collect(args)
	}

	var entries []filewalker.FileEntry
	for _, folder := range args {
		changed, err := w.ChangedSince(ctx, root, since, folder)
		if err != nil {
			return nil, fmt.Errorf("list changed templates: %w", err)
		}
		entries = append(entries, changed...)
	}
	return entries, nil
}

// formatFiles formats entries concurrently. Files are rewritten only when
// neither check nor stdout mode is set.
func formatFiles(ctx context.Context, formatter pipeline.DocumentFormatter, root string, entries []filewalker.FileEntry, opts formatOptions, workers int) []worker.Result[filewalker.FileEntry, fileResult] {
	log.Info().Int("files", len(entries)).Int("workers", workers).Msg("Starting format run")

	pool := worker.NewPool[filewalker.FileEntry, fileResult](workers, func(ctx context.Context, entry filewalker.FileEntry) (fileResult, error) {
		return formatFile(ctx, formatter, root, entry.Path, opts)
	})
	results := pool.Execute(ctx, entries)

	log.Info().Int("files", len(entries)).Int("failed", len(worker.Failed(results))).Msg("Format run complete")
	return results
}

func formatFile(ctx context.Context, formatter pipeline.DocumentFormatter, root, path string, opts formatOptions) (fileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileResult{Path: path}, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)

	formatted, err := formatter.Format(ctx, pipeline.Request{Text: text, Path: path, WorkspaceRoot: root})
	if err != nil {
		return fileResult{Path: path}, err
	}

	res := fileResult{Path: path, Formatted: formatted, Changed: formatted != text}
	if !res.Changed || opts.Check || opts.Stdout {
		return res, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(formatted), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	return res, nil
}

func resultPath(r worker.Result[filewalker.FileEntry, fileResult]) string {
	return r.Input.Path
}

func renderStdout(out, errOut io.Writer, results []worker.Result[filewalker.FileEntry, fileResult]) error {
	failed := false
	for _, r := range results {
		if r.Err != nil {
			failed = true
			fmt.Fprintf(errOut, "%s %s: %v\n", errorColor.Sprint("error"), resultPath(r), r.Err)
			continue
		}
		if r.Skipped {
			continue
		}
		_, _ = io.WriteString(out, r.Output.Formatted)
	}
	if failed {
		return errFormatFailed
	}
	return nil
}

func renderText(out, errOut io.Writer, results []worker.Result[filewalker.FileEntry, fileResult], check bool) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(errOut, "%s %s: %v\n", errorColor.Sprint("error"), resultPath(r), r.Err)
		case r.Skipped || !r.Output.Changed:
		case check:
			fmt.Fprintln(out, checkColor.Sprint(resultPath(r)))
		default:
			fmt.Fprintf(out, "%s %s\n", changedColor.Sprint("reformatted"), resultPath(r))
		}
	}
}

func renderJSON(out io.Writer, results []worker.Result[filewalker.FileEntry, fileResult], check bool) error {
	type jsonResult struct {
		Path    string `json:"path"`
		Changed bool   `json:"changed"`
		Error   string `json:"error,omitempty"`
		Check   bool   `json:"check"`
	}

	payload := make([]jsonResult, 0, len(results))
	for _, r := range results {
		if r.Skipped {
			continue
		}
		jr := jsonResult{Path: resultPath(r), Changed: r.Output.Changed, Check: check}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		payload = append(payload, jr)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

// summarize turns per-file outcomes into the command's exit error.
func summarize(results []worker.Result[filewalker.FileEntry, fileResult], check bool) error {
	if len(worker.Failed(results)) > 0 {
		return errFormatFailed
	}
	if check {
		for _, r := range results {
			if r.Output.Changed {
				return errChangesRequired
			}
		}
	}
	return nil
}
