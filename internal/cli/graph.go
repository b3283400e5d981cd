package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"twig-cs-formatter/internal/filewalker"
	"twig-cs-formatter/internal/graph"
	"twig-cs-formatter/internal/worker"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [directory]",
		Short: "Record which templates use which Twig components in Neo4j",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runIndex(dir)
		},
	}
}

func usagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usages [component]",
		Short: "List templates using a component, or all indexed components",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig()
			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			querier := graph.NewGraphQuerier(driver)
			if len(args) == 0 {
				counts, err := querier.Components(ctx)
				if err != nil {
					return err
				}
				renderComponents(cmd.OutOrStdout(), counts)
				return nil
			}

			usages, err := querier.TemplatesUsing(ctx, args[0])
			if err != nil {
				return err
			}
			renderUsages(cmd.OutOrStdout(), usages)
			return nil
		},
	}
}

// runIndex handles the `index` command.
func runIndex(dir string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()

	entries, err := filewalker.NewWalker().Walk(dir)
	if err != nil {
		return fmt.Errorf("walk template directory: %w", err)
	}

	driver, err := connectNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	builder := graph.NewGraphBuilder(driver)
	if err := builder.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}

	pool := worker.NewPool[filewalker.FileEntry, int](cfg.WorkerCount, func(ctx context.Context, entry filewalker.FileEntry) (int, error) {
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", entry.Path, err)
		}
		return builder.RecordTemplate(ctx, entry.Path, string(data))
	})
	results := pool.Execute(ctx, entries)

	components := 0
	for _, r := range results {
		if r.Err != nil {
			log.Error().Err(r.Err).Str("file", r.Input.Path).Msg("Index failed")
			continue
		}
		components += r.Output
	}

	log.Info().
		Int("templates", len(entries)).
		Int("usages", components).
		Int("failed", len(worker.Failed(results))).
		Msg("Index complete")

	if len(worker.Failed(results)) > 0 {
		return fmt.Errorf("index: failed to record some templates")
	}
	return nil
}

func renderUsages(out io.Writer, usages []graph.TemplateUsage) {
	width := 0
	for _, u := range usages {
		width = max(width, runewidth.StringWidth(u.Template))
	}
	for _, u := range usages {
		lines := make([]string, len(u.Lines))
		for i, l := range u.Lines {
			lines[i] = fmt.Sprint(l)
		}
		fmt.Fprintf(out, "%s  %s  %s\n",
			runewidth.FillRight(u.Template, width),
			checkColor.Sprint(strings.Join(lines, ",")),
			strings.Join(u.Attributes, " "))
	}
}

func renderComponents(out io.Writer, counts []graph.ComponentCount) {
	width := 0
	for _, c := range counts {
		width = max(width, runewidth.StringWidth(c.Name))
	}
	for _, c := range counts {
		fmt.Fprintf(out, "%s  %d\n", runewidth.FillRight(c.Name, width), c.Templates)
	}
}
