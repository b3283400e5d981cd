package cli

import (
	"twig-cs-formatter/internal/pipeline"
	"twig-cs-formatter/internal/watcher"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Reformat templates whenever they are saved",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			useCache, _ := cmd.Flags().GetBool("cache")

			ctx, cancel := setupContext()
			defer cancel()

			cfg := loadConfig()

			var formatter pipeline.DocumentFormatter = newFormatter(cfg)
			if useCache {
				cached, cleanup, err := newCachedFormatter(ctx, cfg)
				if err != nil {
					return err
				}
				defer cleanup()
				formatter = cached
			}

			w, err := watcher.New(formatter, dir, cfg.WatchDebounce)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().Bool("cache", false, "reuse results for unchanged input and configuration")
	return cmd
}
